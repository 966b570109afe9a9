package routers

import (
	"github.com/FuseSyntax/rock-paper-scissors/internal/config"
	"github.com/FuseSyntax/rock-paper-scissors/internal/controller/api"
	"github.com/FuseSyntax/rock-paper-scissors/internal/metrics"
	"github.com/FuseSyntax/rock-paper-scissors/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// Init 注册HTTP路由与全局过滤器
// 由 main 在配置加载完成后调用（过滤器开关依赖配置）
func Init() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 业务 API ==========

	// 出拳接口：限流
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/play", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/play", &api.PlayController{}, "post:Play")

	// 提现接口：限流
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/withdraw", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/withdraw", &api.WithdrawController{}, "post:Withdraw")

	// 玩家查询接口
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/user/history", &api.UserController{}, "get:History")

	// ========== 管理 API（需要管理员认证） ==========

	// 手动触发对账：管理员认证
	if cfg != nil && cfg.Auth.Admin.Enabled {
		beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	}
	beego.Router("/api/admin/reconcile", &api.AdminController{}, "post:Reconcile")
}
