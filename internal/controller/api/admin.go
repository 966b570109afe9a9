package api

import (
	helper "github.com/FuseSyntax/rock-paper-scissors/internal/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/internal/common/response"

	beego "github.com/beego/beego/v2/server/web"
)

type AdminController struct{ beego.Controller }

// Reconcile 手动触发一轮超时单对账：POST /api/admin/reconcile
// 与后台对账任务走同一条路径，幂等闸门保证两者并发也不会重复扣减
func (c *AdminController) Reconcile() {
	traceID := helper.GetTraceID(c.Ctx)

	resolved, err := newWithdrawService().Reconcile(c.Ctx.Request.Context(), 100)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"resolved": resolved,
	}, traceID)
}
