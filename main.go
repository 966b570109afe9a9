package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common"
	"github.com/FuseSyntax/rock-paper-scissors/common/logger"
	"github.com/FuseSyntax/rock-paper-scissors/internal/config"
	infmysql "github.com/FuseSyntax/rock-paper-scissors/internal/infra/mysql"
	infrds "github.com/FuseSyntax/rock-paper-scissors/internal/infra/redis"
	"github.com/FuseSyntax/rock-paper-scissors/internal/worker"
	"github.com/FuseSyntax/rock-paper-scissors/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 配置：Nacos 优先，本地文件兜底
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Printf("load config failed: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	// 2. 日志
	logger.InitLogger()
	defer logger.Sync()
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 3. 存储：MySQL + Redis
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db.DB)
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// 4. 配置热更新（仅 Nacos 模式生效）
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		logger.Info("config reloaded",
			zap.String("win_delta", newCfg.Game.WinDelta),
			zap.Int("confirm_budget_sec", newCfg.Withdraw.ConfirmBudgetSec))
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 5. 后台任务：outbox 分发 + 超时提现对账
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartReconciler(ctx, &wg)

	// 6. Prometheus 指标端口（独立端口，不走业务过滤器链）
	var promSrv *http.Server
	if cfg.Observability.EnableProm {
		addr := cfg.Observability.PromAddr
		if addr == "" {
			addr = ":9100"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		promSrv = &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("prometheus metrics listening", zap.String("addr", addr))
			if err := promSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("prometheus server exit", zap.Error(err))
			}
		}()
	}

	// 7. HTTP 服务
	routers.Init()
	beego.BConfig.CopyRequestBody = true
	beego.BConfig.RunMode = beego.PROD
	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	go beego.Run()

	logger.Info("server started", zap.Int("port", beego.BConfig.Listen.HTTPPort))

	// 8. 优雅退出：等信号，停后台任务，收尾
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if promSrv != nil {
		_ = promSrv.Shutdown(shutdownCtx)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout, exiting with workers still running")
	}

	_ = db.Close()
	logger.Info("server stopped")
}
