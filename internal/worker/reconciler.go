package worker

import (
	"context"
	"sync"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common/logger"
	"github.com/FuseSyntax/rock-paper-scissors/internal/config"
	"github.com/FuseSyntax/rock-paper-scissors/internal/gateway"
	"github.com/FuseSyntax/rock-paper-scissors/internal/service"

	"go.uber.org/zap"
)

// StartReconciler 启动提现对账任务
// 复查两类带句柄的未决单：确认预算耗尽的 timed_out 单（转账可能已到账），
// 以及进程崩溃或提交失败后滞留的 confirming 单。
// 周期性重查链上状态，已到账的补提交扣减（与请求路径共用同一个
// 幂等闸门，不会重复扣减），已失败的改判 failed。
// reconcile_sec <= 0 时不启动。
func StartReconciler(ctx context.Context, wg *sync.WaitGroup) {
	interval := config.ReconcileInterval()
	if interval <= 0 {
		return
	}

	svc := service.NewWithdrawService(service.NewMySQLLedger(), gateway.NewSolanaGateway())

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, cancel := context.WithTimeout(ctx, interval)
				resolved, err := svc.Reconcile(c, 100)
				cancel()
				if err != nil {
					logger.Warn("reconciler: pass failed", zap.Error(err))
					continue
				}
				if resolved > 0 {
					logger.Info("reconciler: resolved unresolved withdrawals", zap.Int("count", resolved))
				}
			}
		}
	}()
}
