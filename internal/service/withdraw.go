package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/common/logger"
	"github.com/FuseSyntax/rock-paper-scissors/internal/config"
	"github.com/FuseSyntax/rock-paper-scissors/internal/gateway"
	infrds "github.com/FuseSyntax/rock-paper-scissors/internal/infra/redis"
	"github.com/FuseSyntax/rock-paper-scissors/internal/metrics"
	"github.com/FuseSyntax/rock-paper-scissors/internal/model"
	"github.com/FuseSyntax/rock-paper-scissors/internal/state"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 提现协调器：向链上发起转账并轮询确认，确认到账后一次性扣减余额
//
// 状态机（持久化在 withdrawal_attempts 表）：
//   requesting --提交成功--> confirming --确认--> confirmed（扣减余额，终态）
//   requesting --重试耗尽--> failed（余额不动，终态）
//   confirming --链上失败--> failed（余额不动，终态）
//   confirming --预算耗尽--> timed_out（余额不动，终态，留待对账任务复查）
//
// 关键不变量：
//   1. 同一玩家同时最多一个非终态提现（Redis SETNX 快路径 + 唯一键兜底）；
//   2. 余额扣减至多一次：CommitConfirmed 内的条件状态推进是唯一闸门，
//      请求路径与对账任务并发提交时只有一方生效；
//   3. 余额只在 confirmed 时扣减，且只扣减本次支付的金额。

// WithdrawInput 提现请求参数
type WithdrawInput struct {
	PublicKey string
	TraceID   string
}

// WithdrawOutput 提现结果
type WithdrawOutput struct {
	Status       string `json:"status"`        // confirmed / failed / timed_out
	Amount       string `json:"amount"`        // 本次支付金额（SOL）
	PayoutHandle string `json:"payout_handle"` // 链上交易签名（发起成功时有值）
	Balance      string `json:"balance"`       // 提现后的余额快照
	AttemptCount int    `json:"attempt_count"` // 发起阶段实际尝试次数
}

type WithdrawService interface {
	// Withdraw 同步走完整个提现流程（发起 + 确认），返回终态结果
	Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error)
	// Reconcile 复查未决单（超时单与滞留的 confirming 单）：
	// 链上已到账则补提交，链上已失败则改判 failed
	Reconcile(ctx context.Context, limit int) (int, error)
}

type withdrawService struct {
	led Ledger
	gw  gateway.PayoutGateway
}

func NewWithdrawService(led Ledger, gw gateway.PayoutGateway) WithdrawService {
	return &withdrawService{led: led, gw: gw}
}

// 单次链上请求的超时（发起与状态查询各自独立计时）
const payoutCallTimeout = 8 * time.Second

// 对账任务复查的最小"冷却期"（叠加在确认预算之上），
// 保证被扫到的 confirming 滞留单对应的请求路径一定已经退出
const reconcileMinAge = 30 * time.Second

// advance 按事件驱动状态机推进：目标状态由 NextState 推导，非法转换直接报错
func (s *withdrawService) advance(ctx context.Context, id int64, from, evt, payoutHandle, lastErr string, attemptCount int) (bool, error) {
	to, err := state.NextState(from, evt)
	if err != nil {
		return false, err
	}
	return s.led.AdvanceAttempt(ctx, id, from, to, payoutHandle, lastErr, attemptCount)
}

func (s *withdrawService) Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error) {

	start := time.Now()
	finalStatus := "error"
	defer func() { metrics.RecordWithdraw(finalStatus, start) }()

	if strings.TrimSpace(in.PublicKey) == "" {
		return nil, ErrBadRequest
	}

	// ---------- 串行化快路径：Redis SETNX ----------
	// 锁 TTL 取确认预算 + 余量；真正的互斥由唯一键兜底，这里只是减少无谓的数据库冲突
	rdb := infrds.Client()
	lockKey := infrds.WithdrawLockKey(in.PublicKey)
	if rdb != nil {
		ttl := config.WithdrawConfirmBudget() + 30*time.Second
		ok, err := rdb.SetNX(ctx, lockKey, 1, ttl).Result()
		if err == nil && !ok {
			return nil, ErrWithdrawInFlight
		}
		defer func() { _ = rdb.Del(context.WithoutCancel(ctx), lockKey).Err() }()
	}

	// ---------- 余额快照与支付金额 ----------
	p, err := s.led.GetPlayer(ctx, in.PublicKey)
	if err != nil {
		return nil, err
	}
	balance := decimal.NewFromFloat(p.Balance)
	if !balance.IsPositive() {
		return nil, ErrNothingToWithdraw
	}
	// 单次支付上限（链上水龙头限额），超出部分留在余额里下次再提
	amount := balance
	if maxPayout := config.WithdrawMaxPayout(); maxPayout.IsPositive() && amount.GreaterThan(maxPayout) {
		amount = maxPayout
	}

	// ---------- 创建尝试记录（唯一键兜底串行化） ----------
	attempt, err := s.led.BeginAttempt(ctx, in.PublicKey, amount, in.TraceID)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "withdrawal accepted",
		zap.Int64("attempt_id", attempt.ID),
		zap.String("public_key", in.PublicKey),
		zap.String("amount", helper.TrimAmount(amount)))

	// ---------- 阶段一：发起转账（有界重试 + 指数退避） ----------
	policy := RetryPolicy{
		MaxAttempts: config.WithdrawRequestMaxAttempts(),
		BaseDelay:   config.WithdrawBackoffBase(),
		CapDelay:    config.WithdrawBackoffCap(),
	}

	var handle string
	attempts, reqErr := DoWithRetry(ctx, policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, payoutCallTimeout)
		defer cancel()
		h, e := s.gw.RequestPayout(callCtx, in.PublicKey, amount)
		if e != nil {
			return e
		}
		handle = h
		return nil
	}, func(err error) bool {
		// 地址非法没有重试价值；网络/节点不可用类错误才值得再试
		return !errors.Is(err, gateway.ErrInvalidRecipient)
	})

	if reqErr != nil {
		// 发起阶段失败：余额不动，标记终态 failed
		if _, e := s.advance(ctx, attempt.ID, state.StateRequesting, state.EvtFailed, "", reqErr.Error(), attempts); e != nil {
			logger.ErrorCtx(ctx, "mark attempt failed error", zap.Int64("attempt_id", attempt.ID), zap.Error(e))
		}
		logger.WarnCtx(ctx, "payout request exhausted",
			zap.Int64("attempt_id", attempt.ID),
			zap.Int("attempts", attempts),
			zap.Error(reqErr))
		if errors.Is(reqErr, gateway.ErrInvalidRecipient) {
			finalStatus = state.StateFailed
			return nil, ErrBadRequest
		}
		finalStatus = state.StateFailed
		return &WithdrawOutput{
			Status:       state.StateFailed,
			Amount:       helper.TrimAmount(amount),
			Balance:      helper.TrimAmount(balance),
			AttemptCount: attempts,
		}, nil
	}

	// 发起成功：推进到 confirming，持久化链上句柄
	// （此处若进程崩溃，滞留的 confirming 行由对账任务按句柄复查收尾）
	if _, err := s.advance(ctx, attempt.ID, state.StateRequesting, state.EvtSubmitted, handle, "", attempts); err != nil {
		return nil, err
	}

	// ---------- 阶段二：轮询确认（固定间隔，预算封顶） ----------
	// 确认阶段脱离请求取消信号：链上转账已提交，客户端断开不应中断对账本的最终提交
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.WithdrawConfirmBudget())
	defer cancel()

	outcome := s.pollConfirmation(confirmCtx, attempt, handle, attempts)
	finalStatus = outcome

	out := &WithdrawOutput{
		Status:       outcome,
		Amount:       helper.TrimAmount(amount),
		PayoutHandle: handle,
		AttemptCount: attempts,
	}
	switch outcome {
	case state.StateConfirmed:
		after, e := s.led.GetPlayer(context.WithoutCancel(ctx), in.PublicKey)
		if e == nil {
			out.Balance = helper.TrimAmount(decimal.NewFromFloat(after.Balance))
		}
		if rdb != nil {
			_ = rdb.Del(context.WithoutCancel(ctx), infrds.PlayerStatsKey(in.PublicKey)).Err()
		}
	default:
		// failed / timed_out：余额未动
		out.Balance = helper.TrimAmount(balance)
	}
	return out, nil
}

// pollConfirmation 轮询链上状态直到确认、失败或预算耗尽，返回落库后的终态
func (s *withdrawService) pollConfirmation(ctx context.Context, attempt *model.WithdrawalAttempt, handle string, attemptCount int) string {
	interval := config.WithdrawPollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		callCtx, cancel := context.WithTimeout(ctx, payoutCallTimeout)
		st, err := s.gw.GetStatus(callCtx, handle)
		cancel()

		switch {
		case err == nil && st.Succeeded():
			// 提交脱离确认预算：确认信号恰好压着预算边界到达时，
			// 已到账的扣减提交不允许被截断，否则行滞留 confirming 占住序列化槽位
			committed, e := s.led.CommitConfirmed(context.WithoutCancel(ctx), attempt, state.StateConfirming, handle, attemptCount)
			if e != nil {
				logger.ErrorCtx(ctx, "commit confirmed failed",
					zap.Int64("attempt_id", attempt.ID), zap.Error(e))
				// 提交失败但链上已到账：行留在 confirming，由对账任务按滞留单复查补提交
				return state.StateConfirming
			}
			if !committed {
				logger.WarnCtx(ctx, "confirm already committed elsewhere", zap.Int64("attempt_id", attempt.ID))
			}
			logger.InfoCtx(ctx, "withdrawal confirmed",
				zap.Int64("attempt_id", attempt.ID),
				zap.String("payout_handle", handle))
			return state.StateConfirmed

		case err == nil && st == gateway.StatusFailed:
			if _, e := s.advance(context.WithoutCancel(ctx), attempt.ID, state.StateConfirming, state.EvtFailed, handle, "payout failed on chain", attemptCount); e != nil {
				logger.ErrorCtx(ctx, "mark attempt failed error", zap.Int64("attempt_id", attempt.ID), zap.Error(e))
			}
			logger.WarnCtx(ctx, "withdrawal failed on chain",
				zap.Int64("attempt_id", attempt.ID),
				zap.String("payout_handle", handle))
			return state.StateFailed

		case err != nil && !errors.Is(err, gateway.ErrHandleNotFound):
			// 查询报错按 pending 处理继续轮询，预算封顶
			logger.WarnCtx(ctx, "payout status query error",
				zap.Int64("attempt_id", attempt.ID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			// 预算耗尽：终态 timed_out，余额不动，句柄已落库供对账任务复查
			mctx := context.WithoutCancel(ctx)
			if _, e := s.advance(mctx, attempt.ID, state.StateConfirming, state.EvtBudgetSpent, handle, "confirm budget exhausted", attemptCount); e != nil {
				logger.ErrorCtx(mctx, "mark attempt timed out error", zap.Int64("attempt_id", attempt.ID), zap.Error(e))
			}
			logger.WarnCtx(mctx, "withdrawal confirm budget exhausted",
				zap.Int64("attempt_id", attempt.ID),
				zap.String("payout_handle", handle))
			return state.StateTimedOut
		case <-ticker.C:
		}
	}
}

// Reconcile 复查留有链上句柄的未决单：终态 timed_out 的超时单，
// 以及进程崩溃或提交失败后滞留的 confirming 单。
// 已到账的补提交扣减（与请求路径共用同一个幂等闸门），已失败的改判 failed
func (s *withdrawService) Reconcile(ctx context.Context, limit int) (int, error) {
	// 冷却期叠加确认预算：扫到的 confirming 行对应的轮询一定早已退出
	minAge := config.WithdrawConfirmBudget() + reconcileMinAge
	list, err := s.led.ListUnresolved(ctx, minAge, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range list {
		a := &list[i]

		callCtx, cancel := context.WithTimeout(ctx, payoutCallTimeout)
		st, err := s.gw.GetStatus(callCtx, a.PayoutHandle)
		cancel()
		if err != nil {
			if errors.Is(err, gateway.ErrHandleNotFound) {
				continue
			}
			logger.WarnCtx(ctx, "reconcile status query error",
				zap.Int64("attempt_id", a.ID), zap.Error(err))
			continue
		}

		switch {
		case st.Succeeded():
			evt := state.EvtReconciled
			if a.Status == state.StateConfirming {
				evt = state.EvtConfirmed
			}
			if _, e := state.NextState(a.Status, evt); e != nil {
				logger.WarnCtx(ctx, "reconcile skips unexpected row",
					zap.Int64("attempt_id", a.ID), zap.Error(e))
				continue
			}
			committed, e := s.led.CommitConfirmed(ctx, a, a.Status, a.PayoutHandle, a.AttemptCount)
			if e != nil {
				logger.ErrorCtx(ctx, "reconcile commit failed",
					zap.Int64("attempt_id", a.ID), zap.Error(e))
				continue
			}
			if committed {
				resolved++
				metrics.RecordReconcile("confirmed")
				logger.InfoCtx(ctx, "unresolved withdrawal reconciled as confirmed",
					zap.Int64("attempt_id", a.ID),
					zap.String("from", a.Status),
					zap.String("payout_handle", a.PayoutHandle))
			}
		case st == gateway.StatusFailed:
			evt := state.EvtReconcileNeg
			if a.Status == state.StateConfirming {
				evt = state.EvtFailed
			}
			advanced, e := s.advance(ctx, a.ID, a.Status, evt, a.PayoutHandle, "payout failed on chain (reconciled)", a.AttemptCount)
			if e != nil {
				logger.ErrorCtx(ctx, "reconcile mark failed error",
					zap.Int64("attempt_id", a.ID), zap.Error(e))
				continue
			}
			if advanced {
				resolved++
				metrics.RecordReconcile("failed")
				logger.InfoCtx(ctx, "unresolved withdrawal reconciled as failed",
					zap.Int64("attempt_id", a.ID),
					zap.String("from", a.Status),
					zap.String("payout_handle", a.PayoutHandle))
			}
		}
		// 仍 pending：留待下一轮
	}
	return resolved, nil
}
