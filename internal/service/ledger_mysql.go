package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common/helper"
	infmysql "github.com/FuseSyntax/rock-paper-scissors/internal/infra/mysql"
	"github.com/FuseSyntax/rock-paper-scissors/internal/model"
	"github.com/FuseSyntax/rock-paper-scissors/internal/state"

	"github.com/shopspring/decimal"
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// mysqlLedger 基于 MySQL 的账本实现
// 原子性依赖事务 + FOR UPDATE 行锁（结算）与条件 UPDATE（提现状态机），
// 多实例部署下同样成立，不依赖任何进程内锁
type mysqlLedger struct{}

// NewMySQLLedger 返回生产用账本实现
func NewMySQLLedger() Ledger { return &mysqlLedger{} }

func txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTxTimeout)
}

func (l *mysqlLedger) GetPlayer(ctx context.Context, publicKey string) (*model.Player, error) {
	p, err := model.GetPlayer(ctx, infmysql.SQLX(), publicKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return p, nil
}

func (l *mysqlLedger) EnsurePlayer(ctx context.Context, publicKey string) (*model.Player, error) {
	if err := model.EnsurePlayer(ctx, infmysql.SQLX(), publicKey); err != nil {
		return nil, err
	}
	return model.GetPlayer(ctx, infmysql.SQLX(), publicKey)
}

// ApplyGame 单事务结算一局，任何一步失败整体回滚，不允许历史与聚合不一致
func (l *mysqlLedger) ApplyGame(ctx context.Context, in ApplyGameInput) (*ApplyGameResult, error) {
	ctx, cancel := txContext(ctx)
	defer cancel()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 首次出手即建档（懒 upsert），随后加锁读出当前聚合
	if err := model.EnsurePlayer(ctx, tx, in.PublicKey); err != nil {
		return nil, err
	}
	p, err := model.GetPlayerForUpdate(ctx, tx, in.PublicKey)
	if err != nil {
		return nil, err
	}
	if p.Status != 1 {
		return nil, ErrPlayerDisabled
	}

	// decimal 精确计算新余额；负增量按策略在 0 处截断，
	// 截断后历史记录写实际生效的增量，保证"增量恰好入账一次"可对账
	beforeDec := decimal.NewFromFloat(p.Balance)
	afterDec := helper.RoundAmount(beforeDec.Add(in.Delta))
	if in.ClampZero && afterDec.IsNegative() {
		afterDec = decimal.Zero
	}
	appliedDelta := afterDec.Sub(beforeDec)

	rec := &model.GameRecord{
		PublicKey:      in.PublicKey,
		Result:         string(in.Result),
		PlayerChoice:   string(in.PlayerChoice),
		OpponentChoice: string(in.OpponentChoice),
		AmountDelta:    appliedDelta.InexactFloat64(),
		TraceID:        in.TraceID,
	}
	if err := rec.Insert(ctx, tx); err != nil {
		return nil, err
	}

	wins, losses, ties := 0, 0, 0
	switch in.Result {
	case OutcomeWin:
		wins = 1
	case OutcomeLoss:
		losses = 1
	case OutcomeTie:
		ties = 1
	}
	if err := model.ApplyOutcome(ctx, tx, in.PublicKey, wins, losses, ties, afterDec.InexactFloat64()); err != nil {
		return nil, err
	}

	// 幂等键与业务变更同事务落库：重复请求在这里撞唯一键整体回滚
	if in.IdempotencyKey != "" {
		k := &model.IdempotencyKey{
			IdempotencyKey: in.IdempotencyKey,
			Purpose:        "play",
			Ref:            rec.TraceID,
		}
		if err := k.Insert(ctx, tx); err != nil {
			return nil, err
		}
	}

	if err := model.CreateOutbox(ctx, tx, "game_settled", in.PublicKey, map[string]any{
		"event":           "game_settled",
		"public_key":      in.PublicKey,
		"result":          string(in.Result),
		"player_choice":   string(in.PlayerChoice),
		"opponent_choice": string(in.OpponentChoice),
		"amount_delta":    appliedDelta.String(),
		"balance":         afterDec.String(),
		"trace_id":        in.TraceID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.Wins += wins
	p.Losses += losses
	p.Ties += ties
	p.Balance = afterDec.InexactFloat64()
	return &ApplyGameResult{Player: p, Record: rec}, nil
}

func (l *mysqlLedger) ListHistory(ctx context.Context, publicKey string, limit, offset uint) ([]model.GameRecord, error) {
	return model.ListHistory(ctx, infmysql.SQLX(), publicKey, limit, offset)
}

func (l *mysqlLedger) BeginAttempt(ctx context.Context, publicKey string, amount decimal.Decimal, traceID string) (*model.WithdrawalAttempt, error) {
	a := &model.WithdrawalAttempt{
		PublicKey:       publicKey,
		RequestedAmount: amount.InexactFloat64(),
		TraceID:         traceID,
	}
	if err := model.InsertAttempt(ctx, infmysql.SQLX(), a); err != nil {
		if isMySQLDuplicateKeyError(err) {
			return nil, ErrWithdrawInFlight
		}
		return nil, err
	}
	return a, nil
}

func (l *mysqlLedger) AdvanceAttempt(ctx context.Context, id int64, from, to, payoutHandle, lastErr string, attemptCount int) (bool, error) {
	return model.AdvanceAttempt(ctx, infmysql.SQLX(), id, from, to, payoutHandle, lastErr, attemptCount)
}

// CommitConfirmed 确认到账提交：状态条件推进作为幂等闸门，扣减与 outbox 同事务
func (l *mysqlLedger) CommitConfirmed(ctx context.Context, a *model.WithdrawalAttempt, from, payoutHandle string, attemptCount int) (bool, error) {
	ctx, cancel := txContext(ctx)
	defer cancel()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	advanced, err := model.AdvanceAttempt(ctx, tx, a.ID, from, state.StateConfirmed, payoutHandle, "", attemptCount)
	if err != nil {
		return false, err
	}
	if !advanced {
		// 已被其他路径（请求路径或对账任务）提交过，直接放弃
		return false, nil
	}

	if err := model.DeductBalance(ctx, tx, a.PublicKey, a.RequestedAmount); err != nil {
		return false, err
	}

	if err := model.CreateOutbox(ctx, tx, "withdrawal_confirmed", payoutHandle, map[string]any{
		"event":         "withdrawal_confirmed",
		"public_key":    a.PublicKey,
		"amount":        decimal.NewFromFloat(a.RequestedAmount).String(),
		"payout_handle": payoutHandle,
		"attempt_id":    a.ID,
		"trace_id":      a.TraceID,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *mysqlLedger) ListUnresolved(ctx context.Context, olderThan time.Duration, limit int) ([]model.WithdrawalAttempt, error) {
	return model.ListUnresolved(ctx, infmysql.SQLX(), olderThan, limit)
}
