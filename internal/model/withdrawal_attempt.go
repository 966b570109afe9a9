package model

import (
	"context"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/internal/state"

	"github.com/jmoiron/sqlx"
)

// WithdrawalAttempt 对应 withdrawal_attempts 表（提现状态机持久化）
// status 取值见 internal/state；is_active 是序列化用的生成维度：
// 非终态行 is_active=1，终态行 is_active=NULL，
// 配合 UNIQUE KEY uk_player_active(public_key, is_active) 保证
// 同一玩家同时最多一个非终态提现（MySQL 唯一键允许多个 NULL）
type WithdrawalAttempt struct {
	ID              int64   `db:"id"`
	PublicKey       string  `db:"public_key"`
	RequestedAmount float64 `db:"requested_amount"`
	PayoutHandle    string  `db:"payout_handle"`
	Status          string  `db:"status"`
	AttemptCount    int     `db:"attempt_count"`
	IsActive        *int8   `db:"is_active"`
	LastError       string  `db:"last_error"`
	TraceID         string  `db:"trace_id"`
	CreatedAt       int64   `db:"created_at"`
	UpdatedAt       int64   `db:"updated_at"`
}

// InsertAttempt 创建一个 requesting 状态的提现尝试
// 若该玩家已有非终态尝试，唯一键冲突（MySQL 1062），由调用方映射为"提现进行中"
func InsertAttempt(ctx context.Context, exec sqlx.ExtContext, a *WithdrawalAttempt) error {
	now := time.Now().UnixMilli()
	a.Status = state.StateRequesting
	a.CreatedAt = now
	a.UpdatedAt = now

	sqlStr := "INSERT INTO withdrawal_attempts (public_key, requested_amount, payout_handle, status, attempt_count, is_active, last_error, trace_id, created_at, updated_at) VALUES (?, ?, '', ?, 0, 1, '', ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, a.PublicKey, a.RequestedAmount, a.Status, a.TraceID, now, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return nil
}

// AdvanceAttempt 条件推进状态机：仅当行仍处于 from 状态时生效，返回是否推进成功
// 终态自动置 is_active=NULL 释放该玩家的序列化槽位
func AdvanceAttempt(ctx context.Context, exec sqlx.ExtContext, id int64, from, to, payoutHandle, lastErr string, attemptCount int) (bool, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE withdrawal_attempts SET status = ?, payout_handle = ?, last_error = ?, attempt_count = ?, is_active = ?, updated_at = ? WHERE id = ? AND status = ?"
	var active interface{}
	if !state.IsTerminal(to) {
		active = int8(1)
	}
	res, err := exec.ExecContext(ctx, sqlStr, to, payoutHandle, lastErr, attemptCount, active, now, id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetAttempt 按ID查询提现尝试
func GetAttempt(ctx context.Context, db *sqlx.DB, id int64) (*WithdrawalAttempt, error) {
	sqlStr := "SELECT id, public_key, requested_amount, payout_handle, status, attempt_count, is_active, last_error, trace_id, created_at, updated_at FROM withdrawal_attempts WHERE id = ? LIMIT 1"
	var a WithdrawalAttempt
	if err := db.GetContext(ctx, &a, sqlStr, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListUnresolved 查询留有链上句柄、需要对账复查的尝试：
// 终态 timed_out 的超时单，以及进程崩溃或确认提交失败后滞留的 confirming 单。
// 只取更新时间早于冷却期的，避免和仍在轮询的请求路径竞争
func ListUnresolved(ctx context.Context, db *sqlx.DB, olderThan time.Duration, limit int) ([]WithdrawalAttempt, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()

	sqlStr := "SELECT id, public_key, requested_amount, payout_handle, status, attempt_count, is_active, last_error, trace_id, created_at, updated_at FROM withdrawal_attempts WHERE status IN (?, ?) AND payout_handle <> '' AND updated_at < ? ORDER BY id ASC LIMIT ?"
	var list []WithdrawalAttempt
	if err := db.SelectContext(ctx, &list, sqlStr, state.StateTimedOut, state.StateConfirming, cutoff, limit); err != nil {
		return nil, err
	}
	return list, nil
}
