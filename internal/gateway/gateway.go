package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// PayoutStatus 链上转账状态
type PayoutStatus string

const (
	StatusPending   PayoutStatus = "pending"   // 已提交，尚未确认
	StatusConfirmed PayoutStatus = "confirmed" // 已确认
	StatusFinalized PayoutStatus = "finalized" // 已最终化
	StatusFailed    PayoutStatus = "failed"    // 链上报失败（终态）
)

// Succeeded 对本系统而言 confirmed 与 finalized 都算到账
func (s PayoutStatus) Succeeded() bool {
	return s == StatusConfirmed || s == StatusFinalized
}

var (
	// ErrGatewayUnavailable 网络或节点不可用（可重试）
	ErrGatewayUnavailable = errors.New("payout gateway unavailable")
	// ErrInvalidRecipient 收款地址非法（不可重试）
	ErrInvalidRecipient = errors.New("invalid payout recipient")
	// ErrHandleNotFound 节点查不到该句柄（视作仍在 pending，节点可能尚未收录）
	ErrHandleNotFound = errors.New("payout handle not found")
)

// PayoutGateway 提现协调器消费的外部结算网络契约
// RequestPayout 本身可能超时而无法得知转账是否已提交，调用方需按策略重试；
// GetStatus 以句柄查询转账状态，pending 表示继续等待。
type PayoutGateway interface {
	RequestPayout(ctx context.Context, recipient string, amount decimal.Decimal) (handle string, err error)
	GetStatus(ctx context.Context, handle string) (PayoutStatus, error)
}
