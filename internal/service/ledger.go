package service

import (
	"context"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/internal/model"

	"github.com/shopspring/decimal"
)

// ApplyGameInput 一局结算的完整输入，Ledger 实现必须整体原子生效
type ApplyGameInput struct {
	PublicKey      string
	Result         Outcome
	PlayerChoice   Choice
	OpponentChoice Choice
	Delta          decimal.Decimal // 本局余额增量（可为负）
	ClampZero      bool            // 负增量时是否在 0 处截断
	IdempotencyKey string          // 可空；非空时在同一事务内做唯一键防重
	TraceID        string
}

// ApplyGameResult 结算后的聚合快照与落库的历史记录
type ApplyGameResult struct {
	Player *model.Player
	Record *model.GameRecord
}

// Ledger 账本存储契约：所有余额变更都是对它的单次原子请求，
// 绝不允许应用层"先读后写"两步更新（多实例部署下会丢更新）
type Ledger interface {
	// GetPlayer 读取聚合记录，不存在返回 sql.ErrNoRows 包装后的错误
	GetPlayer(ctx context.Context, publicKey string) (*model.Player, error)
	// EnsurePlayer 懒创建并返回聚合记录（首次引用即建档，计数余额全 0）
	EnsurePlayer(ctx context.Context, publicKey string) (*model.Player, error)
	// ApplyGame 单事务完成：建档（如需）、历史追加、计数与余额更新、幂等键、outbox
	ApplyGame(ctx context.Context, in ApplyGameInput) (*ApplyGameResult, error)
	// ListHistory 按提交顺序倒序返回历史
	ListHistory(ctx context.Context, publicKey string, limit, offset uint) ([]model.GameRecord, error)

	// BeginAttempt 创建 requesting 状态的提现尝试；该玩家已有非终态尝试时返回 ErrWithdrawInFlight
	BeginAttempt(ctx context.Context, publicKey string, amount decimal.Decimal, traceID string) (*model.WithdrawalAttempt, error)
	// AdvanceAttempt 条件推进状态机（仅当仍处于 from 状态），终态自动释放序列化槽位
	AdvanceAttempt(ctx context.Context, id int64, from, to, payoutHandle, lastErr string, attemptCount int) (bool, error)
	// CommitConfirmed 确认到账的唯一账本变更：状态推进与余额扣减在一个事务内，
	// 以状态行的条件更新做幂等闸门，重复确认信号不会二次扣减
	CommitConfirmed(ctx context.Context, a *model.WithdrawalAttempt, from, payoutHandle string, attemptCount int) (bool, error)
	// ListUnresolved 留有链上句柄的未决单（终态 timed_out 与滞留的 confirming），供对账任务复查
	ListUnresolved(ctx context.Context, olderThan time.Duration, limit int) ([]model.WithdrawalAttempt, error)
}
