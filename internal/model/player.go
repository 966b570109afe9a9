package model

import (
	"context"
	"time"

	log "github.com/FuseSyntax/rock-paper-scissors/common/logger"

	"github.com/jmoiron/sqlx"
)

// Player 对应 players 表
// 主键为钱包公钥字符串，首次引用时懒创建，所有计数与余额从 0 开始
// balance 使用 DECIMAL(18,9) 存储（lamports 精度），Go 层以 float64 表示
// status: 1=启用 2=禁用
type Player struct {
	PublicKey string    `db:"public_key"` // 钱包公钥（主键）
	Wins      int       `db:"wins"`       // 胜场
	Losses    int       `db:"losses"`     // 负场
	Ties      int       `db:"ties"`       // 平局
	Balance   float64   `db:"balance"`    // 可提现余额（SOL）
	Status    int8      `db:"status"`     // 状态 1=启用 2=禁用
	CreatedAt time.Time `db:"created_at"` // 创建时间
	UpdatedAt time.Time `db:"updated_at"` // 更新时间
}

type playerRow struct {
	PublicKey string  `db:"public_key"`
	Wins      int     `db:"wins"`
	Losses    int     `db:"losses"`
	Ties      int     `db:"ties"`
	Balance   float64 `db:"balance"`
	Status    int8    `db:"status"`
	CreatedAt int64   `db:"created_at"`
	UpdatedAt int64   `db:"updated_at"`
}

func (r *playerRow) toPlayer() *Player {
	return &Player{
		PublicKey: r.PublicKey,
		Wins:      r.Wins,
		Losses:    r.Losses,
		Ties:      r.Ties,
		Balance:   r.Balance,
		Status:    r.Status,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		UpdatedAt: time.UnixMilli(r.UpdatedAt),
	}
}

const playerFields = "public_key, wins, losses, ties, balance, status, created_at, updated_at"

// EnsurePlayer 懒创建玩家（幂等，已存在则不做任何修改）
func EnsurePlayer(ctx context.Context, exec sqlx.ExtContext, publicKey string) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT IGNORE INTO players (public_key, wins, losses, ties, balance, status, created_at, updated_at) VALUES (?, 0, 0, 0, 0, 1, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, publicKey, now, now)
	return err
}

// GetPlayerForUpdate 按公钥加锁查询（FOR UPDATE），请在事务中调用
func GetPlayerForUpdate(ctx context.Context, exec sqlx.ExtContext, publicKey string) (*Player, error) {
	sqlStr := "SELECT " + playerFields + " FROM players WHERE public_key = ? FOR UPDATE"

	var r playerRow
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, publicKey); err != nil {
		return nil, err
	}
	return r.toPlayer(), nil
}

// GetPlayer 非锁查询（用于查询接口与提现前的余额快照）
func GetPlayer(ctx context.Context, db *sqlx.DB, publicKey string) (*Player, error) {
	sqlStr := "SELECT " + playerFields + " FROM players WHERE public_key = ? LIMIT 1"

	var r playerRow
	if err := db.GetContext(ctx, &r, sqlStr, publicKey); err != nil {
		log.Error("[GetPlayer] query failed: " + err.Error())
		return nil, err
	}
	return r.toPlayer(), nil
}

// ApplyOutcome 结算一局：对应计数 +1 并写入新余额，请在事务中与 FOR UPDATE 配合调用
// wins/losses/ties 参数为本局增量（只会有一个是 1，其余为 0）
func ApplyOutcome(ctx context.Context, exec sqlx.ExtContext, publicKey string, wins, losses, ties int, newBalance float64) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE players SET wins = wins + ?, losses = losses + ?, ties = ties + ?, balance = ?, updated_at = ? WHERE public_key = ?"
	_, err := exec.ExecContext(ctx, sqlStr, wins, losses, ties, newBalance, now, publicKey)
	return err
}

// DeductBalance 扣减已支付的提现金额，在 0 处截断
// 只扣减本次实际支付的部分：确认期间并发结算新增的余额不会被清掉
// （"每局增量恰好入账一次"的不变量对提现提交后结算的局同样成立）
func DeductBalance(ctx context.Context, exec sqlx.ExtContext, publicKey string, amount float64) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE players SET balance = GREATEST(balance - ?, 0), updated_at = ? WHERE public_key = ?"
	_, err := exec.ExecContext(ctx, sqlStr, amount, now, publicKey)
	return err
}
