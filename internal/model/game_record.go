package model

import (
	"context"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// GameRecord 对应 game_history 表（追加式历史，仅插入，不修改不删除）
// result: win|loss|tie（以玩家视角）
// amount_delta 为本局余额增量（可为负），与 players.balance 的变更一一对应
type GameRecord struct {
	ID             int64   `db:"id"`
	PublicKey      string  `db:"public_key"`
	Result         string  `db:"result"`
	PlayerChoice   string  `db:"player_choice"`
	OpponentChoice string  `db:"opponent_choice"`
	AmountDelta    float64 `db:"amount_delta"`
	TraceID        string  `db:"trace_id"`
	CreatedAt      int64   `db:"created_at"`
}

// Insert 新增一条历史记录
func (r *GameRecord) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	r.CreatedAt = now

	sqlStr := "INSERT INTO game_history (public_key, result, player_choice, opponent_choice, amount_delta, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{r.PublicKey, r.Result, r.PlayerChoice, r.OpponentChoice, r.AmountDelta, r.TraceID, now}

	res, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	r.ID = id
	return nil
}

// ListHistory 按玩家查询历史，按提交顺序倒序（最近一局在前）
func ListHistory(ctx context.Context, db *sqlx.DB, publicKey string, limit, offset uint) ([]GameRecord, error) {
	if limit == 0 {
		limit = 10
	}

	var list []GameRecord
	err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  "game_history",
		Fields: []interface{}{"id", "public_key", "result", "player_choice", "opponent_choice", "amount_delta", "trace_id", "created_at"},
		Ex:     []g.Expression{g.C("public_key").Eq(publicKey)},
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// CountHistory 统计玩家历史局数（与 wins+losses+ties 恒等，供对账校验）
func CountHistory(ctx context.Context, db *sqlx.DB, publicKey string) (int64, error) {
	return common.CountCtx(ctx, db, "game_history", g.C("public_key").Eq(publicKey))
}
