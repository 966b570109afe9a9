package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common/helper"
	infrds "github.com/FuseSyntax/rock-paper-scissors/internal/infra/redis"
	"github.com/FuseSyntax/rock-paper-scissors/internal/model"

	"github.com/shopspring/decimal"
)

// 玩家查询服务：余额/战绩聚合与对局历史

// PlayerStats 玩家聚合快照
type PlayerStats struct {
	PublicKey string `json:"public_key"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
	Ties      int    `json:"ties"`
	Balance   string `json:"balance"`
}

// HistoryItem 对局历史条目
type HistoryItem struct {
	ID             int64  `json:"id"`
	Result         string `json:"result"`
	PlayerChoice   string `json:"player_choice"`
	OpponentChoice string `json:"opponent_choice"`
	AmountDelta    string `json:"amount_delta"`
	CreatedAt      int64  `json:"created_at"`
}

type UserService interface {
	// Stats 返回玩家聚合（带短期 Redis 缓存）；首次引用即建档，返回全 0 聚合
	Stats(ctx context.Context, publicKey string) (*PlayerStats, error)
	// History 按提交顺序倒序返回对局历史
	History(ctx context.Context, publicKey string, limit, offset uint) ([]HistoryItem, error)
}

type userService struct {
	led Ledger
}

func NewUserService(led Ledger) UserService { return &userService{led: led} }

// 聚合缓存 TTL：结算与提现成功路径会主动失效，这里只兜底
const statsCacheTTL = 30 * time.Second

func (s *userService) Stats(ctx context.Context, publicKey string) (*PlayerStats, error) {
	rdb := infrds.Client()
	if rdb != nil {
		if b, e := rdb.Get(ctx, infrds.PlayerStatsKey(publicKey)).Bytes(); e == nil && len(b) > 0 {
			var cached PlayerStats
			if json.Unmarshal(b, &cached) == nil {
				return &cached, nil
			}
		}
	}

	// 懒建档：钱包地址首次出现即创建全 0 聚合，与结算路径的建档语义一致
	p, err := s.led.EnsurePlayer(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	out := &PlayerStats{
		PublicKey: p.PublicKey,
		Wins:      p.Wins,
		Losses:    p.Losses,
		Ties:      p.Ties,
		Balance:   helper.TrimAmount(decimal.NewFromFloat(p.Balance)),
	}

	if rdb != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = rdb.Set(ctx, infrds.PlayerStatsKey(publicKey), b, statsCacheTTL).Err()
		}
	}
	return out, nil
}

func (s *userService) History(ctx context.Context, publicKey string, limit, offset uint) ([]HistoryItem, error) {
	list, err := s.led.ListHistory(ctx, publicKey, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryItem, 0, len(list))
	for i := range list {
		out = append(out, toHistoryItem(&list[i]))
	}
	return out, nil
}

func toHistoryItem(r *model.GameRecord) HistoryItem {
	return HistoryItem{
		ID:             r.ID,
		Result:         r.Result,
		PlayerChoice:   r.PlayerChoice,
		OpponentChoice: r.OpponentChoice,
		AmountDelta:    helper.TrimAmount(decimal.NewFromFloat(r.AmountDelta)),
		CreatedAt:      r.CreatedAt,
	}
}
