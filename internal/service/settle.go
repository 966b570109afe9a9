package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/common/logger"
	"github.com/FuseSyntax/rock-paper-scissors/internal/config"
	infrds "github.com/FuseSyntax/rock-paper-scissors/internal/infra/redis"
	"github.com/FuseSyntax/rock-paper-scissors/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 处理单局结算业务逻辑

// SettleInput 输入参数
// OpponentChoice 可空：为空时由服务端用 crypto/rand 生成（对提交方不可预测）
type SettleInput struct {
	PublicKey      string
	PlayerChoice   string
	OpponentChoice string
	/*
		幂等键：客户端生成并随请求传入，用于在网络重试/超时重发时保证"同一局只结算一次"。
		服务端幂等保证（多层防护）：
		1) Redis 进行中锁（约45秒）：并发重复请求直接拒绝；
		2) MySQL 唯一键：在事务内插入 idempotency_keys(idempotency_key)，已存在则整体回滚；
		3) 结果缓存：首次成功结果写入 Redis（短期缓存），后续重复直接读缓存快速返回。
	*/
	IdempotencyKey string
	TraceID        string
}

// SettleOutput 结算后的聚合快照
type SettleOutput struct {
	Result         string `json:"result"`
	PlayerChoice   string `json:"player_choice"`
	OpponentChoice string `json:"opponent_choice"`
	AmountDelta    string `json:"amount_delta"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	Ties           int    `json:"ties"`
	Balance        string `json:"balance"`
}

type SettleService interface {
	Settle(ctx context.Context, in SettleInput) (*SettleOutput, error)
}

type settleService struct {
	led Ledger
}

func NewSettleService(led Ledger) SettleService { return &settleService{led: led} }

const (
	// Redis 进行中锁 TTL：吸收短时重试窗口内的重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：重复请求直接返回第一次成功结果
	idemResultTTL = 1 * time.Minute
)

// Settle 处理单局结算主流程：
// 解析出拳 → 判定胜负 → 按策略表取增量 → 单事务入账
func (s *settleService) Settle(ctx context.Context, in SettleInput) (*SettleOutput, error) {

	start := time.Now()
	result := "fail"
	outcomeLabel := "unknown"
	defer func() { metrics.RecordPlay(result, outcomeLabel, start) }()

	if strings.TrimSpace(in.PublicKey) == "" {
		return nil, ErrBadRequest
	}

	playerChoice, err := ParseChoice(in.PlayerChoice)
	if err != nil {
		return nil, err
	}

	var opponentChoice Choice
	if strings.TrimSpace(in.OpponentChoice) == "" {
		opponentChoice, err = RandomChoice()
		if err != nil {
			logger.ErrorCtx(ctx, "generate opponent choice failed", zap.Error(err))
			return nil, err
		}
	} else {
		opponentChoice, err = ParseChoice(in.OpponentChoice)
		if err != nil {
			return nil, err
		}
	}

	outcome, err := ResolveOutcome(playerChoice, opponentChoice)
	if err != nil {
		return nil, err
	}
	outcomeLabel = string(outcome)

	// ========== 幂等防护（传入幂等键时才启用） ==========
	rdb := infrds.Client()
	if in.IdempotencyKey != "" && rdb != nil {
		// 1) 结果缓存命中：直接返回第一次的结果
		if b, e := rdb.Get(ctx, infrds.PlayIdemResultKey(in.IdempotencyKey)).Bytes(); e == nil && len(b) > 0 {
			var cached SettleOutput
			if json.Unmarshal(b, &cached) == nil {
				result = "success_idempotent"
				return &cached, nil
			}
		}
		// 2) 进行中锁：并发重复请求直接拒绝
		ok, e := rdb.SetNX(ctx, infrds.PlayIdemLockKey(in.IdempotencyKey), 1, idemLockTTL).Result()
		if e == nil && !ok {
			return nil, ErrDuplicateInFlight
		}
		defer func() { _ = rdb.Del(context.WithoutCancel(ctx), infrds.PlayIdemLockKey(in.IdempotencyKey)).Err() }()
	}

	delta := config.OutcomeDelta(string(outcome))

	applied, err := s.led.ApplyGame(ctx, ApplyGameInput{
		PublicKey:      in.PublicKey,
		Result:         outcome,
		PlayerChoice:   playerChoice,
		OpponentChoice: opponentChoice,
		Delta:          delta,
		ClampZero:      config.ClampZero(),
		IdempotencyKey: in.IdempotencyKey,
		TraceID:        in.TraceID,
	})
	if err != nil {
		if isMySQLDuplicateKeyError(err) {
			// 历史重复：已结算过同一幂等键，事务已整体回滚
			logger.WarnCtx(ctx, "duplicate idempotency key on settle",
				zap.String("public_key", in.PublicKey),
				zap.String("idempotency_key", in.IdempotencyKey))
			return nil, ErrDuplicateKey
		}
		logger.ErrorCtx(ctx, "apply game failed",
			zap.String("public_key", in.PublicKey),
			zap.String("result", string(outcome)),
			zap.Error(err))
		return nil, err
	}

	out := &SettleOutput{
		Result:         string(outcome),
		PlayerChoice:   string(playerChoice),
		OpponentChoice: string(opponentChoice),
		AmountDelta:    helper.TrimAmount(decimal.NewFromFloat(applied.Record.AmountDelta)),
		Wins:           applied.Player.Wins,
		Losses:         applied.Player.Losses,
		Ties:           applied.Player.Ties,
		Balance:        helper.TrimAmount(decimal.NewFromFloat(applied.Player.Balance)),
	}

	// 首次成功结果写入缓存，供重复请求快速返回
	if in.IdempotencyKey != "" && rdb != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = rdb.Set(ctx, infrds.PlayIdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}
	// 聚合缓存失效，查询接口下次回源
	if rdb != nil {
		_ = rdb.Del(ctx, infrds.PlayerStatsKey(in.PublicKey)).Err()
	}

	logger.InfoCtx(ctx, "game settled",
		zap.String("public_key", in.PublicKey),
		zap.String("result", string(outcome)),
		zap.String("delta", out.AmountDelta),
		zap.String("balance", out.Balance))

	result = "success"
	return out, nil
}
