package config

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// 原子存储当前生效的配置，供各业务读取
var current atomic.Value // *Config

func Set(c *Config) {
	current.Store(c)
}

func Get() *Config {
	v := current.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// 以下取值函数均带默认值，配置缺失时业务仍可运行

// OutcomeDelta 按结算结果取余额增量（win/loss/tie）
func OutcomeDelta(outcome string) decimal.Decimal {
	cfg := Get()
	var raw string
	if cfg != nil {
		switch outcome {
		case "win":
			raw = cfg.Game.WinDelta
		case "loss":
			raw = cfg.Game.LossDelta
		case "tie":
			raw = cfg.Game.TieDelta
		}
	}
	if raw == "" {
		// 默认策略：赢 +0.000002 SOL，输/平不动账
		if outcome == "win" {
			return decimal.RequireFromString("0.000002")
		}
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ClampZero 负增量是否在 0 处截断
func ClampZero() bool {
	cfg := Get()
	if cfg == nil {
		return true
	}
	return cfg.Game.ClampZero
}

// WithdrawRequestMaxAttempts 发起转账的最大尝试次数
func WithdrawRequestMaxAttempts() int {
	cfg := Get()
	if cfg == nil || cfg.Withdraw.RequestMaxAttempts <= 0 {
		return 3
	}
	return cfg.Withdraw.RequestMaxAttempts
}

// WithdrawBackoffBase 退避基础延迟
func WithdrawBackoffBase() time.Duration {
	cfg := Get()
	if cfg == nil || cfg.Withdraw.BackoffBaseMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(cfg.Withdraw.BackoffBaseMs) * time.Millisecond
}

// WithdrawBackoffCap 退避上限
func WithdrawBackoffCap() time.Duration {
	cfg := Get()
	if cfg == nil || cfg.Withdraw.BackoffCapMs <= 0 {
		return 8 * time.Second
	}
	return time.Duration(cfg.Withdraw.BackoffCapMs) * time.Millisecond
}

// WithdrawPollInterval 确认轮询间隔
func WithdrawPollInterval() time.Duration {
	cfg := Get()
	if cfg == nil || cfg.Withdraw.PollIntervalSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(cfg.Withdraw.PollIntervalSec) * time.Second
}

// WithdrawConfirmBudget 确认阶段总墙钟预算
func WithdrawConfirmBudget() time.Duration {
	cfg := Get()
	if cfg == nil || cfg.Withdraw.ConfirmBudgetSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.Withdraw.ConfirmBudgetSec) * time.Second
}

// WithdrawMaxPayout 单次提现上限（对齐原 dApp 的 2 SOL airdrop 上限）
func WithdrawMaxPayout() decimal.Decimal {
	cfg := Get()
	if cfg != nil && cfg.Withdraw.MaxPayout != "" {
		if d, err := decimal.NewFromString(cfg.Withdraw.MaxPayout); err == nil && d.IsPositive() {
			return d
		}
	}
	return decimal.NewFromInt(2)
}

// ReconcileInterval 超时提现对账间隔，<=0 表示关闭对账任务
func ReconcileInterval() time.Duration {
	cfg := Get()
	if cfg == nil {
		return 0
	}
	return time.Duration(cfg.Withdraw.ReconcileSec) * time.Second
}
