package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/FuseSyntax/rock-paper-scissors/internal/config"

	"github.com/shopspring/decimal"
)

func settleTestConfig(winDelta, lossDelta string, clamp bool) {
	cfg := &config.Config{}
	cfg.Game.WinDelta = winDelta
	cfg.Game.LossDelta = lossDelta
	cfg.Game.TieDelta = "0"
	cfg.Game.ClampZero = clamp
	config.Set(cfg)
}

const testPubKey = "4Nd1mYQqkbDRyXAMSxLPqbEVzRyQmc8G5YLKYSbS9eGP"

func TestSettleWinIncrementsBalanceAndWins(t *testing.T) {
	settleTestConfig("0.000002", "0", true)
	led := newFakeLedger()
	svc := NewSettleService(led)

	out, err := svc.Settle(context.Background(), SettleInput{
		PublicKey:      testPubKey,
		PlayerChoice:   "rock",
		OpponentChoice: "scissors",
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Result != "win" || out.Wins != 1 || out.Losses != 0 || out.Ties != 0 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.Balance != "0.000002000" || out.AmountDelta != "0.000002000" {
		t.Fatalf("balance/delta: %s / %s", out.Balance, out.AmountDelta)
	}
}

func TestSettleLossAndTieLeaveBalanceByDefault(t *testing.T) {
	settleTestConfig("0.000002", "0", true)
	led := newFakeLedger()
	svc := NewSettleService(led)

	out, err := svc.Settle(context.Background(), SettleInput{
		PublicKey:      testPubKey,
		PlayerChoice:   "rock",
		OpponentChoice: "paper",
	})
	if err != nil {
		t.Fatalf("settle loss: %v", err)
	}
	if out.Result != "loss" || out.Balance != "0.000000000" || out.AmountDelta != "0.000000000" {
		t.Fatalf("loss output: %+v", out)
	}

	out, err = svc.Settle(context.Background(), SettleInput{
		PublicKey:      testPubKey,
		PlayerChoice:   "paper",
		OpponentChoice: "paper",
	})
	if err != nil {
		t.Fatalf("settle tie: %v", err)
	}
	if out.Result != "tie" || out.Balance != "0.000000000" || out.Ties != 1 {
		t.Fatalf("tie output: %+v", out)
	}
}

// 负增量策略：余额在 0 处截断，历史记录写实际生效的增量
func TestSettleNegativeDeltaClampsAtZero(t *testing.T) {
	settleTestConfig("0.000002", "-0.000005", true)
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000003)
	svc := NewSettleService(led)

	out, err := svc.Settle(context.Background(), SettleInput{
		PublicKey:      testPubKey,
		PlayerChoice:   "rock",
		OpponentChoice: "paper",
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Balance != "0.000000000" {
		t.Fatalf("balance: %s, want 0", out.Balance)
	}
	// 实际入账 -0.000003 而不是 -0.000005
	if out.AmountDelta != "-0.000003000" {
		t.Fatalf("applied delta: %s, want -0.000003", out.AmountDelta)
	}
}

func TestSettleServerGeneratesOpponent(t *testing.T) {
	settleTestConfig("0.000002", "0", true)
	led := newFakeLedger()
	svc := NewSettleService(led)

	out, err := svc.Settle(context.Background(), SettleInput{
		PublicKey:    testPubKey,
		PlayerChoice: "scissors",
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := ParseChoice(out.OpponentChoice); err != nil {
		t.Fatalf("opponent choice %q not in set", out.OpponentChoice)
	}
	// 结果与双方出拳必须自洽
	want, _ := ResolveOutcome(Choice(out.PlayerChoice), Choice(out.OpponentChoice))
	if string(want) != out.Result {
		t.Fatalf("result %s inconsistent with %s vs %s", out.Result, out.PlayerChoice, out.OpponentChoice)
	}
}

func TestSettleRejectsInvalidChoice(t *testing.T) {
	settleTestConfig("0.000002", "0", true)
	svc := NewSettleService(newFakeLedger())

	_, err := svc.Settle(context.Background(), SettleInput{
		PublicKey:    testPubKey,
		PlayerChoice: "lizard",
	})
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("want ErrInvalidChoice, got %v", err)
	}
}

// N 路并发结算同一玩家：每局恰好入账一次，余额等于增量之和，计数合计恰好加 N
func TestSettleConcurrentSamePlayer(t *testing.T) {
	settleTestConfig("0.000002", "0", true)
	led := newFakeLedger()
	svc := NewSettleService(led)

	const n = 32
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Settle(context.Background(), SettleInput{
				PublicKey:      testPubKey,
				PlayerChoice:   "rock",
				OpponentChoice: "scissors",
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
	}

	p, err := led.GetPlayer(context.Background(), testPubKey)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.Wins != n || p.Losses != 0 || p.Ties != 0 {
		t.Fatalf("counters: %d/%d/%d, want %d/0/0", p.Wins, p.Losses, p.Ties, n)
	}
	want := decimal.RequireFromString("0.000002").Mul(decimal.NewFromInt(n))
	if got := decimal.NewFromFloat(p.Balance); !got.Equal(want) {
		t.Fatalf("balance: %s, want %s", got, want)
	}
	hist, err := led.ListHistory(context.Background(), testPubKey, n+1, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != n {
		t.Fatalf("history rows: %d, want %d", len(hist), n)
	}
}

// 同一幂等键第二次提交：账本层撞唯一键，映射为 ErrDuplicateKey，且只入账一次
func TestSettleDuplicateIdempotencyKey(t *testing.T) {
	settleTestConfig("0.000002", "0", true)
	led := newFakeLedger()
	svc := NewSettleService(led)

	in := SettleInput{
		PublicKey:      testPubKey,
		PlayerChoice:   "rock",
		OpponentChoice: "scissors",
		IdempotencyKey: "idem-1",
	}
	if _, err := svc.Settle(context.Background(), in); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	_, err := svc.Settle(context.Background(), in)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}
	if led.balance(testPubKey) != 0.000002 {
		t.Fatalf("balance settled twice: %v", led.balance(testPubKey))
	}
}
