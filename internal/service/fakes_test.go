package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/internal/gateway"
	"github.com/FuseSyntax/rock-paper-scissors/internal/model"
	"github.com/FuseSyntax/rock-paper-scissors/internal/state"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// 内存账本：按 mysqlLedger 的语义实现 Ledger，供服务层测试使用

type fakeLedger struct {
	mu       sync.Mutex
	players  map[string]*model.Player
	history  map[string][]model.GameRecord
	attempts map[int64]*model.WithdrawalAttempt
	idemKeys map[string]bool
	nextID   int64

	applyGameCalls int
	deductCalls    int
}

func decimalFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		players:  map[string]*model.Player{},
		history:  map[string][]model.GameRecord{},
		attempts: map[int64]*model.WithdrawalAttempt{},
		idemKeys: map[string]bool{},
	}
}

func (f *fakeLedger) seedPlayer(publicKey string, balance float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[publicKey] = &model.Player{PublicKey: publicKey, Balance: balance, Status: 1}
}

func (f *fakeLedger) GetPlayer(_ context.Context, publicKey string) (*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[publicKey]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) EnsurePlayer(_ context.Context, publicKey string) (*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.players[publicKey]; !ok {
		f.players[publicKey] = &model.Player{PublicKey: publicKey, Status: 1}
	}
	cp := *f.players[publicKey]
	return &cp, nil
}

func (f *fakeLedger) ApplyGame(_ context.Context, in ApplyGameInput) (*ApplyGameResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyGameCalls++

	if in.IdempotencyKey != "" {
		if f.idemKeys[in.IdempotencyKey] {
			// 与 MySQL 唯一键冲突同构
			return nil, fmt.Errorf("insert idempotency key: %w",
				&mysqlerr.MySQLError{Number: 1062, Message: "Duplicate entry"})
		}
		f.idemKeys[in.IdempotencyKey] = true
	}

	p, ok := f.players[in.PublicKey]
	if !ok {
		p = &model.Player{PublicKey: in.PublicKey, Status: 1}
		f.players[in.PublicKey] = p
	}
	if p.Status != 1 {
		return nil, ErrPlayerDisabled
	}

	before := decimal.NewFromFloat(p.Balance)
	after := before.Add(in.Delta)
	if in.ClampZero && after.IsNegative() {
		after = decimal.Zero
	}
	applied := after.Sub(before)

	switch in.Result {
	case OutcomeWin:
		p.Wins++
	case OutcomeLoss:
		p.Losses++
	case OutcomeTie:
		p.Ties++
	}
	p.Balance = after.InexactFloat64()

	f.nextID++
	rec := model.GameRecord{
		ID:             f.nextID,
		PublicKey:      in.PublicKey,
		Result:         string(in.Result),
		PlayerChoice:   string(in.PlayerChoice),
		OpponentChoice: string(in.OpponentChoice),
		AmountDelta:    applied.InexactFloat64(),
		TraceID:        in.TraceID,
		CreatedAt:      time.Now().UnixMilli(),
	}
	f.history[in.PublicKey] = append([]model.GameRecord{rec}, f.history[in.PublicKey]...)

	cp := *p
	rc := rec
	return &ApplyGameResult{Player: &cp, Record: &rc}, nil
}

func (f *fakeLedger) ListHistory(_ context.Context, publicKey string, limit, offset uint) ([]model.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.history[publicKey]
	if offset >= uint(len(list)) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && uint(len(list)) > limit {
		list = list[:limit]
	}
	out := make([]model.GameRecord, len(list))
	copy(out, list)
	return out, nil
}

func (f *fakeLedger) BeginAttempt(_ context.Context, publicKey string, amount decimal.Decimal, traceID string) (*model.WithdrawalAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.PublicKey == publicKey && !state.IsTerminal(a.Status) {
			return nil, ErrWithdrawInFlight
		}
	}
	f.nextID++
	active := int8(1)
	a := &model.WithdrawalAttempt{
		ID:              f.nextID,
		PublicKey:       publicKey,
		RequestedAmount: amount.InexactFloat64(),
		Status:          state.StateRequesting,
		IsActive:        &active,
		TraceID:         traceID,
	}
	f.attempts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (f *fakeLedger) AdvanceAttempt(_ context.Context, id int64, from, to, payoutHandle, lastErr string, attemptCount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advanceLocked(id, from, to, payoutHandle, lastErr, attemptCount), nil
}

func (f *fakeLedger) advanceLocked(id int64, from, to, payoutHandle, lastErr string, attemptCount int) bool {
	a, ok := f.attempts[id]
	if !ok || a.Status != from {
		return false
	}
	a.Status = to
	a.PayoutHandle = payoutHandle
	a.LastError = lastErr
	a.AttemptCount = attemptCount
	if state.IsTerminal(to) {
		a.IsActive = nil
	}
	return true
}

func (f *fakeLedger) CommitConfirmed(_ context.Context, a *model.WithdrawalAttempt, from, payoutHandle string, attemptCount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.advanceLocked(a.ID, from, state.StateConfirmed, payoutHandle, "", attemptCount) {
		return false, nil
	}
	f.deductCalls++
	if p, ok := f.players[a.PublicKey]; ok {
		after := decimal.NewFromFloat(p.Balance).Sub(decimal.NewFromFloat(a.RequestedAmount))
		if after.IsNegative() {
			after = decimal.Zero
		}
		p.Balance = after.InexactFloat64()
	}
	return true, nil
}

func (f *fakeLedger) ListUnresolved(_ context.Context, _ time.Duration, limit int) ([]model.WithdrawalAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.WithdrawalAttempt
	for _, a := range f.attempts {
		unresolved := a.Status == state.StateTimedOut || a.Status == state.StateConfirming
		if unresolved && a.PayoutHandle != "" {
			out = append(out, *a)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLedger) attempt(id int64) *model.WithdrawalAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (f *fakeLedger) balance(publicKey string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[publicKey]; ok {
		return p.Balance
	}
	return 0
}

// 可编排的链上网关：按调用序返回预设错误/状态

type fakeGateway struct {
	mu sync.Mutex

	requestErrs []error // 第 i 次 RequestPayout 返回的错误，越界则成功
	handle      string

	statuses   []gateway.PayoutStatus // 第 i 次 GetStatus 返回的状态，越界则重复末值
	statusErrs []error

	requestCalls int
	statusCalls  int
}

func (g *fakeGateway) RequestPayout(_ context.Context, _ string, _ decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.requestCalls
	g.requestCalls++
	if i < len(g.requestErrs) && g.requestErrs[i] != nil {
		return "", g.requestErrs[i]
	}
	if g.handle == "" {
		g.handle = "sig-test"
	}
	return g.handle, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, _ string) (gateway.PayoutStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.statusCalls
	g.statusCalls++
	if i < len(g.statusErrs) && g.statusErrs[i] != nil {
		return "", g.statusErrs[i]
	}
	if len(g.statuses) == 0 {
		return gateway.StatusPending, nil
	}
	if i >= len(g.statuses) {
		i = len(g.statuses) - 1
	}
	return g.statuses[i], nil
}
