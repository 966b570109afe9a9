package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FuseSyntax/rock-paper-scissors/internal/config"
	"github.com/FuseSyntax/rock-paper-scissors/internal/gateway"
	"github.com/FuseSyntax/rock-paper-scissors/internal/model"
	"github.com/FuseSyntax/rock-paper-scissors/internal/state"
)

// 提现测试统一用短预算：发起重试毫秒级退避，确认预算 1 秒
func withdrawTestConfig() {
	cfg := &config.Config{}
	cfg.Withdraw.RequestMaxAttempts = 3
	cfg.Withdraw.BackoffBaseMs = 1
	cfg.Withdraw.BackoffCapMs = 2
	cfg.Withdraw.PollIntervalSec = 1
	cfg.Withdraw.ConfirmBudgetSec = 1
	cfg.Withdraw.MaxPayout = "2"
	config.Set(cfg)
}

func TestWithdrawConfirmedDeductsOnce(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)
	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusConfirmed}}
	svc := NewWithdrawService(led, gw)

	out, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != state.StateConfirmed {
		t.Fatalf("status: %s", out.Status)
	}
	if out.PayoutHandle == "" {
		t.Fatal("missing payout handle")
	}
	if led.balance(testPubKey) != 0 {
		t.Fatalf("balance not zeroed: %v", led.balance(testPubKey))
	}
	if led.deductCalls != 1 {
		t.Fatalf("deduct calls: %d, want 1", led.deductCalls)
	}
	if gw.requestCalls != 1 {
		t.Fatalf("request calls: %d, want 1", gw.requestCalls)
	}
}

func TestWithdrawNothingToWithdraw(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0)
	svc := NewWithdrawService(led, &fakeGateway{})

	_, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("want ErrNothingToWithdraw, got %v", err)
	}
}

func TestWithdrawUnknownPlayer(t *testing.T) {
	withdrawTestConfig()
	svc := NewWithdrawService(newFakeLedger(), &fakeGateway{})

	_, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("want ErrPlayerNotFound, got %v", err)
	}
}

// 单次支付上限：余额超出上限时只支付上限金额，余额保留差额
func TestWithdrawCapsPayoutAtLimit(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 3.5)
	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusFinalized}}
	svc := NewWithdrawService(led, gw)

	out, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != state.StateConfirmed {
		t.Fatalf("status: %s", out.Status)
	}
	if out.Amount != "2.000000000" {
		t.Fatalf("amount: %s, want 2", out.Amount)
	}
	if led.balance(testPubKey) != 1.5 {
		t.Fatalf("remaining balance: %v, want 1.5", led.balance(testPubKey))
	}
}

// 发起阶段：网关不可用类错误按策略重试，耗尽后终态 failed，余额不动
func TestWithdrawRequestExhaustedMarksFailed(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)
	gw := &fakeGateway{requestErrs: []error{
		gateway.ErrGatewayUnavailable,
		gateway.ErrGatewayUnavailable,
		gateway.ErrGatewayUnavailable,
	}}
	svc := NewWithdrawService(led, gw)

	out, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != state.StateFailed {
		t.Fatalf("status: %s", out.Status)
	}
	if out.AttemptCount != 3 || gw.requestCalls != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3/3", out.AttemptCount, gw.requestCalls)
	}
	if led.balance(testPubKey) != 0.000010 {
		t.Fatalf("balance changed on failed withdrawal: %v", led.balance(testPubKey))
	}
	a := led.attempt(1)
	if a == nil || a.Status != state.StateFailed || a.IsActive != nil {
		t.Fatalf("attempt row: %+v", a)
	}
}

// 地址非法不可重试：一次失败立即终态
func TestWithdrawInvalidRecipientNoRetry(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)
	gw := &fakeGateway{requestErrs: []error{gateway.ErrInvalidRecipient}}
	svc := NewWithdrawService(led, gw)

	_, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest, got %v", err)
	}
	if gw.requestCalls != 1 {
		t.Fatalf("request calls: %d, want 1", gw.requestCalls)
	}
	if led.balance(testPubKey) != 0.000010 {
		t.Fatalf("balance changed: %v", led.balance(testPubKey))
	}
}

// 链上报 failed：终态 failed，余额不动
func TestWithdrawChainFailureMarksFailed(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)
	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusFailed}}
	svc := NewWithdrawService(led, gw)

	out, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != state.StateFailed {
		t.Fatalf("status: %s", out.Status)
	}
	if led.balance(testPubKey) != 0.000010 || led.deductCalls != 0 {
		t.Fatalf("balance touched on chain failure: %v / %d", led.balance(testPubKey), led.deductCalls)
	}
}

// 确认预算耗尽：终态 timed_out，余额不动，句柄留存供对账
func TestWithdrawConfirmBudgetTimesOut(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)
	gw := &fakeGateway{} // 永远 pending
	svc := NewWithdrawService(led, gw)

	out, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != state.StateTimedOut {
		t.Fatalf("status: %s", out.Status)
	}
	if led.balance(testPubKey) != 0.000010 || led.deductCalls != 0 {
		t.Fatalf("balance touched on timeout: %v", led.balance(testPubKey))
	}
	a := led.attempt(1)
	if a == nil || a.Status != state.StateTimedOut || a.PayoutHandle == "" {
		t.Fatalf("attempt row: %+v", a)
	}
}

// 账本提交与真实实现一样尊重 ctx 截止时间
type deadlineLedger struct{ *fakeLedger }

func (d *deadlineLedger) CommitConfirmed(ctx context.Context, a *model.WithdrawalAttempt, from, payoutHandle string, attemptCount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return d.fakeLedger.CommitConfirmed(ctx, a, from, payoutHandle, attemptCount)
}

// 确认信号压着预算边界才到达的网关
type slowConfirmGateway struct {
	fakeGateway
	delay time.Duration
}

func (g *slowConfirmGateway) GetStatus(_ context.Context, _ string) (gateway.PayoutStatus, error) {
	time.Sleep(g.delay)
	return gateway.StatusConfirmed, nil
}

// 确认恰好在预算耗尽后落地：扣减提交不允许被预算截断，终态仍是 confirmed
func TestWithdrawConfirmAtBudgetEdgeStillCommits(t *testing.T) {
	withdrawTestConfig() // 确认预算 1 秒
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)
	gw := &slowConfirmGateway{delay: 1200 * time.Millisecond}
	svc := NewWithdrawService(&deadlineLedger{led}, gw)

	out, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != state.StateConfirmed {
		t.Fatalf("status: %s, want confirmed", out.Status)
	}
	if led.balance(testPubKey) != 0 || led.deductCalls != 1 {
		t.Fatalf("balance %v deducts %d", led.balance(testPubKey), led.deductCalls)
	}
	a := led.attempt(1)
	if a == nil || a.Status != state.StateConfirmed || a.IsActive != nil {
		t.Fatalf("attempt row: %+v", a)
	}
}

// 同一玩家并发第二笔提现：非终态尝试存在时直接拒绝
func TestWithdrawSerializedPerPlayer(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)

	if _, err := led.BeginAttempt(context.Background(), testPubKey, decimalFromFloat(0.000010), ""); err != nil {
		t.Fatalf("begin attempt: %v", err)
	}

	svc := NewWithdrawService(led, &fakeGateway{})
	_, err := svc.Withdraw(context.Background(), WithdrawInput{PublicKey: testPubKey})
	if !errors.Is(err, ErrWithdrawInFlight) {
		t.Fatalf("want ErrWithdrawInFlight, got %v", err)
	}
}

// 重复确认信号：第二次提交撞幂等闸门，不会二次扣减
func TestCommitConfirmedIdempotent(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)

	a, err := led.BeginAttempt(context.Background(), testPubKey, decimalFromFloat(0.000010), "")
	if err != nil {
		t.Fatalf("begin attempt: %v", err)
	}
	if _, err := led.AdvanceAttempt(context.Background(), a.ID, state.StateRequesting, state.StateConfirming, "sig", "", 1); err != nil {
		t.Fatalf("advance: %v", err)
	}

	ok, err := led.CommitConfirmed(context.Background(), a, state.StateConfirming, "sig", 1)
	if err != nil || !ok {
		t.Fatalf("first commit: ok=%v err=%v", ok, err)
	}
	ok, err = led.CommitConfirmed(context.Background(), a, state.StateConfirming, "sig", 1)
	if err != nil || ok {
		t.Fatalf("second commit should be no-op: ok=%v err=%v", ok, err)
	}
	if led.deductCalls != 1 || led.balance(testPubKey) != 0 {
		t.Fatalf("deducted %d times, balance %v", led.deductCalls, led.balance(testPubKey))
	}
}

// 对账：超时单链上已到账则补提交扣减；链上报失败则改判 failed
func TestReconcileResolvesTimedOut(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)

	a, _ := led.BeginAttempt(context.Background(), testPubKey, decimalFromFloat(0.000010), "")
	_, _ = led.AdvanceAttempt(context.Background(), a.ID, state.StateRequesting, state.StateConfirming, "sig", "", 1)
	_, _ = led.AdvanceAttempt(context.Background(), a.ID, state.StateConfirming, state.StateTimedOut, "sig", "confirm budget exhausted", 1)

	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusConfirmed}}
	svc := NewWithdrawService(led, gw)

	resolved, err := svc.Reconcile(context.Background(), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("resolved: %d, want 1", resolved)
	}
	if led.balance(testPubKey) != 0 || led.deductCalls != 1 {
		t.Fatalf("balance %v deducts %d", led.balance(testPubKey), led.deductCalls)
	}
	row := led.attempt(a.ID)
	if row.Status != state.StateConfirmed {
		t.Fatalf("status: %s", row.Status)
	}
}

// 滞留的 confirming 单（进程崩溃/提交失败遗留）：链上已到账则对账补提交扣减
func TestReconcileCommitsStaleConfirming(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)

	a, _ := led.BeginAttempt(context.Background(), testPubKey, decimalFromFloat(0.000010), "")
	_, _ = led.AdvanceAttempt(context.Background(), a.ID, state.StateRequesting, state.StateConfirming, "sig", "", 1)

	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusFinalized}}
	svc := NewWithdrawService(led, gw)

	resolved, err := svc.Reconcile(context.Background(), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("resolved: %d, want 1", resolved)
	}
	if led.balance(testPubKey) != 0 || led.deductCalls != 1 {
		t.Fatalf("balance %v deducts %d", led.balance(testPubKey), led.deductCalls)
	}
	row := led.attempt(a.ID)
	if row.Status != state.StateConfirmed || row.IsActive != nil {
		t.Fatalf("attempt row: %+v", row)
	}
}

// 滞留的 confirming 单链上已失败：改判 failed，释放序列化槽位，余额不动
func TestReconcileFailsStaleConfirming(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)

	a, _ := led.BeginAttempt(context.Background(), testPubKey, decimalFromFloat(0.000010), "")
	_, _ = led.AdvanceAttempt(context.Background(), a.ID, state.StateRequesting, state.StateConfirming, "sig", "", 1)

	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusFailed}}
	svc := NewWithdrawService(led, gw)

	resolved, err := svc.Reconcile(context.Background(), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("resolved: %d, want 1", resolved)
	}
	if led.balance(testPubKey) != 0.000010 || led.deductCalls != 0 {
		t.Fatalf("balance touched on reconciled failure: %v", led.balance(testPubKey))
	}
	row := led.attempt(a.ID)
	if row.Status != state.StateFailed || row.IsActive != nil {
		t.Fatalf("attempt row: %+v", row)
	}
}

func TestReconcileMarksChainFailure(t *testing.T) {
	withdrawTestConfig()
	led := newFakeLedger()
	led.seedPlayer(testPubKey, 0.000010)

	a, _ := led.BeginAttempt(context.Background(), testPubKey, decimalFromFloat(0.000010), "")
	_, _ = led.AdvanceAttempt(context.Background(), a.ID, state.StateRequesting, state.StateConfirming, "sig", "", 1)
	_, _ = led.AdvanceAttempt(context.Background(), a.ID, state.StateConfirming, state.StateTimedOut, "sig", "confirm budget exhausted", 1)

	gw := &fakeGateway{statuses: []gateway.PayoutStatus{gateway.StatusFailed}}
	svc := NewWithdrawService(led, gw)

	resolved, err := svc.Reconcile(context.Background(), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("resolved: %d, want 1", resolved)
	}
	if led.balance(testPubKey) != 0.000010 || led.deductCalls != 0 {
		t.Fatalf("balance touched on reconciled failure: %v", led.balance(testPubKey))
	}
	row := led.attempt(a.ID)
	if row.Status != state.StateFailed {
		t.Fatalf("status: %s", row.Status)
	}
}
