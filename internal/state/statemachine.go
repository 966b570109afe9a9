package state

import "fmt"

// State 提现尝试状态
const (
	StateRequesting = "requesting" // 已受理，正在向链上发起转账
	StateConfirming = "confirming" // 转账已提交，轮询确认中
	StateConfirmed  = "confirmed"  // 确认到账，余额已清零（终态）
	StateFailed     = "failed"     // 发起失败或链上报失败（终态，余额不动）
	StateTimedOut   = "timed_out"  // 确认预算耗尽仍 pending（终态，余额不动，留待对账）
)

// Event 提现事件
const (
	EvtSubmitted    = "payout_submitted"    // requestPayout 成功返回句柄
	EvtConfirmed    = "payout_confirmed"    // 链上状态 confirmed/finalized
	EvtFailed       = "payout_failed"       // 发起耗尽重试或链上报 failed
	EvtBudgetSpent  = "confirm_budget_out"  // 确认预算耗尽
	EvtReconciled   = "reconciled"          // 对账任务确认超时单已到账
	EvtReconcileNeg = "reconcile_negative"  // 对账任务确认超时单已失败
)

// IsTerminal 终态判断：终态后余额与尝试记录不再变更
func IsTerminal(s string) bool {
	switch s {
	case StateConfirmed, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateRequesting:
		switch evt {
		case EvtSubmitted:
			return StateConfirming, nil
		case EvtFailed:
			return StateFailed, nil
		}
	case StateConfirming:
		switch evt {
		case EvtConfirmed:
			return StateConfirmed, nil
		case EvtFailed:
			return StateFailed, nil
		case EvtBudgetSpent:
			return StateTimedOut, nil
		}
	case StateTimedOut:
		// 超时单允许被对账任务推进到终态确认/失败
		switch evt {
		case EvtReconciled:
			return StateConfirmed, nil
		case EvtReconcileNeg:
			return StateFailed, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
