package api

import (
	"errors"

	helper "github.com/FuseSyntax/rock-paper-scissors/internal/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/internal/common/response"
	"github.com/FuseSyntax/rock-paper-scissors/internal/gateway"
	"github.com/FuseSyntax/rock-paper-scissors/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newWithdrawService = func() service.WithdrawService {
	return service.NewWithdrawService(service.NewMySQLLedger(), gateway.NewSolanaGateway())
}

type WithdrawController struct{ beego.Controller }

// Withdraw 处理提现接口：POST /api/withdraw
// 同步走完发起与确认两个阶段，返回终态（confirmed/failed/timed_out）
// 注意：确认阶段最长会占用 confirm_budget_sec 秒，网关层需配置更长的读超时
func (c *WithdrawController) Withdraw() {
	wp, ok, msg := helper.ParseAndValidateWithdraw(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	svc := newWithdrawService()
	traceID := helper.GetTraceID(c.Ctx)

	out, err := svc.Withdraw(c.Ctx.Request.Context(), service.WithdrawInput{
		PublicKey: wp.PublicKey,
		TraceID:   traceID,
	})
	if err != nil {
		// 玩家不存在（从未玩过一局）
		if errors.Is(err, service.ErrPlayerNotFound) {
			response.NotFound(&c.Controller, "玩家不存在", traceID)
			return
		}
		// 余额为零
		if errors.Is(err, service.ErrNothingToWithdraw) {
			response.Conflict(&c.Controller, response.CodeNothingToWithdraw, traceID)
			return
		}
		// 该玩家已有进行中的提现
		if errors.Is(err, service.ErrWithdrawInFlight) {
			response.Conflict(&c.Controller, response.CodeWithdrawInFlight, traceID)
			return
		}
		if errors.Is(err, service.ErrBadRequest) {
			response.BadRequest(&c.Controller, "invalid request", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}
