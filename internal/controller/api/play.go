package api

import (
	"errors"

	helper "github.com/FuseSyntax/rock-paper-scissors/internal/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/internal/common/response"
	"github.com/FuseSyntax/rock-paper-scissors/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newSettleService = func() service.SettleService {
	return service.NewSettleService(service.NewMySQLLedger())
}

type PlayController struct{ beego.Controller }

// Play 处理出拳接口：POST /api/play
// 解析入参 → 判定胜负并结算 → 返回本局结果与最新聚合
func (c *PlayController) Play() {
	// 1) 解析入参与基本校验
	// 这里必须要对业务参数严格校验，后续service不再重复校验
	pp, ok, msg := helper.ParseAndValidatePlay(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	svc := newSettleService()
	traceID := helper.GetTraceID(c.Ctx)

	out, err := svc.Settle(c.Ctx.Request.Context(), service.SettleInput{
		PublicKey:      pp.PublicKey,
		PlayerChoice:   pp.PlayerChoice,
		OpponentChoice: pp.OpponentChoice,
		IdempotencyKey: pp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		// 非法出拳
		if errors.Is(err, service.ErrInvalidChoice) {
			response.Error(&c.Controller, 400, response.CodeInvalidChoice, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		// 历史重复（幂等键已结算过）
		if errors.Is(err, service.ErrDuplicateKey) {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 玩家已禁用
		if errors.Is(err, service.ErrPlayerDisabled) {
			response.Error(&c.Controller, 403, response.CodePlayerDisabled, traceID)
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
