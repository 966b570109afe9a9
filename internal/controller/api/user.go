package api

import (
	"strings"

	helper "github.com/FuseSyntax/rock-paper-scissors/internal/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/internal/common/response"
	"github.com/FuseSyntax/rock-paper-scissors/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newUserService = func() service.UserService {
	return service.NewUserService(service.NewMySQLLedger())
}

type UserController struct{ beego.Controller }

// Balance 查询玩家余额与战绩：GET /api/user/balance?public_key=xxx
// 地址首次出现即建档，返回全 0 聚合，不报"玩家不存在"
func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)

	pk := strings.TrimSpace(c.Ctx.Input.Query("public_key"))
	if pk == "" || !helper.IsPublicKeyFormat(pk) {
		response.BadRequest(&c.Controller, "public_key must be a base58 wallet address", traceID)
		return
	}

	out, err := newUserService().Stats(c.Ctx.Request.Context(), pk)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// History 查询对局历史：GET /api/user/history?public_key=xxx&limit=10&offset=0
// 按提交顺序倒序（最近一局在前），limit 默认 10，上限 100
func (c *UserController) History() {
	traceID := helper.GetTraceID(c.Ctx)

	pk := strings.TrimSpace(c.Ctx.Input.Query("public_key"))
	if pk == "" || !helper.IsPublicKeyFormat(pk) {
		response.BadRequest(&c.Controller, "public_key must be a base58 wallet address", traceID)
		return
	}
	limit, offset := helper.ParseLimitOffset(c.Ctx, 10, 100)

	list, err := newUserService().History(c.Ctx.Request.Context(), pk, limit, offset)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"items":  list,
		"limit":  limit,
		"offset": offset,
	}, traceID)
}
