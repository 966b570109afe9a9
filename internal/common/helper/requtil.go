package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 钱包公钥格式校验：base58 字符集，32~44 位（预编译正则）
var publicKeyRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// IsPublicKeyFormat 判断钱包公钥格式
func IsPublicKeyFormat(s string) bool {
	return publicKeyRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// PlayParsed 为解析后的出拳入参（与控制器/服务层解耦）
type PlayParsed struct {
	PublicKey      string `json:"public_key"`
	PlayerChoice   string `json:"player_choice"`
	OpponentChoice string `json:"opponent_choice"` // 可选；为空时服务端随机生成
	IdempotencyKey string `json:"idempotency_key"` // 可选；传入则开启防重
}

// ParsePlayFromJSON 解析 JSON 到 PlayParsed。失败返回 false 与错误消息。
func ParsePlayFromJSON(r io.Reader) (PlayParsed, bool, string) {
	var out PlayParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return PlayParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParsePlayFromForm 从表单读取字段，返回 PlayParsed。
func ParsePlayFromForm(ctx *beegocontext.Context) (PlayParsed, bool, string) {
	var out PlayParsed
	out.PublicKey = strings.TrimSpace(ctx.Input.Query("public_key"))
	out.PlayerChoice = strings.TrimSpace(ctx.Input.Query("player_choice"))
	out.OpponentChoice = strings.TrimSpace(ctx.Input.Query("opponent_choice"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	return out, true, ""
}

// ValidatePlay 对通用字段做二次校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
func ValidatePlay(in *PlayParsed) (bool, string) {
	in.PublicKey = strings.TrimSpace(in.PublicKey)
	in.PlayerChoice = strings.ToLower(strings.TrimSpace(in.PlayerChoice))
	in.OpponentChoice = strings.ToLower(strings.TrimSpace(in.OpponentChoice))
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	if in.PublicKey == "" || in.PlayerChoice == "" {
		return false, "missing required fields: public_key/player_choice"
	}
	if !IsPublicKeyFormat(in.PublicKey) {
		return false, "public_key must be a base58 wallet address"
	}
	// 额外长度保护，避免异常超长输入
	if len(in.PlayerChoice) > 16 || len(in.OpponentChoice) > 16 || len(in.IdempotencyKey) > 64 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidatePlay 按 Content-Type 自动解析并做统一校验
func ParseAndValidatePlay(ctx *beegocontext.Context) (PlayParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParsePlayFromJSON, ParsePlayFromForm)
	if !ok {
		return PlayParsed{}, false, msg
	}
	if ok, msg := ValidatePlay(&out); !ok {
		return PlayParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Withdraw helpers --------

type WithdrawParsed struct {
	PublicKey string `json:"public_key"`
}

func ParseWithdrawFromJSON(r io.Reader) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return WithdrawParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseWithdrawFromForm(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	out.PublicKey = strings.TrimSpace(ctx.Input.Query("public_key"))
	return out, true, ""
}

func ValidateWithdraw(in *WithdrawParsed) (bool, string) {
	in.PublicKey = strings.TrimSpace(in.PublicKey)
	if in.PublicKey == "" {
		return false, "public_key required"
	}
	if !IsPublicKeyFormat(in.PublicKey) {
		return false, "public_key must be a base58 wallet address"
	}
	return true, ""
}

// ParseAndValidateWithdraw 按 Content-Type 自动解析并校验
func ParseAndValidateWithdraw(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseWithdrawFromJSON, ParseWithdrawFromForm)
	if !ok {
		return WithdrawParsed{}, false, msg
	}
	if ok, msg := ValidateWithdraw(&out); !ok {
		return WithdrawParsed{}, false, msg
	}
	return out, true, ""
}

// -------- 查询参数 helpers --------

// ParseLimitOffset 解析分页参数，带默认值与上限保护
func ParseLimitOffset(ctx *beegocontext.Context, defaultLimit, maxLimit uint) (limit, offset uint) {
	limit = defaultLimit
	if s := strings.TrimSpace(ctx.Input.Query("limit")); s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil && n > 0 {
			limit = uint(n)
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if s := strings.TrimSpace(ctx.Input.Query("offset")); s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			offset = uint(n)
		}
	}
	return limit, offset
}
