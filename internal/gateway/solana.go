package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FuseSyntax/rock-paper-scissors/common/helper"
	"github.com/FuseSyntax/rock-paper-scissors/common/logger"
	"github.com/FuseSyntax/rock-paper-scissors/internal/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Solana JSON-RPC 网关实现
// 提现走 devnet airdrop（与原 dApp 一致）：requestAirdrop 提交转账，
// getSignatureStatuses 查询确认进度，签名串即 payoutHandle。

var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

type solanaGateway struct{}

// NewSolanaGateway 返回基于配置 RPC 端点的网关
func NewSolanaGateway() PayoutGateway { return &solanaGateway{} }

// rpcRequest JSON-RPC 2.0 请求体
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (g *solanaGateway) endpoint() string {
	cfg := config.Get()
	if cfg != nil && strings.TrimSpace(cfg.Solana.RPCEndpoint) != "" {
		return strings.TrimSpace(cfg.Solana.RPCEndpoint)
	}
	return "https://api.devnet.solana.com"
}

// call 发送一次 JSON-RPC 调用，result 指向期望的响应结构
func (g *solanaGateway) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	respBytes, statusCode, err := helper.HttpDoTimeout(body, "POST", g.endpoint(),
		map[string]string{"Content-Type": "application/json"}, helper.RPCTimeout)
	if err != nil {
		logger.WarnCtx(ctx, "solana rpc call failed",
			zap.String("method", method), zap.Error(err))
		return ErrGatewayUnavailable
	}
	if statusCode >= 500 || statusCode == 429 {
		logger.WarnCtx(ctx, "solana rpc bad status",
			zap.String("method", method), zap.Int("status", statusCode))
		return ErrGatewayUnavailable
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		// -32602 invalid params：地址非法等入参问题，不可重试
		if envelope.Error.Code == -32602 {
			return fmt.Errorf("%w: %s", ErrInvalidRecipient, envelope.Error.Message)
		}
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

// RequestPayout 提交 airdrop 转账，返回交易签名作为句柄
// 金额按 1 SOL = 1e9 lamports 向下取整
func (g *solanaGateway) RequestPayout(ctx context.Context, recipient string, amount decimal.Decimal) (string, error) {
	if strings.TrimSpace(recipient) == "" {
		return "", ErrInvalidRecipient
	}
	lamports := amount.Mul(lamportsPerSOL).IntPart()
	if lamports <= 0 {
		return "", fmt.Errorf("payout amount too small: %s SOL", amount.String())
	}

	var signature string
	if err := g.call(ctx, "requestAirdrop", []interface{}{recipient, lamports}, &signature); err != nil {
		return "", err
	}
	if signature == "" {
		return "", ErrGatewayUnavailable
	}

	logger.InfoCtx(ctx, "airdrop submitted",
		zap.String("recipient", recipient),
		zap.Int64("lamports", lamports),
		zap.String("signature", signature))
	return signature, nil
}

// GetStatus 查询签名确认状态
// searchTransactionHistory=true：签名落出节点近期缓存时仍可查到
func (g *solanaGateway) GetStatus(ctx context.Context, handle string) (PayoutStatus, error) {
	params := []interface{}{
		[]string{handle},
		map[string]bool{"searchTransactionHistory": true},
	}

	var result struct {
		Value []*struct {
			ConfirmationStatus string           `json:"confirmationStatus"`
			Err                *json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := g.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return "", err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		// 节点尚未收录该签名，按 pending 处理
		return StatusPending, nil
	}

	st := result.Value[0]
	if st.Err != nil && string(*st.Err) != "null" {
		return StatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case "finalized":
		return StatusFinalized, nil
	case "confirmed":
		return StatusConfirmed, nil
	default:
		return StatusPending, nil
	}
}
