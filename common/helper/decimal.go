package helper

import (
	"github.com/shopspring/decimal"
)

// SOL 金额统一保留 9 位小数（lamports 精度），四舍五入而非截断
const AmountScale = 9

// TrimAmount 输出展示用金额字符串
func TrimAmount(val decimal.Decimal) string {
	return val.StringFixed(AmountScale)
}

// RoundAmount 金额入库前统一归一化到 lamports 精度
func RoundAmount(val decimal.Decimal) decimal.Decimal {
	return val.Round(AmountScale)
}
