// 包 domain 信贷账务核心的领域模型与计算规则
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// IVARate 增值税 12%
	IVARate = decimal.RequireFromString("0.12")
	// ISRRate 非开票投资人预扣 5%
	ISRRate = decimal.RequireFromString("0.05")
	// LateFeeRate 每期逾期滞纳金费率 1.12%
	LateFeeRate = decimal.RequireFromString("0.0112")
	// LateFeePercent 滞纳金百分比（展示用）
	LateFeePercent = decimal.RequireFromString("1.12")
)

// Round2 四舍五入到分（half-up，负数向远离零方向）
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// TruncCents 截断到分
func TruncCents(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// Pct 计算 x 的 p%，结果取两位小数
func Pct(x, p decimal.Decimal) decimal.Decimal {
	return Round2(x.Mul(p).Div(hundred))
}

// IVA 计算 12% 增值税
func IVA(x decimal.Decimal) decimal.Decimal {
	return Round2(x.Mul(IVARate))
}

// ISR 计算 5% 预扣税
func ISR(x decimal.Decimal) decimal.Decimal {
	return Round2(x.Mul(ISRRate))
}

// Sum 求和
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func requireNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return NewValidationError("NEGATIVE_AMOUNT", fmt.Sprintf("%s must not be negative", field))
	}
	return nil
}

func requirePercent(field string, d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return NewValidationError("INVALID_PERCENT", fmt.Sprintf("%s must be between 0 and 100", field))
	}
	return nil
}
