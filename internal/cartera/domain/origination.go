package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/pkg/utils"
)

const (
	// MaxPlazo 最长期数
	MaxPlazo = 360
	// InstallmentDay 每期到期日（不足则取月末）
	InstallmentDay = 30
)

// CreditTerms 放款条款
type CreditTerms struct {
	Capital                 decimal.Decimal
	PorcentajeInteres       decimal.Decimal
	Plazo                   int
	Seguro                  decimal.Decimal
	GPS                     decimal.Decimal
	Membresias              decimal.Decimal
	Otros                   decimal.Decimal
	PorcentajeParticipacion decimal.Decimal
	PorcentajeCashIn        decimal.Decimal
	// 为空时按本金/期数推导
	Cuota *decimal.Decimal
}

// CreditAmounts 放款派生金额
type CreditAmounts struct {
	CuotaInteres               decimal.Decimal
	IVA12                      decimal.Decimal
	MontoAsignadoInversionista decimal.Decimal
	IVAInversionista           decimal.Decimal
	CuotaCashIn                decimal.Decimal
	IVACashIn                  decimal.Decimal
	DeudaTotal                 decimal.Decimal
	Cuota                      decimal.Decimal
}

// Validate 校验金额非负、百分比在 [0,100]、期数在 1..360
func (t CreditTerms) Validate() error {
	money := []struct {
		name  string
		value decimal.Decimal
	}{
		{"capital", t.Capital},
		{"seguro", t.Seguro},
		{"gps", t.GPS},
		{"membresias", t.Membresias},
		{"otros", t.Otros},
	}
	for _, m := range money {
		if err := requireNonNegative(m.name, m.value); err != nil {
			return err
		}
	}
	if t.Cuota != nil {
		if err := requireNonNegative("cuota", *t.Cuota); err != nil {
			return err
		}
	}
	percents := []struct {
		name  string
		value decimal.Decimal
	}{
		{"porcentaje_interes", t.PorcentajeInteres},
		{"porcentaje_participacion", t.PorcentajeParticipacion},
		{"porcentaje_cash_in", t.PorcentajeCashIn},
	}
	for _, p := range percents {
		if err := requirePercent(p.name, p.value); err != nil {
			return err
		}
	}
	if t.Plazo < 1 || t.Plazo > MaxPlazo {
		return NewValidationError("INVALID_PLAZO", fmt.Sprintf("plazo must be between 1 and %d", MaxPlazo))
	}
	return nil
}

// ComputeCreditAmounts 计算派生金额，每一步先取两位小数再参与下一步
func ComputeCreditAmounts(t CreditTerms) (CreditAmounts, error) {
	if err := t.Validate(); err != nil {
		return CreditAmounts{}, err
	}
	capital := Round2(t.Capital)

	var a CreditAmounts
	a.CuotaInteres = Pct(capital, t.PorcentajeInteres)
	a.IVA12 = IVA(a.CuotaInteres)
	a.MontoAsignadoInversionista = Pct(capital, t.PorcentajeParticipacion)
	a.IVAInversionista = IVA(a.MontoAsignadoInversionista)
	a.CuotaCashIn = decimal.Zero
	a.IVACashIn = decimal.Zero
	if t.PorcentajeCashIn.IsPositive() {
		a.CuotaCashIn = Pct(a.CuotaInteres, t.PorcentajeCashIn)
		a.IVACashIn = IVA(a.CuotaCashIn)
	}
	a.DeudaTotal = Round2(Sum(capital, a.CuotaInteres, a.IVA12, Round2(t.Seguro), Round2(t.GPS), Round2(t.Membresias), Round2(t.Otros)))

	if t.Cuota != nil {
		a.Cuota = Round2(*t.Cuota)
	} else {
		principal := Round2(capital.Div(decimal.NewFromInt(int64(t.Plazo))))
		a.Cuota = Round2(Sum(principal, a.CuotaInteres, a.IVA12, Round2(t.Seguro), Round2(t.GPS), Round2(t.Membresias)))
	}
	return a, nil
}

// ClampCapitalRemainder 剩余本金为负时恢复为原本金
func ClampCapitalRemainder(original, remainder decimal.Decimal) decimal.Decimal {
	if remainder.IsNegative() {
		return original
	}
	return remainder
}

// FormatFor 多于一位投资人时为 Pool
func FormatFor(investors int) CreditFormat {
	if investors > 1 {
		return FormatPool
	}
	return FormatIndividual
}

// BuildSchedule 生成还款计划：第 0 期为放款日且已付，其后每月 30 号（不足取月末）
func BuildSchedule(creditID uint, plazo int, origin time.Time, loc *time.Location) []*Installment {
	lo := origin.In(loc)
	out := make([]*Installment, 0, plazo+1)
	out = append(out, &Installment{
		CreditoID:        creditID,
		NumeroCuota:      0,
		FechaVencimiento: lo.Format(DateLayout),
		Pagado:           true,
	})
	for i := 1; i <= plazo; i++ {
		due := utils.ClampedDate(lo.Year(), lo.Month()+time.Month(i), InstallmentDay, loc)
		out = append(out, &Installment{
			CreditoID:        creditID,
			NumeroCuota:      i,
			FechaVencimiento: due.Format(DateLayout),
		})
	}
	return out
}

// ResizeSchedule 将还款计划调整为 plazo 期，返回需要追加的分期。
// 缩短时由调用方删除 plazo 之后的未付分期；已付分期超出新期数时返回 ConflictError
func ResizeSchedule(creditID uint, existing []*Installment, plazo int, origin time.Time, loc *time.Location) ([]*Installment, error) {
	last, lastPaid := 0, 0
	for _, inst := range existing {
		last = max(last, inst.NumeroCuota)
		if inst.Pagado {
			lastPaid = max(lastPaid, inst.NumeroCuota)
		}
	}
	if plazo < lastPaid {
		return nil, NewConflictError("PLAZO_BELOW_PAID",
			fmt.Sprintf("plazo %d is below paid installment %d", plazo, lastPaid))
	}
	if plazo <= last {
		return nil, nil
	}
	return BuildSchedule(creditID, plazo, origin, loc)[last+1:], nil
}
