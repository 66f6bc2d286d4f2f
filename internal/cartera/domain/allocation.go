package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DeriveInvestorShares 按出资额重算投资人利息分成与 IVA
func DeriveInvestorShares(row *CreditInvestor, porcentajeInteres decimal.Decimal) {
	row.CuotaInversionista = Pct(row.MontoAportado, porcentajeInteres)
	row.MontoInversionista = Pct(row.CuotaInversionista, row.PorcentajeParticipacionInversionista)
	row.MontoCashIn = Pct(row.CuotaInversionista, row.PorcentajeCashIn)

	row.IVAInversionista = decimal.Zero
	if row.MontoInversionista.IsPositive() {
		row.IVAInversionista = IVA(row.MontoInversionista)
	}
	row.IVACashIn = decimal.Zero
	if row.MontoCashIn.IsPositive() {
		row.IVACashIn = IVA(row.MontoCashIn)
	}
}

// ValidateInvestorPercentages 每个投资人的 cash-in 与分成比例之和必须为 100
func ValidateInvestorPercentages(row *CreditInvestor) error {
	if err := requirePercent("porcentaje_cash_in", row.PorcentajeCashIn); err != nil {
		return err
	}
	if err := requirePercent("porcentaje_participacion_inversionista", row.PorcentajeParticipacionInversionista); err != nil {
		return err
	}
	if !row.PorcentajeCashIn.Add(row.PorcentajeParticipacionInversionista).Equal(hundred) {
		return NewInvariantViolation("INVESTOR_PERCENT_SUM",
			fmt.Sprintf("investor %d: cash-in %% + participation %% must equal 100", row.InversionistaID))
	}
	return nil
}

// ValidateInvestorFunding 出资合计必须等于本金
func ValidateInvestorFunding(capital decimal.Decimal, rows []*CreditInvestor) error {
	total := decimal.Zero
	for _, r := range rows {
		if err := requireNonNegative("monto_aportado", r.MontoAportado); err != nil {
			return err
		}
		total = total.Add(r.MontoAportado)
	}
	if !total.Equal(capital) {
		return NewInvariantViolation("INVESTOR_FUNDING",
			fmt.Sprintf("investor contributions %s do not match capital %s", total.StringFixed(2), capital.StringFixed(2)))
	}
	return nil
}

// largestIndex 出资最大者下标，相同时取靠前者
func largestIndex(rows []*CreditInvestor) int {
	idx := 0
	for i, r := range rows {
		if r.MontoAportado.GreaterThan(rows[idx].MontoAportado) {
			idx = i
		}
	}
	return idx
}

// PrimaryInvestor 出资最大的投资人
func PrimaryInvestor(rows []*CreditInvestor) *CreditInvestor {
	if len(rows) == 0 {
		return nil
	}
	return rows[largestIndex(rows)]
}

// SplitProportional 按出资比例拆分金额，尾差由出资最大者承担
func SplitProportional(amount decimal.Decimal, rows []*CreditInvestor) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(rows))
	if len(rows) == 0 {
		return shares
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.MontoAportado)
	}

	allocated := decimal.Zero
	for i, r := range rows {
		if total.IsZero() {
			shares[i] = decimal.Zero
			continue
		}
		shares[i] = Round2(amount.Mul(r.MontoAportado).Div(total))
		allocated = allocated.Add(shares[i])
	}
	big := largestIndex(rows)
	shares[big] = shares[big].Add(Round2(amount).Sub(allocated))
	return shares
}

// AdjustCapital 按比例增加或减少投资人出资并重算分成，返回每人的变动额
func AdjustCapital(rows []*CreditInvestor, delta decimal.Decimal, add bool, porcentajeInteres decimal.Decimal) ([]decimal.Decimal, error) {
	shares := SplitProportional(delta, rows)
	next := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		if add {
			next[i] = r.MontoAportado.Add(shares[i])
		} else {
			next[i] = r.MontoAportado.Sub(shares[i])
		}
		if next[i].IsNegative() {
			return nil, NewInvariantViolation("INVESTOR_CAPITAL_NEGATIVE",
				fmt.Sprintf("investor %d contribution would become negative", r.InversionistaID))
		}
	}
	for i, r := range rows {
		r.MontoAportado = next[i]
		DeriveInvestorShares(r, porcentajeInteres)
	}
	return shares, nil
}

// AllocatePayment 将还款本金拆到各投资人，生成分配行后扣减出资
func AllocatePayment(rows []*CreditInvestor, creditID uint, abonoCapital, porcentajeInteres decimal.Decimal) ([]*InvestorPayment, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	// 分配行记录扣减前的利息分成
	out := make([]*InvestorPayment, len(rows))
	for i, r := range rows {
		out[i] = &InvestorPayment{
			InversionistaID:         r.InversionistaID,
			CreditoID:               creditID,
			AbonoInteres:            r.MontoInversionista,
			AbonoIVA12:              r.IVAInversionista,
			PorcentajeParticipacion: r.PorcentajeParticipacionInversionista,
			Cuota:                   r.CuotaInversionista,
			EstadoLiquidacion:       SettlementPending,
		}
	}
	shares, err := AdjustCapital(rows, abonoCapital, false, porcentajeInteres)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].AbonoCapital = shares[i]
	}
	return out, nil
}

// RestoreCapital 冲正：按分配行记录的本金加回出资并重算
func RestoreCapital(rows []*CreditInvestor, payments []*InvestorPayment, porcentajeInteres decimal.Decimal) error {
	byInvestor := make(map[uint]*CreditInvestor, len(rows))
	for _, r := range rows {
		byInvestor[r.InversionistaID] = r
	}
	for _, p := range payments {
		r, ok := byInvestor[p.InversionistaID]
		if !ok {
			return NewInvariantViolation("INVESTOR_ROW_MISSING",
				fmt.Sprintf("investor %d has no contribution row on credit %d", p.InversionistaID, p.CreditoID))
		}
		r.MontoAportado = r.MontoAportado.Add(p.AbonoCapital)
	}
	for _, r := range rows {
		DeriveInvestorShares(r, porcentajeInteres)
	}
	return nil
}

// TaxTreatment 投资人税务处理方式
type TaxTreatment int

const (
	// TaxInvoicing 开票：净额含 IVA
	TaxInvoicing TaxTreatment = iota + 1
	// TaxWithholding 不开票：利息预扣 5% ISR
	TaxWithholding
)

// TaxTreatmentFor 按是否开票决定税务处理
func TaxTreatmentFor(emiteFactura bool) TaxTreatment {
	if emiteFactura {
		return TaxInvoicing
	}
	return TaxWithholding
}

func (t TaxTreatment) String() string {
	switch t {
	case TaxInvoicing:
		return "FACTURA"
	case TaxWithholding:
		return "ISR"
	default:
		return "UNKNOWN"
	}
}

// SettlementAmounts 结算金额
type SettlementAmounts struct {
	Capital decimal.Decimal `json:"capital"`
	Interes decimal.Decimal `json:"interes"`
	IVA     decimal.Decimal `json:"iva"`
	ISR     decimal.Decimal `json:"isr"`
	Neto    decimal.Decimal `json:"neto"`
}

// Add 累加
func (s SettlementAmounts) Add(o SettlementAmounts) SettlementAmounts {
	return SettlementAmounts{
		Capital: s.Capital.Add(o.Capital),
		Interes: s.Interes.Add(o.Interes),
		IVA:     s.IVA.Add(o.IVA),
		ISR:     s.ISR.Add(o.ISR),
		Neto:    s.Neto.Add(o.Neto),
	}
}

// ZeroSettlement 零值结算金额
func ZeroSettlement() SettlementAmounts {
	return SettlementAmounts{Capital: decimal.Zero, Interes: decimal.Zero, IVA: decimal.Zero, ISR: decimal.Zero, Neto: decimal.Zero}
}

// Settle 计算一条分配行的结算净额
func (t TaxTreatment) Settle(p *InvestorPayment) SettlementAmounts {
	switch t {
	case TaxInvoicing:
		return SettlementAmounts{
			Capital: p.AbonoCapital,
			Interes: p.AbonoInteres,
			IVA:     p.AbonoIVA12,
			ISR:     decimal.Zero,
			Neto:    Round2(Sum(p.AbonoCapital, p.AbonoInteres, p.AbonoIVA12)),
		}
	default:
		isr := ISR(p.AbonoInteres)
		return SettlementAmounts{
			Capital: p.AbonoCapital,
			Interes: p.AbonoInteres,
			IVA:     decimal.Zero,
			ISR:     isr,
			Neto:    Round2(p.AbonoCapital.Add(p.AbonoInteres).Sub(isr)),
		}
	}
}
