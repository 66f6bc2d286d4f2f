package domain

import (
	"github.com/shopspring/decimal"
)

// WaterfallInput 还款分配输入
type WaterfallInput struct {
	Credit      *Credit
	Investors   []*CreditInvestor
	SaldoAFavor decimal.Decimal
	MontoBoleta decimal.Decimal
	Mora        decimal.Decimal
	Otros       decimal.Decimal
}

// Allocation 还款分配结果
type Allocation struct {
	MontoEfectivo   decimal.Decimal
	MontoDisponible decimal.Decimal
	// 可用金额覆盖月供
	FullMatch bool

	AbonoCapital    decimal.Decimal
	AbonoInteres    decimal.Decimal
	AbonoInteresCI  decimal.Decimal
	AbonoIVA12      decimal.Decimal
	AbonoIVACI      decimal.Decimal
	AbonoSeguro     decimal.Decimal
	AbonoGPS        decimal.Decimal
	AbonoMembresias decimal.Decimal

	CapitalRestante    decimal.Decimal
	InteresRestante    decimal.Decimal
	IVA12Restante      decimal.Decimal
	SeguroRestante     decimal.Decimal
	GPSRestante        decimal.Decimal
	MembresiasRestante decimal.Decimal
	TotalRestante      decimal.Decimal

	SaldoAntes   decimal.Decimal
	SaldoDespues decimal.Decimal
}

// Total 各项分配合计
func (a *Allocation) Total() decimal.Decimal {
	return Sum(a.AbonoCapital, a.AbonoInteres, a.AbonoIVA12, a.AbonoSeguro, a.AbonoGPS, a.AbonoMembresias)
}

// ValidatePaymentAmounts 校验 boleta、滞纳金与其他费用
func ValidatePaymentAmounts(boleta, mora, otros decimal.Decimal) error {
	if !boleta.IsPositive() {
		return NewValidationError("INVALID_AMOUNT", "monto_boleta must be greater than zero")
	}
	if err := requireNonNegative("mora", mora); err != nil {
		return err
	}
	if err := requireNonNegative("otros", otros); err != nil {
		return err
	}
	if mora.Add(otros).GreaterThan(boleta) {
		return NewValidationError("CHARGES_EXCEED_PAYMENT", "mora + otros must not exceed monto_boleta")
	}
	return nil
}

// ComputeWaterfall 按固定顺序分配：利息、IVA、保险、GPS、会员费，余额归本金
func ComputeWaterfall(in WaterfallInput) (*Allocation, error) {
	if err := ValidatePaymentAmounts(in.MontoBoleta, in.Mora, in.Otros); err != nil {
		return nil, err
	}
	c := in.Credit
	efectivo := Round2(in.MontoBoleta.Sub(in.Mora).Sub(in.Otros))
	disponible := Round2(in.SaldoAFavor.Add(efectivo))

	a := &Allocation{
		MontoEfectivo:   efectivo,
		MontoDisponible: disponible,
		SaldoAntes:      in.SaldoAFavor,
		AbonoCapital:    decimal.Zero,
		AbonoInteres:    decimal.Zero,
		AbonoInteresCI:  decimal.Zero,
		AbonoIVA12:      decimal.Zero,
		AbonoIVACI:      decimal.Zero,
		AbonoSeguro:     decimal.Zero,
		AbonoGPS:        decimal.Zero,
		AbonoMembresias: decimal.Zero,
	}

	if disponible.LessThan(c.Cuota) {
		// 不足月供：全部计入余额
		a.SaldoDespues = disponible
		a.CapitalRestante = c.Capital
		a.InteresRestante = c.CuotaInteres
		a.IVA12Restante = c.IVA12
		a.SeguroRestante = c.Seguro
		a.GPSRestante = c.GPS
		a.MembresiasRestante = c.Membresias
		a.TotalRestante = c.DeudaTotal
		return a, nil
	}

	a.FullMatch = true
	if len(in.Investors) == 0 {
		a.AbonoInteres = c.CuotaInteres
	} else {
		interes, cashIn, ivaCashIn := decimal.Zero, decimal.Zero, decimal.Zero
		for _, r := range in.Investors {
			interes = interes.Add(r.MontoInversionista).Add(r.MontoCashIn)
			cashIn = cashIn.Add(r.MontoCashIn)
			ivaCashIn = ivaCashIn.Add(r.IVACashIn)
		}
		a.AbonoInteres = Round2(interes)
		a.AbonoInteresCI = Round2(cashIn)
		a.AbonoIVACI = Round2(ivaCashIn)
	}
	a.AbonoIVA12 = c.IVA12
	a.AbonoSeguro = c.Seguro
	a.AbonoGPS = c.GPS
	a.AbonoMembresias = c.Membresias
	a.AbonoCapital = Round2(c.Cuota.Sub(Sum(a.AbonoInteres, a.AbonoIVA12, a.AbonoSeguro, a.AbonoGPS, a.AbonoMembresias)))
	if a.AbonoCapital.IsNegative() {
		return nil, NewInvariantViolation("NEGATIVE_CAPITAL_ALLOCATION",
			"cuota does not cover interest, IVA and fixed charges")
	}

	a.CapitalRestante = ClampCapitalRemainder(c.Capital, Round2(c.Capital.Sub(a.AbonoCapital)))
	a.InteresRestante = decimal.Zero
	a.IVA12Restante = decimal.Zero
	a.SeguroRestante = decimal.Zero
	a.GPSRestante = decimal.Zero
	a.MembresiasRestante = decimal.Zero
	a.TotalRestante = a.CapitalRestante
	a.SaldoDespues = Round2(disponible.Sub(c.Cuota))
	return a, nil
}

// Facturacion 主投资人开票时为 "si"，无投资人时为 "si"
func Facturacion(rows []*CreditInvestor) string {
	primary := PrimaryInvestor(rows)
	if primary == nil || primary.Investor == nil || primary.Investor.EmiteFactura {
		return "si"
	}
	return "no"
}
