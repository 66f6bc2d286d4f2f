package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/pkg/utils"
	"gorm.io/gorm"
)

// PaymentAgreement 还款协议（convenio）
type PaymentAgreement struct {
	gorm.Model
	CreditoID          uint            `gorm:"column:credito_id;index;not null" json:"credito_id"`
	MontoTotalConvenio decimal.Decimal `gorm:"column:monto_total_convenio;type:decimal(20,2);not null" json:"monto_total_convenio"`
	NumeroMeses        int             `gorm:"column:numero_meses;not null" json:"numero_meses"`
	// 前 n-1 期金额（截断到分）
	CuotaMensual decimal.Decimal `gorm:"column:cuota_mensual;type:decimal(20,2);not null" json:"cuota_mensual"`
	// 最后一期承担尾差
	CuotaFinal      decimal.Decimal        `gorm:"column:cuota_final;type:decimal(20,2);not null" json:"cuota_final"`
	MontoPagado     decimal.Decimal        `gorm:"column:monto_pagado;type:decimal(20,2);default:0;not null" json:"monto_pagado"`
	MontoPendiente  decimal.Decimal        `gorm:"column:monto_pendiente;type:decimal(20,2);not null" json:"monto_pendiente"`
	PagosRealizados int                    `gorm:"column:pagos_realizados;default:0;not null" json:"pagos_realizados"`
	PagosPendientes int                    `gorm:"column:pagos_pendientes;not null" json:"pagos_pendientes"`
	Activo          bool                   `gorm:"column:activo;default:true;not null" json:"activo"`
	Completado      bool                   `gorm:"column:completado;default:false;not null" json:"completado"`
	Motivo          string                 `gorm:"column:motivo;type:text" json:"motivo"`
	Observaciones   string                 `gorm:"column:observaciones;type:text" json:"observaciones"`
	FechaConvenio   time.Time              `gorm:"column:fecha_convenio;not null" json:"fecha_convenio"`
	Cuotas          []AgreementInstallment `gorm:"foreignKey:ConvenioID" json:"cuotas,omitempty"`
}

func (PaymentAgreement) TableName() string { return "convenios_pago" }

// Progress 已还比例（百分比，两位小数）
func (a *PaymentAgreement) Progress() decimal.Decimal {
	if !a.MontoTotalConvenio.IsPositive() {
		return decimal.Zero
	}
	return Round2(a.MontoPagado.Div(a.MontoTotalConvenio).Mul(hundred))
}

// IsOpen 有效且未完成
func (a *PaymentAgreement) IsOpen() bool {
	return a.Activo && !a.Completado
}

// AgreementPayment 协议与被重组还款的关联
type AgreementPayment struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ConvenioID uint `gorm:"column:convenio_id;uniqueIndex:idx_convenio_pago;not null" json:"convenio_id"`
	PagoID     uint `gorm:"column:pago_id;uniqueIndex:idx_convenio_pago;not null" json:"pago_id"`
}

func (AgreementPayment) TableName() string { return "convenios_pagos_resume" }

// AgreementInstallment 协议分期
type AgreementInstallment struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ConvenioID       uint            `gorm:"column:convenio_id;index;not null" json:"convenio_id"`
	NumeroCuota      int             `gorm:"column:numero_cuota;not null" json:"numero_cuota"`
	FechaVencimiento string          `gorm:"column:fecha_vencimiento;type:varchar(10);not null" json:"fecha_vencimiento"`
	Monto            decimal.Decimal `gorm:"column:monto;type:decimal(20,2);not null" json:"monto"`
	FechaPago        *time.Time      `gorm:"column:fecha_pago" json:"fecha_pago,omitempty"`
}

func (AgreementInstallment) TableName() string { return "convenio_cuotas" }

// AgreementTerms 协议参数
type AgreementTerms struct {
	Total  decimal.Decimal
	Months int
}

// Validate 校验协议参数
func (t AgreementTerms) Validate() error {
	if !t.Total.IsPositive() {
		return NewValidationError("INVALID_AGREEMENT_TOTAL", "agreement total must be greater than zero")
	}
	if t.Months < 1 {
		return NewValidationError("INVALID_AGREEMENT_MONTHS", "agreement must span at least one month")
	}
	return nil
}

// SplitAgreement 月供截断到分，最后一期承担尾差
func SplitAgreement(total decimal.Decimal, months int) (monthly, final decimal.Decimal) {
	total = Round2(total)
	monthly = TruncCents(total.Div(decimal.NewFromInt(int64(months))))
	final = total.Sub(monthly.Mul(decimal.NewFromInt(int64(months - 1))))
	return monthly, final
}

// AgreementDueDates 生成分期到期日：创建日在 15 号及之前首期为当月 15 号，否则为当月 30 号（月末），之后在 15/30 间交替
func AgreementDueDates(created time.Time, months int, loc *time.Location) []string {
	lc := created.In(loc)
	firstOn15 := lc.Day() <= 15
	dates := make([]string, 0, months)
	for i := 0; i < months; i++ {
		var monthOffset, day int
		if firstOn15 {
			monthOffset = i / 2
			day = 15
			if i%2 == 1 {
				day = 30
			}
		} else {
			monthOffset = (i + 1) / 2
			day = 30
			if i%2 == 1 {
				day = 15
			}
		}
		d := utils.ClampedDate(lc.Year(), lc.Month()+time.Month(monthOffset), day, loc)
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// PlanAgreement 生成协议及其分期
func PlanAgreement(creditID uint, terms AgreementTerms, created time.Time, loc *time.Location) (*PaymentAgreement, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	monthly, final := SplitAgreement(terms.Total, terms.Months)
	dates := AgreementDueDates(created, terms.Months, loc)

	cuotas := make([]AgreementInstallment, terms.Months)
	for i := range cuotas {
		amount := monthly
		if i == terms.Months-1 {
			amount = final
		}
		cuotas[i] = AgreementInstallment{
			NumeroCuota:      i + 1,
			FechaVencimiento: dates[i],
			Monto:            amount,
		}
	}

	return &PaymentAgreement{
		CreditoID:          creditID,
		MontoTotalConvenio: Round2(terms.Total),
		NumeroMeses:        terms.Months,
		CuotaMensual:       monthly,
		CuotaFinal:         final,
		MontoPagado:        decimal.Zero,
		MontoPendiente:     Round2(terms.Total),
		PagosRealizados:    0,
		PagosPendientes:    terms.Months,
		Activo:             true,
		FechaConvenio:      created,
		Cuotas:             cuotas,
	}, nil
}

// AgreementPaymentResult 协议还款结果
type AgreementPaymentResult struct {
	Aplicado    decimal.Decimal
	CuotaPagada *AgreementInstallment
	Completado  bool
}

// ApplyPayment 按下一期金额上限入账；足额时标记该期已付
func (a *PaymentAgreement) ApplyPayment(amount decimal.Decimal, next *AgreementInstallment, now time.Time) (*AgreementPaymentResult, error) {
	if !amount.IsPositive() {
		return nil, NewValidationError("INVALID_AMOUNT", "payment amount must be greater than zero")
	}
	if !a.IsOpen() {
		return nil, NewConflictError("AGREEMENT_CLOSED", "agreement is not active")
	}
	due := a.CuotaMensual
	if next != nil {
		due = next.Monto
	}

	applied := Round2(decimal.Min(amount, due))
	full := amount.GreaterThanOrEqual(due)

	a.MontoPagado = Round2(a.MontoPagado.Add(applied))
	a.MontoPendiente = Round2(a.MontoPendiente.Sub(applied))
	res := &AgreementPaymentResult{Aplicado: applied}
	if full {
		a.PagosRealizados++
		a.PagosPendientes--
		if next != nil {
			t := now
			next.FechaPago = &t
			res.CuotaPagada = next
		}
	}
	if !a.MontoPendiente.IsPositive() || a.PagosPendientes <= 0 {
		a.Completado = true
		a.Activo = false
	}
	res.Completado = a.Completado
	return res, nil
}
