package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment 一次还款（boleta）及其分配快照
type Payment struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	CreditoID   uint `gorm:"column:credito_id;index;not null" json:"credito_id"`
	CuotaID     uint `gorm:"column:cuota_id;index;not null" json:"cuota_id"`
	NumeroCuota int  `gorm:"column:numero_cuota;not null" json:"numero_cuota"`

	Cuota         decimal.Decimal `gorm:"column:cuota;type:decimal(20,2);not null" json:"cuota"`
	MontoBoleta   decimal.Decimal `gorm:"column:monto_boleta;type:decimal(20,2);not null" json:"monto_boleta"`
	MontoEfectivo decimal.Decimal `gorm:"column:monto_efectivo;type:decimal(20,2);not null" json:"monto_efectivo"`
	Mora          decimal.Decimal `gorm:"column:mora;type:decimal(20,2);default:0;not null" json:"mora"`
	Otros         decimal.Decimal `gorm:"column:otros;type:decimal(20,2);default:0;not null" json:"otros"`

	AbonoCapital    decimal.Decimal `gorm:"column:abono_capital;type:decimal(20,2);default:0;not null" json:"abono_capital"`
	AbonoInteres    decimal.Decimal `gorm:"column:abono_interes;type:decimal(20,2);default:0;not null" json:"abono_interes"`
	AbonoInteresCI  decimal.Decimal `gorm:"column:abono_interes_ci;type:decimal(20,2);default:0;not null" json:"abono_interes_ci"`
	AbonoIVA12      decimal.Decimal `gorm:"column:abono_iva_12;type:decimal(20,2);default:0;not null" json:"abono_iva_12"`
	AbonoIVACI      decimal.Decimal `gorm:"column:abono_iva_ci;type:decimal(20,2);default:0;not null" json:"abono_iva_ci"`
	AbonoSeguro     decimal.Decimal `gorm:"column:abono_seguro;type:decimal(20,2);default:0;not null" json:"abono_seguro"`
	AbonoGPS        decimal.Decimal `gorm:"column:abono_gps;type:decimal(20,2);default:0;not null" json:"abono_gps"`
	AbonoMembresias decimal.Decimal `gorm:"column:abono_membresias;type:decimal(20,2);default:0;not null" json:"abono_membresias"`
	// 当月已接收的 boleta 合计（含本次）
	PagoDelMes decimal.Decimal `gorm:"column:pago_del_mes;type:decimal(20,2);default:0;not null" json:"pago_del_mes"`

	CapitalRestante    decimal.Decimal `gorm:"column:capital_restante;type:decimal(20,2);not null" json:"capital_restante"`
	InteresRestante    decimal.Decimal `gorm:"column:interes_restante;type:decimal(20,2);not null" json:"interes_restante"`
	IVA12Restante      decimal.Decimal `gorm:"column:iva_12_restante;type:decimal(20,2);not null" json:"iva_12_restante"`
	SeguroRestante     decimal.Decimal `gorm:"column:seguro_restante;type:decimal(20,2);not null" json:"seguro_restante"`
	GPSRestante        decimal.Decimal `gorm:"column:gps_restante;type:decimal(20,2);not null" json:"gps_restante"`
	MembresiasRestante decimal.Decimal `gorm:"column:membresias_restante;type:decimal(20,2);not null" json:"membresias_restante"`
	TotalRestante      decimal.Decimal `gorm:"column:total_restante;type:decimal(20,2);not null" json:"total_restante"`

	SaldoAFavorAntes   decimal.Decimal `gorm:"column:saldo_a_favor_antes;type:decimal(20,2);not null" json:"saldo_a_favor_antes"`
	SaldoAFavorDespues decimal.Decimal `gorm:"column:saldo_a_favor_despues;type:decimal(20,2);not null" json:"saldo_a_favor_despues"`

	// 还款前的信贷状态
	CapitalAntes      decimal.Decimal `gorm:"column:capital_antes;type:decimal(20,2);not null" json:"capital_antes"`
	CuotaInteresAntes decimal.Decimal `gorm:"column:cuota_interes_antes;type:decimal(20,2);not null" json:"cuota_interes_antes"`
	IVA12Antes        decimal.Decimal `gorm:"column:iva_12_antes;type:decimal(20,2);not null" json:"iva_12_antes"`
	DeudaTotalAntes   decimal.Decimal `gorm:"column:deudatotal_antes;type:decimal(20,2);not null" json:"deudatotal_antes"`
	StatusAntes       CreditStatus    `gorm:"column:status_antes;type:varchar(30);not null" json:"status_antes"`
	// 实际从滞纳金中扣减的金额
	MoraAplicada decimal.Decimal `gorm:"column:mora_aplicada;type:decimal(20,2);default:0;not null" json:"mora_aplicada"`

	Pagado bool `gorm:"column:pagado;default:false;not null" json:"pagado"`
	// "si" / "no"
	Facturacion    string     `gorm:"column:facturacion;type:varchar(2);not null" json:"facturacion"`
	FechaPago      time.Time  `gorm:"column:fecha_pago;index;not null" json:"fecha_pago"`
	MesPagado      string     `gorm:"column:mes_pagado;type:varchar(7);index" json:"mes_pagado"`
	Reversado      bool       `gorm:"column:reversado;default:false;not null" json:"reversado"`
	FechaReversion *time.Time `gorm:"column:fecha_reversion" json:"fecha_reversion,omitempty"`
	Observaciones  string     `gorm:"column:observaciones;type:text" json:"observaciones"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Payment) TableName() string { return "pagos_credito" }

// SaldoDelta 本次还款对借款人余额的净影响
func (p *Payment) SaldoDelta() decimal.Decimal {
	return p.SaldoAFavorDespues.Sub(p.SaldoAFavorAntes)
}

// CreditSnapshot 还款前的信贷快照
func (p *Payment) CreditSnapshot() CreditSnapshot {
	return CreditSnapshot{
		Capital:      p.CapitalAntes,
		CuotaInteres: p.CuotaInteresAntes,
		IVA12:        p.IVA12Antes,
		DeudaTotal:   p.DeudaTotalAntes,
	}
}

// AllocatedTotal 各项分配合计
func (p *Payment) AllocatedTotal() decimal.Decimal {
	return Sum(p.AbonoCapital, p.AbonoInteres, p.AbonoIVA12, p.AbonoSeguro, p.AbonoGPS, p.AbonoMembresias)
}

// InvestorPayment 还款在单个投资人上的分配
type InvestorPayment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PagoID          uint            `gorm:"column:pago_id;uniqueIndex:idx_pago_inversionista;not null" json:"pago_id"`
	InversionistaID uint            `gorm:"column:inversionista_id;uniqueIndex:idx_pago_inversionista;index;not null" json:"inversionista_id"`
	CreditoID       uint            `gorm:"column:credito_id;index;not null" json:"credito_id"`
	AbonoCapital    decimal.Decimal `gorm:"column:abono_capital;type:decimal(20,2);not null" json:"abono_capital"`
	AbonoInteres    decimal.Decimal `gorm:"column:abono_interes;type:decimal(20,2);not null" json:"abono_interes"`
	AbonoIVA12      decimal.Decimal `gorm:"column:abono_iva_12;type:decimal(20,2);not null" json:"abono_iva_12"`
	// 投资人利息分成比例
	PorcentajeParticipacion decimal.Decimal `gorm:"column:porcentaje_participacion;type:decimal(7,4);not null" json:"porcentaje_participacion"`
	Cuota                   decimal.Decimal `gorm:"column:cuota;type:decimal(20,2);not null" json:"cuota"`
	EstadoLiquidacion       SettlementState `gorm:"column:estado_liquidacion;type:varchar(20);index;not null" json:"estado_liquidacion"`
	FechaLiquidacion        *time.Time      `gorm:"column:fecha_liquidacion" json:"fecha_liquidacion,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

func (InvestorPayment) TableName() string { return "pagos_credito_inversionistas" }
