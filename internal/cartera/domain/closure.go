package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CancellationRecord 结清记录，每笔信贷至多一条
type CancellationRecord struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	CreditID         uint            `gorm:"column:credit_id;uniqueIndex;not null" json:"credit_id"`
	Motivo           string          `gorm:"column:motivo;type:text;not null" json:"motivo"`
	Observaciones    string          `gorm:"column:observaciones;type:text" json:"observaciones"`
	FechaCancelacion time.Time       `gorm:"column:fecha_cancelacion;not null" json:"fecha_cancelacion"`
	MontoCancelacion decimal.Decimal `gorm:"column:monto_cancelacion;type:decimal(20,2);not null" json:"monto_cancelacion"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (CancellationRecord) TableName() string { return "credit_cancelations" }

// BadDebtRecord 坏账记录，每笔信贷至多一条
type BadDebtRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CreditID        uint            `gorm:"column:credit_id;uniqueIndex;not null" json:"credit_id"`
	Motivo          string          `gorm:"column:motivo;type:text;not null" json:"motivo"`
	Observaciones   string          `gorm:"column:observaciones;type:text" json:"observaciones"`
	FechaRegistro   time.Time       `gorm:"column:fecha_registro;not null" json:"fecha_registro"`
	MontoIncobrable decimal.Decimal `gorm:"column:monto_incobrable;type:decimal(20,2);not null" json:"monto_incobrable"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (BadDebtRecord) TableName() string { return "bad_debts" }

// ExtraCharge 附加金额，只追加不修改；Monto 可为负
type ExtraCharge struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CreditID      uint            `gorm:"column:credit_id;index;not null" json:"credit_id"`
	Concepto      string          `gorm:"column:concepto;type:varchar(255);not null" json:"concepto"`
	Monto         decimal.Decimal `gorm:"column:monto;type:decimal(20,2);not null" json:"monto"`
	FechaRegistro time.Time       `gorm:"column:fecha_registro;not null" json:"fecha_registro"`
}

func (ExtraCharge) TableName() string { return "montos_adicionales" }

// ClosureSnapshot 结清或坏账快照，两者互斥
type ClosureSnapshot struct {
	Tipo          string          `json:"tipo"`
	Motivo        string          `json:"motivo"`
	Observaciones string          `json:"observaciones"`
	Fecha         time.Time       `json:"fecha"`
	Monto         decimal.Decimal `json:"monto"`
}

const (
	ClosureCancellation = "CANCELACION"
	ClosureBadDebt      = "INCOBRABLE"
)

// SnapshotFromCancellation 转换结清记录
func SnapshotFromCancellation(r *CancellationRecord) *ClosureSnapshot {
	if r == nil {
		return nil
	}
	return &ClosureSnapshot{
		Tipo:          ClosureCancellation,
		Motivo:        r.Motivo,
		Observaciones: r.Observaciones,
		Fecha:         r.FechaCancelacion,
		Monto:         r.MontoCancelacion,
	}
}

// SnapshotFromBadDebt 转换坏账记录
func SnapshotFromBadDebt(r *BadDebtRecord) *ClosureSnapshot {
	if r == nil {
		return nil
	}
	return &ClosureSnapshot{
		Tipo:          ClosureBadDebt,
		Motivo:        r.Motivo,
		Observaciones: r.Observaciones,
		Fecha:         r.FechaRegistro,
		Monto:         r.MontoIncobrable,
	}
}

// ClosureDetail 结清详情读模型
type ClosureDetail struct {
	CreditoID      uint             `json:"credito_id"`
	NumeroCredito  string           `json:"numero_credito"`
	Status         CreditStatus     `json:"status"`
	Capital        decimal.Decimal  `json:"capital"`
	CuotaInteres   decimal.Decimal  `json:"cuota_interes"`
	IVA12          decimal.Decimal  `json:"iva_12"`
	DeudaTotal     decimal.Decimal  `json:"deudatotal"`
	SaldoAFavor    decimal.Decimal  `json:"saldo_a_favor"`
	MoraActual     decimal.Decimal  `json:"mora_actual"`
	Snapshot       *ClosureSnapshot `json:"snapshot,omitempty"`
	CuotasVencidas []Installment    `json:"cuotas_vencidas"`
	Extras         []ExtraCharge    `json:"extras"`
	TotalExtras    decimal.Decimal  `json:"total_extras"`
	// 总欠款 + 滞纳金 - 余额
	SaldoTotal          decimal.Decimal `json:"saldo_total"`
	SaldoTotalConExtras decimal.Decimal `json:"saldo_total_con_extras"`
}

// BuildClosureDetail 组装结清详情
func BuildClosureDetail(c *Credit, saldo, mora decimal.Decimal, snap *ClosureSnapshot, overdue []Installment, extras []ExtraCharge) *ClosureDetail {
	totalExtras := decimal.Zero
	for _, e := range extras {
		totalExtras = totalExtras.Add(e.Monto)
	}
	saldoTotal := Round2(c.DeudaTotal.Add(mora).Sub(saldo))
	if overdue == nil {
		overdue = []Installment{}
	}
	if extras == nil {
		extras = []ExtraCharge{}
	}
	return &ClosureDetail{
		CreditoID:           c.ID,
		NumeroCredito:       c.NumeroCredito,
		Status:              c.StatusCredit,
		Capital:             c.Capital,
		CuotaInteres:        c.CuotaInteres,
		IVA12:               c.IVA12,
		DeudaTotal:          c.DeudaTotal,
		SaldoAFavor:         saldo,
		MoraActual:          mora,
		Snapshot:            snap,
		CuotasVencidas:      overdue,
		Extras:              extras,
		TotalExtras:         Round2(totalExtras),
		SaldoTotal:          saldoTotal,
		SaldoTotalConExtras: Round2(saldoTotal.Add(totalExtras)),
	}
}

// CancellationQuote 结清报价
type CancellationQuote struct {
	CreditoID          uint            `json:"credito_id"`
	Capital            decimal.Decimal `json:"capital"`
	CuotasPendientes   int             `json:"cuotas_pendientes"`
	InteresPendiente   decimal.Decimal `json:"interes_pendiente"`
	IVAPendiente       decimal.Decimal `json:"iva_pendiente"`
	SeguroPendiente    decimal.Decimal `json:"seguro_pendiente"`
	MembresiaPendiente decimal.Decimal `json:"membresia_pendiente"`
	Total              decimal.Decimal `json:"total"`
}

// QuoteCancellation 按逾期期数计算结清报价
func QuoteCancellation(c *Credit, overdue int) *CancellationQuote {
	n := decimal.NewFromInt(int64(overdue))
	q := &CancellationQuote{
		CreditoID:          c.ID,
		Capital:            c.Capital,
		CuotasPendientes:   overdue,
		InteresPendiente:   Round2(c.CuotaInteres.Mul(n)),
		IVAPendiente:       Round2(c.IVA12.Mul(n)),
		SeguroPendiente:    Round2(c.Seguro.Mul(n)),
		MembresiaPendiente: Round2(c.Membresias.Mul(n)),
	}
	q.Total = Round2(Sum(q.Capital, q.InteresPendiente, q.IVAPendiente, q.SeguroPendiente, q.MembresiaPendiente))
	return q
}
