package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LateFee 滞纳金，每笔信贷一行
type LateFee struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CreditoID       uint            `gorm:"column:credito_id;uniqueIndex;not null" json:"credito_id"`
	Activa          bool            `gorm:"column:activa;default:true;not null" json:"activa"`
	PorcentajeMora  decimal.Decimal `gorm:"column:porcentaje_mora;type:decimal(5,2);not null" json:"porcentaje_mora"`
	MontoMora       decimal.Decimal `gorm:"column:monto_mora;type:decimal(20,2);default:0;not null" json:"monto_mora"`
	CuotasAtrasadas int             `gorm:"column:cuotas_atrasadas;default:0;not null" json:"cuotas_atrasadas"`
	// 最近一次计提的本地日期
	UltimaAcumulacion string    `gorm:"column:ultima_acumulacion;type:varchar(10)" json:"ultima_acumulacion"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (LateFee) TableName() string { return "moras_credito" }

// AccrualOutcome 单笔信贷的计提结果
type AccrualOutcome int

const (
	AccrualCreated AccrualOutcome = iota + 1
	AccrualUpdated
	AccrualSkipped
)

// LateFeeAmount 计算新增滞纳金：capital × 1.12% × 逾期期数
func LateFeeAmount(capital decimal.Decimal, overdue int) decimal.Decimal {
	return Round2(capital.Mul(LateFeeRate).Mul(decimal.NewFromInt(int64(overdue))))
}

// Accrue 计提滞纳金；fee 为 nil 时新建。同一天重复计提返回 AccrualSkipped 且不修改金额
func Accrue(fee *LateFee, creditID uint, capital decimal.Decimal, overdue int, today string) (*LateFee, decimal.Decimal, AccrualOutcome) {
	amount := LateFeeAmount(capital, overdue)
	switch {
	case fee != nil && fee.Activa && fee.UltimaAcumulacion == today:
		return fee, decimal.Zero, AccrualSkipped
	case fee != nil && fee.Activa:
		fee.MontoMora = Round2(fee.MontoMora.Add(amount))
		fee.CuotasAtrasadas = overdue
		fee.UltimaAcumulacion = today
		return fee, amount, AccrualUpdated
	case fee != nil:
		// 复用已失效的记录
		fee.Activa = true
		fee.PorcentajeMora = LateFeePercent
		fee.MontoMora = amount
		fee.CuotasAtrasadas = overdue
		fee.UltimaAcumulacion = today
		return fee, amount, AccrualCreated
	default:
		return &LateFee{
			CreditoID:         creditID,
			Activa:            true,
			PorcentajeMora:    LateFeePercent,
			MontoMora:         amount,
			CuotasAtrasadas:   overdue,
			UltimaAcumulacion: today,
		}, amount, AccrualCreated
	}
}

// Pay 扣减已支付的滞纳金，不低于 0；返回实际扣减额。金额归零时失效
func (f *LateFee) Pay(amount decimal.Decimal) decimal.Decimal {
	applied := decimal.Min(amount, f.MontoMora)
	if applied.IsNegative() {
		applied = decimal.Zero
	}
	f.MontoMora = Round2(f.MontoMora.Sub(applied))
	if !f.MontoMora.IsPositive() {
		f.MontoMora = decimal.Zero
		f.Activa = false
	}
	return applied
}

// Restore 冲正时加回已支付的滞纳金
func (f *LateFee) Restore(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	f.MontoMora = Round2(f.MontoMora.Add(amount))
	f.Activa = true
}

// Waive 免除滞纳金，返回被免除的金额
func (f *LateFee) Waive() decimal.Decimal {
	waived := f.MontoMora
	f.MontoMora = decimal.Zero
	f.Activa = false
	return waived
}

// LateFeeWaiver 滞纳金免除记录
type LateFeeWaiver struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CreditoID      uint            `gorm:"column:credito_id;index;not null" json:"credito_id"`
	MoraID         uint            `gorm:"column:mora_id;index;not null" json:"mora_id"`
	Motivo         string          `gorm:"column:motivo;type:text;not null" json:"motivo"`
	MontoCondonado decimal.Decimal `gorm:"column:monto_condonado;type:decimal(20,2);not null" json:"monto_condonado"`
	Usuario        string          `gorm:"column:usuario;type:varchar(100)" json:"usuario"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (LateFeeWaiver) TableName() string { return "moras_condonaciones" }
