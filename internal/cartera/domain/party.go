package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Borrower 借款人，持有唯一的余额（saldo a favor）
type Borrower struct {
	gorm.Model
	// 展示名称，保留原始输入
	Nombre string `gorm:"column:nombre;type:varchar(255);not null" json:"nombre"`
	// 规范化名称键，用于去重
	NombreClave string `gorm:"column:nombre_clave;type:varchar(255);uniqueIndex;not null" json:"-"`
	NIT         string `gorm:"column:nit;type:varchar(32)" json:"nit"`
	Categoria   string `gorm:"column:categoria;type:varchar(64)" json:"categoria"`
	// 多付结转余额
	SaldoAFavor decimal.Decimal `gorm:"column:saldo_a_favor;type:decimal(20,2);default:0;not null" json:"saldo_a_favor"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;default:1;not null" json:"version"`
}

func (Borrower) TableName() string { return "usuarios" }

// Investor 投资人
type Investor struct {
	gorm.Model
	Nombre      string `gorm:"column:nombre;type:varchar(255);not null" json:"nombre"`
	NombreClave string `gorm:"column:nombre_clave;type:varchar(255);uniqueIndex;not null" json:"-"`
	// 是否开具发票；否则按 ISR 预扣
	EmiteFactura bool   `gorm:"column:emite_factura;default:false;not null" json:"emite_factura"`
	Reinversion  bool   `gorm:"column:reinversion;default:false;not null" json:"reinversion"`
	Banco        string `gorm:"column:banco;type:varchar(100)" json:"banco"`
	TipoCuenta   string `gorm:"column:tipo_cuenta;type:varchar(50)" json:"tipo_cuenta"`
	NumeroCuenta string `gorm:"column:numero_cuenta;type:varchar(64)" json:"numero_cuenta"`
}

func (Investor) TableName() string { return "inversionistas" }

// TaxTreatment 返回该投资人的税务处理方式
func (i *Investor) TaxTreatment() TaxTreatment {
	return TaxTreatmentFor(i.EmiteFactura)
}

// Advisor 客户经理
type Advisor struct {
	gorm.Model
	Nombre      string `gorm:"column:nombre;type:varchar(255);not null" json:"nombre"`
	NombreClave string `gorm:"column:nombre_clave;type:varchar(255);uniqueIndex;not null" json:"-"`
}

func (Advisor) TableName() string { return "asesores" }
