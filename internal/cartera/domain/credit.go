package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DateLayout 本地日期列的存储格式
const DateLayout = "2006-01-02"

// Credit 信贷
type Credit struct {
	gorm.Model
	NumeroCredito string `gorm:"column:numero_credito;type:varchar(64);uniqueIndex;not null" json:"numero_credito"`
	UsuarioID     uint   `gorm:"column:usuario_id;index;not null" json:"usuario_id"`
	AsesorID      uint   `gorm:"column:asesor_id;index" json:"asesor_id"`
	// 剩余本金
	Capital decimal.Decimal `gorm:"column:capital;type:decimal(20,2);not null" json:"capital"`
	// 月利率（百分比）
	PorcentajeInteres decimal.Decimal `gorm:"column:porcentaje_interes;type:decimal(7,4);not null" json:"porcentaje_interes"`
	CuotaInteres      decimal.Decimal `gorm:"column:cuota_interes;type:decimal(20,2);not null" json:"cuota_interes"`
	IVA12             decimal.Decimal `gorm:"column:iva_12;type:decimal(20,2);not null" json:"iva_12"`
	// 固定月供
	Cuota      decimal.Decimal `gorm:"column:cuota;type:decimal(20,2);not null" json:"cuota"`
	Seguro     decimal.Decimal `gorm:"column:seguro;type:decimal(20,2);default:0;not null" json:"seguro"`
	GPS        decimal.Decimal `gorm:"column:gps;type:decimal(20,2);default:0;not null" json:"gps"`
	Membresias decimal.Decimal `gorm:"column:membresias;type:decimal(20,2);default:0;not null" json:"membresias"`
	Otros      decimal.Decimal `gorm:"column:otros;type:decimal(20,2);default:0;not null" json:"otros"`
	Plazo      int             `gorm:"column:plazo;not null" json:"plazo"`
	DeudaTotal decimal.Decimal `gorm:"column:deudatotal;type:decimal(20,2);not null" json:"deudatotal"`

	PorcentajeParticipacion    decimal.Decimal `gorm:"column:porcentaje_participacion;type:decimal(7,4);default:0;not null" json:"porcentaje_participacion"`
	MontoAsignadoInversionista decimal.Decimal `gorm:"column:monto_asignado_inversionista;type:decimal(20,2);default:0;not null" json:"monto_asignado_inversionista"`
	IVAInversionista           decimal.Decimal `gorm:"column:iva_inversionista;type:decimal(20,2);default:0;not null" json:"iva_inversionista"`
	PorcentajeCashIn           decimal.Decimal `gorm:"column:porcentaje_cash_in;type:decimal(7,4);default:0;not null" json:"porcentaje_cash_in"`
	CuotaCashIn                decimal.Decimal `gorm:"column:cuota_cash_in;type:decimal(20,2);default:0;not null" json:"cuota_cash_in"`
	IVACashIn                  decimal.Decimal `gorm:"column:iva_cash_in;type:decimal(20,2);default:0;not null" json:"iva_cash_in"`

	FormatoCredito CreditFormat `gorm:"column:formato_credito;type:varchar(20);not null" json:"formato_credito"`
	StatusCredit   CreditStatus `gorm:"column:status_credit;type:varchar(30);index;not null" json:"status_credit"`
	Observaciones  string       `gorm:"column:observaciones;type:text" json:"observaciones"`
	FechaCreacion  time.Time    `gorm:"column:fecha_creacion;not null" json:"fecha_creacion"`
	Version        int64        `gorm:"column:version;default:1;not null" json:"version"`
}

func (Credit) TableName() string { return "creditos" }

// ApplyAmounts 写入放款计算结果
func (c *Credit) ApplyAmounts(a CreditAmounts) {
	c.CuotaInteres = a.CuotaInteres
	c.IVA12 = a.IVA12
	c.MontoAsignadoInversionista = a.MontoAsignadoInversionista
	c.IVAInversionista = a.IVAInversionista
	c.CuotaCashIn = a.CuotaCashIn
	c.IVACashIn = a.IVACashIn
	c.DeudaTotal = a.DeudaTotal
	c.Cuota = a.Cuota
}

// AmortizeTo 按新的剩余本金重算利息、IVA 与总欠款（还款后不再包含 otros）
func (c *Credit) AmortizeTo(capital decimal.Decimal) {
	c.Capital = Round2(capital)
	c.CuotaInteres = Pct(c.Capital, c.PorcentajeInteres)
	c.IVA12 = IVA(c.CuotaInteres)
	c.DeudaTotal = Round2(Sum(c.Capital, c.CuotaInteres, c.IVA12, c.Seguro, c.GPS, c.Membresias))
}

// CreditSnapshot 还款前的信贷状态，用于冲正
type CreditSnapshot struct {
	Capital      decimal.Decimal
	CuotaInteres decimal.Decimal
	IVA12        decimal.Decimal
	DeudaTotal   decimal.Decimal
}

// Snapshot 记录当前可变余额
func (c *Credit) Snapshot() CreditSnapshot {
	return CreditSnapshot{
		Capital:      c.Capital,
		CuotaInteres: c.CuotaInteres,
		IVA12:        c.IVA12,
		DeudaTotal:   c.DeudaTotal,
	}
}

// Restore 恢复快照
func (c *Credit) Restore(s CreditSnapshot) {
	c.Capital = s.Capital
	c.CuotaInteres = s.CuotaInteres
	c.IVA12 = s.IVA12
	c.DeudaTotal = s.DeudaTotal
}

// CreditInvestor 信贷与投资人的出资关系
type CreditInvestor struct {
	ID              uint `gorm:"primaryKey" json:"id"`
	CreditoID       uint `gorm:"column:credito_id;uniqueIndex:idx_credito_inversionista;not null" json:"credito_id"`
	InversionistaID uint `gorm:"column:inversionista_id;uniqueIndex:idx_credito_inversionista;index;not null" json:"inversionista_id"`
	// 出资本金，随还款递减
	MontoAportado                        decimal.Decimal `gorm:"column:monto_aportado;type:decimal(20,2);not null" json:"monto_aportado"`
	PorcentajeCashIn                     decimal.Decimal `gorm:"column:porcentaje_cash_in;type:decimal(7,4);not null" json:"porcentaje_cash_in"`
	PorcentajeParticipacionInversionista decimal.Decimal `gorm:"column:porcentaje_participacion_inversionista;type:decimal(7,4);not null" json:"porcentaje_participacion_inversionista"`
	CuotaInversionista                   decimal.Decimal `gorm:"column:cuota_inversionista;type:decimal(20,2);not null" json:"cuota_inversionista"`
	MontoInversionista                   decimal.Decimal `gorm:"column:monto_inversionista;type:decimal(20,2);not null" json:"monto_inversionista"`
	MontoCashIn                          decimal.Decimal `gorm:"column:monto_cash_in;type:decimal(20,2);not null" json:"monto_cash_in"`
	IVAInversionista                     decimal.Decimal `gorm:"column:iva_inversionista;type:decimal(20,2);not null" json:"iva_inversionista"`
	IVACashIn                            decimal.Decimal `gorm:"column:iva_cash_in;type:decimal(20,2);not null" json:"iva_cash_in"`

	Investor  *Investor `gorm:"foreignKey:InversionistaID" json:"investor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CreditInvestor) TableName() string { return "creditos_inversionistas" }

// Installment 还款计划中的一期
type Installment struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	CreditoID   uint `gorm:"column:credito_id;uniqueIndex:idx_credito_cuota;not null" json:"credito_id"`
	NumeroCuota int  `gorm:"column:numero_cuota;uniqueIndex:idx_credito_cuota;not null" json:"numero_cuota"`
	// 本地时区日期 YYYY-MM-DD
	FechaVencimiento string `gorm:"column:fecha_vencimiento;type:varchar(10);index;not null" json:"fecha_vencimiento"`
	Pagado           bool   `gorm:"column:pagado;default:false;not null" json:"pagado"`
	// 该期对应的投资人款项是否已全部结算
	LiquidadoInversionistas        bool       `gorm:"column:liquidado_inversionistas;default:false;not null" json:"liquidado_inversionistas"`
	FechaLiquidacionInversionistas *time.Time `gorm:"column:fecha_liquidacion_inversionistas" json:"fecha_liquidacion_inversionistas,omitempty"`
	CreatedAt                      time.Time  `json:"created_at"`
	UpdatedAt                      time.Time  `json:"updated_at"`
}

func (Installment) TableName() string { return "cuotas_credito" }

