package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// BorrowerInput 借款人信息
type BorrowerInput struct {
	Nombre    string `json:"nombre" validate:"required,max=255"`
	NIT       string `json:"nit" validate:"max=32"`
	Categoria string `json:"categoria" validate:"max=64"`
}

// InvestorInput 出资人信息
type InvestorInput struct {
	Nombre                               string          `json:"nombre" validate:"required,max=255"`
	MontoAportado                        decimal.Decimal `json:"monto_aportado"`
	PorcentajeCashIn                     decimal.Decimal `json:"porcentaje_cash_in"`
	PorcentajeParticipacionInversionista decimal.Decimal `json:"porcentaje_participacion_inversionista"`
	EmiteFactura                         bool            `json:"emite_factura"`
	Reinversion                          bool            `json:"reinversion"`
	Banco                                string          `json:"banco"`
	TipoCuenta                           string          `json:"tipo_cuenta"`
	NumeroCuenta                         string          `json:"numero_cuenta"`
}

// OriginateCreditCommand 放款命令
type OriginateCreditCommand struct {
	NumeroCredito           string           `json:"numero_credito" validate:"required,max=64"`
	Usuario                 BorrowerInput    `json:"usuario"`
	Asesor                  string           `json:"asesor" validate:"max=255"`
	Capital                 decimal.Decimal  `json:"capital"`
	PorcentajeInteres       decimal.Decimal  `json:"porcentaje_interes"`
	Plazo                   int              `json:"plazo" validate:"min=1,max=360"`
	Cuota                   *decimal.Decimal `json:"cuota,omitempty"`
	Seguro                  decimal.Decimal  `json:"seguro"`
	GPS                     decimal.Decimal  `json:"gps"`
	Membresias              decimal.Decimal  `json:"membresias"`
	Otros                   decimal.Decimal  `json:"otros"`
	PorcentajeParticipacion decimal.Decimal  `json:"porcentaje_participacion"`
	PorcentajeCashIn        decimal.Decimal  `json:"porcentaje_cash_in"`
	Inversionistas          []InvestorInput  `json:"inversionistas" validate:"dive"`
	Observaciones           string           `json:"observaciones"`
	// 为空时取当前时间
	FechaCreacion time.Time `json:"fecha_creacion"`
}

// Terms 转换为放款条款
func (c OriginateCreditCommand) Terms() domain.CreditTerms {
	return domain.CreditTerms{
		Capital:                 c.Capital,
		PorcentajeInteres:       c.PorcentajeInteres,
		Plazo:                   c.Plazo,
		Seguro:                  c.Seguro,
		GPS:                     c.GPS,
		Membresias:              c.Membresias,
		Otros:                   c.Otros,
		PorcentajeParticipacion: c.PorcentajeParticipacion,
		PorcentajeCashIn:        c.PorcentajeCashIn,
		Cuota:                   c.Cuota,
	}
}

// UpdateCreditCommand 信贷部分更新，nil 字段保持不变
type UpdateCreditCommand struct {
	CreditoID         uint             `json:"-" validate:"required"`
	NumeroCredito     *string          `json:"numero_credito,omitempty" validate:"omitempty,min=1,max=64"`
	Capital           *decimal.Decimal `json:"capital,omitempty"`
	PorcentajeInteres *decimal.Decimal `json:"porcentaje_interes,omitempty"`
	Cuota             *decimal.Decimal `json:"cuota,omitempty"`
	Plazo             *int             `json:"plazo,omitempty" validate:"omitempty,min=1,max=360"`
	Seguro            *decimal.Decimal `json:"seguro,omitempty"`
	GPS               *decimal.Decimal `json:"gps,omitempty"`
	Membresias        *decimal.Decimal `json:"membresias,omitempty"`
	Otros             *decimal.Decimal `json:"otros,omitempty"`
	Observaciones     *string          `json:"observaciones,omitempty"`
}

// ApplyPaymentCommand 还款命令
type ApplyPaymentCommand struct {
	CreditoID     uint            `json:"-" validate:"required"`
	NumeroCuota   int             `json:"numero_cuota" validate:"min=1"`
	MontoBoleta   decimal.Decimal `json:"monto_boleta"`
	Mora          decimal.Decimal `json:"mora"`
	Otros         decimal.Decimal `json:"otros"`
	FechaPago     time.Time       `json:"fecha_pago"`
	Observaciones string          `json:"observaciones"`
}

// WaiveLateFeeCommand 滞纳金免除命令
type WaiveLateFeeCommand struct {
	CreditoID uint   `json:"-" validate:"required"`
	Motivo    string `json:"motivo" validate:"required"`
	Usuario   string `json:"usuario" validate:"max=100"`
}

// TransitionCommand 状态迁移命令
type TransitionCommand struct {
	CreditoID     uint                      `json:"-" validate:"required"`
	Accion        string                    `json:"accion" validate:"required"`
	Motivo        string                    `json:"motivo"`
	Observaciones string                    `json:"observaciones"`
	Monto         *decimal.Decimal          `json:"monto,omitempty"`
	Extras        []domain.ExtraChargeInput `json:"extras"`
}

// CreateAgreementCommand 还款协议命令
type CreateAgreementCommand struct {
	CreditoID     uint            `json:"-" validate:"required"`
	PagoIDs       []uint          `json:"pago_ids"`
	MontoTotal    decimal.Decimal `json:"monto_total"`
	NumeroMeses   int             `json:"numero_meses"`
	Motivo        string          `json:"motivo"`
	Observaciones string          `json:"observaciones"`
}

// ApplyAgreementPaymentCommand 协议还款命令
type ApplyAgreementPaymentCommand struct {
	CreditoID uint            `json:"-" validate:"required"`
	Monto     decimal.Decimal `json:"monto"`
}
