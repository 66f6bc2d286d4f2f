package domain

// CreditStatus 信贷状态
type CreditStatus string

const (
	StatusActivo               CreditStatus = "ACTIVO"
	StatusMoroso               CreditStatus = "MOROSO"
	StatusEnConvenio           CreditStatus = "EN_CONVENIO"
	StatusPendienteCancelacion CreditStatus = "PENDIENTE_CANCELACION"
	StatusCancelado            CreditStatus = "CANCELADO"
	StatusIncobrable           CreditStatus = "INCOBRABLE"
)

// IsTerminal 终态不可离开
func (s CreditStatus) IsTerminal() bool {
	return s == StatusCancelado || s == StatusIncobrable
}

// AcceptsPayments 可以直接入账的状态
func (s CreditStatus) AcceptsPayments() bool {
	return s == StatusActivo || s == StatusMoroso || s == StatusPendienteCancelacion
}

// AccruesLateFees 参与滞纳金计提的状态
func (s CreditStatus) AccruesLateFees() bool {
	return s == StatusActivo || s == StatusMoroso
}

// CreditFormat 信贷形式
type CreditFormat string

const (
	FormatIndividual CreditFormat = "Individual"
	FormatPool       CreditFormat = "Pool"
)

// SettlementState 投资人结算状态
type SettlementState string

const (
	SettlementPending SettlementState = "NO_LIQUIDADO"
	SettlementDone    SettlementState = "LIQUIDADO"
)
