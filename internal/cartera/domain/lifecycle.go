package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LifecycleAction 状态迁移动作
type LifecycleAction string

const (
	ActionMoroso               LifecycleAction = "MOROSO"
	ActionPendienteCancelacion LifecycleAction = "PENDIENTE_CANCELACION"
	ActionCancelar             LifecycleAction = "CANCELAR"
	ActionIncobrable           LifecycleAction = "INCOBRABLE"
	ActionActivar              LifecycleAction = "ACTIVAR"
)

type transitionRule struct {
	from          []CreditStatus
	to            CreditStatus
	needsMotive   bool
	needsAmount   bool
	writesClosure bool
}

var closureSources = []CreditStatus{StatusActivo, StatusMoroso, StatusEnConvenio, StatusPendienteCancelacion}

var transitionRules = map[LifecycleAction]transitionRule{
	ActionMoroso: {
		from: []CreditStatus{StatusActivo},
		to:   StatusMoroso,
	},
	ActionPendienteCancelacion: {
		from:        []CreditStatus{StatusActivo, StatusMoroso},
		to:          StatusPendienteCancelacion,
		needsMotive: true,
	},
	ActionCancelar: {
		from:          closureSources,
		to:            StatusCancelado,
		needsMotive:   true,
		needsAmount:   true,
		writesClosure: true,
	},
	ActionIncobrable: {
		from:          closureSources,
		to:            StatusIncobrable,
		needsMotive:   true,
		needsAmount:   true,
		writesClosure: true,
	},
	ActionActivar: {
		from: []CreditStatus{StatusMoroso, StatusPendienteCancelacion},
		to:   StatusActivo,
	},
}

// Transition 一次已校验的状态迁移
type Transition struct {
	Action        LifecycleAction
	From          CreditStatus
	To            CreditStatus
	WritesClosure bool
}

// ParseAction 解析动作名称（大小写不敏感）
func ParseAction(s string) (LifecycleAction, error) {
	a := LifecycleAction(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitionRules[a]; !ok {
		return "", NewValidationError("UNKNOWN_ACTION", fmt.Sprintf("unknown lifecycle action %q", s))
	}
	return a, nil
}

// PlanTransition 校验迁移：缺少原因或金额返回 ValidationError，不允许的来源状态返回 ConflictError
func PlanTransition(current CreditStatus, action LifecycleAction, motive string, amount *decimal.Decimal) (*Transition, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return nil, NewValidationError("UNKNOWN_ACTION", fmt.Sprintf("unknown lifecycle action %q", action))
	}
	if rule.needsMotive && strings.TrimSpace(motive) == "" {
		return nil, NewValidationError("MOTIVE_REQUIRED", fmt.Sprintf("action %s requires a motive", action))
	}
	if rule.needsAmount {
		if amount == nil {
			return nil, NewValidationError("AMOUNT_REQUIRED", fmt.Sprintf("action %s requires an amount", action))
		}
		if amount.IsNegative() {
			return nil, NewValidationError("NEGATIVE_AMOUNT", "closure amount must not be negative")
		}
	}
	allowed := false
	for _, s := range rule.from {
		if s == current {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, NewConflictError("INVALID_TRANSITION",
			fmt.Sprintf("cannot apply %s to a credit in status %s", action, current))
	}
	return &Transition{Action: action, From: current, To: rule.to, WritesClosure: rule.writesClosure}, nil
}

// ExtraChargeInput 附加金额输入
type ExtraChargeInput struct {
	Concepto string          `json:"concepto"`
	Monto    decimal.Decimal `json:"monto"`
}

// ValidateExtras 附加金额须有名目
func ValidateExtras(extras []ExtraChargeInput) error {
	for i, e := range extras {
		if strings.TrimSpace(e.Concepto) == "" {
			return NewValidationError("EXTRA_CONCEPT_REQUIRED", fmt.Sprintf("extra charge #%d requires a concept", i+1))
		}
	}
	return nil
}
