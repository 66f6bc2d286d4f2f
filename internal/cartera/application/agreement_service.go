package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// agreementWaiverMotive 建立协议时免除滞纳金的原因
const agreementWaiverMotive = "convenio de pago"

// AgreementService 还款协议重组
type AgreementService struct {
	core
}

// NewAgreementService 创建还款协议服务
func NewAgreementService(deps Dependencies) *AgreementService {
	return &AgreementService{core: newCore(deps)}
}

// AgreementView 协议及其进度
type AgreementView struct {
	*domain.PaymentAgreement
	Progreso decimal.Decimal `json:"progreso"`
}

// AgreementPaymentView 协议还款结果
type AgreementPaymentView struct {
	ConvenioID      uint            `json:"convenio_id"`
	Aplicado        decimal.Decimal `json:"aplicado"`
	CuotaPagada     int             `json:"cuota_pagada,omitempty"`
	MontoPendiente  decimal.Decimal `json:"monto_pendiente"`
	PagosPendientes int             `json:"pagos_pendientes"`
	Completado      bool            `json:"completado"`
	Progreso        decimal.Decimal `json:"progreso"`
}

type agreementPayload struct {
	ConvenioID  uint            `json:"convenio_id"`
	PagoIDs     []uint          `json:"pago_ids,omitempty"`
	MontoTotal  decimal.Decimal `json:"monto_total"`
	NumeroMeses int             `json:"numero_meses,omitempty"`
	Aplicado    decimal.Decimal `json:"aplicado"`
	Completado  bool            `json:"completado,omitempty"`
}

func validatePaymentIDs(ids []uint) error {
	if len(ids) == 0 {
		return domain.NewValidationError("PAYMENTS_REQUIRED", "at least one payment id is required")
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return domain.NewValidationError("DUPLICATE_PAYMENT", fmt.Sprintf("payment %d listed more than once", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// CreatePaymentAgreement 将未结清的还款重组为分期协议，信贷进入 EN_CONVENIO
func (s *AgreementService) CreatePaymentAgreement(ctx context.Context, cmd CreateAgreementCommand) (*domain.PaymentAgreement, error) {
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	terms := domain.AgreementTerms{Total: cmd.MontoTotal, Months: cmd.NumeroMeses}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if err := validatePaymentIDs(cmd.PagoIDs); err != nil {
		return nil, err
	}

	var agreement *domain.PaymentAgreement
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		credit, err := s.lockCredit(ctx, cmd.CreditoID)
		if err != nil {
			return err
		}
		if credit.StatusCredit.IsTerminal() {
			return domain.NewConflictError("CREDIT_CLOSED", fmt.Sprintf("credit %d is %s", credit.ID, credit.StatusCredit))
		}
		open, err := s.repos.Agreements.GetOpenByCredit(ctx, credit.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.NewConflictError("AGREEMENT_EXISTS",
				fmt.Sprintf("credit %d already has active agreement %d", credit.ID, open.ID))
		}
		if err := s.checkPayments(ctx, credit.ID, cmd.PagoIDs); err != nil {
			return err
		}

		a, err := domain.PlanAgreement(credit.ID, terms, s.now(), s.loc)
		if err != nil {
			return err
		}
		a.Motivo = cmd.Motivo
		a.Observaciones = cmd.Observaciones
		if err := s.repos.Agreements.Create(ctx, a); err != nil {
			return err
		}
		links := make([]*domain.AgreementPayment, len(cmd.PagoIDs))
		for i, id := range cmd.PagoIDs {
			links[i] = &domain.AgreementPayment{ConvenioID: a.ID, PagoID: id}
		}
		if err := s.repos.Agreements.AddPayments(ctx, links); err != nil {
			return err
		}

		if _, err := s.waiveInTx(ctx, credit, agreementWaiverMotive, "sistema"); err != nil {
			return err
		}
		credit.StatusCredit = domain.StatusEnConvenio
		if err := s.repos.Credits.Update(ctx, credit); err != nil {
			return err
		}
		agreement = a
		return s.appendEvent(ctx, credit.ID, domain.EventConvenioCreado, domain.Deltas{}, agreementPayload{
			ConvenioID:  a.ID,
			PagoIDs:     cmd.PagoIDs,
			MontoTotal:  a.MontoTotalConvenio,
			NumeroMeses: a.NumeroMeses,
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create payment agreement", "credito_id", cmd.CreditoID, "error", err)
		return nil, err
	}
	s.metrics.RecordAgreement()
	s.invalidate(ctx, cmd.CreditoID)
	s.logger.InfoContext(ctx, "payment agreement created",
		"credito_id", cmd.CreditoID,
		"convenio_id", agreement.ID,
		"monto_total", agreement.MontoTotalConvenio.String(),
		"meses", agreement.NumeroMeses)
	return agreement, nil
}

// checkPayments 被重组的还款必须存在、属于该信贷且未结清
func (s *AgreementService) checkPayments(ctx context.Context, creditID uint, ids []uint) error {
	payments, err := s.repos.Payments.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uint]*domain.Payment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return domain.NewNotFoundError("PAYMENT_NOT_FOUND", fmt.Sprintf("payment %d not found", id))
		}
		if p.CreditoID != creditID {
			return domain.NewValidationError("PAYMENT_CREDIT_MISMATCH",
				fmt.Sprintf("payment %d does not belong to credit %d", id, creditID))
		}
		if p.Reversado {
			return domain.NewConflictError("PAYMENT_REVERSED", fmt.Sprintf("payment %d is reversed", id))
		}
		if p.Pagado {
			return domain.NewConflictError("PAYMENT_PAID", fmt.Sprintf("payment %d already covered its installment", id))
		}
	}
	return nil
}

// ApplyAgreementPayment 向协议的下一期入账；协议完成后信贷回到 ACTIVO
func (s *AgreementService) ApplyAgreementPayment(ctx context.Context, cmd ApplyAgreementPaymentCommand) (*AgreementPaymentView, error) {
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	if !cmd.Monto.IsPositive() {
		return nil, domain.NewValidationError("INVALID_AMOUNT", "payment amount must be greater than zero")
	}

	var view *AgreementPaymentView
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		credit, err := s.lockCredit(ctx, cmd.CreditoID)
		if err != nil {
			return err
		}
		a, err := s.repos.Agreements.GetOpenByCredit(ctx, credit.ID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NewNotFoundError("AGREEMENT_NOT_FOUND", fmt.Sprintf("credit %d has no active agreement", credit.ID))
		}
		next, err := s.repos.Agreements.NextInstallment(ctx, a.ID)
		if err != nil {
			return err
		}
		res, err := a.ApplyPayment(cmd.Monto, next, s.now())
		if err != nil {
			return err
		}
		if res.CuotaPagada != nil {
			if err := s.repos.Agreements.SaveInstallment(ctx, res.CuotaPagada); err != nil {
				return err
			}
		}
		if err := s.repos.Agreements.Update(ctx, a); err != nil {
			return err
		}
		if res.Completado && credit.StatusCredit == domain.StatusEnConvenio {
			credit.StatusCredit = domain.StatusActivo
			if err := s.repos.Credits.Update(ctx, credit); err != nil {
				return err
			}
		}

		view = &AgreementPaymentView{
			ConvenioID:      a.ID,
			Aplicado:        res.Aplicado,
			MontoPendiente:  a.MontoPendiente,
			PagosPendientes: a.PagosPendientes,
			Completado:      res.Completado,
			Progreso:        a.Progress(),
		}
		if res.CuotaPagada != nil {
			view.CuotaPagada = res.CuotaPagada.NumeroCuota
		}
		return s.appendEvent(ctx, credit.ID, domain.EventConvenioPago, domain.Deltas{}, agreementPayload{
			ConvenioID: a.ID,
			Aplicado:   res.Aplicado,
			Completado: res.Completado,
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to apply agreement payment", "credito_id", cmd.CreditoID, "error", err)
		return nil, err
	}
	s.invalidate(ctx, cmd.CreditoID)
	s.logger.InfoContext(ctx, "agreement payment applied",
		"credito_id", cmd.CreditoID,
		"convenio_id", view.ConvenioID,
		"aplicado", view.Aplicado.String(),
		"completado", view.Completado)
	return view, nil
}

// GetAgreement 查询协议及进度
func (s *AgreementService) GetAgreement(ctx context.Context, id uint) (*AgreementView, error) {
	a, err := s.repos.Agreements.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.NewNotFoundError("AGREEMENT_NOT_FOUND", fmt.Sprintf("agreement %d not found", id))
	}
	return &AgreementView{PaymentAgreement: a, Progreso: a.Progress()}, nil
}
