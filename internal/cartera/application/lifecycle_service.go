package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// LifecycleService 信贷状态迁移与结清读模型
type LifecycleService struct {
	core
}

// NewLifecycleService 创建状态机服务
func NewLifecycleService(deps Dependencies) *LifecycleService {
	return &LifecycleService{core: newCore(deps)}
}

type transitionPayload struct {
	Accion domain.LifecycleAction `json:"accion"`
	De     domain.CreditStatus    `json:"de"`
	A      domain.CreditStatus    `json:"a"`
	Motivo string                 `json:"motivo,omitempty"`
	Monto  *decimal.Decimal       `json:"monto,omitempty"`
	Extras int                    `json:"extras,omitempty"`
}

// TransitionCreditStatus 执行状态迁移；结清与坏账动作返回写入的快照
func (s *LifecycleService) TransitionCreditStatus(ctx context.Context, cmd TransitionCommand) (*domain.ClosureSnapshot, error) {
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	action, err := domain.ParseAction(cmd.Accion)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateExtras(cmd.Extras); err != nil {
		return nil, err
	}

	var snap *domain.ClosureSnapshot
	err = s.tm.Transaction(ctx, func(ctx context.Context) error {
		credit, err := s.lockCredit(ctx, cmd.CreditoID)
		if err != nil {
			return err
		}
		tr, err := domain.PlanTransition(credit.StatusCredit, action, cmd.Motivo, cmd.Monto)
		if err != nil {
			return err
		}
		now := s.now()
		if tr.WritesClosure {
			if snap, err = s.writeClosure(ctx, credit.ID, tr, cmd); err != nil {
				return err
			}
		}
		if tr.From == domain.StatusEnConvenio {
			if err := s.closeAgreement(ctx, credit.ID); err != nil {
				return err
			}
		}
		if len(cmd.Extras) > 0 {
			extras := make([]*domain.ExtraCharge, len(cmd.Extras))
			for i, e := range cmd.Extras {
				extras[i] = &domain.ExtraCharge{
					CreditID:      credit.ID,
					Concepto:      strings.TrimSpace(e.Concepto),
					Monto:         domain.Round2(e.Monto),
					FechaRegistro: now,
				}
			}
			if err := s.repos.Closures.AddExtras(ctx, extras); err != nil {
				return err
			}
		}

		credit.StatusCredit = tr.To
		if err := s.repos.Credits.Update(ctx, credit); err != nil {
			return err
		}
		return s.appendEvent(ctx, credit.ID, domain.EventEstadoCambiado, domain.Deltas{}, transitionPayload{
			Accion: tr.Action,
			De:     tr.From,
			A:      tr.To,
			Motivo: cmd.Motivo,
			Monto:  cmd.Monto,
			Extras: len(cmd.Extras),
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to transition credit", "credito_id", cmd.CreditoID, "accion", cmd.Accion, "error", err)
		return nil, err
	}
	s.metrics.RecordTransition(string(action))
	s.invalidate(ctx, cmd.CreditoID)
	s.logger.InfoContext(ctx, "credit status changed", "credito_id", cmd.CreditoID, "accion", action)
	return snap, nil
}

// writeClosure 写入结清或坏账记录，二者互斥且只写一次
func (s *LifecycleService) writeClosure(ctx context.Context, creditID uint, tr *domain.Transition, cmd TransitionCommand) (*domain.ClosureSnapshot, error) {
	existing, err := s.closureSnapshot(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewConflictError("CLOSURE_EXISTS",
			fmt.Sprintf("credit %d already has a %s record", creditID, existing.Tipo))
	}
	now := s.now()
	monto := domain.Round2(*cmd.Monto)
	if tr.To == domain.StatusCancelado {
		r := &domain.CancellationRecord{
			CreditID:         creditID,
			Motivo:           cmd.Motivo,
			Observaciones:    cmd.Observaciones,
			FechaCancelacion: now,
			MontoCancelacion: monto,
		}
		if err := s.repos.Closures.CreateCancellation(ctx, r); err != nil {
			return nil, err
		}
		return domain.SnapshotFromCancellation(r), nil
	}
	r := &domain.BadDebtRecord{
		CreditID:        creditID,
		Motivo:          cmd.Motivo,
		Observaciones:   cmd.Observaciones,
		FechaRegistro:   now,
		MontoIncobrable: monto,
	}
	if err := s.repos.Closures.CreateBadDebt(ctx, r); err != nil {
		return nil, err
	}
	return domain.SnapshotFromBadDebt(r), nil
}

// closeAgreement 离开 EN_CONVENIO 时停用未完成的协议
func (c *core) closeAgreement(ctx context.Context, creditID uint) error {
	a, err := c.repos.Agreements.GetOpenByCredit(ctx, creditID)
	if err != nil || a == nil {
		return err
	}
	a.Activo = false
	return c.repos.Agreements.Update(ctx, a)
}

func (c *core) closureSnapshot(ctx context.Context, creditID uint) (*domain.ClosureSnapshot, error) {
	cancel, err := c.repos.Closures.GetCancellation(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if cancel != nil {
		return domain.SnapshotFromCancellation(cancel), nil
	}
	bad, err := c.repos.Closures.GetBadDebt(ctx, creditID)
	if err != nil {
		return nil, err
	}
	return domain.SnapshotFromBadDebt(bad), nil
}

// GetClosureDetail 组装结清详情，优先读取缓存
func (s *LifecycleService) GetClosureDetail(ctx context.Context, creditID uint) (*domain.ClosureDetail, error) {
	cached, err := s.cache.Get(ctx, creditID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read closure cache", "credito_id", creditID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	credit, err := s.loadCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	saldo := decimal.Zero
	borrower, err := s.repos.Parties.GetBorrower(ctx, credit.UsuarioID)
	if err != nil {
		return nil, err
	}
	if borrower != nil {
		saldo = borrower.SaldoAFavor
	}
	mora := decimal.Zero
	fee, err := s.repos.LateFees.GetByCredit(ctx, credit.ID)
	if err != nil {
		return nil, err
	}
	if fee != nil && fee.Activa {
		mora = fee.MontoMora
	}
	snap, err := s.closureSnapshot(ctx, credit.ID)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repos.Installments.ListOverdue(ctx, credit.ID, s.today(s.now()))
	if err != nil {
		return nil, err
	}
	extras, err := s.repos.Closures.ListExtras(ctx, credit.ID)
	if err != nil {
		return nil, err
	}

	detail := domain.BuildClosureDetail(credit, saldo, mora, snap, overdue, extras)
	if err := s.cache.Set(ctx, credit.ID, detail); err != nil {
		s.logger.WarnContext(ctx, "failed to write closure cache", "credito_id", credit.ID, "error", err)
	}
	return detail, nil
}

// CancellationQuote 按当前逾期期数报价
func (s *LifecycleService) CancellationQuote(ctx context.Context, creditID uint) (*domain.CancellationQuote, error) {
	credit, err := s.loadCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if credit.StatusCredit.IsTerminal() {
		return nil, domain.NewConflictError("CREDIT_CLOSED", fmt.Sprintf("credit %d is %s", credit.ID, credit.StatusCredit))
	}
	overdue, err := s.repos.Installments.ListOverdue(ctx, credit.ID, s.today(s.now()))
	if err != nil {
		return nil, err
	}
	return domain.QuoteCancellation(credit, len(overdue)), nil
}
