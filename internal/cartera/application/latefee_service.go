package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// LateFeeService 滞纳金计提与免除
type LateFeeService struct {
	core
}

// NewLateFeeService 创建滞纳金服务
func NewLateFeeService(deps Dependencies) *LateFeeService {
	return &LateFeeService{core: newCore(deps)}
}

// AccrualError 单笔信贷计提失败
type AccrualError struct {
	CreditoID uint   `json:"credito_id"`
	Error     string `json:"error"`
}

// AccrualResult 一次计提批处理的结果
type AccrualResult struct {
	AsOf           string         `json:"as_of"`
	CreditsUpdated int            `json:"credits_updated"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	Errors         []AccrualError `json:"errors"`
}

type accrualPayload struct {
	CuotasAtrasadas int             `json:"cuotas_atrasadas"`
	MoraNueva       decimal.Decimal `json:"mora_nueva"`
	MontoMora       decimal.Decimal `json:"monto_mora"`
	Fecha           string          `json:"fecha"`
}

// AccrueLateFees 对逾期信贷按日计提滞纳金，每笔信贷独立事务
func (s *LateFeeService) AccrueLateFees(ctx context.Context, asOf time.Time) (*AccrualResult, error) {
	today := s.today(asOf)
	res := &AccrualResult{AsOf: today, Errors: []AccrualError{}}

	counts, err := s.repos.Installments.CountOverdue(ctx, today,
		[]domain.CreditStatus{domain.StatusActivo, domain.StatusMoroso})
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue installments: %w", err)
	}
	s.logger.InfoContext(ctx, "late fee accrual started", "as_of", today, "candidates", len(counts))

	for startIdx := 0; startIdx < len(counts); startIdx += s.batchSize {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordLateFeeRun(res.CreditsUpdated, res.Skipped, res.Failed)
			return res, err
		}
		end := min(startIdx+s.batchSize, len(counts))
		for _, oc := range counts[startIdx:end] {
			skipped, err := s.accrueOne(ctx, oc, today)
			switch {
			case err != nil:
				res.Failed++
				res.Errors = append(res.Errors, AccrualError{CreditoID: oc.CreditoID, Error: err.Error()})
				s.logger.ErrorContext(ctx, "late fee accrual failed", "credito_id", oc.CreditoID, "error", err)
			case skipped:
				res.Skipped++
			default:
				res.CreditsUpdated++
				s.invalidate(ctx, oc.CreditoID)
			}
		}
	}

	s.metrics.RecordLateFeeRun(res.CreditsUpdated, res.Skipped, res.Failed)
	s.logger.InfoContext(ctx, "late fee accrual finished",
		"as_of", today,
		"updated", res.CreditsUpdated,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

func (s *LateFeeService) accrueOne(ctx context.Context, oc domain.OverdueCount, today string) (bool, error) {
	skipped := false
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		credit, err := s.lockCredit(ctx, oc.CreditoID)
		if err != nil {
			return err
		}
		// 加锁后状态可能已变化
		if !credit.StatusCredit.AccruesLateFees() {
			skipped = true
			return nil
		}
		existing, err := s.repos.LateFees.GetByCreditForUpdate(ctx, credit.ID)
		if err != nil {
			return err
		}
		fee, amount, outcome := domain.Accrue(existing, credit.ID, credit.Capital, oc.Cuotas, today)
		if outcome == domain.AccrualSkipped {
			skipped = true
			return nil
		}
		if err := s.repos.LateFees.Save(ctx, fee); err != nil {
			return err
		}
		if credit.StatusCredit == domain.StatusActivo {
			credit.StatusCredit = domain.StatusMoroso
			if err := s.repos.Credits.Update(ctx, credit); err != nil {
				return err
			}
		}
		return s.appendEvent(ctx, credit.ID, domain.EventMoraAcumulada,
			domain.Deltas{Mora: amount},
			accrualPayload{
				CuotasAtrasadas: oc.Cuotas,
				MoraNueva:       amount,
				MontoMora:       fee.MontoMora,
				Fecha:           today,
			})
	})
	return skipped, err
}

// WaiveLateFee 免除信贷当前有效的滞纳金
func (s *LateFeeService) WaiveLateFee(ctx context.Context, cmd WaiveLateFeeCommand) (*domain.LateFeeWaiver, error) {
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	var waiver *domain.LateFeeWaiver
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		credit, err := s.lockCredit(ctx, cmd.CreditoID)
		if err != nil {
			return err
		}
		if credit.StatusCredit.IsTerminal() {
			return domain.NewConflictError("CREDIT_CLOSED", fmt.Sprintf("credit %d is %s", credit.ID, credit.StatusCredit))
		}
		waiver, err = s.waiveInTx(ctx, credit, cmd.Motivo, cmd.Usuario)
		if err != nil {
			return err
		}
		if waiver == nil {
			return domain.NewNotFoundError("LATE_FEE_NOT_FOUND", fmt.Sprintf("credit %d has no active late fee", credit.ID))
		}
		if credit.StatusCredit == domain.StatusMoroso {
			credit.StatusCredit = domain.StatusActivo
			return s.repos.Credits.Update(ctx, credit)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to waive late fee", "credito_id", cmd.CreditoID, "error", err)
		return nil, err
	}
	s.invalidate(ctx, cmd.CreditoID)
	s.logger.InfoContext(ctx, "late fee waived",
		"credito_id", cmd.CreditoID,
		"monto_condonado", waiver.MontoCondonado.String(),
		"usuario", waiver.Usuario)
	return waiver, nil
}

// waiveInTx 在当前事务中免除滞纳金；没有有效滞纳金时返回 nil
func (c *core) waiveInTx(ctx context.Context, credit *domain.Credit, motivo, usuario string) (*domain.LateFeeWaiver, error) {
	fee, err := c.repos.LateFees.GetByCreditForUpdate(ctx, credit.ID)
	if err != nil {
		return nil, err
	}
	if fee == nil || !fee.Activa {
		return nil, nil
	}
	waived := fee.Waive()
	if err := c.repos.LateFees.Save(ctx, fee); err != nil {
		return nil, err
	}
	w := &domain.LateFeeWaiver{
		CreditoID:      credit.ID,
		MoraID:         fee.ID,
		Motivo:         motivo,
		MontoCondonado: waived,
		Usuario:        usuario,
	}
	if err := c.repos.LateFees.CreateWaiver(ctx, w); err != nil {
		return nil, err
	}
	if err := c.appendEvent(ctx, credit.ID, domain.EventMoraCondonada,
		domain.Deltas{Mora: waived.Neg()},
		map[string]any{"motivo": motivo, "monto_condonado": waived}); err != nil {
		return nil, err
	}
	return w, nil
}
