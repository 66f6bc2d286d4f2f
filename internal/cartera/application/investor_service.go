package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

const settlementPageSize = 100

// InvestorService 投资人结算
type InvestorService struct {
	core
}

// NewInvestorService 创建投资人结算服务
func NewInvestorService(deps Dependencies) *InvestorService {
	return &InvestorService{core: newCore(deps)}
}

// SettlementError 单条分配行结算失败
type SettlementError struct {
	PagoInversionistaID uint   `json:"pago_inversionista_id"`
	Error               string `json:"error"`
}

// SettlementResult 批量结算结果
type SettlementResult struct {
	InversionistaID uint                     `json:"inversionista_id"`
	Tratamiento     string                   `json:"tratamiento"`
	Count           int                      `json:"count"`
	Failed          int                      `json:"failed"`
	Totals          domain.SettlementAmounts `json:"totals"`
	Errors          []SettlementError        `json:"errors"`
}

// SettlementLine 单条分配行的结算
type SettlementLine struct {
	PagoID          uint                     `json:"pago_id"`
	InversionistaID uint                     `json:"inversionista_id"`
	Tratamiento     string                   `json:"tratamiento"`
	Amounts         domain.SettlementAmounts `json:"amounts"`
	CuotaLiquidada  bool                     `json:"cuota_liquidada"`
}

// InvestorSummary 投资人待结算汇总
type InvestorSummary struct {
	InversionistaID uint                     `json:"inversionista_id"`
	Nombre          string                   `json:"nombre"`
	Tratamiento     string                   `json:"tratamiento"`
	Pendientes      int                      `json:"pendientes"`
	Totals          domain.SettlementAmounts `json:"totals"`
}

func (s *InvestorService) investor(ctx context.Context, id uint) (*domain.Investor, error) {
	inv, err := s.repos.Parties.GetInvestor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load investor %d: %w", id, err)
	}
	if inv == nil {
		return nil, domain.NewNotFoundError("INVESTOR_NOT_FOUND", fmt.Sprintf("investor %d not found", id))
	}
	return inv, nil
}

// SettleInvestorPayments 结算投资人全部未结算分配行，每行独立事务
func (s *InvestorService) SettleInvestorPayments(ctx context.Context, investorID uint) (*SettlementResult, error) {
	inv, err := s.investor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	treatment := inv.TaxTreatment()
	res := &SettlementResult{
		InversionistaID: investorID,
		Tratamiento:     treatment.String(),
		Totals:          domain.ZeroSettlement(),
		Errors:          []SettlementError{},
	}

	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordSettlement(res.Count, res.Failed)
			return res, err
		}
		rows, err := s.repos.InvestorPayments.ListPending(ctx, investorID, afterID, settlementPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending investor payments: %w", err)
		}
		for _, row := range rows {
			settled, _, err := s.settleRow(ctx, row, treatment)
			switch {
			case err != nil:
				res.Failed++
				res.Errors = append(res.Errors, SettlementError{PagoInversionistaID: row.ID, Error: err.Error()})
				s.logger.ErrorContext(ctx, "investor settlement failed", "pago_inversionista_id", row.ID, "error", err)
			case settled:
				res.Count++
				res.Totals = res.Totals.Add(treatment.Settle(row))
			}
		}
		if len(rows) < settlementPageSize {
			break
		}
		afterID = rows[len(rows)-1].ID
	}

	s.metrics.RecordSettlement(res.Count, res.Failed)
	s.logger.InfoContext(ctx, "investor payments settled",
		"inversionista_id", investorID,
		"count", res.Count,
		"failed", res.Failed,
		"neto", res.Totals.Neto.String())
	return res, nil
}

// SettlePending 依次结算所有存在未结算分配行的投资人，单个投资人失败不影响其余
func (s *InvestorService) SettlePending(ctx context.Context) ([]*SettlementResult, error) {
	ids, err := s.repos.InvestorPayments.ListPendingInvestorIDs(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*SettlementResult, 0, len(ids))
	for _, id := range ids {
		res, err := s.SettleInvestorPayments(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			s.logger.ErrorContext(ctx, "investor settlement run failed", "inversionista_id", id, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// SettlePayment 结算单个还款在某投资人上的分配，已结算返回 ConflictError
func (s *InvestorService) SettlePayment(ctx context.Context, paymentID, investorID uint) (*SettlementLine, error) {
	inv, err := s.investor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	row, err := s.repos.InvestorPayments.Get(ctx, paymentID, investorID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.NewNotFoundError("INVESTOR_PAYMENT_NOT_FOUND",
			fmt.Sprintf("payment %d has no allocation for investor %d", paymentID, investorID))
	}
	if row.EstadoLiquidacion == domain.SettlementDone {
		return nil, settledConflict(paymentID, investorID)
	}
	treatment := inv.TaxTreatment()
	settled, cuota, err := s.settleRow(ctx, row, treatment)
	if err != nil {
		return nil, err
	}
	if !settled {
		return nil, settledConflict(paymentID, investorID)
	}
	s.metrics.RecordSettlement(1, 0)
	return &SettlementLine{
		PagoID:          paymentID,
		InversionistaID: investorID,
		Tratamiento:     treatment.String(),
		Amounts:         treatment.Settle(row),
		CuotaLiquidada:  cuota,
	}, nil
}

func settledConflict(paymentID, investorID uint) error {
	return domain.NewConflictError("ALREADY_SETTLED",
		fmt.Sprintf("payment %d is already settled for investor %d", paymentID, investorID))
}

// settleRow 条件更新一条分配行；该还款全部结算后标记分期
func (s *InvestorService) settleRow(ctx context.Context, row *domain.InvestorPayment, treatment domain.TaxTreatment) (bool, bool, error) {
	var settled, cuotaDone bool
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		now := s.now()
		ok, err := s.repos.InvestorPayments.MarkSettled(ctx, row.ID, now)
		if err != nil || !ok {
			return err
		}
		settled = true
		amounts := treatment.Settle(row)
		if err := s.appendEvent(ctx, row.CreditoID, domain.EventLiquidacionInversor, domain.Deltas{},
			map[string]any{
				"pago_id":          row.PagoID,
				"inversionista_id": row.InversionistaID,
				"tratamiento":      treatment.String(),
				"neto":             amounts.Neto,
				"isr":              amounts.ISR,
			}); err != nil {
			return err
		}

		all, err := s.repos.InvestorPayments.AllSettled(ctx, row.PagoID)
		if err != nil || !all {
			return err
		}
		p, err := s.repos.Payments.Get(ctx, row.PagoID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.NewInvariantViolation("PAYMENT_MISSING",
				fmt.Sprintf("investor payment %d references missing payment %d", row.ID, row.PagoID))
		}
		cuotaDone = true
		return s.repos.Installments.MarkInvestorsSettled(ctx, p.CuotaID, now)
	})
	if err != nil {
		return false, false, err
	}
	if settled {
		row.EstadoLiquidacion = domain.SettlementDone
	}
	return settled, cuotaDone, nil
}

// InvestorSummary 汇总投资人未结算金额
func (s *InvestorService) InvestorSummary(ctx context.Context, investorID uint) (*InvestorSummary, error) {
	inv, err := s.investor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	treatment := inv.TaxTreatment()
	sum := &InvestorSummary{
		InversionistaID: inv.ID,
		Nombre:          inv.Nombre,
		Tratamiento:     treatment.String(),
		Totals:          domain.ZeroSettlement(),
	}
	var afterID uint
	for {
		rows, err := s.repos.InvestorPayments.ListPending(ctx, investorID, afterID, settlementPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending investor payments: %w", err)
		}
		for _, row := range rows {
			sum.Pendientes++
			sum.Totals = sum.Totals.Add(treatment.Settle(row))
		}
		if len(rows) < settlementPageSize {
			return sum, nil
		}
		afterID = rows[len(rows)-1].ID
	}
}

// ListInvestors 分页查询投资人
func (s *InvestorService) ListInvestors(ctx context.Context, limit, offset int) ([]*domain.Investor, int64, error) {
	return s.repos.Parties.ListInvestors(ctx, limit, offset)
}
