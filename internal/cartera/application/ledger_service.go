package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// LedgerService 账务事件回放与对账
type LedgerService struct {
	core
}

// NewLedgerService 创建对账服务
func NewLedgerService(deps Dependencies) *LedgerService {
	return &LedgerService{core: newCore(deps)}
}

// ReconciliationReport 事件回放与物化余额的对比
type ReconciliationReport struct {
	CreditoID     uint            `json:"credito_id"`
	Eventos       int             `json:"eventos"`
	Ledger        domain.Balances `json:"ledger"`
	Materializado domain.Balances `json:"materializado"`
	Diferencia    domain.Balances `json:"diferencia"`
	Consistente   bool            `json:"consistente"`
}

// Reconcile 回放信贷的事件日志并与当前余额比较。
// saldo a favor 属于借款人，按其名下全部信贷的事件汇总比较。
func (s *LedgerService) Reconcile(ctx context.Context, creditID uint) (*ReconciliationReport, error) {
	credit, err := s.loadCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	events, err := s.repos.Events.ListByCredits(ctx, []uint{credit.ID})
	if err != nil {
		return nil, err
	}
	replayed := domain.Replay(events)

	borrowerCredits, err := s.repos.Credits.ListIDsByBorrower(ctx, credit.UsuarioID)
	if err != nil {
		return nil, err
	}
	borrowerEvents, err := s.repos.Events.ListByCredits(ctx, borrowerCredits)
	if err != nil {
		return nil, err
	}
	replayed.SaldoAFavor = domain.Replay(borrowerEvents).SaldoAFavor

	actual := domain.Balances{Capital: credit.Capital, SaldoAFavor: decimal.Zero, Mora: decimal.Zero}
	borrower, err := s.repos.Parties.GetBorrower(ctx, credit.UsuarioID)
	if err != nil {
		return nil, err
	}
	if borrower != nil {
		actual.SaldoAFavor = borrower.SaldoAFavor
	}
	fee, err := s.repos.LateFees.GetByCredit(ctx, credit.ID)
	if err != nil {
		return nil, err
	}
	if fee != nil && fee.Activa {
		actual.Mora = fee.MontoMora
	}

	diff := domain.Balances{
		Capital:     actual.Capital.Sub(replayed.Capital),
		SaldoAFavor: actual.SaldoAFavor.Sub(replayed.SaldoAFavor),
		Mora:        actual.Mora.Sub(replayed.Mora),
	}
	report := &ReconciliationReport{
		CreditoID:     credit.ID,
		Eventos:       len(events),
		Ledger:        replayed,
		Materializado: actual,
		Diferencia:    diff,
		Consistente:   diff.Capital.IsZero() && diff.SaldoAFavor.IsZero() && diff.Mora.IsZero(),
	}
	if !report.Consistente {
		s.logger.WarnContext(ctx, "ledger drift detected",
			"credito_id", credit.ID,
			"capital", diff.Capital.String(),
			"saldo_a_favor", diff.SaldoAFavor.String(),
			"mora", diff.Mora.String())
	}
	return report, nil
}
