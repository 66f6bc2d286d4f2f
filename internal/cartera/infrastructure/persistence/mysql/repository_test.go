package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	pkgdb "github.com/wyfcoding/cartera/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newCredit(numero string, usuarioID uint, status domain.CreditStatus) *domain.Credit {
	c := &domain.Credit{
		NumeroCredito:     numero,
		UsuarioID:         usuarioID,
		Capital:           decimal.RequireFromString("1000"),
		PorcentajeInteres: decimal.RequireFromString("1.5"),
		Cuota:             decimal.RequireFromString("150"),
		Plazo:             10,
		FormatoCredito:    domain.FormatIndividual,
		StatusCredit:      status,
		FechaCreacion:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	c.AmortizeTo(c.Capital)
	return c
}

func TestResolveBorrowerDeduplicates(t *testing.T) {
	db := openTestDB(t)
	repo := NewPartyRepository(db)
	ctx := context.Background()

	a, err := repo.ResolveBorrower(ctx, &domain.Borrower{Nombre: "José  Pérez"})
	if err != nil {
		t.Fatalf("ResolveBorrower() error = %v", err)
	}
	b, err := repo.ResolveBorrower(ctx, &domain.Borrower{Nombre: "jose perez"})
	if err != nil {
		t.Fatalf("ResolveBorrower() error = %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("ids differ: %d vs %d", a.ID, b.ID)
	}
	if b.Nombre != "José  Pérez" {
		t.Errorf("display name = %q, want original", b.Nombre)
	}
	if _, err := repo.ResolveBorrower(ctx, &domain.Borrower{Nombre: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank name error = %v", err)
	}
}

func TestSaveBorrowerBalanceVersion(t *testing.T) {
	db := openTestDB(t)
	repo := NewPartyRepository(db)
	ctx := context.Background()

	b, err := repo.ResolveBorrower(ctx, &domain.Borrower{Nombre: "Ana"})
	if err != nil {
		t.Fatalf("ResolveBorrower() error = %v", err)
	}
	stale := *b
	b.SaldoAFavor = decimal.RequireFromString("25")
	if err := repo.SaveBorrowerBalance(ctx, b); err != nil {
		t.Fatalf("SaveBorrowerBalance() error = %v", err)
	}
	if b.Version != 2 {
		t.Errorf("version = %d, want 2", b.Version)
	}
	stale.SaldoAFavor = decimal.RequireFromString("99")
	if err := repo.SaveBorrowerBalance(ctx, &stale); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stale update error = %v, want conflict", err)
	}
	got, err := repo.GetBorrower(ctx, b.ID)
	if err != nil || !got.SaldoAFavor.Equal(decimal.RequireFromString("25")) {
		t.Errorf("saldo = %v, %v", got, err)
	}
}

func TestCreditUpdateOptimisticLock(t *testing.T) {
	db := openTestDB(t)
	repo := NewCreditRepository(db)
	ctx := context.Background()

	c := newCredit("C-1", 1, domain.StatusActivo)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	loaded, err := repo.GetForUpdate(ctx, c.ID)
	if err != nil || loaded == nil {
		t.Fatalf("GetForUpdate() = %v, %v", loaded, err)
	}
	loaded.StatusCredit = domain.StatusMoroso
	if err := repo.Update(ctx, loaded); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	c.StatusCredit = domain.StatusCancelado
	if err := repo.Update(ctx, c); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stale Update() error = %v, want conflict", err)
	}

	missing, err := repo.Get(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestCountOverdue(t *testing.T) {
	db := openTestDB(t)
	credits := NewCreditRepository(db)
	installments := NewInstallmentRepository(db)
	ctx := context.Background()

	active := newCredit("C-1", 1, domain.StatusActivo)
	closed := newCredit("C-2", 1, domain.StatusCancelado)
	for _, c := range []*domain.Credit{active, closed} {
		if err := credits.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := installments.CreateBatch(ctx, domain.BuildSchedule(c.ID, 3, c.FechaCreacion, time.UTC)); err != nil {
			t.Fatalf("CreateBatch() error = %v", err)
		}
	}

	// 2025-03-15：第 1 期（02-28）逾期，第 2 期（03-30）未到期
	counts, err := installments.CountOverdue(ctx, "2025-03-15", []domain.CreditStatus{domain.StatusActivo, domain.StatusMoroso})
	if err != nil {
		t.Fatalf("CountOverdue() error = %v", err)
	}
	if len(counts) != 1 || counts[0].CreditoID != active.ID || counts[0].Cuotas != 1 {
		t.Fatalf("counts = %+v", counts)
	}

	overdue, err := installments.ListOverdue(ctx, active.ID, "2025-04-01")
	if err != nil {
		t.Fatalf("ListOverdue() error = %v", err)
	}
	if len(overdue) != 2 {
		t.Errorf("overdue = %d, want 2", len(overdue))
	}

	third, err := installments.Get(ctx, active.ID, 3)
	if err != nil || third == nil {
		t.Fatalf("Get() = %v, %v", third, err)
	}
	if err := installments.SetPaid(ctx, third.ID, true); err != nil {
		t.Fatalf("SetPaid() error = %v", err)
	}
	if err := installments.DeleteUnpaidAfter(ctx, active.ID, 1); err != nil {
		t.Fatalf("DeleteUnpaidAfter() error = %v", err)
	}
	left, err := installments.ListByCredit(ctx, active.ID)
	if err != nil {
		t.Fatalf("ListByCredit() error = %v", err)
	}
	// 已付的第 3 期保留
	if len(left) != 3 || left[2].NumeroCuota != 3 {
		t.Errorf("installments after delete = %d", len(left))
	}
}

func TestInvestorPaymentSettlement(t *testing.T) {
	db := openTestDB(t)
	payments := NewPaymentRepository(db)
	rows := NewInvestorPaymentRepository(db)
	ctx := context.Background()

	p := &domain.Payment{CreditoID: 1, CuotaID: 1, NumeroCuota: 1, FechaPago: time.Now(), MesPagado: "2025-02", Facturacion: "si", StatusAntes: domain.StatusActivo}
	if err := payments.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ip := []*domain.InvestorPayment{
		{PagoID: p.ID, InversionistaID: 1, CreditoID: 1, EstadoLiquidacion: domain.SettlementPending},
		{PagoID: p.ID, InversionistaID: 2, CreditoID: 1, EstadoLiquidacion: domain.SettlementPending},
	}
	if err := rows.CreateBatch(ctx, ip); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	ids, err := rows.ListPendingInvestorIDs(ctx)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("ListPendingInvestorIDs() = %v, %v", ids, err)
	}

	pending, err := rows.ListPending(ctx, 1, 0, 100)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPending() = %d, %v", len(pending), err)
	}
	ok, err := rows.MarkSettled(ctx, pending[0].ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("MarkSettled() = %v, %v", ok, err)
	}
	ok, err = rows.MarkSettled(ctx, pending[0].ID, time.Now())
	if err != nil || ok {
		t.Errorf("second MarkSettled() = %v, %v; want false", ok, err)
	}
	ids, err = rows.ListPendingInvestorIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != 2 {
		t.Errorf("ListPendingInvestorIDs() after settle = %v, %v", ids, err)
	}
	all, err := rows.AllSettled(ctx, p.ID)
	if err != nil || all {
		t.Errorf("AllSettled() = %v, %v; want false", all, err)
	}

	latest, err := payments.LatestActive(ctx, 1)
	if err != nil || latest == nil || latest.ID != p.ID {
		t.Errorf("LatestActive() = %v, %v", latest, err)
	}
}

func TestLedgerEventOutbox(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerEventRepository(db)
	tm := pkgdb.NewTransactionManager(db)
	ctx := context.Background()

	err := tm.Transaction(ctx, func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			e, err := domain.NewLedgerEvent(1, domain.EventOriginacion, domain.Deltas{Capital: decimal.NewFromInt(10)}, nil, time.Now())
			if err != nil {
				return err
			}
			if err := repo.Append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}

	events, err := repo.ListUnpublished(ctx, 2)
	if err != nil || len(events) != 2 {
		t.Fatalf("ListUnpublished() = %d, %v", len(events), err)
	}
	if err := repo.MarkPublished(ctx, []uint{events[0].ID, events[1].ID}, time.Now()); err != nil {
		t.Fatalf("MarkPublished() error = %v", err)
	}
	rest, _ := repo.ListUnpublished(ctx, 10)
	if len(rest) != 1 {
		t.Errorf("remaining = %d, want 1", len(rest))
	}
	all, _ := repo.ListByCredits(ctx, []uint{1})
	if b := domain.Replay(all); !b.Capital.Equal(decimal.NewFromInt(30)) {
		t.Errorf("replayed capital = %s, want 30", b.Capital)
	}
}
