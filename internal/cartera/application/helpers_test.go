package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"github.com/wyfcoding/cartera/internal/cartera/infrastructure/persistence/mysql"
	pkgdb "github.com/wyfcoding/cartera/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeCache struct {
	mu          sync.Mutex
	items       map[uint]*domain.ClosureDetail
	invalidated []uint
}

func (c *fakeCache) Get(_ context.Context, id uint) (*domain.ClosureDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[id], nil
}

func (c *fakeCache) Set(_ context.Context, id uint, detail *domain.ClosureDetail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = detail
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, ids ...uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

type fixture struct {
	db    *gorm.DB
	repos application.Repositories
	clock *clock
	cache *fakeCache

	origination *application.OriginationService
	payments    *application.PaymentService
	lateFees    *application.LateFeeService
	investors   *application.InvestorService
	lifecycle   *application.LifecycleService
	agreements  *application.AgreementService
	ledger      *application.LedgerService
}

func newFixture(t *testing.T) *fixture {
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
	if err := mysql.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repos := application.Repositories{
		Parties:          mysql.NewPartyRepository(db),
		Credits:          mysql.NewCreditRepository(db),
		Installments:     mysql.NewInstallmentRepository(db),
		Payments:         mysql.NewPaymentRepository(db),
		InvestorPayments: mysql.NewInvestorPaymentRepository(db),
		LateFees:         mysql.NewLateFeeRepository(db),
		Closures:         mysql.NewClosureRepository(db),
		Agreements:       mysql.NewAgreementRepository(db),
		Events:           mysql.NewLedgerEventRepository(db),
	}
	clk := &clock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	cache := &fakeCache{items: map[uint]*domain.ClosureDetail{}}
	deps := application.Dependencies{
		Tx:        pkgdb.NewTransactionManager(db),
		Repos:     repos,
		Cache:     cache,
		Location:  time.UTC,
		BatchSize: 2,
		Now:       clk.Now,
	}
	return &fixture{
		db:          db,
		repos:       repos,
		clock:       clk,
		cache:       cache,
		origination: application.NewOriginationService(deps),
		payments:    application.NewPaymentService(deps),
		lateFees:    application.NewLateFeeService(deps),
		investors:   application.NewInvestorService(deps),
		lifecycle:   application.NewLifecycleService(deps),
		agreements:  application.NewAgreementService(deps),
		ledger:      application.NewLedgerService(deps),
	}
}

// originate 1000 @ 1.5%，10 期，月供 150，放款日 2025-01-10（第 1 期 2025-02-28 到期）
func (f *fixture) originate(t *testing.T, numero string, withInvestors bool) *domain.Credit {
	t.Helper()
	cmd := application.OriginateCreditCommand{
		NumeroCredito:     numero,
		Usuario:           application.BorrowerInput{Nombre: "Ana López " + numero},
		Asesor:            "Carlos Ruiz",
		Capital:           d("1000"),
		PorcentajeInteres: d("1.5"),
		Plazo:             10,
		Cuota:             ptr(d("150")),
		FechaCreacion:     time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	if withInvestors {
		cmd.Inversionistas = []application.InvestorInput{
			{Nombre: "Inversor A", MontoAportado: d("600"), PorcentajeCashIn: d("40"), PorcentajeParticipacionInversionista: d("60"), EmiteFactura: true},
			{Nombre: "Inversor B", MontoAportado: d("400"), PorcentajeCashIn: d("40"), PorcentajeParticipacionInversionista: d("60")},
		}
	}
	c, err := f.origination.OriginateCredit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("OriginateCredit() error = %v", err)
	}
	return c
}

func (f *fixture) credit(t *testing.T, id uint) *domain.Credit {
	t.Helper()
	c, err := f.repos.Credits.Get(context.Background(), id)
	if err != nil || c == nil {
		t.Fatalf("load credit %d: %v", id, err)
	}
	return c
}

func (f *fixture) borrower(t *testing.T, id uint) *domain.Borrower {
	t.Helper()
	b, err := f.repos.Parties.GetBorrower(context.Background(), id)
	if err != nil || b == nil {
		t.Fatalf("load borrower %d: %v", id, err)
	}
	return b
}

func (f *fixture) pay(t *testing.T, creditID uint, cuota int, boleta, mora string) *domain.Payment {
	t.Helper()
	p, err := f.payments.ApplyPayment(context.Background(), application.ApplyPaymentCommand{
		CreditoID:   creditID,
		NumeroCuota: cuota,
		MontoBoleta: d(boleta),
		Mora:        d(mora),
		Otros:       decimal.Zero,
	})
	if err != nil {
		t.Fatalf("ApplyPayment(%s) error = %v", boleta, err)
	}
	return p
}

func (f *fixture) assertConsistent(t *testing.T, creditID uint) {
	t.Helper()
	r, err := f.ledger.Reconcile(context.Background(), creditID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !r.Consistente {
		t.Errorf("ledger drift: ledger=%+v materializado=%+v", r.Ledger, r.Materializado)
	}
}

func wantKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	if domain.KindOf(err) != kind {
		t.Fatalf("error = %v, want kind %s", err, kind)
	}
}
