package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

func TestSettleInvestorPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-201", true)
	p := f.pay(t, c.ID, 1, "150", "0")

	rows, _ := f.repos.Credits.ListInvestors(ctx, c.ID)
	invA, invB := rows[0].InversionistaID, rows[1].InversionistaID

	sum, err := f.investors.InvestorSummary(ctx, invB)
	if err != nil {
		t.Fatalf("InvestorSummary() error = %v", err)
	}
	if sum.Pendientes != 1 || sum.Tratamiento != "ISR" || !sum.Totals.Neto.Equal(d("56.7")) {
		t.Errorf("summary = %+v", sum)
	}

	res, err := f.investors.SettleInvestorPayments(ctx, invA)
	if err != nil {
		t.Fatalf("SettleInvestorPayments() error = %v", err)
	}
	// 开票投资人：79.92 + 5.4 + 0.65
	if res.Count != 1 || res.Failed != 0 || !res.Totals.Neto.Equal(d("85.97")) || res.Tratamiento != "FACTURA" {
		t.Errorf("settlement = %+v", res)
	}
	inst, _ := f.repos.Installments.Get(ctx, c.ID, 1)
	if inst.LiquidadoInversionistas {
		t.Error("installment should wait for every investor")
	}

	again, err := f.investors.SettleInvestorPayments(ctx, invA)
	if err != nil || again.Count != 0 {
		t.Errorf("second run = %+v, %v; want nothing settled", again, err)
	}

	line, err := f.investors.SettlePayment(ctx, p.ID, invB)
	if err != nil {
		t.Fatalf("SettlePayment() error = %v", err)
	}
	// 预扣：53.28 + 3.6 − 0.18
	if !line.Amounts.Neto.Equal(d("56.7")) || !line.Amounts.ISR.Equal(d("0.18")) || !line.CuotaLiquidada {
		t.Errorf("line = %+v", line)
	}
	inst, _ = f.repos.Installments.Get(ctx, c.ID, 1)
	if !inst.LiquidadoInversionistas || inst.FechaLiquidacionInversionistas == nil {
		t.Error("installment should be marked settled for investors")
	}

	_, err = f.investors.SettlePayment(ctx, p.ID, invB)
	wantKind(t, err, domain.KindConflict)
	_, err = f.investors.SettleInvestorPayments(ctx, 999)
	wantKind(t, err, domain.KindNotFound)

	// 已结算的还款不可冲正
	wantKind(t, f.payments.ReversePayment(ctx, p.ID), domain.KindConflict)
}

func TestSettlePendingCoversEveryInvestor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.originate(t, "CR-210", true)
	c2 := f.originate(t, "CR-211", true)
	f.pay(t, c1.ID, 1, "150", "0")
	f.pay(t, c2.ID, 1, "150", "0")

	results, err := f.investors.SettlePending(ctx)
	if err != nil {
		t.Fatalf("SettlePending() error = %v", err)
	}
	settled := 0
	for _, r := range results {
		settled += r.Count
		if r.Failed != 0 {
			t.Errorf("investor %d failed rows = %d", r.InversionistaID, r.Failed)
		}
	}
	if len(results) != 2 || settled != 4 {
		t.Errorf("settled %d rows across %d investors, want 4 across 2", settled, len(results))
	}
	for _, c := range []*domain.Credit{c1, c2} {
		inst, _ := f.repos.Installments.Get(ctx, c.ID, 1)
		if !inst.LiquidadoInversionistas {
			t.Errorf("installment 1 of credit %d should be settled", c.ID)
		}
	}

	again, err := f.investors.SettlePending(ctx)
	if err != nil || len(again) != 0 {
		t.Errorf("second run = %d investors, %v; want none", len(again), err)
	}
}

func TestSettlementJobSchedule(t *testing.T) {
	f := newFixture(t)
	if _, err := application.NewSettlementJob(f.investors, "every day", time.UTC, time.Minute); err == nil {
		t.Error("invalid cron schedule should fail")
	}
	job, err := application.NewSettlementJob(f.investors, "0 2 * * *", time.UTC, time.Minute)
	if err != nil {
		t.Fatalf("NewSettlementJob() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)
	cancel()
}
