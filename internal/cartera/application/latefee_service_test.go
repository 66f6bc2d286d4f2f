package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

func TestAccrueLateFeesIdempotentPerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	overdue := []*domain.Credit{
		f.originate(t, "CR-101", false),
		f.originate(t, "CR-102", false),
		f.originate(t, "CR-103", false),
	}
	current := f.originate(t, "CR-104", false)
	f.pay(t, current.ID, 1, "150", "0")

	day := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	res, err := f.lateFees.AccrueLateFees(ctx, day)
	if err != nil {
		t.Fatalf("AccrueLateFees() error = %v", err)
	}
	if res.AsOf != "2025-03-05" || res.CreditsUpdated != 3 || res.Skipped != 0 || res.Failed != 0 {
		t.Fatalf("first run = %+v", res)
	}
	for _, c := range overdue {
		fee, _ := f.repos.LateFees.GetByCredit(ctx, c.ID)
		if fee == nil || !fee.MontoMora.Equal(d("11.2")) || fee.CuotasAtrasadas != 1 {
			t.Errorf("credit %d fee = %+v", c.ID, fee)
		}
		if got := f.credit(t, c.ID); got.StatusCredit != domain.StatusMoroso {
			t.Errorf("credit %d status = %s, want MOROSO", c.ID, got.StatusCredit)
		}
	}
	if fee, _ := f.repos.LateFees.GetByCredit(ctx, current.ID); fee != nil {
		t.Errorf("current credit should not accrue: %+v", fee)
	}

	res, err = f.lateFees.AccrueLateFees(ctx, day.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if res.CreditsUpdated != 0 || res.Skipped != 3 {
		t.Errorf("same-day rerun = %+v, want 3 skipped", res)
	}
	fee, _ := f.repos.LateFees.GetByCredit(ctx, overdue[0].ID)
	if !fee.MontoMora.Equal(d("11.2")) {
		t.Errorf("monto_mora after rerun = %s, want 11.2", fee.MontoMora)
	}

	res, err = f.lateFees.AccrueLateFees(ctx, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("next-day run error = %v", err)
	}
	if res.CreditsUpdated != 3 {
		t.Errorf("next-day run = %+v", res)
	}
	fee, _ = f.repos.LateFees.GetByCredit(ctx, overdue[0].ID)
	if !fee.MontoMora.Equal(d("22.4")) {
		t.Errorf("monto_mora next day = %s, want 22.4", fee.MontoMora)
	}
	f.assertConsistent(t, overdue[0].ID)
}

func TestAccrueLateFeesCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.originate(t, "CR-111", false)
	cancel()

	res, err := f.lateFees.AccrueLateFees(ctx, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("cancelled context should stop the run")
	}
	if res != nil && res.CreditsUpdated != 0 {
		t.Errorf("cancelled run updated %d credits", res.CreditsUpdated)
	}
}

func TestWaiveLateFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-121", false)

	_, err := f.lateFees.WaiveLateFee(ctx, application.WaiveLateFeeCommand{CreditoID: c.ID, Motivo: "cortesia"})
	wantKind(t, err, domain.KindNotFound)

	if _, err := f.lateFees.AccrueLateFees(ctx, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("AccrueLateFees() error = %v", err)
	}
	_, err = f.lateFees.WaiveLateFee(ctx, application.WaiveLateFeeCommand{CreditoID: c.ID})
	wantKind(t, err, domain.KindValidation)

	w, err := f.lateFees.WaiveLateFee(ctx, application.WaiveLateFeeCommand{CreditoID: c.ID, Motivo: "cortesia", Usuario: "gerencia"})
	if err != nil {
		t.Fatalf("WaiveLateFee() error = %v", err)
	}
	if !w.MontoCondonado.Equal(d("11.2")) || w.Usuario != "gerencia" {
		t.Errorf("waiver = %+v", w)
	}
	if got := f.credit(t, c.ID); got.StatusCredit != domain.StatusActivo {
		t.Errorf("status = %s, want ACTIVO", got.StatusCredit)
	}
	fee, _ := f.repos.LateFees.GetByCredit(ctx, c.ID)
	if fee.Activa || !fee.MontoMora.IsZero() {
		t.Errorf("fee after waive = %+v", fee)
	}
	f.assertConsistent(t, c.ID)
}

func TestLateFeeJobRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	if _, err := application.NewLateFeeJob(f.lateFees, "not a cron", time.UTC, time.Minute); err == nil {
		t.Error("invalid cron schedule should fail")
	}
	job, err := application.NewLateFeeJob(f.lateFees, "0 1 * * *", time.UTC, time.Minute)
	if err != nil {
		t.Fatalf("NewLateFeeJob() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)
	cancel()
}
