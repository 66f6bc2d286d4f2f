package application_test

import (
	"context"
	"testing"

	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

func TestPaymentAgreementLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-201", false)
	short := f.pay(t, c.ID, 1, "80", "0")
	if short.Pagado {
		t.Fatal("an 80 payment must not cover a 150 installment")
	}

	a, err := f.agreements.CreatePaymentAgreement(ctx, application.CreateAgreementCommand{
		CreditoID:   c.ID,
		PagoIDs:     []uint{short.ID},
		MontoTotal:  d("1000"),
		NumeroMeses: 3,
		Motivo:      "reestructura",
	})
	if err != nil {
		t.Fatalf("CreatePaymentAgreement() error = %v", err)
	}
	if a.CuotaMensual.StringFixed(2) != "333.33" || a.CuotaFinal.StringFixed(2) != "333.34" {
		t.Errorf("split = %s / %s, want 333.33 / 333.34", a.CuotaMensual, a.CuotaFinal)
	}
	// 创建日 1 月 10 日，首期为当月 15 号，之后在 30/15 间交替
	wantDates := []string{"2025-01-15", "2025-01-30", "2025-02-15"}
	for i, q := range a.Cuotas {
		if q.FechaVencimiento != wantDates[i] {
			t.Errorf("cuota %d due %s, want %s", q.NumeroCuota, q.FechaVencimiento, wantDates[i])
		}
	}
	if got := f.credit(t, c.ID).StatusCredit; got != domain.StatusEnConvenio {
		t.Fatalf("status = %s, want EN_CONVENIO", got)
	}

	_, err = f.agreements.CreatePaymentAgreement(ctx, application.CreateAgreementCommand{
		CreditoID: c.ID, PagoIDs: []uint{short.ID}, MontoTotal: d("10"), NumeroMeses: 1,
	})
	wantKind(t, err, domain.KindConflict)

	_, err = f.payments.ApplyPayment(ctx, application.ApplyPaymentCommand{CreditoID: c.ID, NumeroCuota: 2, MontoBoleta: d("150")})
	wantKind(t, err, domain.KindConflict)

	steps := []struct {
		monto     string
		pendiente string
		completo  bool
	}{
		{"333.33", "666.67", false},
		{"400", "333.34", false},
		{"333.34", "0.00", true},
	}
	for i, st := range steps {
		view, err := f.agreements.ApplyAgreementPayment(ctx, application.ApplyAgreementPaymentCommand{CreditoID: c.ID, Monto: d(st.monto)})
		if err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
		if view.MontoPendiente.StringFixed(2) != st.pendiente || view.Completado != st.completo {
			t.Errorf("step %d: pendiente %s completado %v, want %s %v", i, view.MontoPendiente, view.Completado, st.pendiente, st.completo)
		}
		if view.CuotaPagada != i+1 {
			t.Errorf("step %d paid cuota %d, want %d", i, view.CuotaPagada, i+1)
		}
	}

	if got := f.credit(t, c.ID).StatusCredit; got != domain.StatusActivo {
		t.Errorf("status after completion = %s, want ACTIVO", got)
	}
	got, err := f.agreements.GetAgreement(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAgreement() error = %v", err)
	}
	if !got.Progreso.Equal(d("100")) || got.IsOpen() {
		t.Errorf("progress = %s open = %v", got.Progreso, got.IsOpen())
	}

	_, err = f.agreements.ApplyAgreementPayment(ctx, application.ApplyAgreementPaymentCommand{CreditoID: c.ID, Monto: d("1")})
	wantKind(t, err, domain.KindNotFound)
	f.assertConsistent(t, c.ID)
}

func TestPartialAgreementPaymentKeepsInstallmentOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-202", false)
	short := f.pay(t, c.ID, 1, "50", "0")
	if _, err := f.agreements.CreatePaymentAgreement(ctx, application.CreateAgreementCommand{
		CreditoID: c.ID, PagoIDs: []uint{short.ID}, MontoTotal: d("300"), NumeroMeses: 2,
	}); err != nil {
		t.Fatalf("CreatePaymentAgreement() error = %v", err)
	}
	view, err := f.agreements.ApplyAgreementPayment(ctx, application.ApplyAgreementPaymentCommand{CreditoID: c.ID, Monto: d("100")})
	if err != nil {
		t.Fatalf("ApplyAgreementPayment() error = %v", err)
	}
	if view.CuotaPagada != 0 || view.PagosPendientes != 2 || !view.Aplicado.Equal(d("100")) {
		t.Errorf("partial payment view = %+v", view)
	}
	if view.Progreso.StringFixed(2) != "33.33" {
		t.Errorf("progress = %s, want 33.33", view.Progreso)
	}
}

func TestCreatePaymentAgreementRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-210", false)
	other := f.originate(t, "CR-211", false)
	full := f.pay(t, c.ID, 1, "150", "0")
	foreign := f.pay(t, other.ID, 1, "20", "0")

	tests := []struct {
		name string
		cmd  application.CreateAgreementCommand
		kind domain.ErrorKind
	}{
		{"no payments", application.CreateAgreementCommand{CreditoID: c.ID, MontoTotal: d("100"), NumeroMeses: 2}, domain.KindValidation},
		{"zero months", application.CreateAgreementCommand{CreditoID: c.ID, PagoIDs: []uint{full.ID}, MontoTotal: d("100")}, domain.KindValidation},
		{"zero total", application.CreateAgreementCommand{CreditoID: c.ID, PagoIDs: []uint{full.ID}, NumeroMeses: 2}, domain.KindValidation},
		{"paid payment", application.CreateAgreementCommand{CreditoID: c.ID, PagoIDs: []uint{full.ID}, MontoTotal: d("100"), NumeroMeses: 2}, domain.KindConflict},
		{"other credit", application.CreateAgreementCommand{CreditoID: c.ID, PagoIDs: []uint{foreign.ID}, MontoTotal: d("100"), NumeroMeses: 2}, domain.KindValidation},
		{"missing payment", application.CreateAgreementCommand{CreditoID: c.ID, PagoIDs: []uint{9999}, MontoTotal: d("100"), NumeroMeses: 2}, domain.KindNotFound},
		{"missing credit", application.CreateAgreementCommand{CreditoID: 9999, PagoIDs: []uint{full.ID}, MontoTotal: d("100"), NumeroMeses: 2}, domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.agreements.CreatePaymentAgreement(ctx, tt.cmd)
			wantKind(t, err, tt.kind)
		})
	}
	if got := f.credit(t, c.ID).StatusCredit; got != domain.StatusActivo {
		t.Errorf("rejected agreements changed status to %s", got)
	}
}
