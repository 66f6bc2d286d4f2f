package application_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

func TestTransitionCreditStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-301", false)

	steps := []struct {
		name string
		cmd  application.TransitionCommand
		kind domain.ErrorKind
		want domain.CreditStatus
	}{
		{"unknown action", application.TransitionCommand{CreditoID: c.ID, Accion: "BORRAR"}, domain.KindValidation, ""},
		{"activate an active credit", application.TransitionCommand{CreditoID: c.ID, Accion: "ACTIVAR"}, domain.KindConflict, ""},
		{"mark overdue", application.TransitionCommand{CreditoID: c.ID, Accion: "moroso"}, 0, domain.StatusMoroso},
		{"pending needs motive", application.TransitionCommand{CreditoID: c.ID, Accion: "PENDIENTE_CANCELACION"}, domain.KindValidation, ""},
		{"pending cancellation", application.TransitionCommand{CreditoID: c.ID, Accion: "PENDIENTE_CANCELACION", Motivo: "cliente solicita"}, 0, domain.StatusPendienteCancelacion},
		{"reactivate", application.TransitionCommand{CreditoID: c.ID, Accion: "ACTIVAR"}, 0, domain.StatusActivo},
		{"cancel needs amount", application.TransitionCommand{CreditoID: c.ID, Accion: "CANCELAR", Motivo: "pagado"}, domain.KindValidation, ""},
	}
	for _, st := range steps {
		_, err := f.lifecycle.TransitionCreditStatus(ctx, st.cmd)
		if st.kind != 0 {
			if domain.KindOf(err) != st.kind {
				t.Fatalf("%s: error = %v, want %s", st.name, err, st.kind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: error = %v", st.name, err)
		}
		if got := f.credit(t, c.ID); got.StatusCredit != st.want {
			t.Fatalf("%s: status = %s, want %s", st.name, got.StatusCredit, st.want)
		}
	}

	snap, err := f.lifecycle.TransitionCreditStatus(ctx, application.TransitionCommand{
		CreditoID: c.ID,
		Accion:    "CANCELAR",
		Motivo:    "pago total",
		Monto:     ptr(d("1016.8")),
		Extras: []domain.ExtraChargeInput{
			{Concepto: "gastos legales", Monto: d("25")},
			{Concepto: "descuento", Monto: d("-5")},
		},
	})
	if err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	if snap == nil || snap.Tipo != domain.ClosureCancellation || !snap.Monto.Equal(d("1016.8")) {
		t.Errorf("snapshot = %+v", snap)
	}
	if !slices.Contains(f.cache.invalidated, c.ID) {
		t.Error("closure cache should be invalidated")
	}

	_, err = f.lifecycle.TransitionCreditStatus(ctx, application.TransitionCommand{
		CreditoID: c.ID, Accion: "INCOBRABLE", Motivo: "x", Monto: ptr(d("1")),
	})
	wantKind(t, err, domain.KindConflict)
	_, err = f.payments.ApplyPayment(ctx, application.ApplyPaymentCommand{CreditoID: c.ID, NumeroCuota: 1, MontoBoleta: d("150")})
	wantKind(t, err, domain.KindConflict)

	detail, err := f.lifecycle.GetClosureDetail(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClosureDetail() error = %v", err)
	}
	if detail.Snapshot == nil || len(detail.Extras) != 2 || !detail.TotalExtras.Equal(d("20")) {
		t.Errorf("detail = %+v", detail)
	}
	// 1016.8 + 0 − 0，再加附加金额 20
	if !detail.SaldoTotal.Equal(d("1016.8")) || !detail.SaldoTotalConExtras.Equal(d("1036.8")) {
		t.Errorf("saldo_total = %s / %s", detail.SaldoTotal, detail.SaldoTotalConExtras)
	}
	if f.cache.items[c.ID] == nil {
		t.Error("closure detail should be cached")
	}
	cached, _ := f.lifecycle.GetClosureDetail(ctx, c.ID)
	if cached != f.cache.items[c.ID] {
		t.Error("second read should come from the cache")
	}
}

func TestClosureDetailOverdueAndQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-302", false)
	f.clock.Set(time.Date(2025, 4, 5, 9, 0, 0, 0, time.UTC))

	detail, err := f.lifecycle.GetClosureDetail(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClosureDetail() error = %v", err)
	}
	if len(detail.CuotasVencidas) != 2 || detail.Snapshot != nil {
		t.Errorf("overdue = %d, snapshot = %+v", len(detail.CuotasVencidas), detail.Snapshot)
	}

	q, err := f.lifecycle.CancellationQuote(ctx, c.ID)
	if err != nil {
		t.Fatalf("CancellationQuote() error = %v", err)
	}
	// 1000 + 15×2 + 1.8×2
	if q.CuotasPendientes != 2 || !q.Total.Equal(d("1033.6")) {
		t.Errorf("quote = %+v", q)
	}
	_, err = f.lifecycle.CancellationQuote(ctx, 999)
	wantKind(t, err, domain.KindNotFound)
}
