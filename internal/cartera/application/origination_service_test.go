package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

func TestOriginateCreditDerivesAmounts(t *testing.T) {
	f := newFixture(t)
	c, err := f.origination.OriginateCredit(context.Background(), application.OriginateCreditCommand{
		NumeroCredito:     "CR-101",
		Usuario:           application.BorrowerInput{Nombre: "María  Pérez", NIT: "1234567-8"},
		Asesor:            "Luis Gómez",
		Capital:           d("10000"),
		PorcentajeInteres: d("1.50"),
		Plazo:             12,
		Seguro:            d("50"),
		GPS:               d("20"),
	})
	if err != nil {
		t.Fatalf("OriginateCredit() error = %v", err)
	}
	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"cuota_interes", c.CuotaInteres.StringFixed(2), "150.00"},
		{"iva_12", c.IVA12.StringFixed(2), "18.00"},
		{"deudatotal", c.DeudaTotal.StringFixed(2), "10238.00"},
		// 10000/12 = 833.33，加利息、IVA、保险与 GPS
		{"cuota", c.Cuota.StringFixed(2), "1071.33"},
	}
	for _, ck := range checks {
		if ck.got != ck.want {
			t.Errorf("%s = %s, want %s", ck.field, ck.got, ck.want)
		}
	}
	if c.StatusCredit != domain.StatusActivo || c.FormatoCredito != domain.FormatIndividual {
		t.Errorf("status %s formato %s", c.StatusCredit, c.FormatoCredito)
	}

	view, err := f.origination.GetCredit(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetCredit() error = %v", err)
	}
	if len(view.Cuotas) != 13 {
		t.Fatalf("installments = %d, want 13", len(view.Cuotas))
	}
	if !view.Cuotas[0].Pagado || view.Cuotas[1].FechaVencimiento != "2025-02-28" {
		t.Errorf("schedule head = %+v, %+v", view.Cuotas[0], view.Cuotas[1])
	}
	f.assertConsistent(t, c.ID)
}

func TestOriginateCreditResolvesBorrowerByNormalizedName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := application.OriginateCreditCommand{
		Usuario:           application.BorrowerInput{Nombre: "José Álvarez"},
		Capital:           d("500"),
		PorcentajeInteres: d("2"),
		Plazo:             5,
	}
	first := base
	first.NumeroCredito = "CR-110"
	c1, err := f.origination.OriginateCredit(ctx, first)
	if err != nil {
		t.Fatalf("first credit error = %v", err)
	}
	second := base
	second.NumeroCredito = "CR-111"
	second.Usuario.Nombre = "  jose   alvarez "
	c2, err := f.origination.OriginateCredit(ctx, second)
	if err != nil {
		t.Fatalf("second credit error = %v", err)
	}
	if c1.UsuarioID != c2.UsuarioID {
		t.Errorf("borrowers %d and %d should be the same person", c1.UsuarioID, c2.UsuarioID)
	}
	if b := f.borrower(t, c1.UsuarioID); b.Nombre != "José Álvarez" {
		t.Errorf("display name = %q, want the first spelling", b.Nombre)
	}

	dup := base
	dup.NumeroCredito = "CR-110"
	_, err = f.origination.OriginateCredit(ctx, dup)
	wantKind(t, err, domain.KindConflict)
}

func TestOriginateCreditWithInvestors(t *testing.T) {
	f := newFixture(t)
	c := f.originate(t, "CR-120", true)
	if c.FormatoCredito != domain.FormatPool {
		t.Errorf("formato = %s, want Pool", c.FormatoCredito)
	}
	rows, err := f.repos.Credits.ListInvestors(context.Background(), c.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("investor rows = %d, %v", len(rows), err)
	}
	want := []struct {
		cuota, inversionista, cashIn, ivaInv, ivaCI string
	}{
		{"9.00", "5.40", "3.60", "0.65", "0.43"},
		{"6.00", "3.60", "2.40", "0.43", "0.29"},
	}
	for i, w := range want {
		r := rows[i]
		got := []string{
			r.CuotaInversionista.StringFixed(2),
			r.MontoInversionista.StringFixed(2),
			r.MontoCashIn.StringFixed(2),
			r.IVAInversionista.StringFixed(2),
			r.IVACashIn.StringFixed(2),
		}
		exp := []string{w.cuota, w.inversionista, w.cashIn, w.ivaInv, w.ivaCI}
		for j := range got {
			if got[j] != exp[j] {
				t.Errorf("row %d field %d = %s, want %s", i, j, got[j], exp[j])
			}
		}
		if r.Investor == nil {
			t.Errorf("row %d investor not preloaded", i)
		}
	}
}

func TestOriginateCreditRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := application.OriginateCreditCommand{
		NumeroCredito:     "CR-130",
		Usuario:           application.BorrowerInput{Nombre: "Pedro"},
		Capital:           d("1000"),
		PorcentajeInteres: d("1.5"),
		Plazo:             10,
	}
	tests := []struct {
		name   string
		mutate func(*application.OriginateCreditCommand)
		kind   domain.ErrorKind
	}{
		{"missing borrower", func(c *application.OriginateCreditCommand) { c.Usuario.Nombre = "" }, domain.KindValidation},
		{"plazo out of range", func(c *application.OriginateCreditCommand) { c.Plazo = 361 }, domain.KindValidation},
		{"negative capital", func(c *application.OriginateCreditCommand) { c.Capital = d("-1") }, domain.KindValidation},
		{"interest above 100", func(c *application.OriginateCreditCommand) { c.PorcentajeInteres = d("101") }, domain.KindValidation},
		{"funding mismatch", func(c *application.OriginateCreditCommand) {
			c.Inversionistas = []application.InvestorInput{
				{Nombre: "X", MontoAportado: d("900"), PorcentajeParticipacionInversionista: d("100")},
			}
		}, domain.KindInvariant},
		{"percentages not 100", func(c *application.OriginateCreditCommand) {
			c.Inversionistas = []application.InvestorInput{
				{Nombre: "X", MontoAportado: d("1000"), PorcentajeCashIn: d("30"), PorcentajeParticipacionInversionista: d("60")},
			}
		}, domain.KindInvariant},
		{"duplicate investor", func(c *application.OriginateCreditCommand) {
			c.Inversionistas = []application.InvestorInput{
				{Nombre: "Ana", MontoAportado: d("500"), PorcentajeParticipacionInversionista: d("100")},
				{Nombre: "ANA", MontoAportado: d("500"), PorcentajeParticipacionInversionista: d("100")},
			}
		}, domain.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := base
			tt.mutate(&cmd)
			_, err := f.origination.OriginateCredit(ctx, cmd)
			wantKind(t, err, tt.kind)
		})
	}
	if _, total, err := f.origination.ListCredits(ctx, domain.CreditFilter{}, 10, 0); err != nil || total != 0 {
		t.Errorf("rejected commands left %d credits (err %v)", total, err)
	}
}

func TestUpdateCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-140", true)

	obs := "cliente actualizó datos"
	updated, err := f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{
		CreditoID:     c.ID,
		Observaciones: &obs,
		Seguro:        ptr(d("10")),
	})
	if err != nil {
		t.Fatalf("partial update error = %v", err)
	}
	if !updated.CuotaInteres.Equal(c.CuotaInteres) || !updated.DeudaTotal.Equal(c.DeudaTotal) {
		t.Error("a merge without capital or rate change must not re-derive amounts")
	}
	if updated.Observaciones != obs || !updated.Seguro.Equal(d("10")) {
		t.Errorf("merged fields = %q, %s", updated.Observaciones, updated.Seguro)
	}

	updated, err = f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{
		CreditoID: c.ID,
		Capital:   ptr(d("1200")),
		Cuota:     ptr(d("170")),
	})
	if err != nil {
		t.Fatalf("capital update error = %v", err)
	}
	if updated.CuotaInteres.StringFixed(2) != "18.00" || updated.IVA12.StringFixed(2) != "2.16" || !updated.Cuota.Equal(d("170")) {
		t.Errorf("re-derived = interes %s iva %s cuota %s", updated.CuotaInteres, updated.IVA12, updated.Cuota)
	}
	rows, _ := f.repos.Credits.ListInvestors(ctx, c.ID)
	if !rows[0].MontoAportado.Equal(d("720")) || !rows[1].MontoAportado.Equal(d("480")) {
		t.Errorf("contributions = %s / %s, want 720 / 480", rows[0].MontoAportado, rows[1].MontoAportado)
	}
	if rows[0].CuotaInversionista.StringFixed(2) != "10.80" {
		t.Errorf("investor cuota = %s, want 10.80", rows[0].CuotaInversionista)
	}
	f.assertConsistent(t, c.ID)

	// 只改利率：派生金额重算，约定月供不变
	updated, err = f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{
		CreditoID:         c.ID,
		PorcentajeInteres: ptr(d("2")),
	})
	if err != nil {
		t.Fatalf("rate update error = %v", err)
	}
	if updated.Cuota.StringFixed(2) != "170.00" {
		t.Errorf("cuota after rate change = %s, want 170.00", updated.Cuota)
	}
	if updated.CuotaInteres.StringFixed(2) != "24.00" || updated.IVA12.StringFixed(2) != "2.88" {
		t.Errorf("re-derived = interes %s iva %s", updated.CuotaInteres, updated.IVA12)
	}
	if got := f.credit(t, c.ID).Cuota.StringFixed(2); got != "170.00" {
		t.Errorf("stored cuota = %s, want 170.00", got)
	}

	_, err = f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{CreditoID: 999, Observaciones: &obs})
	wantKind(t, err, domain.KindNotFound)
}

func TestUpdateCreditResizesSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.originate(t, "CR-145", false)

	schedule := func() []*domain.Installment {
		t.Helper()
		items, err := f.repos.Installments.ListByCredit(ctx, c.ID)
		if err != nil {
			t.Fatalf("ListByCredit() error = %v", err)
		}
		return items
	}

	if _, err := f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{CreditoID: c.ID, Plazo: ptr(12)}); err != nil {
		t.Fatalf("grow plazo error = %v", err)
	}
	items := schedule()
	if len(items) != 13 {
		t.Fatalf("installments = %d, want 13 (0..12)", len(items))
	}
	if items[11].FechaVencimiento != "2025-12-30" || items[12].FechaVencimiento != "2026-01-30" {
		t.Errorf("appended fechas = %s, %s", items[11].FechaVencimiento, items[12].FechaVencimiento)
	}

	f.clock.Set(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	f.pay(t, c.ID, 1, "150", "0")
	f.pay(t, c.ID, 2, "150", "0")

	if _, err := f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{CreditoID: c.ID, Plazo: ptr(4)}); err != nil {
		t.Fatalf("shrink plazo error = %v", err)
	}
	items = schedule()
	if len(items) != 5 || items[4].NumeroCuota != 4 {
		t.Fatalf("installments after shrink = %d, want 5 (0..4)", len(items))
	}
	if got := f.credit(t, c.ID).Plazo; got != 4 {
		t.Errorf("plazo = %d, want 4", got)
	}

	_, err := f.origination.UpdateCredit(ctx, application.UpdateCreditCommand{CreditoID: c.ID, Plazo: ptr(1)})
	wantKind(t, err, domain.KindConflict)
	if got := len(schedule()); got != 5 {
		t.Errorf("rejected shrink changed the schedule: %d rows", got)
	}
	if got := f.credit(t, c.ID).Plazo; got != 4 {
		t.Errorf("rejected shrink changed plazo to %d", got)
	}
}

func TestListCreditsAndPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.originate(t, "CR-150", false)
	f.originate(t, "CR-151", false)
	f.clock.Set(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	f.pay(t, c1.ID, 1, "80", "0")

	list, total, err := f.origination.ListCredits(ctx, domain.CreditFilter{Status: domain.StatusActivo}, 1, 0)
	if err != nil || total != 2 || len(list) != 1 {
		t.Fatalf("ListCredits = %d of %d, %v", len(list), total, err)
	}
	pagos, err := f.origination.ListPayments(ctx, c1.ID)
	if err != nil || len(pagos) != 1 {
		t.Fatalf("ListPayments = %d, %v", len(pagos), err)
	}
	_, err = f.origination.ListPayments(ctx, 999)
	wantKind(t, err, domain.KindNotFound)
}
