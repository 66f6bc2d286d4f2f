package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeCreditAmounts(t *testing.T) {
	tests := []struct {
		name      string
		terms     CreditTerms
		interes   string
		iva       string
		deuda     string
		cuota     string
		cashIn    string
		ivaCashIn string
	}{
		{
			name: "basic",
			terms: CreditTerms{
				Capital: d("10000"), PorcentajeInteres: d("1.5"), Plazo: 12,
				Seguro: d("50"), GPS: d("20"),
			},
			interes: "150", iva: "18", deuda: "10238",
			// 833.33 + 150 + 18 + 50 + 20
			cuota: "1071.33", cashIn: "0", ivaCashIn: "0",
		},
		{
			name: "explicit cuota and cash-in",
			terms: CreditTerms{
				Capital: d("1000"), PorcentajeInteres: d("1.5"), Plazo: 10,
				PorcentajeCashIn: d("40"), Cuota: ptr(d("150")),
			},
			interes: "15", iva: "1.8", deuda: "1016.8",
			cuota: "150", cashIn: "6", ivaCashIn: "0.72",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ComputeCreditAmounts(tt.terms)
			if err != nil {
				t.Fatalf("ComputeCreditAmounts() error = %v", err)
			}
			checks := []struct {
				field string
				got   decimal.Decimal
				want  string
			}{
				{"cuota_interes", a.CuotaInteres, tt.interes},
				{"iva_12", a.IVA12, tt.iva},
				{"deudatotal", a.DeudaTotal, tt.deuda},
				{"cuota", a.Cuota, tt.cuota},
				{"cuota_cash_in", a.CuotaCashIn, tt.cashIn},
				{"iva_cash_in", a.IVACashIn, tt.ivaCashIn},
			}
			for _, c := range checks {
				if !c.got.Equal(d(c.want)) {
					t.Errorf("%s = %s, want %s", c.field, c.got, c.want)
				}
			}
		})
	}
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func TestCreditTermsValidate(t *testing.T) {
	base := CreditTerms{Capital: d("1000"), PorcentajeInteres: d("1.5"), Plazo: 12}
	tests := []struct {
		name   string
		mutate func(*CreditTerms)
		code   string
	}{
		{"negative capital", func(c *CreditTerms) { c.Capital = d("-1") }, "NEGATIVE_AMOUNT"},
		{"percent above 100", func(c *CreditTerms) { c.PorcentajeParticipacion = d("100.01") }, "INVALID_PERCENT"},
		{"zero plazo", func(c *CreditTerms) { c.Plazo = 0 }, "INVALID_PLAZO"},
		{"plazo too long", func(c *CreditTerms) { c.Plazo = MaxPlazo + 1 }, "INVALID_PLAZO"},
		{"negative cuota", func(c *CreditTerms) { c.Cuota = ptr(d("-5")) }, "NEGATIVE_AMOUNT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := base
			tt.mutate(&terms)
			err := terms.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want validation error", err)
			}
			if CodeOf(err) != tt.code {
				t.Errorf("CodeOf() = %s, want %s", CodeOf(err), tt.code)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Errorf("Validate() on valid terms error = %v", err)
	}
}

func TestBuildSchedule(t *testing.T) {
	loc := time.UTC
	origin := time.Date(2025, 1, 10, 9, 0, 0, 0, loc)
	items := BuildSchedule(7, 3, origin, loc)
	if len(items) != 4 {
		t.Fatalf("len = %d, want 4", len(items))
	}
	want := []string{"2025-01-10", "2025-02-28", "2025-03-30", "2025-04-30"}
	for i, it := range items {
		if it.NumeroCuota != i {
			t.Errorf("item %d numero = %d", i, it.NumeroCuota)
		}
		if it.FechaVencimiento != want[i] {
			t.Errorf("item %d fecha = %s, want %s", i, it.FechaVencimiento, want[i])
		}
		if it.CreditoID != 7 {
			t.Errorf("item %d credito = %d", i, it.CreditoID)
		}
	}
	if !items[0].Pagado || items[1].Pagado {
		t.Error("only installment 0 should start paid")
	}
}

func TestResizeSchedule(t *testing.T) {
	loc := time.UTC
	origin := time.Date(2025, 1, 10, 9, 0, 0, 0, loc)
	sched := func(paidThrough int) []*Installment {
		items := BuildSchedule(7, 3, origin, loc)
		for _, it := range items[1 : paidThrough+1] {
			it.Pagado = true
		}
		return items
	}

	added, err := ResizeSchedule(7, sched(0), 5, origin, loc)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if len(added) != 2 || added[0].NumeroCuota != 4 || added[1].NumeroCuota != 5 {
		t.Fatalf("grow added = %+v", added)
	}
	if added[0].FechaVencimiento != "2025-05-30" || added[1].FechaVencimiento != "2025-06-30" {
		t.Errorf("grow fechas = %s, %s", added[0].FechaVencimiento, added[1].FechaVencimiento)
	}

	tests := []struct {
		name     string
		paid     int
		plazo    int
		wantKind ErrorKind
	}{
		{"same plazo", 1, 3, 0},
		{"shrink over unpaid tail", 1, 2, 0},
		{"shrink to last paid", 2, 2, 0},
		{"shrink below paid", 2, 1, KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, err := ResizeSchedule(7, sched(tt.paid), tt.plazo, origin, loc)
			if KindOf(err) != tt.wantKind {
				t.Fatalf("err = %v, want kind %v", err, tt.wantKind)
			}
			if len(added) != 0 {
				t.Errorf("added = %d rows, want none", len(added))
			}
		})
	}
}

func TestAmortizeTo(t *testing.T) {
	c := &Credit{PorcentajeInteres: d("1.5"), Seguro: d("50"), GPS: d("20"), Otros: d("100")}
	c.AmortizeTo(d("9000"))
	if !c.CuotaInteres.Equal(d("135")) || !c.IVA12.Equal(d("16.2")) {
		t.Errorf("interes/iva = %s/%s", c.CuotaInteres, c.IVA12)
	}
	// otros 不再计入
	if !c.DeudaTotal.Equal(d("9221.2")) {
		t.Errorf("deudatotal = %s, want 9221.2", c.DeudaTotal)
	}
}

func TestFormatFor(t *testing.T) {
	if FormatFor(1) != FormatIndividual || FormatFor(0) != FormatIndividual {
		t.Error("single investor should be Individual")
	}
	if FormatFor(2) != FormatPool {
		t.Error("two investors should be Pool")
	}
}

func TestClampCapitalRemainder(t *testing.T) {
	if got := ClampCapitalRemainder(d("100"), d("-0.5")); !got.Equal(d("100")) {
		t.Errorf("negative remainder = %s, want 100", got)
	}
	if got := ClampCapitalRemainder(d("100"), d("40")); !got.Equal(d("40")) {
		t.Errorf("positive remainder = %s, want 40", got)
	}
}
