package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// PaymentService 还款入账与冲正
type PaymentService struct {
	core
}

// NewPaymentService 创建还款服务
func NewPaymentService(deps Dependencies) *PaymentService {
	return &PaymentService{core: newCore(deps)}
}

type paymentPayload struct {
	PagoID        uint            `json:"pago_id"`
	NumeroCuota   int             `json:"numero_cuota"`
	MontoBoleta   decimal.Decimal `json:"monto_boleta"`
	MontoEfectivo decimal.Decimal `json:"monto_efectivo"`
	AbonoCapital  decimal.Decimal `json:"abono_capital"`
	Pagado        bool            `json:"pagado"`
}

// ApplyPayment 按瀑布顺序分配一笔 boleta
func (s *PaymentService) ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (*domain.Payment, error) {
	start := time.Now()
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	if err := domain.ValidatePaymentAmounts(cmd.MontoBoleta, cmd.Mora, cmd.Otros); err != nil {
		return nil, err
	}
	fecha := cmd.FechaPago
	if fecha.IsZero() {
		fecha = s.now()
	}

	var payment *domain.Payment
	var affected []uint
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		credit, err := s.lockCredit(ctx, cmd.CreditoID)
		if err != nil {
			return err
		}
		if !credit.StatusCredit.AcceptsPayments() {
			return domain.NewConflictError("CREDIT_NOT_PAYABLE",
				fmt.Sprintf("credit %d in status %s does not accept payments", credit.ID, credit.StatusCredit))
		}
		inst, err := s.repos.Installments.Get(ctx, credit.ID, cmd.NumeroCuota)
		if err != nil {
			return err
		}
		if inst == nil {
			return domain.NewNotFoundError("INSTALLMENT_NOT_FOUND",
				fmt.Sprintf("installment %d of credit %d not found", cmd.NumeroCuota, credit.ID))
		}
		if inst.Pagado {
			return domain.NewConflictError("INSTALLMENT_PAID",
				fmt.Sprintf("installment %d of credit %d is already paid", cmd.NumeroCuota, credit.ID))
		}
		borrower, err := s.repos.Parties.GetBorrowerForUpdate(ctx, credit.UsuarioID)
		if err != nil {
			return err
		}
		if borrower == nil {
			return domain.NewInvariantViolation("BORROWER_MISSING", fmt.Sprintf("credit %d has no borrower", credit.ID))
		}
		rows, err := s.repos.Credits.ListInvestors(ctx, credit.ID)
		if err != nil {
			return err
		}

		alloc, err := domain.ComputeWaterfall(domain.WaterfallInput{
			Credit:      credit,
			Investors:   rows,
			SaldoAFavor: borrower.SaldoAFavor,
			MontoBoleta: cmd.MontoBoleta,
			Mora:        cmd.Mora,
			Otros:       cmd.Otros,
		})
		if err != nil {
			return err
		}

		mes := fecha.In(s.loc).Format("2006-01")
		delMes, err := s.repos.Payments.SumBoletasInMonth(ctx, credit.ID, mes)
		if err != nil {
			return err
		}

		p := newPaymentRecord(credit, inst, cmd, alloc, fecha, mes)
		p.PagoDelMes = domain.Round2(delMes.Add(cmd.MontoBoleta))
		p.Facturacion = domain.Facturacion(rows)

		var investorRows []*domain.InvestorPayment
		capitalAntes := credit.Capital
		if alloc.FullMatch {
			// 钳制时本金不变，投资人按实际减少额分摊
			reduction := capitalAntes.Sub(alloc.CapitalRestante)
			investorRows, err = domain.AllocatePayment(rows, credit.ID, reduction, credit.PorcentajeInteres)
			if err != nil {
				return err
			}
			credit.AmortizeTo(alloc.CapitalRestante)
			if err := s.repos.Installments.SetPaid(ctx, inst.ID, true); err != nil {
				return err
			}
			if err := s.repos.Credits.SaveInvestors(ctx, rows); err != nil {
				return err
			}
		}

		moraApplied, err := s.applyLateFee(ctx, credit, cmd.Mora)
		if err != nil {
			return err
		}
		p.MoraAplicada = moraApplied

		borrower.SaldoAFavor = alloc.SaldoDespues
		if err := s.repos.Parties.SaveBorrowerBalance(ctx, borrower); err != nil {
			return err
		}
		if affected, err = s.borrowerCredits(ctx, borrower.ID); err != nil {
			return err
		}
		if err := s.repos.Credits.Update(ctx, credit); err != nil {
			return err
		}
		if err := s.repos.Payments.Create(ctx, p); err != nil {
			return err
		}
		for _, r := range investorRows {
			r.PagoID = p.ID
		}
		if err := s.repos.InvestorPayments.CreateBatch(ctx, investorRows); err != nil {
			return err
		}

		tipo := domain.EventPagoParcial
		if p.Pagado {
			tipo = domain.EventPagoAplicado
		}
		if err := s.appendEvent(ctx, credit.ID, tipo, domain.Deltas{
			Capital:     credit.Capital.Sub(capitalAntes),
			SaldoAFavor: p.SaldoDelta(),
		}, paymentPayload{
			PagoID:        p.ID,
			NumeroCuota:   p.NumeroCuota,
			MontoBoleta:   p.MontoBoleta,
			MontoEfectivo: p.MontoEfectivo,
			AbonoCapital:  p.AbonoCapital,
			Pagado:        p.Pagado,
		}); err != nil {
			return err
		}
		if moraApplied.IsPositive() {
			if err := s.appendEvent(ctx, credit.ID, domain.EventMoraAbonada,
				domain.Deltas{Mora: moraApplied.Neg()}, map[string]any{"pago_id": p.ID}); err != nil {
				return err
			}
		}
		payment = p
		return nil
	})
	if err != nil {
		s.metrics.RecordPayment("error", time.Since(start))
		s.logger.ErrorContext(ctx, "failed to apply payment", "credito_id", cmd.CreditoID, "numero_cuota", cmd.NumeroCuota, "error", err)
		return nil, err
	}

	result := "partial"
	if payment.Pagado {
		result = "full"
	}
	s.metrics.RecordPayment(result, time.Since(start))
	s.invalidate(ctx, affected...)
	s.logger.InfoContext(ctx, "payment applied",
		"credito_id", payment.CreditoID,
		"pago_id", payment.ID,
		"pagado", payment.Pagado,
		"aplicado", payment.AllocatedTotal().String(),
		"abono_capital", payment.AbonoCapital.String(),
		"saldo_a_favor", payment.SaldoAFavorDespues.String())
	return payment, nil
}

// applyLateFee 扣减滞纳金；归零时 MOROSO 恢复为 ACTIVO
func (s *PaymentService) applyLateFee(ctx context.Context, credit *domain.Credit, mora decimal.Decimal) (decimal.Decimal, error) {
	if !mora.IsPositive() {
		return decimal.Zero, nil
	}
	fee, err := s.repos.LateFees.GetByCreditForUpdate(ctx, credit.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if fee == nil || !fee.Activa {
		return decimal.Zero, nil
	}
	applied := fee.Pay(mora)
	if err := s.repos.LateFees.Save(ctx, fee); err != nil {
		return decimal.Zero, err
	}
	if !fee.Activa && credit.StatusCredit == domain.StatusMoroso {
		credit.StatusCredit = domain.StatusActivo
	}
	return applied, nil
}

func newPaymentRecord(c *domain.Credit, inst *domain.Installment, cmd ApplyPaymentCommand, a *domain.Allocation, fecha time.Time, mes string) *domain.Payment {
	return &domain.Payment{
		CreditoID:          c.ID,
		CuotaID:            inst.ID,
		NumeroCuota:        inst.NumeroCuota,
		Cuota:              c.Cuota,
		MontoBoleta:        domain.Round2(cmd.MontoBoleta),
		MontoEfectivo:      a.MontoEfectivo,
		Mora:               domain.Round2(cmd.Mora),
		Otros:              domain.Round2(cmd.Otros),
		AbonoCapital:       a.AbonoCapital,
		AbonoInteres:       a.AbonoInteres,
		AbonoInteresCI:     a.AbonoInteresCI,
		AbonoIVA12:         a.AbonoIVA12,
		AbonoIVACI:         a.AbonoIVACI,
		AbonoSeguro:        a.AbonoSeguro,
		AbonoGPS:           a.AbonoGPS,
		AbonoMembresias:    a.AbonoMembresias,
		CapitalRestante:    a.CapitalRestante,
		InteresRestante:    a.InteresRestante,
		IVA12Restante:      a.IVA12Restante,
		SeguroRestante:     a.SeguroRestante,
		GPSRestante:        a.GPSRestante,
		MembresiasRestante: a.MembresiasRestante,
		TotalRestante:      a.TotalRestante,
		SaldoAFavorAntes:   a.SaldoAntes,
		SaldoAFavorDespues: a.SaldoDespues,
		CapitalAntes:       c.Capital,
		CuotaInteresAntes:  c.CuotaInteres,
		IVA12Antes:         c.IVA12,
		DeudaTotalAntes:    c.DeudaTotal,
		StatusAntes:        c.StatusCredit,
		MoraAplicada:       decimal.Zero,
		Pagado:             a.FullMatch,
		FechaPago:          fecha,
		MesPagado:          mes,
		Observaciones:      cmd.Observaciones,
	}
}

// ReversePayment 冲正信贷最近一笔未冲正的还款，恢复还款前的全部余额
func (s *PaymentService) ReversePayment(ctx context.Context, paymentID uint) error {
	var creditID uint
	var affected []uint
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.repos.Payments.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.NewNotFoundError("PAYMENT_NOT_FOUND", fmt.Sprintf("payment %d not found", paymentID))
		}
		if p.Reversado {
			return domain.NewConflictError("PAYMENT_REVERSED", fmt.Sprintf("payment %d is already reversed", paymentID))
		}
		credit, err := s.lockCredit(ctx, p.CreditoID)
		if err != nil {
			return err
		}
		creditID = credit.ID
		if credit.StatusCredit.IsTerminal() {
			return domain.NewConflictError("CREDIT_CLOSED", fmt.Sprintf("credit %d is %s", credit.ID, credit.StatusCredit))
		}
		latest, err := s.repos.Payments.LatestActive(ctx, credit.ID)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != p.ID {
			return domain.NewConflictError("NOT_LATEST_PAYMENT",
				fmt.Sprintf("payment %d is not the latest active payment of credit %d", p.ID, credit.ID))
		}
		investorRows, err := s.repos.InvestorPayments.ListByPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, r := range investorRows {
			if r.EstadoLiquidacion == domain.SettlementDone {
				return domain.NewConflictError("PAYMENT_SETTLED",
					fmt.Sprintf("payment %d was already settled to investor %d", p.ID, r.InversionistaID))
			}
		}

		capitalBefore := credit.Capital
		credit.Restore(p.CreditSnapshot())

		if len(investorRows) > 0 {
			rows, err := s.repos.Credits.ListInvestors(ctx, credit.ID)
			if err != nil {
				return err
			}
			if err := domain.RestoreCapital(rows, investorRows, credit.PorcentajeInteres); err != nil {
				return err
			}
			if err := s.repos.Credits.SaveInvestors(ctx, rows); err != nil {
				return err
			}
			if err := s.repos.InvestorPayments.DeleteByPayment(ctx, p.ID); err != nil {
				return err
			}
		}

		borrower, err := s.repos.Parties.GetBorrowerForUpdate(ctx, credit.UsuarioID)
		if err != nil {
			return err
		}
		if borrower == nil {
			return domain.NewInvariantViolation("BORROWER_MISSING", fmt.Sprintf("credit %d has no borrower", credit.ID))
		}
		borrower.SaldoAFavor = domain.Round2(borrower.SaldoAFavor.Sub(p.SaldoDelta()))
		if borrower.SaldoAFavor.IsNegative() {
			return domain.NewInvariantViolation("NEGATIVE_BALANCE",
				fmt.Sprintf("reversing payment %d would leave a negative saldo a favor", p.ID))
		}
		if err := s.repos.Parties.SaveBorrowerBalance(ctx, borrower); err != nil {
			return err
		}
		if affected, err = s.borrowerCredits(ctx, borrower.ID); err != nil {
			return err
		}

		if p.Pagado {
			if err := s.repos.Installments.SetPaid(ctx, p.CuotaID, false); err != nil {
				return err
			}
		}

		if p.MoraAplicada.IsPositive() {
			fee, err := s.repos.LateFees.GetByCreditForUpdate(ctx, credit.ID)
			if err != nil {
				return err
			}
			if fee == nil {
				return domain.NewInvariantViolation("LATE_FEE_MISSING",
					fmt.Sprintf("payment %d paid mora but credit %d has no late fee", p.ID, credit.ID))
			}
			fee.Restore(p.MoraAplicada)
			if err := s.repos.LateFees.Save(ctx, fee); err != nil {
				return err
			}
			// 仅撤销由本次还款引起的状态恢复
			if p.StatusAntes == domain.StatusMoroso && credit.StatusCredit == domain.StatusActivo {
				credit.StatusCredit = domain.StatusMoroso
			}
		}

		if err := s.repos.Credits.Update(ctx, credit); err != nil {
			return err
		}
		now := s.now()
		p.Reversado = true
		p.FechaReversion = &now
		if err := s.repos.Payments.Update(ctx, p); err != nil {
			return err
		}

		return s.appendEvent(ctx, credit.ID, domain.EventPagoReversado, domain.Deltas{
			Capital:     credit.Capital.Sub(capitalBefore),
			SaldoAFavor: p.SaldoDelta().Neg(),
			Mora:        p.MoraAplicada,
		}, map[string]any{"pago_id": p.ID})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reverse payment", "pago_id", paymentID, "error", err)
		return err
	}
	s.invalidate(ctx, affected...)
	s.logger.InfoContext(ctx, "payment reversed", "pago_id", paymentID, "credito_id", creditID)
	return nil
}
