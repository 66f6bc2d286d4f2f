package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

// OriginationService 放款与信贷维护
type OriginationService struct {
	core
}

// NewOriginationService 创建放款服务
func NewOriginationService(deps Dependencies) *OriginationService {
	return &OriginationService{core: newCore(deps)}
}

type originationPayload struct {
	NumeroCredito  string          `json:"numero_credito"`
	Capital        decimal.Decimal `json:"capital"`
	Cuota          decimal.Decimal `json:"cuota"`
	DeudaTotal     decimal.Decimal `json:"deudatotal"`
	Plazo          int             `json:"plazo"`
	Inversionistas int             `json:"inversionistas"`
}

// OriginateCredit 放款：计算派生金额、登记借款人与投资人、生成还款计划
func (s *OriginationService) OriginateCredit(ctx context.Context, cmd OriginateCreditCommand) (*domain.Credit, error) {
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	amounts, err := domain.ComputeCreditAmounts(cmd.Terms())
	if err != nil {
		return nil, err
	}
	capital := domain.Round2(cmd.Capital)
	rows, err := s.planInvestors(cmd, capital)
	if err != nil {
		return nil, err
	}

	created := cmd.FechaCreacion
	if created.IsZero() {
		created = s.now()
	}

	credit := &domain.Credit{
		NumeroCredito:           cmd.NumeroCredito,
		Capital:                 capital,
		PorcentajeInteres:       cmd.PorcentajeInteres,
		Seguro:                  domain.Round2(cmd.Seguro),
		GPS:                     domain.Round2(cmd.GPS),
		Membresias:              domain.Round2(cmd.Membresias),
		Otros:                   domain.Round2(cmd.Otros),
		Plazo:                   cmd.Plazo,
		PorcentajeParticipacion: cmd.PorcentajeParticipacion,
		PorcentajeCashIn:        cmd.PorcentajeCashIn,
		FormatoCredito:          domain.FormatFor(len(rows)),
		StatusCredit:            domain.StatusActivo,
		Observaciones:           cmd.Observaciones,
		FechaCreacion:           created,
		Version:                 1,
	}
	credit.ApplyAmounts(amounts)

	err = s.tm.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.repos.Credits.GetByNumero(ctx, cmd.NumeroCredito)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.NewConflictError("CREDIT_EXISTS", fmt.Sprintf("credit %s already exists", cmd.NumeroCredito))
		}

		borrower, err := s.repos.Parties.ResolveBorrower(ctx, &domain.Borrower{
			Nombre:    cmd.Usuario.Nombre,
			NIT:       cmd.Usuario.NIT,
			Categoria: cmd.Usuario.Categoria,
		})
		if err != nil {
			return err
		}
		credit.UsuarioID = borrower.ID

		if cmd.Asesor != "" {
			advisor, err := s.repos.Parties.ResolveAdvisor(ctx, &domain.Advisor{Nombre: cmd.Asesor})
			if err != nil {
				return err
			}
			if advisor != nil {
				credit.AsesorID = advisor.ID
			}
		}

		if err := s.repos.Credits.Create(ctx, credit); err != nil {
			return err
		}

		for i, in := range cmd.Inversionistas {
			inv, err := s.repos.Parties.ResolveInvestor(ctx, &domain.Investor{
				Nombre:       in.Nombre,
				EmiteFactura: in.EmiteFactura,
				Reinversion:  in.Reinversion,
				Banco:        in.Banco,
				TipoCuenta:   in.TipoCuenta,
				NumeroCuenta: in.NumeroCuenta,
			})
			if err != nil {
				return err
			}
			rows[i].CreditoID = credit.ID
			rows[i].InversionistaID = inv.ID
		}
		if err := s.repos.Credits.SaveInvestors(ctx, rows); err != nil {
			return err
		}

		if err := s.repos.Installments.CreateBatch(ctx, domain.BuildSchedule(credit.ID, credit.Plazo, created, s.loc)); err != nil {
			return err
		}

		return s.appendEvent(ctx, credit.ID, domain.EventOriginacion, domain.Deltas{Capital: credit.Capital}, originationPayload{
			NumeroCredito:  credit.NumeroCredito,
			Capital:        credit.Capital,
			Cuota:          credit.Cuota,
			DeudaTotal:     credit.DeudaTotal,
			Plazo:          credit.Plazo,
			Inversionistas: len(rows),
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to originate credit", "numero_credito", cmd.NumeroCredito, "error", err)
		return nil, err
	}

	s.metrics.RecordOrigination()
	s.logger.InfoContext(ctx, "credit originated",
		"credito_id", credit.ID,
		"numero_credito", credit.NumeroCredito,
		"capital", credit.Capital.String(),
		"formato", credit.FormatoCredito)
	return credit, nil
}

// planInvestors 校验出资比例与出资合计，并计算每位投资人的分成
func (s *OriginationService) planInvestors(cmd OriginateCreditCommand, capital decimal.Decimal) ([]*domain.CreditInvestor, error) {
	if len(cmd.Inversionistas) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(cmd.Inversionistas))
	rows := make([]*domain.CreditInvestor, len(cmd.Inversionistas))
	for i, in := range cmd.Inversionistas {
		key := domain.NormalizeName(in.Nombre)
		if _, dup := seen[key]; dup {
			return nil, domain.NewValidationError("DUPLICATE_INVESTOR", fmt.Sprintf("investor %q is listed twice", in.Nombre))
		}
		seen[key] = struct{}{}

		row := &domain.CreditInvestor{
			MontoAportado:                        domain.Round2(in.MontoAportado),
			PorcentajeCashIn:                     in.PorcentajeCashIn,
			PorcentajeParticipacionInversionista: in.PorcentajeParticipacionInversionista,
		}
		if err := domain.ValidateInvestorPercentages(row); err != nil {
			return nil, err
		}
		domain.DeriveInvestorShares(row, cmd.PorcentajeInteres)
		rows[i] = row
	}
	if err := domain.ValidateInvestorFunding(capital, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type creditUpdatePayload struct {
	CapitalAntes   decimal.Decimal `json:"capital_antes"`
	CapitalDespues decimal.Decimal `json:"capital_despues"`
	Rederivado     bool            `json:"rederivado"`
}

// UpdateCredit 部分更新；本金或利率变化时重算派生金额与投资人分成
func (s *OriginationService) UpdateCredit(ctx context.Context, cmd UpdateCreditCommand) (*domain.Credit, error) {
	if err := s.check(cmd); err != nil {
		return nil, err
	}
	var credit *domain.Credit
	err := s.tm.Transaction(ctx, func(ctx context.Context) error {
		c, err := s.lockCredit(ctx, cmd.CreditoID)
		if err != nil {
			return err
		}
		if c.StatusCredit.IsTerminal() {
			return domain.NewConflictError("CREDIT_CLOSED", fmt.Sprintf("credit %d is %s", c.ID, c.StatusCredit))
		}
		credit = c
		before := c.Capital

		if cmd.NumeroCredito != nil && *cmd.NumeroCredito != c.NumeroCredito {
			other, err := s.repos.Credits.GetByNumero(ctx, *cmd.NumeroCredito)
			if err != nil {
				return err
			}
			if other != nil {
				return domain.NewConflictError("CREDIT_EXISTS", fmt.Sprintf("credit %s already exists", *cmd.NumeroCredito))
			}
			c.NumeroCredito = *cmd.NumeroCredito
		}
		if cmd.Observaciones != nil {
			c.Observaciones = *cmd.Observaciones
		}
		plazoChanged := cmd.Plazo != nil && *cmd.Plazo != c.Plazo
		if cmd.Plazo != nil {
			c.Plazo = *cmd.Plazo
		}
		mergeMoney(&c.Seguro, cmd.Seguro)
		mergeMoney(&c.GPS, cmd.GPS)
		mergeMoney(&c.Membresias, cmd.Membresias)
		mergeMoney(&c.Otros, cmd.Otros)

		capitalChanged := cmd.Capital != nil && !domain.Round2(*cmd.Capital).Equal(c.Capital)
		rateChanged := cmd.PorcentajeInteres != nil && !cmd.PorcentajeInteres.Equal(c.PorcentajeInteres)
		if capitalChanged {
			c.Capital = domain.Round2(*cmd.Capital)
		}
		if rateChanged {
			c.PorcentajeInteres = *cmd.PorcentajeInteres
		}

		// 未显式给出月供时沿用约定月供，只重算派生金额
		cuota := cmd.Cuota
		if cuota == nil {
			current := c.Cuota
			cuota = &current
		}
		terms := domain.CreditTerms{
			Capital:                 c.Capital,
			PorcentajeInteres:       c.PorcentajeInteres,
			Plazo:                   c.Plazo,
			Seguro:                  c.Seguro,
			GPS:                     c.GPS,
			Membresias:              c.Membresias,
			Otros:                   c.Otros,
			PorcentajeParticipacion: c.PorcentajeParticipacion,
			PorcentajeCashIn:        c.PorcentajeCashIn,
			Cuota:                   cuota,
		}
		rederive := capitalChanged || rateChanged
		if rederive {
			amounts, err := domain.ComputeCreditAmounts(terms)
			if err != nil {
				return err
			}
			c.ApplyAmounts(amounts)
			if err := s.resplitInvestors(ctx, c, before, capitalChanged); err != nil {
				return err
			}
		} else {
			if err := terms.Validate(); err != nil {
				return err
			}
			if cmd.Cuota != nil {
				c.Cuota = domain.Round2(*cmd.Cuota)
			}
		}

		if plazoChanged {
			if err := s.resizeSchedule(ctx, c); err != nil {
				return err
			}
		}

		if err := s.repos.Credits.Update(ctx, c); err != nil {
			return err
		}
		return s.appendEvent(ctx, c.ID, domain.EventCreditoActualizado,
			domain.Deltas{Capital: c.Capital.Sub(before)},
			creditUpdatePayload{CapitalAntes: before, CapitalDespues: c.Capital, Rederivado: rederive})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, credit.ID)
	s.logger.InfoContext(ctx, "credit updated", "credito_id", credit.ID, "version", credit.Version)
	return credit, nil
}

// resizeSchedule 期数变化时补齐或截去未付分期
func (s *OriginationService) resizeSchedule(ctx context.Context, c *domain.Credit) error {
	existing, err := s.repos.Installments.ListByCredit(ctx, c.ID)
	if err != nil {
		return err
	}
	added, err := domain.ResizeSchedule(c.ID, existing, c.Plazo, c.FechaCreacion, s.loc)
	if err != nil {
		return err
	}
	if err := s.repos.Installments.DeleteUnpaidAfter(ctx, c.ID, c.Plazo); err != nil {
		return err
	}
	return s.repos.Installments.CreateBatch(ctx, added)
}

// resplitInvestors 按本金变动比例调整出资，利率变化时仅重算分成
func (s *OriginationService) resplitInvestors(ctx context.Context, c *domain.Credit, before decimal.Decimal, capitalChanged bool) error {
	rows, err := s.repos.Credits.ListInvestors(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	delta := c.Capital.Sub(before)
	if capitalChanged && !delta.IsZero() {
		if _, err := domain.AdjustCapital(rows, delta.Abs(), delta.IsPositive(), c.PorcentajeInteres); err != nil {
			return err
		}
	} else {
		for _, r := range rows {
			domain.DeriveInvestorShares(r, c.PorcentajeInteres)
		}
	}
	return s.repos.Credits.SaveInvestors(ctx, rows)
}

func mergeMoney(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = domain.Round2(*v)
	}
}

// CreditView 信贷详情
type CreditView struct {
	Credito        *domain.Credit           `json:"credito"`
	Inversionistas []*domain.CreditInvestor `json:"inversionistas"`
	Cuotas         []*domain.Installment    `json:"cuotas"`
}

// GetCredit 查询信贷及其出资与还款计划
func (s *OriginationService) GetCredit(ctx context.Context, id uint) (*CreditView, error) {
	c, err := s.loadCredit(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.repos.Credits.ListInvestors(ctx, id)
	if err != nil {
		return nil, err
	}
	cuotas, err := s.repos.Installments.ListByCredit(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CreditView{Credito: c, Inversionistas: rows, Cuotas: cuotas}, nil
}

// ListCredits 分页查询信贷
func (s *OriginationService) ListCredits(ctx context.Context, f domain.CreditFilter, limit, offset int) ([]*domain.Credit, int64, error) {
	return s.repos.Credits.List(ctx, f, limit, offset)
}

// ListPayments 信贷的还款记录
func (s *OriginationService) ListPayments(ctx context.Context, creditID uint) ([]*domain.Payment, error) {
	if _, err := s.loadCredit(ctx, creditID); err != nil {
		return nil, err
	}
	return s.repos.Payments.ListByCredit(ctx, creditID)
}
