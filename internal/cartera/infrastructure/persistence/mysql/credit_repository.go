package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// creditRepository 信贷仓储实现
type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository 创建信贷仓储
func NewCreditRepository(db *gorm.DB) domain.CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *creditRepository) Create(ctx context.Context, c *domain.Credit) error {
	if c.Version == 0 {
		c.Version = 1
	}
	if err := r.getDB(ctx).Create(c).Error; err != nil {
		// 并发放款同一编号时由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("CREDIT_EXISTS", fmt.Sprintf("credit %s already exists", c.NumeroCredito)).WithCause(err)
		}
		return fmt.Errorf("failed to create credit: %w", err)
	}
	return nil
}

func (r *creditRepository) Get(ctx context.Context, id uint) (*domain.Credit, error) {
	return first[domain.Credit](r.getDB(ctx), "id = ?", id)
}

func (r *creditRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Credit, error) {
	return first[domain.Credit](forUpdate(r.getDB(ctx)), "id = ?", id)
}

func (r *creditRepository) GetByNumero(ctx context.Context, numero string) (*domain.Credit, error) {
	return first[domain.Credit](r.getDB(ctx), "numero_credito = ?", numero)
}

// Update 保存全部可变列并递增版本号
func (r *creditRepository) Update(ctx context.Context, c *domain.Credit) error {
	result := r.getDB(ctx).Model(&domain.Credit{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]any{
			"numero_credito":               c.NumeroCredito,
			"asesor_id":                    c.AsesorID,
			"capital":                      c.Capital,
			"porcentaje_interes":           c.PorcentajeInteres,
			"cuota_interes":                c.CuotaInteres,
			"iva_12":                       c.IVA12,
			"cuota":                        c.Cuota,
			"seguro":                       c.Seguro,
			"gps":                          c.GPS,
			"membresias":                   c.Membresias,
			"otros":                        c.Otros,
			"plazo":                        c.Plazo,
			"deudatotal":                   c.DeudaTotal,
			"porcentaje_participacion":     c.PorcentajeParticipacion,
			"monto_asignado_inversionista": c.MontoAsignadoInversionista,
			"iva_inversionista":            c.IVAInversionista,
			"porcentaje_cash_in":           c.PorcentajeCashIn,
			"cuota_cash_in":                c.CuotaCashIn,
			"iva_cash_in":                  c.IVACashIn,
			"formato_credito":              c.FormatoCredito,
			"status_credit":                c.StatusCredit,
			"observaciones":                c.Observaciones,
			"version":                      c.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update credit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict("credit", c.ID)
	}
	c.Version++
	return nil
}

func (r *creditRepository) List(ctx context.Context, f domain.CreditFilter, limit, offset int) ([]*domain.Credit, int64, error) {
	query := r.getDB(ctx).Model(&domain.Credit{})
	if f.Status != "" {
		query = query.Where("status_credit = ?", f.Status)
	}
	if f.UsuarioID != 0 {
		query = query.Where("usuario_id = ?", f.UsuarioID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*domain.Credit
	if err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *creditRepository) ListIDsByBorrower(ctx context.Context, usuarioID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&domain.Credit{}).
		Where("usuario_id = ?", usuarioID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *creditRepository) ListInvestors(ctx context.Context, creditID uint) ([]*domain.CreditInvestor, error) {
	var rows []*domain.CreditInvestor
	err := r.getDB(ctx).Preload("Investor").
		Where("credito_id = ?", creditID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// SaveInvestors 新行插入，已有行按主键更新，不级联保存投资人
func (r *creditRepository) SaveInvestors(ctx context.Context, rows []*domain.CreditInvestor) error {
	for _, row := range rows {
		tx := r.getDB(ctx).Omit(clause.Associations)
		var err error
		if row.ID == 0 {
			err = tx.Create(row).Error
		} else {
			err = tx.Save(row).Error
		}
		if err != nil {
			return fmt.Errorf("failed to save investor %d on credit %d: %w", row.InversionistaID, row.CreditoID, err)
		}
	}
	return nil
}
