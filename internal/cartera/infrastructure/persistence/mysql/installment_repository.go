package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
)

// installmentRepository 还款计划仓储实现
type installmentRepository struct {
	db *gorm.DB
}

// NewInstallmentRepository 创建还款计划仓储
func NewInstallmentRepository(db *gorm.DB) domain.InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *installmentRepository) CreateBatch(ctx context.Context, items []*domain.Installment) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.getDB(ctx).CreateInBatches(items, 100).Error; err != nil {
		return fmt.Errorf("failed to create installments: %w", err)
	}
	return nil
}

func (r *installmentRepository) Get(ctx context.Context, creditID uint, numero int) (*domain.Installment, error) {
	return first[domain.Installment](r.getDB(ctx), "credito_id = ? AND numero_cuota = ?", creditID, numero)
}

func (r *installmentRepository) SetPaid(ctx context.Context, id uint, paid bool) error {
	return r.getDB(ctx).Model(&domain.Installment{}).
		Where("id = ?", id).
		Update("pagado", paid).Error
}

func (r *installmentRepository) MarkInvestorsSettled(ctx context.Context, id uint, at time.Time) error {
	return r.getDB(ctx).Model(&domain.Installment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"liquidado_inversionistas":         true,
			"fecha_liquidacion_inversionistas": at,
		}).Error
}

func (r *installmentRepository) ListByCredit(ctx context.Context, creditID uint) ([]*domain.Installment, error) {
	var items []*domain.Installment
	err := r.getDB(ctx).Where("credito_id = ?", creditID).Order("numero_cuota ASC").Find(&items).Error
	return items, err
}

func (r *installmentRepository) DeleteUnpaidAfter(ctx context.Context, creditID uint, numero int) error {
	err := r.getDB(ctx).
		Where("credito_id = ? AND numero_cuota > ? AND pagado = ?", creditID, numero, false).
		Delete(&domain.Installment{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete installments of credit %d: %w", creditID, err)
	}
	return nil
}

func (r *installmentRepository) ListOverdue(ctx context.Context, creditID uint, today string) ([]domain.Installment, error) {
	var items []domain.Installment
	err := r.getDB(ctx).
		Where("credito_id = ? AND numero_cuota > 0 AND pagado = ? AND fecha_vencimiento < ?", creditID, false, today).
		Order("numero_cuota ASC").
		Find(&items).Error
	return items, err
}

func (r *installmentRepository) CountOverdue(ctx context.Context, today string, statuses []domain.CreditStatus) ([]domain.OverdueCount, error) {
	var out []domain.OverdueCount
	err := r.getDB(ctx).Table("cuotas_credito").
		Select("cuotas_credito.credito_id AS credito_id, COUNT(*) AS cuotas").
		Joins("JOIN creditos ON creditos.id = cuotas_credito.credito_id AND creditos.deleted_at IS NULL").
		Where("cuotas_credito.numero_cuota > 0 AND cuotas_credito.pagado = ? AND cuotas_credito.fecha_vencimiento < ?", false, today).
		Where("creditos.status_credit IN ?", statuses).
		Group("cuotas_credito.credito_id").
		Order("cuotas_credito.credito_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue installments: %w", err)
	}
	return out, nil
}
