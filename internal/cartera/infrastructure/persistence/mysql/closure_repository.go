package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
)

// closureRepository 结清、坏账与附加金额仓储实现
type closureRepository struct {
	db *gorm.DB
}

// NewClosureRepository 创建结清仓储
func NewClosureRepository(db *gorm.DB) domain.ClosureRepository {
	return &closureRepository{db: db}
}

func (r *closureRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *closureRepository) CreateCancellation(ctx context.Context, rec *domain.CancellationRecord) error {
	if err := r.getDB(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	return nil
}

func (r *closureRepository) CreateBadDebt(ctx context.Context, rec *domain.BadDebtRecord) error {
	if err := r.getDB(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record bad debt: %w", err)
	}
	return nil
}

func (r *closureRepository) GetCancellation(ctx context.Context, creditID uint) (*domain.CancellationRecord, error) {
	return first[domain.CancellationRecord](r.getDB(ctx), "credit_id = ?", creditID)
}

func (r *closureRepository) GetBadDebt(ctx context.Context, creditID uint) (*domain.BadDebtRecord, error) {
	return first[domain.BadDebtRecord](r.getDB(ctx), "credit_id = ?", creditID)
}

func (r *closureRepository) AddExtras(ctx context.Context, extras []*domain.ExtraCharge) error {
	if len(extras) == 0 {
		return nil
	}
	if err := r.getDB(ctx).Create(extras).Error; err != nil {
		return fmt.Errorf("failed to append extra charges: %w", err)
	}
	return nil
}

func (r *closureRepository) ListExtras(ctx context.Context, creditID uint) ([]domain.ExtraCharge, error) {
	var out []domain.ExtraCharge
	err := r.getDB(ctx).Where("credit_id = ?", creditID).Order("id ASC").Find(&out).Error
	return out, err
}
