package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
)

// lateFeeRepository 滞纳金仓储实现
type lateFeeRepository struct {
	db *gorm.DB
}

// NewLateFeeRepository 创建滞纳金仓储
func NewLateFeeRepository(db *gorm.DB) domain.LateFeeRepository {
	return &lateFeeRepository{db: db}
}

func (r *lateFeeRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *lateFeeRepository) GetByCredit(ctx context.Context, creditID uint) (*domain.LateFee, error) {
	return first[domain.LateFee](r.getDB(ctx), "credito_id = ?", creditID)
}

func (r *lateFeeRepository) GetByCreditForUpdate(ctx context.Context, creditID uint) (*domain.LateFee, error) {
	return first[domain.LateFee](forUpdate(r.getDB(ctx)), "credito_id = ?", creditID)
}

func (r *lateFeeRepository) Save(ctx context.Context, f *domain.LateFee) error {
	if err := r.getDB(ctx).Save(f).Error; err != nil {
		return fmt.Errorf("failed to save late fee for credit %d: %w", f.CreditoID, err)
	}
	return nil
}

func (r *lateFeeRepository) CreateWaiver(ctx context.Context, w *domain.LateFeeWaiver) error {
	if err := r.getDB(ctx).Create(w).Error; err != nil {
		return fmt.Errorf("failed to record late fee waiver: %w", err)
	}
	return nil
}
