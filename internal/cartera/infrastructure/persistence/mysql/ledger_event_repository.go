package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
)

// ledgerEventRepository 账务事件仓储实现，事件与业务数据同事务写入
type ledgerEventRepository struct {
	db *gorm.DB
}

// NewLedgerEventRepository 创建账务事件仓储
func NewLedgerEventRepository(db *gorm.DB) domain.LedgerEventRepository {
	return &ledgerEventRepository{db: db}
}

func (r *ledgerEventRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *ledgerEventRepository) Append(ctx context.Context, events ...*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := r.getDB(ctx).Create(events).Error; err != nil {
		return fmt.Errorf("failed to append ledger events: %w", err)
	}
	return nil
}

func (r *ledgerEventRepository) ListByCredits(ctx context.Context, creditIDs []uint) ([]*domain.LedgerEvent, error) {
	if len(creditIDs) == 0 {
		return nil, nil
	}
	var out []*domain.LedgerEvent
	err := r.getDB(ctx).Where("credito_id IN ?", creditIDs).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *ledgerEventRepository) ListUnpublished(ctx context.Context, limit int) ([]*domain.LedgerEvent, error) {
	var out []*domain.LedgerEvent
	err := r.getDB(ctx).Where("publicado = ?", false).Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *ledgerEventRepository) MarkPublished(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.getDB(ctx).Model(&domain.LedgerEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"publicado": true, "published_at": at}).Error
}
