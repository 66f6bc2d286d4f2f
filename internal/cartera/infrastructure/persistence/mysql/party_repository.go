package mysql

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
)

// partyRepository 借款人、客户经理与投资人仓储实现
type partyRepository struct {
	db *gorm.DB
}

// NewPartyRepository 创建参与方仓储
func NewPartyRepository(db *gorm.DB) domain.PartyRepository {
	return &partyRepository{db: db}
}

func (r *partyRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *partyRepository) ResolveBorrower(ctx context.Context, b *domain.Borrower) (*domain.Borrower, error) {
	key := domain.NormalizeName(b.Nombre)
	if key == "" {
		return nil, domain.NewValidationError("BORROWER_NAME_REQUIRED", "borrower name is required")
	}
	existing, err := first[domain.Borrower](r.getDB(ctx), "nombre_clave = ?", key)
	if err != nil || existing != nil {
		return existing, err
	}
	b.NombreClave = key
	b.Version = 1
	if b.SaldoAFavor.IsZero() {
		b.SaldoAFavor = decimal.Zero
	}
	if err := r.getDB(ctx).Create(b).Error; err != nil {
		// 并发创建时唯一索引冲突，重新读取
		if again, ferr := first[domain.Borrower](r.getDB(ctx), "nombre_clave = ?", key); ferr == nil && again != nil {
			return again, nil
		}
		return nil, fmt.Errorf("failed to create borrower: %w", err)
	}
	return b, nil
}

func (r *partyRepository) ResolveAdvisor(ctx context.Context, a *domain.Advisor) (*domain.Advisor, error) {
	key := domain.NormalizeName(a.Nombre)
	if key == "" {
		return nil, nil
	}
	existing, err := first[domain.Advisor](r.getDB(ctx), "nombre_clave = ?", key)
	if err != nil || existing != nil {
		return existing, err
	}
	a.NombreClave = key
	if err := r.getDB(ctx).Create(a).Error; err != nil {
		if again, ferr := first[domain.Advisor](r.getDB(ctx), "nombre_clave = ?", key); ferr == nil && again != nil {
			return again, nil
		}
		return nil, fmt.Errorf("failed to create advisor: %w", err)
	}
	return a, nil
}

func (r *partyRepository) ResolveInvestor(ctx context.Context, i *domain.Investor) (*domain.Investor, error) {
	key := domain.NormalizeName(i.Nombre)
	if key == "" {
		return nil, domain.NewValidationError("INVESTOR_NAME_REQUIRED", "investor name is required")
	}
	existing, err := first[domain.Investor](r.getDB(ctx), "nombre_clave = ?", key)
	if err != nil || existing != nil {
		return existing, err
	}
	i.NombreClave = key
	if err := r.getDB(ctx).Create(i).Error; err != nil {
		if again, ferr := first[domain.Investor](r.getDB(ctx), "nombre_clave = ?", key); ferr == nil && again != nil {
			return again, nil
		}
		return nil, fmt.Errorf("failed to create investor: %w", err)
	}
	return i, nil
}

func (r *partyRepository) GetBorrower(ctx context.Context, id uint) (*domain.Borrower, error) {
	return first[domain.Borrower](r.getDB(ctx), "id = ?", id)
}

func (r *partyRepository) GetBorrowerForUpdate(ctx context.Context, id uint) (*domain.Borrower, error) {
	return first[domain.Borrower](forUpdate(r.getDB(ctx)), "id = ?", id)
}

func (r *partyRepository) SaveBorrowerBalance(ctx context.Context, b *domain.Borrower) error {
	result := r.getDB(ctx).Model(&domain.Borrower{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]any{
			"saldo_a_favor": b.SaldoAFavor,
			"version":       b.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update borrower balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict("borrower", b.ID)
	}
	b.Version++
	return nil
}

func (r *partyRepository) GetInvestor(ctx context.Context, id uint) (*domain.Investor, error) {
	return first[domain.Investor](r.getDB(ctx), "id = ?", id)
}

func (r *partyRepository) ListInvestors(ctx context.Context, limit, offset int) ([]*domain.Investor, int64, error) {
	var total int64
	if err := r.getDB(ctx).Model(&domain.Investor{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*domain.Investor
	if err := r.getDB(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
