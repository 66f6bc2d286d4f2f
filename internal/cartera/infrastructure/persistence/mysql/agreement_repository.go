package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// agreementRepository 还款协议仓储实现
type agreementRepository struct {
	db *gorm.DB
}

// NewAgreementRepository 创建还款协议仓储
func NewAgreementRepository(db *gorm.DB) domain.AgreementRepository {
	return &agreementRepository{db: db}
}

func (r *agreementRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *agreementRepository) Create(ctx context.Context, a *domain.PaymentAgreement) error {
	if err := r.getDB(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create payment agreement: %w", err)
	}
	return nil
}

func (r *agreementRepository) AddPayments(ctx context.Context, links []*domain.AgreementPayment) error {
	if len(links) == 0 {
		return nil
	}
	if err := r.getDB(ctx).Create(links).Error; err != nil {
		return fmt.Errorf("failed to link agreement payments: %w", err)
	}
	return nil
}

func (r *agreementRepository) withCuotas(ctx context.Context) *gorm.DB {
	return r.getDB(ctx).Preload("Cuotas", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("numero_cuota ASC")
	})
}

func (r *agreementRepository) Get(ctx context.Context, id uint) (*domain.PaymentAgreement, error) {
	return first[domain.PaymentAgreement](r.withCuotas(ctx), "id = ?", id)
}

func (r *agreementRepository) GetOpenByCredit(ctx context.Context, creditID uint) (*domain.PaymentAgreement, error) {
	return first[domain.PaymentAgreement](r.withCuotas(ctx),
		"credito_id = ? AND activo = ? AND completado = ?", creditID, true, false)
}

func (r *agreementRepository) Update(ctx context.Context, a *domain.PaymentAgreement) error {
	if err := r.getDB(ctx).Omit(clause.Associations).Save(a).Error; err != nil {
		return fmt.Errorf("failed to update payment agreement %d: %w", a.ID, err)
	}
	return nil
}

func (r *agreementRepository) NextInstallment(ctx context.Context, agreementID uint) (*domain.AgreementInstallment, error) {
	var out domain.AgreementInstallment
	tx := r.getDB(ctx).
		Where("convenio_id = ? AND fecha_pago IS NULL", agreementID).
		Order("numero_cuota ASC").
		Limit(1).
		Find(&out)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}
	return &out, nil
}

func (r *agreementRepository) SaveInstallment(ctx context.Context, i *domain.AgreementInstallment) error {
	return r.getDB(ctx).Save(i).Error
}
