package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"gorm.io/gorm"
)

// paymentRepository 还款仓储实现
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建还款仓储
func NewPaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if err := r.getDB(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id uint) (*domain.Payment, error) {
	return first[domain.Payment](r.getDB(ctx), "id = ?", id)
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	if err := r.getDB(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to update payment %d: %w", p.ID, err)
	}
	return nil
}

func (r *paymentRepository) LatestActive(ctx context.Context, creditID uint) (*domain.Payment, error) {
	var p domain.Payment
	tx := r.getDB(ctx).Where("credito_id = ? AND reversado = ?", creditID, false).
		Order("id DESC").
		Limit(1).
		Find(&p)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}
	return &p, nil
}

// SumBoletasInMonth 在内存中求和，避免各方言对 decimal 聚合的差异
func (r *paymentRepository) SumBoletasInMonth(ctx context.Context, creditID uint, mes string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.getDB(ctx).Model(&domain.Payment{}).
		Where("credito_id = ? AND mes_pagado = ? AND reversado = ?", creditID, mes, false).
		Pluck("monto_boleta", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return domain.Sum(amounts...), nil
}

func (r *paymentRepository) ListByCredit(ctx context.Context, creditID uint) ([]*domain.Payment, error) {
	var out []*domain.Payment
	err := r.getDB(ctx).Where("credito_id = ?", creditID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *paymentRepository) ListByIDs(ctx context.Context, ids []uint) ([]*domain.Payment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*domain.Payment
	err := r.getDB(ctx).Where("id IN ?", ids).Order("id ASC").Find(&out).Error
	return out, err
}

// investorPaymentRepository 投资人分配仓储实现
type investorPaymentRepository struct {
	db *gorm.DB
}

// NewInvestorPaymentRepository 创建投资人分配仓储
func NewInvestorPaymentRepository(db *gorm.DB) domain.InvestorPaymentRepository {
	return &investorPaymentRepository{db: db}
}

func (r *investorPaymentRepository) getDB(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db)
}

func (r *investorPaymentRepository) CreateBatch(ctx context.Context, rows []*domain.InvestorPayment) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.getDB(ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("failed to create investor payments: %w", err)
	}
	return nil
}

func (r *investorPaymentRepository) ListByPayment(ctx context.Context, pagoID uint) ([]*domain.InvestorPayment, error) {
	var out []*domain.InvestorPayment
	err := r.getDB(ctx).Where("pago_id = ?", pagoID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *investorPaymentRepository) DeleteByPayment(ctx context.Context, pagoID uint) error {
	return r.getDB(ctx).Where("pago_id = ?", pagoID).Delete(&domain.InvestorPayment{}).Error
}

func (r *investorPaymentRepository) Get(ctx context.Context, pagoID, investorID uint) (*domain.InvestorPayment, error) {
	return first[domain.InvestorPayment](r.getDB(ctx), "pago_id = ? AND inversionista_id = ?", pagoID, investorID)
}

func (r *investorPaymentRepository) ListPending(ctx context.Context, investorID, afterID uint, limit int) ([]*domain.InvestorPayment, error) {
	var out []*domain.InvestorPayment
	err := r.getDB(ctx).
		Joins("JOIN pagos_credito ON pagos_credito.id = pagos_credito_inversionistas.pago_id").
		Where("pagos_credito_inversionistas.inversionista_id = ?", investorID).
		Where("pagos_credito_inversionistas.estado_liquidacion = ?", domain.SettlementPending).
		Where("pagos_credito.reversado = ?", false).
		Where("pagos_credito_inversionistas.id > ?", afterID).
		Order("pagos_credito_inversionistas.id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *investorPaymentRepository) ListPendingInvestorIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&domain.InvestorPayment{}).
		Joins("JOIN pagos_credito ON pagos_credito.id = pagos_credito_inversionistas.pago_id").
		Where("pagos_credito_inversionistas.estado_liquidacion = ?", domain.SettlementPending).
		Where("pagos_credito.reversado = ?", false).
		Distinct("pagos_credito_inversionistas.inversionista_id").
		Order("pagos_credito_inversionistas.inversionista_id ASC").
		Pluck("pagos_credito_inversionistas.inversionista_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list investors with pending payments: %w", err)
	}
	return ids, nil
}

func (r *investorPaymentRepository) MarkSettled(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.getDB(ctx).Model(&domain.InvestorPayment{}).
		Where("id = ? AND estado_liquidacion = ?", id, domain.SettlementPending).
		Updates(map[string]any{
			"estado_liquidacion": domain.SettlementDone,
			"fecha_liquidacion":  at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to settle investor payment %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *investorPaymentRepository) AllSettled(ctx context.Context, pagoID uint) (bool, error) {
	var pending int64
	err := r.getDB(ctx).Model(&domain.InvestorPayment{}).
		Where("pago_id = ? AND estado_liquidacion = ?", pagoID, domain.SettlementPending).
		Count(&pending).Error
	return pending == 0, err
}
