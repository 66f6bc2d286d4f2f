// Package mysql 信贷账务的 GORM 仓储实现，兼容 MySQL、PostgreSQL 与 SQLite
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	pkgdb "github.com/wyfcoding/cartera/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models 需要迁移的全部表
func Models() []any {
	return []any{
		&domain.Borrower{},
		&domain.Investor{},
		&domain.Advisor{},
		&domain.Credit{},
		&domain.CreditInvestor{},
		&domain.Installment{},
		&domain.Payment{},
		&domain.InvestorPayment{},
		&domain.LateFee{},
		&domain.LateFeeWaiver{},
		&domain.CancellationRecord{},
		&domain.BadDebtRecord{},
		&domain.ExtraCharge{},
		&domain.PaymentAgreement{},
		&domain.AgreementPayment{},
		&domain.AgreementInstallment{},
		&domain.LedgerEvent{},
	}
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate cartera schema: %w", err)
	}
	return nil
}

func conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	return pkgdb.Conn(ctx, base)
}

// forUpdate 行锁，SQLite 方言会忽略该子句
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// first 查询单行，不存在时返回 (nil, nil)
func first[T any](tx *gorm.DB, query any, args ...any) (*T, error) {
	var out T
	if err := tx.Where(query, args...).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func versionConflict(entity string, id uint) error {
	return domain.NewConflictError("VERSION_CONFLICT",
		fmt.Sprintf("%s %d was modified concurrently", entity, id))
}
