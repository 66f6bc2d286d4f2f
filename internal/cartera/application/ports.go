// Package application 信贷账务的应用服务：每个用例在一个事务内完成
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"github.com/wyfcoding/cartera/pkg/metrics"
)

// TransactionManager 事务管理器，事务句柄经 context 传递给仓储
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClosureCache 结清详情读模型缓存
type ClosureCache interface {
	Get(ctx context.Context, creditID uint) (*domain.ClosureDetail, error)
	Set(ctx context.Context, creditID uint, detail *domain.ClosureDetail) error
	Invalidate(ctx context.Context, creditIDs ...uint) error
}

// EventPublisher 账务事件发布
type EventPublisher interface {
	Publish(ctx context.Context, events []*domain.LedgerEvent) error
}

// Repositories 应用层使用的全部仓储
type Repositories struct {
	Parties          domain.PartyRepository
	Credits          domain.CreditRepository
	Installments     domain.InstallmentRepository
	Payments         domain.PaymentRepository
	InvestorPayments domain.InvestorPaymentRepository
	LateFees         domain.LateFeeRepository
	Closures         domain.ClosureRepository
	Agreements       domain.AgreementRepository
	Events           domain.LedgerEventRepository
}

// Dependencies 应用服务依赖
type Dependencies struct {
	Tx      TransactionManager
	Repos   Repositories
	Cache   ClosureCache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// 借款人所在时区
	Location  *time.Location
	BatchSize int
	Now       func() time.Time
}

// core 各服务共享的依赖与辅助方法
type core struct {
	tm        TransactionManager
	repos     Repositories
	cache     ClosureCache
	metrics   *metrics.Metrics
	logger    *slog.Logger
	loc       *time.Location
	batchSize int
	now       func() time.Time
	validate  *validator.Validate
}

func newCore(deps Dependencies) core {
	c := core{
		tm:        deps.Tx,
		repos:     deps.Repos,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		loc:       deps.Location,
		batchSize: deps.BatchSize,
		now:       deps.Now,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	if c.cache == nil {
		c.cache = noopCache{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.batchSize <= 0 {
		c.batchSize = 100
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// today 本地时区的当前日期
func (c *core) today(at time.Time) string {
	return at.In(c.loc).Format(domain.DateLayout)
}

// check 校验命令结构体
func (c *core) check(cmd any) error {
	err := c.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError("INVALID_REQUEST",
			fmt.Sprintf("field %s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return domain.NewValidationError("INVALID_REQUEST", err.Error())
}

// invalidate 提交后清理缓存，失败仅记录日志
func (c *core) invalidate(ctx context.Context, creditIDs ...uint) {
	if err := c.cache.Invalidate(ctx, creditIDs...); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate closure cache", "credito_ids", creditIDs, "error", err)
	}
}

// borrowerCredits 借款人名下的全部信贷；余额属于借款人，变动时这些信贷的缓存都要清理
func (c *core) borrowerCredits(ctx context.Context, usuarioID uint) ([]uint, error) {
	ids, err := c.repos.Credits.ListIDsByBorrower(ctx, usuarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits of borrower %d: %w", usuarioID, err)
	}
	return ids, nil
}

// lockCredit 加锁读取信贷，不存在返回 NotFoundError
func (c *core) lockCredit(ctx context.Context, id uint) (*domain.Credit, error) {
	credit, err := c.repos.Credits.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit %d: %w", id, err)
	}
	if credit == nil {
		return nil, creditNotFound(id)
	}
	return credit, nil
}

func (c *core) loadCredit(ctx context.Context, id uint) (*domain.Credit, error) {
	credit, err := c.repos.Credits.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit %d: %w", id, err)
	}
	if credit == nil {
		return nil, creditNotFound(id)
	}
	return credit, nil
}

// appendEvent 在当前事务中追加账务事件
func (c *core) appendEvent(ctx context.Context, creditID uint, tipo domain.LedgerEventType, d domain.Deltas, payload any) error {
	e, err := domain.NewLedgerEvent(creditID, tipo, d, payload, c.now())
	if err != nil {
		return err
	}
	return c.repos.Events.Append(ctx, e)
}

func creditNotFound(id uint) error {
	return domain.NewNotFoundError("CREDIT_NOT_FOUND", fmt.Sprintf("credit %d not found", id))
}

type noopCache struct{}

func (noopCache) Get(context.Context, uint) (*domain.ClosureDetail, error) { return nil, nil }
func (noopCache) Set(context.Context, uint, *domain.ClosureDetail) error { return nil }
func (noopCache) Invalidate(context.Context, ...uint) error { return nil }
