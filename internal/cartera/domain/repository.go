package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 仓储约定：按主键查询不存在时返回 (nil, nil)；ForUpdate 变体在事务内加行锁。
// 事务句柄通过 context 传递，由应用层的事务管理器开启。

// PartyRepository 借款人、客户经理与投资人仓储
type PartyRepository interface {
	// ResolveBorrower 按规范化名称查找借款人，不存在时创建
	ResolveBorrower(ctx context.Context, b *Borrower) (*Borrower, error)
	ResolveAdvisor(ctx context.Context, a *Advisor) (*Advisor, error)
	ResolveInvestor(ctx context.Context, i *Investor) (*Investor, error)

	GetBorrower(ctx context.Context, id uint) (*Borrower, error)
	GetBorrowerForUpdate(ctx context.Context, id uint) (*Borrower, error)
	// SaveBorrowerBalance 乐观锁更新余额，版本不匹配返回 ConflictError
	SaveBorrowerBalance(ctx context.Context, b *Borrower) error
	GetInvestor(ctx context.Context, id uint) (*Investor, error)
	ListInvestors(ctx context.Context, limit, offset int) ([]*Investor, int64, error)
}

// CreditFilter 信贷列表过滤条件
type CreditFilter struct {
	Status    CreditStatus
	UsuarioID uint
}

// CreditRepository 信贷与出资关系仓储
type CreditRepository interface {
	Create(ctx context.Context, c *Credit) error
	Get(ctx context.Context, id uint) (*Credit, error)
	GetForUpdate(ctx context.Context, id uint) (*Credit, error)
	GetByNumero(ctx context.Context, numero string) (*Credit, error)
	// Update 乐观锁保存信贷，版本不匹配返回 ConflictError
	Update(ctx context.Context, c *Credit) error
	List(ctx context.Context, f CreditFilter, limit, offset int) ([]*Credit, int64, error)
	ListIDsByBorrower(ctx context.Context, usuarioID uint) ([]uint, error)

	// ListInvestors 按出资关系主键顺序返回，并预加载投资人
	ListInvestors(ctx context.Context, creditID uint) ([]*CreditInvestor, error)
	SaveInvestors(ctx context.Context, rows []*CreditInvestor) error
}

// OverdueCount 单笔信贷的逾期期数
type OverdueCount struct {
	CreditoID uint
	Cuotas    int
}

// InstallmentRepository 还款计划仓储
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, items []*Installment) error
	Get(ctx context.Context, creditID uint, numero int) (*Installment, error)
	SetPaid(ctx context.Context, id uint, paid bool) error
	MarkInvestorsSettled(ctx context.Context, id uint, at time.Time) error
	ListByCredit(ctx context.Context, creditID uint) ([]*Installment, error)
	// DeleteUnpaidAfter 删除期号大于 numero 的未付分期
	DeleteUnpaidAfter(ctx context.Context, creditID uint, numero int) error
	// ListOverdue 到期日严格早于 today 的未付分期（不含第 0 期）
	ListOverdue(ctx context.Context, creditID uint, today string) ([]Installment, error)
	// CountOverdue 按信贷汇总逾期期数，仅包含指定状态的信贷，按信贷主键升序
	CountOverdue(ctx context.Context, today string, statuses []CreditStatus) ([]OverdueCount, error)
}

// PaymentRepository 还款仓储
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id uint) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	// LatestActive 信贷最近一笔未冲正的还款
	LatestActive(ctx context.Context, creditID uint) (*Payment, error)
	// SumBoletasInMonth 当月未冲正还款的 boleta 合计
	SumBoletasInMonth(ctx context.Context, creditID uint, mes string) (decimal.Decimal, error)
	ListByCredit(ctx context.Context, creditID uint) ([]*Payment, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*Payment, error)
}

// InvestorPaymentRepository 投资人分配仓储
type InvestorPaymentRepository interface {
	CreateBatch(ctx context.Context, rows []*InvestorPayment) error
	ListByPayment(ctx context.Context, pagoID uint) ([]*InvestorPayment, error)
	DeleteByPayment(ctx context.Context, pagoID uint) error
	Get(ctx context.Context, pagoID, investorID uint) (*InvestorPayment, error)
	// ListPending 游标分页：主键大于 afterID 的未结算且未冲正的分配行
	ListPending(ctx context.Context, investorID, afterID uint, limit int) ([]*InvestorPayment, error)
	// ListPendingInvestorIDs 存在未结算且未冲正分配行的投资人，按主键升序
	ListPendingInvestorIDs(ctx context.Context) ([]uint, error)
	// MarkSettled 条件更新 NO_LIQUIDADO -> LIQUIDADO，已结算时返回 false
	MarkSettled(ctx context.Context, id uint, at time.Time) (bool, error)
	AllSettled(ctx context.Context, pagoID uint) (bool, error)
}

// LateFeeRepository 滞纳金仓储
type LateFeeRepository interface {
	GetByCredit(ctx context.Context, creditID uint) (*LateFee, error)
	GetByCreditForUpdate(ctx context.Context, creditID uint) (*LateFee, error)
	Save(ctx context.Context, f *LateFee) error
	CreateWaiver(ctx context.Context, w *LateFeeWaiver) error
}

// ClosureRepository 结清、坏账与附加金额仓储
type ClosureRepository interface {
	CreateCancellation(ctx context.Context, r *CancellationRecord) error
	CreateBadDebt(ctx context.Context, r *BadDebtRecord) error
	GetCancellation(ctx context.Context, creditID uint) (*CancellationRecord, error)
	GetBadDebt(ctx context.Context, creditID uint) (*BadDebtRecord, error)
	AddExtras(ctx context.Context, extras []*ExtraCharge) error
	ListExtras(ctx context.Context, creditID uint) ([]ExtraCharge, error)
}

// AgreementRepository 还款协议仓储
type AgreementRepository interface {
	// Create 同时写入分期
	Create(ctx context.Context, a *PaymentAgreement) error
	AddPayments(ctx context.Context, links []*AgreementPayment) error
	Get(ctx context.Context, id uint) (*PaymentAgreement, error)
	GetOpenByCredit(ctx context.Context, creditID uint) (*PaymentAgreement, error)
	Update(ctx context.Context, a *PaymentAgreement) error
	NextInstallment(ctx context.Context, agreementID uint) (*AgreementInstallment, error)
	SaveInstallment(ctx context.Context, i *AgreementInstallment) error
}

// LedgerEventRepository 账务事件（发件箱）仓储
type LedgerEventRepository interface {
	Append(ctx context.Context, events ...*LedgerEvent) error
	ListByCredits(ctx context.Context, creditIDs []uint) ([]*LedgerEvent, error)
	ListUnpublished(ctx context.Context, limit int) ([]*LedgerEvent, error)
	MarkPublished(ctx context.Context, ids []uint, at time.Time) error
}
