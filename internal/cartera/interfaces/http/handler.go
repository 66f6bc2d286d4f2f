package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"github.com/wyfcoding/cartera/pkg/logger"
	"github.com/wyfcoding/cartera/pkg/utils"
)

// Services HTTP 层依赖的应用服务
type Services struct {
	Origination *application.OriginationService
	Payments    *application.PaymentService
	LateFees    *application.LateFeeService
	Investors   *application.InvestorService
	Lifecycle   *application.LifecycleService
	Agreements  *application.AgreementService
	Ledger      *application.LedgerService
}

// CarteraHandler HTTP 处理器
type CarteraHandler struct {
	svc Services
	// 解析 as_of 日期使用的时区
	loc *time.Location
}

// NewCarteraHandler 创建 HTTP 处理器
func NewCarteraHandler(svc Services, loc *time.Location) *CarteraHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CarteraHandler{svc: svc, loc: loc}
}

// RegisterRoutes 注册路由，writeMiddleware 仅作用于写操作（限流等）
func (h *CarteraHandler) RegisterRoutes(router *gin.Engine, writeMiddleware ...gin.HandlerFunc) {
	api := router.Group("/api/v1")
	{
		api.GET("/creditos", h.ListCredits)
		api.GET("/creditos/:id", h.GetCredit)
		api.GET("/creditos/:id/pagos", h.ListPayments)
		api.GET("/creditos/:id/cierre", h.GetClosureDetail)
		api.GET("/creditos/:id/cotizacion-cancelacion", h.CancellationQuote)
		api.GET("/creditos/:id/conciliacion", h.Reconcile)
		api.GET("/convenios/:id", h.GetAgreement)
		api.GET("/inversionistas", h.ListInvestors)
		api.GET("/inversionistas/:id/resumen", h.InvestorSummary)
	}

	write := api.Group("", writeMiddleware...)
	{
		write.POST("/creditos", h.OriginateCredit)
		write.PATCH("/creditos/:id", h.UpdateCredit)
		write.POST("/creditos/:id/pagos", h.ApplyPayment)
		write.POST("/pagos/:id/reversa", h.ReversePayment)
		write.POST("/moras/acumular", h.AccrueLateFees)
		write.POST("/creditos/:id/mora/condonar", h.WaiveLateFee)
		write.POST("/creditos/:id/estado", h.TransitionCreditStatus)
		write.POST("/creditos/:id/convenios", h.CreatePaymentAgreement)
		write.POST("/creditos/:id/convenios/pagos", h.ApplyAgreementPayment)
		write.POST("/inversionistas/:id/liquidar", h.SettleInvestorPayments)
		write.POST("/pagos/:id/inversionistas/:inversionista_id/liquidar", h.SettlePayment)
	}
}

// writeError 按错误分类映射 HTTP 状态码
func writeError(c *gin.Context, err error, msg string, args ...any) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindInvariant:
		status = http.StatusUnprocessableEntity
	}

	ctx := c.Request.Context()
	if status == http.StatusInternalServerError {
		logger.Error(ctx, msg, append(args, "error", err)...)
		c.JSON(status, gin.H{"error": "internal error", "code": "INTERNAL"})
		return
	}
	logger.Warn(ctx, msg, append(args, "error", err)...)
	c.JSON(status, gin.H{"error": err.Error(), "code": domain.CodeOf(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_REQUEST"})
}

// paramID 解析路径中的数字 ID
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer", "code": "INVALID_ID"})
		return 0, false
	}
	return uint(id), true
}

func pagination(c *gin.Context) *utils.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return utils.NewPagination(page, size, 0)
}

func withTotal(p *utils.Pagination, total int64) *utils.Pagination {
	return utils.NewPagination(p.Page, p.PageSize, total)
}

// OriginateCredit 放款
func (h *CarteraHandler) OriginateCredit(c *gin.Context) {
	var req application.OriginateCreditCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	credit, err := h.svc.Origination.OriginateCredit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to originate credit", "numero_credito", req.NumeroCredito)
		return
	}
	c.JSON(http.StatusCreated, credit)
}

// ListCredits 分页查询信贷
func (h *CarteraHandler) ListCredits(c *gin.Context) {
	p := pagination(c)
	filter := domain.CreditFilter{Status: domain.CreditStatus(c.Query("status"))}
	if u := c.Query("usuario_id"); u != "" {
		id, err := strconv.ParseUint(u, 10, 64)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.UsuarioID = uint(id)
	}
	list, total, err := h.svc.Origination.ListCredits(c.Request.Context(), filter, p.Limit(), p.Offset())
	if err != nil {
		writeError(c, err, "Failed to list credits")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "pagination": withTotal(p, total)})
}

// GetCredit 查询信贷详情
func (h *CarteraHandler) GetCredit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Origination.GetCredit(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get credit", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateCredit 部分更新信贷
func (h *CarteraHandler) UpdateCredit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req application.UpdateCreditCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreditoID = id
	credit, err := h.svc.Origination.UpdateCredit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to update credit", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, credit)
}

// ListPayments 信贷还款记录
func (h *CarteraHandler) ListPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pagos, err := h.svc.Origination.ListPayments(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to list payments", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pagos})
}

// ApplyPayment 还款入账
func (h *CarteraHandler) ApplyPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req application.ApplyPaymentCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreditoID = id
	payment, err := h.svc.Payments.ApplyPayment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to apply payment", "credito_id", id, "numero_cuota", req.NumeroCuota)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ReversePayment 冲正最近一笔还款
func (h *CarteraHandler) ReversePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Payments.ReversePayment(c.Request.Context(), id); err != nil {
		writeError(c, err, "Failed to reverse payment", "pago_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reversed", "pago_id": id})
}

// AccrueLateFees 手动触发滞纳金计提，as_of 为本地日期 YYYY-MM-DD
func (h *CarteraHandler) AccrueLateFees(c *gin.Context) {
	asOf := time.Now()
	if s := c.Query("as_of"); s != "" {
		t, err := time.ParseInLocation(domain.DateLayout, s, h.loc)
		if err != nil {
			badRequest(c, errors.New("as_of must be YYYY-MM-DD"))
			return
		}
		asOf = t
	}
	res, err := h.svc.LateFees.AccrueLateFees(c.Request.Context(), asOf)
	if err != nil {
		writeError(c, err, "Failed to accrue late fees")
		return
	}
	c.JSON(http.StatusOK, res)
}

// WaiveLateFee 免除滞纳金
func (h *CarteraHandler) WaiveLateFee(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req application.WaiveLateFeeCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreditoID = id
	waiver, err := h.svc.LateFees.WaiveLateFee(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to waive late fee", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, waiver)
}

// ListInvestors 分页查询投资人
func (h *CarteraHandler) ListInvestors(c *gin.Context) {
	p := pagination(c)
	list, total, err := h.svc.Investors.ListInvestors(c.Request.Context(), p.Limit(), p.Offset())
	if err != nil {
		writeError(c, err, "Failed to list investors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "pagination": withTotal(p, total)})
}

// SettleInvestorPayments 结算投资人全部待结算款项
func (h *CarteraHandler) SettleInvestorPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Investors.SettleInvestorPayments(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to settle investor payments", "inversionista_id", id)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SettlePayment 结算单笔还款中某投资人的款项
func (h *CarteraHandler) SettlePayment(c *gin.Context) {
	pagoID, ok := paramID(c, "id")
	if !ok {
		return
	}
	invID, ok := paramID(c, "inversionista_id")
	if !ok {
		return
	}
	line, err := h.svc.Investors.SettlePayment(c.Request.Context(), pagoID, invID)
	if err != nil {
		writeError(c, err, "Failed to settle payment", "pago_id", pagoID, "inversionista_id", invID)
		return
	}
	c.JSON(http.StatusOK, line)
}

// InvestorSummary 投资人汇总
func (h *CarteraHandler) InvestorSummary(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.Investors.InvestorSummary(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get investor summary", "inversionista_id", id)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// TransitionCreditStatus 状态迁移
func (h *CarteraHandler) TransitionCreditStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req application.TransitionCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreditoID = id
	snap, err := h.svc.Lifecycle.TransitionCreditStatus(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to transition credit", "credito_id", id, "accion", req.Accion)
		return
	}
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "credito_id": id})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetClosureDetail 结清详情
func (h *CarteraHandler) GetClosureDetail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.svc.Lifecycle.GetClosureDetail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get closure detail", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CancellationQuote 提前结清报价
func (h *CarteraHandler) CancellationQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	quote, err := h.svc.Lifecycle.CancellationQuote(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to quote cancellation", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreatePaymentAgreement 建立还款协议
func (h *CarteraHandler) CreatePaymentAgreement(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req application.CreateAgreementCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreditoID = id
	a, err := h.svc.Agreements.CreatePaymentAgreement(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to create payment agreement", "credito_id", id)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ApplyAgreementPayment 协议还款
func (h *CarteraHandler) ApplyAgreementPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req application.ApplyAgreementPaymentCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreditoID = id
	view, err := h.svc.Agreements.ApplyAgreementPayment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to apply agreement payment", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetAgreement 查询协议
func (h *CarteraHandler) GetAgreement(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Agreements.GetAgreement(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get agreement", "convenio_id", id)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reconcile 对账：事件日志回放与物化余额比对
func (h *CarteraHandler) Reconcile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	report, err := h.svc.Ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to reconcile credit", "credito_id", id)
		return
	}
	c.JSON(http.StatusOK, report)
}
