// Package metrics 提供 Prometheus 指标集合与 /metrics 暴露
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/cartera/pkg/logger"
)

const namespace = "cartera"

// Metrics 指标集合。所有记录方法允许 nil 接收者，便于在测试中省略。
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GRPCRequestsTotal *prometheus.CounterVec

	CreditsOriginated prometheus.Counter
	// 还款结果：full, partial, reversed
	PaymentsTotal   *prometheus.CounterVec
	PaymentDuration prometheus.Histogram
	// 滞纳金计提结果：updated, skipped, failed
	LateFeeCredits *prometheus.CounterVec
	LateFeeRuns    prometheus.Counter
	// 投资人结算结果：settled, failed
	SettlementsTotal *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	AgreementsTotal  prometheus.Counter
	// 发件箱投递结果：published, failed
	OutboxEvents *prometheus.CounterVec
}

// New 创建指标实例
func New(subsystem string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),
		CreditsOriginated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "credits_originated_total",
			Help:      "Credits originated",
		}),
		PaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payments_total",
			Help:      "Payments processed by result",
		}, []string{"result"}),
		PaymentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_apply_duration_seconds",
			Help:      "Payment application duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LateFeeCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "late_fee_credits_total",
			Help:      "Credits visited by late fee accrual, by result",
		}, []string{"result"}),
		LateFeeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "late_fee_runs_total",
			Help:      "Late fee accrual runs",
		}),
		SettlementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "investor_settlements_total",
			Help:      "Investor payment settlements by result",
		}, []string{"result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "credit_transitions_total",
			Help:      "Credit lifecycle transitions by action",
		}, []string{"action"}),
		AgreementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_agreements_total",
			Help:      "Payment agreements created",
		}),
		OutboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_total",
			Help:      "Ledger events relayed to the broker, by result",
		}, []string{"result"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.CreditsOriginated,
		m.PaymentsTotal,
		m.PaymentDuration,
		m.LateFeeCredits,
		m.LateFeeRuns,
		m.SettlementsTotal,
		m.TransitionsTotal,
		m.AgreementsTotal,
		m.OutboxEvents,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}
	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", srv.Addr, "path", path)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(context.Background(), "Prometheus HTTP server failed", "error", err)
		}
	}()
	return srv
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest 记录 gRPC 请求
func (m *Metrics) RecordGRPCRequest(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}

// RecordOrigination 记录放款
func (m *Metrics) RecordOrigination() {
	if m == nil {
		return
	}
	m.CreditsOriginated.Inc()
}

// RecordPayment 记录还款结果与耗时
func (m *Metrics) RecordPayment(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		m.PaymentDuration.Observe(duration.Seconds())
	}
}

// RecordLateFeeRun 记录一次滞纳金计提
func (m *Metrics) RecordLateFeeRun(updated, skipped, failed int) {
	if m == nil {
		return
	}
	m.LateFeeRuns.Inc()
	m.LateFeeCredits.WithLabelValues("updated").Add(float64(updated))
	m.LateFeeCredits.WithLabelValues("skipped").Add(float64(skipped))
	m.LateFeeCredits.WithLabelValues("failed").Add(float64(failed))
}

// RecordSettlement 记录投资人结算
func (m *Metrics) RecordSettlement(settled, failed int) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues("settled").Add(float64(settled))
	m.SettlementsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordTransition 记录状态迁移
func (m *Metrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action).Inc()
}

// RecordAgreement 记录新建还款协议
func (m *Metrics) RecordAgreement() {
	if m == nil {
		return
	}
	m.AgreementsTotal.Inc()
}

// RecordOutbox 记录发件箱投递
func (m *Metrics) RecordOutbox(published, failed int) {
	if m == nil {
		return
	}
	m.OutboxEvents.WithLabelValues("published").Add(float64(published))
	m.OutboxEvents.WithLabelValues("failed").Add(float64(failed))
}
