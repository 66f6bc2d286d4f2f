// Package grpc 对外暴露 gRPC 标准健康检查，服务状态跟随数据库连通性
package grpc

import (
	"context"
	"time"

	"github.com/wyfcoding/cartera/pkg/logger"
	"github.com/wyfcoding/cartera/pkg/metrics"
	"github.com/wyfcoding/cartera/pkg/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName 健康检查中登记的服务名
const ServiceName = "cartera.v1.Cartera"

// Pinger 依赖探活
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server gRPC 服务及其健康状态
type Server struct {
	*grpc.Server
	health *health.Server
	pinger Pinger
}

// NewServer 创建带日志、指标与 recover 拦截器的 gRPC 服务
func NewServer(m *metrics.Metrics, pinger Pinger) *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
		middleware.GRPCMetricsInterceptor(m),
	))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{Server: srv, health: hs, pinger: pinger}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Check 探活一次并更新状态
func (s *Server) Check(ctx context.Context) bool {
	if s.pinger == nil {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.pinger.PingContext(ctx); err != nil {
		logger.Warn(ctx, "Database ping failed", "error", err)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// WatchHealth 按 interval 周期探活，ctx 结束时标记为 NOT_SERVING
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}
