package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wyfcoding/cartera/internal/cartera/application"
	closurecache "github.com/wyfcoding/cartera/internal/cartera/infrastructure/cache"
	"github.com/wyfcoding/cartera/internal/cartera/infrastructure/messaging"
	"github.com/wyfcoding/cartera/internal/cartera/infrastructure/persistence/mysql"
	grpcserver "github.com/wyfcoding/cartera/internal/cartera/interfaces/grpc"
	httphandler "github.com/wyfcoding/cartera/internal/cartera/interfaces/http"
	"github.com/wyfcoding/cartera/pkg/cache"
	"github.com/wyfcoding/cartera/pkg/config"
	"github.com/wyfcoding/cartera/pkg/db"
	"github.com/wyfcoding/cartera/pkg/grpcclient"
	"github.com/wyfcoding/cartera/pkg/logger"
	"github.com/wyfcoding/cartera/pkg/metrics"
	"github.com/wyfcoding/cartera/pkg/middleware"
	"github.com/wyfcoding/cartera/pkg/mq"
	"github.com/wyfcoding/cartera/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "configs/cartera/config.toml", "config file path")
	probeAddr  = flag.String("probe", "", "probe the gRPC health service at addr and exit")
)

func main() {
	flag.Parse()

	if *probeAddr != "" {
		os.Exit(probe(*probeAddr))
	}

	// 1. 加载配置
	load := config.Load
	if _, err := os.Stat(*configPath); err != nil {
		// 配置文件不存在时仅使用默认值与环境变量
		load = config.LoadWithDefaults
	}
	cfg, err := load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	log, err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	logger.Info(ctx, "Starting cartera service", "environment", cfg.Environment, "version", cfg.Version)

	loc, err := cfg.Ledger.Location()
	if err != nil {
		logger.Error(ctx, "Invalid ledger timezone", "error", err)
		os.Exit(1)
	}

	// 3. 初始化指标
	m := metrics.New(cfg.ServiceName)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		if err := m.Register(prometheus.DefaultRegisterer); err != nil {
			logger.Error(ctx, "Failed to register metrics", "error", err)
			os.Exit(1)
		}
		metricsServer = metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Error(ctx, "Failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := mysql.AutoMigrate(database.DB); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info(ctx, "Database migrated")
	}

	// 5. 初始化 Redis（结清详情缓存与分布式限流），未启用时使用进程内限流
	var closureCache application.ClosureCache
	var limiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	if cfg.Redis.Enabled {
		rc, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Error(ctx, "Failed to connect Redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		closureCache = closurecache.NewClosureCache(rc, time.Duration(cfg.Ledger.ClosureCacheTTL)*time.Second)
		limiter = ratelimit.NewRedisRateLimiter(rc.GetClient())
	}

	// 6. 初始化仓储与应用服务
	deps := application.Dependencies{
		Tx: db.NewTransactionManager(database.DB),
		Repos: application.Repositories{
			Parties:          mysql.NewPartyRepository(database.DB),
			Credits:          mysql.NewCreditRepository(database.DB),
			Installments:     mysql.NewInstallmentRepository(database.DB),
			Payments:         mysql.NewPaymentRepository(database.DB),
			InvestorPayments: mysql.NewInvestorPaymentRepository(database.DB),
			LateFees:         mysql.NewLateFeeRepository(database.DB),
			Closures:         mysql.NewClosureRepository(database.DB),
			Agreements:       mysql.NewAgreementRepository(database.DB),
			Events:           mysql.NewLedgerEventRepository(database.DB),
		},
		Cache:     closureCache,
		Metrics:   m,
		Logger:    log,
		Location:  loc,
		BatchSize: cfg.Ledger.BatchSize,
		Now:       time.Now,
	}
	services := httphandler.Services{
		Origination: application.NewOriginationService(deps),
		Payments:    application.NewPaymentService(deps),
		LateFees:    application.NewLateFeeService(deps),
		Investors:   application.NewInvestorService(deps),
		Lifecycle:   application.NewLifecycleService(deps),
		Agreements:  application.NewAgreementService(deps),
		Ledger:      application.NewLedgerService(deps),
	}

	// 7. 滞纳金定时任务
	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job, err := application.NewLateFeeJob(services.LateFees, cfg.Ledger.LateFeeCron, loc, 30*time.Minute)
	if err != nil {
		logger.Error(ctx, "Failed to schedule late fee job", "error", err)
		os.Exit(1)
	}
	job.Start(rootCtx)

	// 8. 投资人结算定时任务
	if cfg.Ledger.SettlementCron != "" {
		settlement, err := application.NewSettlementJob(services.Investors, cfg.Ledger.SettlementCron, loc, 30*time.Minute)
		if err != nil {
			logger.Error(ctx, "Failed to schedule settlement job", "error", err)
			os.Exit(1)
		}
		settlement.Start(rootCtx)
	}

	g, gctx := errgroup.WithContext(rootCtx)

	// 9. 发件箱投递（Kafka）
	if cfg.Kafka.Enabled {
		producer := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		defer producer.Close()
		publisher := messaging.NewKafkaEventPublisher(producer, cfg.Ledger.EventsTopic)
		relay := application.NewOutboxRelay(deps.Repos.Events, publisher, m, log,
			time.Duration(cfg.Ledger.OutboxInterval)*time.Second, cfg.Ledger.BatchSize)
		g.Go(func() error { return relay.Run(gctx) })
	}

	// 10. gRPC 服务（健康检查跟随数据库连通性）
	sqlDB, err := database.DB.DB()
	if err != nil {
		logger.Error(ctx, "Failed to get sql.DB", "error", err)
		os.Exit(1)
	}
	grpcSrv := grpcserver.NewServer(m, sqlDB)
	g.Go(func() error {
		grpcSrv.WatchHealth(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		logger.Info(ctx, "Starting gRPC server", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	// 11. HTTP 服务
	httpServer := createHTTPServer(cfg, services, loc, m, limiter)
	g.Go(func() error {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 12. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down cartera service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "cartera service stopped")
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, services httphandler.Services, loc *time.Location, m *metrics.Metrics, limiter ratelimit.RateLimiter) *http.Server {
	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))

	h := httphandler.NewCarteraHandler(services, loc)
	h.RegisterRoutes(router, middleware.RateLimitMiddleware(limiter, cfg.RateLimit))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// probe 容器健康检查：服务为 SERVING 时返回 0
func probe(addr string) int {
	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{Target: addr, RequestTimeout: 3, MaxRetries: 2, RetryDelay: 200})
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		return 1
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := grpcclient.CheckHealth(ctx, conn, grpcserver.ServiceName)
	if err != nil || !ok {
		fmt.Fprintf(os.Stderr, "probe: not serving (%v)\n", err)
		return 1
	}
	return 0
}
