package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SettlementJob 定时结算投资人待结算的分配行
type SettlementJob struct {
	svc     *InvestorService
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// NewSettlementJob 创建结算任务，schedule 按 loc 解释
func NewSettlementJob(svc *InvestorService, schedule string, loc *time.Location, timeout time.Duration) (*SettlementJob, error) {
	if loc == nil {
		loc = time.UTC
	}
	j := &SettlementJob{
		svc:     svc,
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  svc.logger,
		timeout: timeout,
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid settlement schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start 启动调度，ctx 结束时停止
func (j *SettlementJob) Start(ctx context.Context) {
	j.cron.Start()
	j.logger.Info("settlement job scheduled", "entries", len(j.cron.Entries()))
	go func() {
		<-ctx.Done()
		<-j.cron.Stop().Done()
		j.logger.Info("settlement job stopped")
	}()
}

func (j *SettlementJob) run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	results, err := j.svc.SettlePending(ctx)
	if err != nil {
		j.logger.Error("scheduled investor settlement failed", "error", err)
		return
	}
	settled, failed := 0, 0
	for _, r := range results {
		settled += r.Count
		failed += r.Failed
	}
	j.logger.Info("scheduled investor settlement finished",
		"investors", len(results),
		"settled", settled,
		"failed", failed)
}
