package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// LateFeeJob 按 cron 表达式在借款人时区定时计提滞纳金
type LateFeeJob struct {
	svc     *LateFeeService
	cron    *cron.Cron
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewLateFeeJob 创建定时任务，schedule 为标准五段式 cron 表达式
func NewLateFeeJob(svc *LateFeeService, schedule string, loc *time.Location, timeout time.Duration) (*LateFeeJob, error) {
	if loc == nil {
		loc = time.UTC
	}
	j := &LateFeeJob{
		svc:     svc,
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  svc.logger,
		now:     svc.now,
		timeout: timeout,
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid late fee schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start 启动调度，ctx 结束时停止并等待正在执行的任务
func (j *LateFeeJob) Start(ctx context.Context) {
	j.cron.Start()
	j.logger.Info("late fee job scheduled", "entries", len(j.cron.Entries()))
	go func() {
		<-ctx.Done()
		<-j.cron.Stop().Done()
		j.logger.Info("late fee job stopped")
	}()
}

func (j *LateFeeJob) run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	if _, err := j.svc.AccrueLateFees(ctx, j.now()); err != nil {
		j.logger.Error("scheduled late fee accrual failed", "error", err)
	}
}
