package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"github.com/wyfcoding/cartera/pkg/metrics"
	"github.com/wyfcoding/cartera/pkg/utils"
)

// OutboxRelay 将已提交但未发布的账务事件投递到消息队列
type OutboxRelay struct {
	events    domain.LedgerEventRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewOutboxRelay 创建发件箱投递器
func NewOutboxRelay(events domain.LedgerEventRepository, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger, interval time.Duration, batchSize int) *OutboxRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		events:    events,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run 周期性投递直到 ctx 结束
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox flush failed", "error", err)
			}
		}
	}
}

// Flush 投递一批事件，返回成功发布的数量。发布失败时事件保持未发布，下次重试
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	published := 0
	for {
		batch, err := r.events.ListUnpublished(ctx, r.batchSize)
		if err != nil {
			return published, fmt.Errorf("failed to list unpublished events: %w", err)
		}
		if len(batch) == 0 {
			return published, nil
		}
		err = utils.RetryWithBackoff(ctx, 3, 200*time.Millisecond, 2*time.Second, func() error {
			return r.publisher.Publish(ctx, batch)
		})
		if err != nil {
			r.metrics.RecordOutbox(published, len(batch))
			return published, fmt.Errorf("failed to publish %d events: %w", len(batch), err)
		}
		ids := make([]uint, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}
		if err := r.events.MarkPublished(ctx, ids, r.now()); err != nil {
			return published, fmt.Errorf("failed to mark events published: %w", err)
		}
		published += len(batch)
		r.metrics.RecordOutbox(len(batch), 0)
		if len(batch) < r.batchSize {
			return published, nil
		}
	}
}
