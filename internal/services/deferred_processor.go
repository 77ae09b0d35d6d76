package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/planloop/backend/internal/infrastructure/buffer"
	"github.com/planloop/backend/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the deferred-write buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// DeferredProcessor delivers buffered counter increments and completion
// replays to Postgres on a cron schedule. Counters are enqueued here instead
// of running inside the copy transaction so their failure can never roll a
// copy back.
type DeferredProcessor struct {
	store      *buffer.Store
	monitor    ConnectionHealth
	activities repository.ActivityRepository
	tasks      repository.TaskRepository
	logger     *zap.Logger
	cron       *cron.Cron
	cfg        ProcessorConfig
}

func NewDeferredProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	activities repository.ActivityRepository,
	tasks repository.TaskRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *DeferredProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dp := &DeferredProcessor{
		store:      store,
		monitor:    monitor,
		activities: activities,
		tasks:      tasks,
		logger:     logger,
		cfg:        cfg,
		cron:       cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = dp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := dp.Drain(ctx); err != nil {
			dp.logger.Error("deferred drain failed", zap.Error(err))
		}
	})

	return dp
}

// Start launches the cron scheduler.
func (dp *DeferredProcessor) Start() {
	if dp == nil || dp.cron == nil {
		return
	}
	dp.cron.Start()
	dp.logger.Info("deferred processor started")
}

// Stop gracefully stops the scheduler.
func (dp *DeferredProcessor) Stop(ctx context.Context) {
	if dp == nil || dp.cron == nil {
		return
	}
	stopCtx := dp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	dp.logger.Info("deferred processor stopped")
}

// Drain processes buffered items synchronously.
func (dp *DeferredProcessor) Drain(ctx context.Context) error {
	if dp == nil || dp.store == nil {
		return nil
	}
	if dp.monitor != nil && !dp.monitor.IsOnline() {
		dp.logger.Debug("skipping deferred drain (offline)")
		return nil
	}

	items, err := dp.store.GetBatch(dp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := dp.processItem(ctx, item); err != nil {
			dp.logger.Error("failed to process deferred item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.Error(err))

			item.Retries++
			if item.Retries >= dp.cfg.MaxRetries {
				dp.logger.Warn("dropping deferred item (max retries reached)", zap.String("item_id", item.ID))
				_ = dp.store.Remove(item)
				continue
			}

			if err := dp.store.Remove(item); err != nil {
				dp.logger.Warn("failed to remove deferred item", zap.Error(err))
			}
			if err := dp.store.Requeue(item); err != nil {
				dp.logger.Error("failed to requeue deferred item", zap.Error(err))
			}
			continue
		}

		if err := dp.store.Remove(item); err != nil {
			dp.logger.Warn("failed to purge processed deferred item", zap.Error(err))
		}
	}
	return nil
}

// Enqueue persists an item for later delivery.
func (dp *DeferredProcessor) Enqueue(item buffer.Item) error {
	if dp == nil || dp.store == nil {
		return fmt.Errorf("deferred processor not configured")
	}
	return dp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (dp *DeferredProcessor) Size() int {
	if dp == nil || dp.store == nil {
		return 0
	}
	size, err := dp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (dp *DeferredProcessor) processItem(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entity {
	case buffer.EntityCounter:
		var payload buffer.CounterPayload
		if err := json.Unmarshal(item.Data, &payload); err != nil {
			return err
		}
		switch item.Operation {
		case buffer.OperationIncrementView:
			return dp.activities.IncrementViewCount(ctx, payload.ActivityID)
		case buffer.OperationIncrementAdoption:
			return dp.activities.IncrementAdoptionCount(ctx, payload.ActivityID)
		default:
			return fmt.Errorf("unsupported counter operation %s", item.Operation)
		}

	case buffer.EntityCompletion:
		var payload buffer.CompletionPayload
		if err := json.Unmarshal(item.Data, &payload); err != nil {
			return err
		}
		_, err := dp.tasks.SetCompleted(ctx, payload.TaskID, payload.Completed)
		return err

	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}
