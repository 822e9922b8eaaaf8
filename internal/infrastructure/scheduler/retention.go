package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"go.uber.org/zap"
)

// RetentionConfig holds configuration for the history retention job
type RetentionConfig struct {
	CheckInterval time.Duration
	MaxAge        time.Duration
}

// DefaultRetentionConfig returns default configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		CheckInterval: 1 * time.Hour,
		MaxAge:        90 * 24 * time.Hour,
	}
}

// RetentionJob periodically deletes communication history entries older than
// the configured maximum age
type RetentionJob struct {
	events communication.CommunicationEventRepository
	config RetentionConfig
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(events communication.CommunicationEventRepository, config RetentionConfig, logger *zap.Logger) *RetentionJob {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultRetentionConfig().CheckInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultRetentionConfig().MaxAge
	}
	return &RetentionJob{
		events: events,
		config: config,
		logger: logger,
	}
}

// Start launches the background cleanup loop
func (j *RetentionJob) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go j.loop(ctx)

	j.logger.Info("retention job started",
		zap.Duration("check_interval", j.config.CheckInterval),
		zap.Duration("max_age", j.config.MaxAge),
	)
	return nil
}

// Stop gracefully stops the job
func (j *RetentionJob) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("retention job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *RetentionJob) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass
func (j *RetentionJob) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.config.MaxAge)

	deleted, err := j.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("history cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("history cleanup completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
