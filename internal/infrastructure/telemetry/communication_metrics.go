// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CommunicationMetrics tracks dispatch volume, rejections, cost and queue
// depth for the communication pipeline.
type CommunicationMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	dispatchTotal *Counter
	rejectedTotal *Counter
	costTotal     *Counter

	// Histogram metrics
	dispatchDuration *Histogram

	// Gauge metrics (point-in-time values)
	queueDepth *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	queueProvider QueueDepthProvider
}

// QueueDepthProvider reports how many tasks are waiting on the execution
// substrate. This interface lets the telemetry layer observe the queue
// without depending on the substrate implementation.
type QueueDepthProvider interface {
	QueueDepth(ctx context.Context) (int64, error)
}

// CommunicationMetricsConfig holds configuration for communication metrics.
type CommunicationMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	QueueProvider   QueueDepthProvider
}

// NewCommunicationMetrics creates a new CommunicationMetrics instance.
func NewCommunicationMetrics(cfg CommunicationMetricsConfig) (*CommunicationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CommunicationMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		queueProvider: cfg.QueueProvider,
	}

	var err error

	cm.dispatchTotal, err = NewCounter(
		cfg.Meter,
		"comm_dispatch_total",
		"Total number of communication dispatch attempts",
		"{dispatches}",
	)
	if err != nil {
		return nil, err
	}

	cm.rejectedTotal, err = NewCounter(
		cfg.Meter,
		"comm_rejected_total",
		"Total number of communication requests rejected by validation",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	cm.costTotal, err = NewCounter(
		cfg.Meter,
		"comm_cost_total",
		"Accumulated dispatch cost in ten-thousandths of a currency unit",
		"{e-4}",
	)
	if err != nil {
		return nil, err
	}

	cm.dispatchDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "comm_dispatch_duration_seconds",
		Description: "End-to-end duration of a single send pipeline run",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	cm.queueDepth, err = NewGauge(
		cfg.Meter,
		"comm_queue_depth",
		"Number of tasks waiting on the execution substrate",
		"{tasks}",
	)
	if err != nil {
		return nil, err
	}

	return cm, nil
}

// RecordDispatch records one dispatch attempt with its terminal status.
func (cm *CommunicationMetrics) RecordDispatch(ctx context.Context, trigger, channel, status string, fallbackUsed bool) {
	cm.dispatchTotal.Inc(ctx,
		AttrTriggerType.String(trigger),
		AttrChannel.String(channel),
		AttrDeliveryStatus.String(status),
		AttrFallbackUsed.Bool(fallbackUsed),
	)
}

// RecordRejection records a request stopped by validation.
func (cm *CommunicationMetrics) RecordRejection(ctx context.Context, trigger string) {
	cm.rejectedTotal.Inc(ctx, AttrTriggerType.String(trigger))
}

// RecordCost accumulates the cost of a successful dispatch. Cost is scaled to
// ten-thousandths so channel rates like 0.0010 stay integral.
func (cm *CommunicationMetrics) RecordCost(ctx context.Context, channel string, cost decimal.Decimal) {
	scaled := cost.Mul(decimal.NewFromInt(10000)).IntPart()
	cm.costTotal.Add(ctx, scaled, AttrChannel.String(channel))
}

// RecordDispatchDuration records how long one send pipeline run took.
func (cm *CommunicationMetrics) RecordDispatchDuration(ctx context.Context, channel string, d time.Duration) {
	cm.dispatchDuration.RecordDuration(ctx, d, AttrChannel.String(channel))
}

// RecordQueueDepth records the current substrate queue depth.
func (cm *CommunicationMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	cm.queueDepth.Record(ctx, depth)
}

// StartPeriodicCollection starts periodic collection of the queue depth
// gauge. This is non-blocking; use Stop() to stop collection.
func (cm *CommunicationMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	cm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 1 * time.Minute
		}

		go cm.runPeriodicCollection(ctx, interval)
	})
}

func (cm *CommunicationMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cm.collectQueueDepth(ctx)

	for {
		select {
		case <-cm.stopChan:
			cm.logger.Info("Stopping periodic communication metrics collection")
			return
		case <-ctx.Done():
			cm.logger.Info("Context cancelled, stopping periodic communication metrics collection")
			return
		case <-ticker.C:
			cm.collectQueueDepth(ctx)
		}
	}
}

func (cm *CommunicationMetrics) collectQueueDepth(ctx context.Context) {
	if cm.queueProvider == nil {
		cm.logger.Debug("No queue provider configured, skipping queue depth collection")
		return
	}

	depth, err := cm.queueProvider.QueueDepth(ctx)
	if err != nil {
		cm.logger.Warn("Failed to read substrate queue depth", zap.Error(err))
		return
	}
	cm.RecordQueueDepth(ctx, depth)
}

// Stop stops the periodic collection.
func (cm *CommunicationMetrics) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewCommunicationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
