package communication

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/domain/shared"
	"github.com/finpilot/backend/internal/infrastructure/telemetry"
)

// OrchestratorConfig contains tuning knobs for the Orchestrator
type OrchestratorConfig struct {
	// BatchWorkers bounds how many batch items are processed concurrently
	BatchWorkers int
	// DependencyTimeout bounds each probe in Health and each substrate call
	DependencyTimeout time.Duration
}

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BatchWorkers:      8,
		DependencyTimeout: 5 * time.Second,
	}
}

// Orchestrator composes the communication pipeline: validate, optimize,
// dispatch, record, strictly in that order. It holds no long-lived state of
// its own; each Send is a self-contained sequence of blocking calls.
type Orchestrator struct {
	validator  *RequestValidator
	optimizer  *ChannelOptimizer
	dispatcher *Dispatcher
	recorder   *AnalyticsRecorder
	prefs      communication.PreferenceGateway
	substrate  communication.ExecutionSubstrate
	publisher  shared.EventPublisher
	logger     *zap.Logger
	config     OrchestratorConfig
	metrics    *telemetry.CommunicationMetrics
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	validator *RequestValidator,
	optimizer *ChannelOptimizer,
	dispatcher *Dispatcher,
	recorder *AnalyticsRecorder,
	prefs communication.PreferenceGateway,
	substrate communication.ExecutionSubstrate,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	config OrchestratorConfig,
) *Orchestrator {
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = DefaultOrchestratorConfig().BatchWorkers
	}
	if config.DependencyTimeout <= 0 {
		config.DependencyTimeout = DefaultOrchestratorConfig().DependencyTimeout
	}
	return &Orchestrator{
		validator:  validator,
		optimizer:  optimizer,
		dispatcher: dispatcher,
		recorder:   recorder,
		prefs:      prefs,
		substrate:  substrate,
		publisher:  publisher,
		logger:     logger,
		config:     config,
	}
}

// WithMetrics attaches pipeline metrics recording. The orchestrator works
// without it; all recording calls are skipped when unset.
func (o *Orchestrator) WithMetrics(metrics *telemetry.CommunicationMetrics) *Orchestrator {
	o.metrics = metrics
	return o
}

// Send runs one request through the full pipeline. A validation rejection
// short-circuits before dispatch and before recording: rejected sends leave
// no history entry and therefore never count against frequency caps.
func (o *Orchestrator) Send(ctx context.Context, req *communication.CommunicationRequest) *communication.CommunicationResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "communication", "send",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, req.UserID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrTriggerType, string(req.TriggerType)),
		telemetry.WithAttribute(telemetry.SpanAttrChannel, string(req.Channel)),
	)
	defer span.End()
	started := time.Now()

	outcome := o.validator.Validate(ctx, req)
	if !outcome.Allowed {
		o.logger.Info("Communication rejected",
			zap.String("user_id", req.UserID.String()),
			zap.String("trigger_type", string(req.TriggerType)),
			zap.String("reason", outcome.Reason))
		o.publishRejection(ctx, req, outcome.Reason)
		if o.metrics != nil {
			o.metrics.RecordRejection(ctx, string(req.TriggerType))
		}
		return communication.NewFailureResult(req, outcome.Reason, false)
	}
	if outcome.FailOpen {
		o.logger.Warn("Validation degraded, proceeding fail-open",
			zap.String("user_id", req.UserID.String()),
			zap.String("trigger_type", string(req.TriggerType)))
	}

	optimized := o.optimizer.Optimize(ctx, req)
	result, reservation := o.dispatcher.Dispatch(ctx, optimized, outcome.Reservation)

	// the attempt is recorded before the in-flight slot is returned, so a
	// concurrent request sees either the reservation or the history entry
	o.recorder.Record(ctx, requestForResult(optimized, result), result)
	o.validator.ReleaseReservation(ctx, reservation)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTaskID, result.TaskID,
		telemetry.SpanAttrFallback, result.FallbackUsed,
	)
	if !result.Success {
		telemetry.RecordError(span, errors.New(result.ErrorMessage))
	}
	o.recordDispatch(ctx, req, result, time.Since(started))

	return result
}

// recordDispatch feeds the pipeline outcome into the metrics layer
func (o *Orchestrator) recordDispatch(ctx context.Context, req *communication.CommunicationRequest, result *communication.CommunicationResult, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}

	status := communication.DeliverySent
	if !result.Success {
		status = communication.DeliveryFailed
	}
	o.metrics.RecordDispatch(ctx, string(req.TriggerType), string(result.Channel), string(status), result.FallbackUsed)
	o.metrics.RecordDispatchDuration(ctx, string(result.Channel), elapsed)
	if result.Success {
		o.metrics.RecordCost(ctx, string(result.Channel), result.Cost)
	}
}

// requestForResult resolves which request variant the result describes: the
// fallback attempt carries the swapped channel.
func requestForResult(optimized *communication.CommunicationRequest, result *communication.CommunicationResult) *communication.CommunicationRequest {
	if result.Channel != optimized.Channel && result.Channel.IsSingle() {
		return optimized.WithChannel(result.Channel)
	}
	return optimized
}

// SendBatch processes a batch of requests with a bounded worker pool. Items
// are independent: one item's failure never aborts the rest, results keep the
// input order, and the summary counts only what each item reported.
func (o *Orchestrator) SendBatch(ctx context.Context, reqs []*communication.CommunicationRequest) ([]*communication.CommunicationResult, *BatchSummary) {
	results := make([]*communication.CommunicationResult, len(reqs))
	if len(reqs) == 0 {
		return results, &BatchSummary{TotalCost: decimal.Zero}
	}

	workers := o.config.BatchWorkers
	if workers > len(reqs) {
		workers = len(reqs)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = o.Send(ctx, reqs[i])
			}
		}()
	}
	for i := range reqs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	summary := &BatchSummary{Total: len(reqs), TotalCost: decimal.Zero}
	for _, result := range results {
		if result.Success {
			summary.Successful++
			summary.TotalCost = summary.TotalCost.Add(result.Cost)
		} else {
			summary.Failed++
		}
	}
	return results, summary
}

// GetStatus reports the observed state of a dispatched task. An unreachable
// substrate yields an explicit UNKNOWN status instead of an error.
func (o *Orchestrator) GetStatus(ctx context.Context, taskID string) *TaskStatusDTO {
	ctx, cancel := context.WithTimeout(ctx, o.config.DependencyTimeout)
	defer cancel()

	result, err := o.substrate.GetResult(ctx, taskID)
	if err != nil {
		o.logger.Warn("Task status lookup failed",
			zap.String("task_id", taskID),
			zap.Error(err))
		return &TaskStatusDTO{TaskID: taskID, Status: communication.TaskUnknown}
	}
	return &TaskStatusDTO{TaskID: result.TaskID, Status: result.Status, Result: result.Result}
}

// Cancel revokes a not-yet-executed task, best effort. It returns false on
// any failure and has no effect on work that already completed.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) bool {
	ctx, cancel := context.WithTimeout(ctx, o.config.DependencyTimeout)
	defer cancel()

	revoked, err := o.substrate.Revoke(ctx, taskID)
	if err != nil {
		o.logger.Warn("Task revoke failed",
			zap.String("task_id", taskID),
			zap.Error(err))
		return false
	}
	if revoked && o.publisher != nil {
		if pubErr := o.publisher.Publish(ctx, communication.NewCommunicationCancelledEvent(taskID)); pubErr != nil {
			o.logger.Warn("Failed to publish cancellation event", zap.Error(pubErr))
		}
	}
	return revoked
}

// Health probes each dependency independently; one failed probe degrades the
// overall status without hiding the others.
func (o *Orchestrator) Health(ctx context.Context) *HealthStatus {
	services := map[string]bool{
		"preference":          o.probe(ctx, o.prefs.Ping),
		"analytics":           o.probe(ctx, o.recorder.Ping),
		"execution_substrate": o.probe(ctx, o.substrate.Ping),
	}

	status := HealthStatusHealthy
	for name, ok := range services {
		if !ok {
			o.logger.Warn("Dependency probe failed", zap.String("service", name))
			status = HealthStatusDegraded
		}
	}
	return &HealthStatus{Status: status, Services: services}
}

func (o *Orchestrator) probe(ctx context.Context, ping func(context.Context) error) bool {
	ctx, cancel := context.WithTimeout(ctx, o.config.DependencyTimeout)
	defer cancel()
	return ping(ctx) == nil
}

func (o *Orchestrator) publishRejection(ctx context.Context, req *communication.CommunicationRequest, reason string) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, communication.NewCommunicationRejectedEvent(req, reason)); err != nil {
		o.logger.Warn("Failed to publish rejection event", zap.Error(err))
	}
}
