package communication

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/domain/shared"
)

// AnalyticsRecorder appends every dispatch attempt to the communication
// history. The history feeds the frequency windows and the engagement rates
// on subsequent sends, so recording failures degrade optimization but must
// never fail a send: Record swallows and logs every internal error.
type AnalyticsRecorder struct {
	events    communication.CommunicationEventRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
	timeout   time.Duration
}

// NewAnalyticsRecorder creates a new AnalyticsRecorder
func NewAnalyticsRecorder(
	events communication.CommunicationEventRepository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	timeout time.Duration,
) *AnalyticsRecorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AnalyticsRecorder{
		events:    events,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// Record appends one history entry for the attempt and publishes the matching
// domain event. It never returns an error; the result's AnalyticsTracked flag
// reports whether the entry was durably written.
func (r *AnalyticsRecorder) Record(ctx context.Context, req *communication.CommunicationRequest, result *communication.CommunicationResult) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	event := communication.NewCommunicationEvent(req, result)
	if err := r.events.Append(ctx, event); err != nil {
		r.logger.Error("Failed to record communication attempt",
			zap.String("user_id", req.UserID.String()),
			zap.String("trigger_type", string(req.TriggerType)),
			zap.String("channel", string(result.Channel)),
			zap.Error(err))
		result.AnalyticsTracked = false
	} else {
		result.AnalyticsTracked = true
	}

	r.publish(ctx, req, result)
}

func (r *AnalyticsRecorder) publish(ctx context.Context, req *communication.CommunicationRequest, result *communication.CommunicationResult) {
	if r.publisher == nil {
		return
	}
	var event shared.DomainEvent
	if result.Success {
		event = communication.NewCommunicationDispatchedEvent(req, result)
	} else {
		event = communication.NewCommunicationFailedEvent(req, result)
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish communication event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

// Ping probes the underlying history store
func (r *AnalyticsRecorder) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.events.Ping(ctx)
}
