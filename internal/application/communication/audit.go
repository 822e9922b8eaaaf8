package communication

import (
	"context"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogger subscribes to communication lifecycle events and writes a
// structured audit trail. It is read-only: it never mutates state and a
// logging failure never affects the pipeline.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates a new AuditLogger
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit")}
}

// EventTypes returns the communication event types the audit trail covers
func (a *AuditLogger) EventTypes() []string {
	return []string{
		communication.EventTypeCommunicationDispatched,
		communication.EventTypeCommunicationFailed,
		communication.EventTypeCommunicationRejected,
		communication.EventTypeCommunicationCancelled,
	}
}

// Handle writes one audit entry per event
func (a *AuditLogger) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *communication.CommunicationDispatchedEvent:
		a.logger.Info("communication dispatched",
			zap.String("event_id", e.EventID().String()),
			zap.String("request_id", e.RequestID.String()),
			zap.String("user_id", e.UserID.String()),
			zap.String("trigger_type", string(e.TriggerType)),
			zap.String("channel", string(e.Channel)),
			zap.String("task_id", e.TaskID),
			zap.String("cost", e.Cost.String()),
			zap.Bool("fallback_used", e.FallbackUsed),
		)
	case *communication.CommunicationFailedEvent:
		a.logger.Warn("communication failed",
			zap.String("event_id", e.EventID().String()),
			zap.String("request_id", e.RequestID.String()),
			zap.String("user_id", e.UserID.String()),
			zap.String("trigger_type", string(e.TriggerType)),
			zap.String("channel", string(e.Channel)),
			zap.String("error", e.ErrorMessage),
			zap.Bool("fallback_used", e.FallbackUsed),
		)
	case *communication.CommunicationRejectedEvent:
		a.logger.Info("communication rejected",
			zap.String("event_id", e.EventID().String()),
			zap.String("request_id", e.RequestID.String()),
			zap.String("user_id", e.UserID.String()),
			zap.String("trigger_type", string(e.TriggerType)),
			zap.String("reason", e.Reason),
		)
	case *communication.CommunicationCancelledEvent:
		a.logger.Info("communication cancelled",
			zap.String("event_id", e.EventID().String()),
			zap.String("task_id", e.TaskID),
		)
	default:
		a.logger.Debug("unrecognized communication event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
	}
	return nil
}
