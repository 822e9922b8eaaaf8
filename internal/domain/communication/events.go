package communication

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finpilot/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeCommunication = "Communication"

// Event type constants
const (
	EventTypeCommunicationDispatched = "CommunicationDispatched"
	EventTypeCommunicationFailed     = "CommunicationFailed"
	EventTypeCommunicationRejected   = "CommunicationRejected"
	EventTypeCommunicationCancelled  = "CommunicationCancelled"
)

// CommunicationDispatchedEvent is published when a task was accepted by the
// execution substrate
type CommunicationDispatchedEvent struct {
	shared.BaseDomainEvent
	RequestID    uuid.UUID       `json:"request_id"`
	UserID       uuid.UUID       `json:"user_id"`
	TriggerType  TriggerType     `json:"trigger_type"`
	Channel      Channel         `json:"channel"`
	TaskID       string          `json:"task_id"`
	Cost         decimal.Decimal `json:"cost"`
	FallbackUsed bool            `json:"fallback_used"`
}

// NewCommunicationDispatchedEvent creates a new CommunicationDispatchedEvent
func NewCommunicationDispatchedEvent(req *CommunicationRequest, result *CommunicationResult) *CommunicationDispatchedEvent {
	return &CommunicationDispatchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCommunicationDispatched, AggregateTypeCommunication, req.ID),
		RequestID:       req.ID,
		UserID:          req.UserID,
		TriggerType:     req.TriggerType,
		Channel:         result.Channel,
		TaskID:          result.TaskID,
		Cost:            result.Cost,
		FallbackUsed:    result.FallbackUsed,
	}
}

// CommunicationFailedEvent is published when dispatch failed, including after
// an attempted fallback
type CommunicationFailedEvent struct {
	shared.BaseDomainEvent
	RequestID    uuid.UUID   `json:"request_id"`
	UserID       uuid.UUID   `json:"user_id"`
	TriggerType  TriggerType `json:"trigger_type"`
	Channel      Channel     `json:"channel"`
	ErrorMessage string      `json:"error_message"`
	FallbackUsed bool        `json:"fallback_used"`
}

// NewCommunicationFailedEvent creates a new CommunicationFailedEvent
func NewCommunicationFailedEvent(req *CommunicationRequest, result *CommunicationResult) *CommunicationFailedEvent {
	return &CommunicationFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCommunicationFailed, AggregateTypeCommunication, req.ID),
		RequestID:       req.ID,
		UserID:          req.UserID,
		TriggerType:     req.TriggerType,
		Channel:         result.Channel,
		ErrorMessage:    result.ErrorMessage,
		FallbackUsed:    result.FallbackUsed,
	}
}

// CommunicationRejectedEvent is published when validation stopped a request
// before dispatch. Rejected requests never enter the communication history.
type CommunicationRejectedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID   `json:"request_id"`
	UserID      uuid.UUID   `json:"user_id"`
	TriggerType TriggerType `json:"trigger_type"`
	Channel     Channel     `json:"channel"`
	Reason      string      `json:"reason"`
}

// NewCommunicationRejectedEvent creates a new CommunicationRejectedEvent
func NewCommunicationRejectedEvent(req *CommunicationRequest, reason string) *CommunicationRejectedEvent {
	return &CommunicationRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCommunicationRejected, AggregateTypeCommunication, req.ID),
		RequestID:       req.ID,
		UserID:          req.UserID,
		TriggerType:     req.TriggerType,
		Channel:         req.Channel,
		Reason:          reason,
	}
}

// CommunicationCancelledEvent is published when a pending task was revoked
type CommunicationCancelledEvent struct {
	shared.BaseDomainEvent
	TaskID string `json:"task_id"`
}

// NewCommunicationCancelledEvent creates a new CommunicationCancelledEvent
func NewCommunicationCancelledEvent(taskID string) *CommunicationCancelledEvent {
	return &CommunicationCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCommunicationCancelled, AggregateTypeCommunication, uuid.Nil),
		TaskID:          taskID,
	}
}
