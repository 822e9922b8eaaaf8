package communication

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finpilot/backend/internal/domain/shared"
)

// DeliveryStatus is the terminal outcome of a dispatch attempt
type DeliveryStatus string

const (
	// DeliverySent means the task was accepted by the execution substrate
	DeliverySent DeliveryStatus = "SENT"
	// DeliveryFailed means submission failed, including after fallback
	DeliveryFailed DeliveryStatus = "FAILED"
)

// CommunicationEvent is one entry in the communication history. Every dispatch
// attempt, successful or not, appends exactly one event. Frequency windows and
// engagement rates are both derived from this log.
type CommunicationEvent struct {
	shared.BaseEntity
	UserID       uuid.UUID
	TriggerType  TriggerType
	Channel      Channel
	Priority     Priority
	Status       DeliveryStatus
	TaskID       string
	Cost         decimal.Decimal
	ErrorMessage string
	FallbackUsed bool
	OpenedAt     *time.Time
	ClickedAt    *time.Time
	ActionedAt   *time.Time
}

// NewCommunicationEvent builds a history entry from a dispatch result
func NewCommunicationEvent(req *CommunicationRequest, result *CommunicationResult) *CommunicationEvent {
	status := DeliverySent
	if !result.Success {
		status = DeliveryFailed
	}
	return &CommunicationEvent{
		BaseEntity:   shared.NewBaseEntity(),
		UserID:       req.UserID,
		TriggerType:  req.TriggerType,
		Channel:      result.Channel,
		Priority:     req.Priority,
		Status:       status,
		TaskID:       result.TaskID,
		Cost:         result.Cost,
		ErrorMessage: result.ErrorMessage,
		FallbackUsed: result.FallbackUsed,
	}
}

// Engaged reports whether the user interacted with the message in any way
func (e *CommunicationEvent) Engaged() bool {
	return e.OpenedAt != nil || e.ClickedAt != nil || e.ActionedAt != nil
}

// MarkOpened records that the user opened the message
func (e *CommunicationEvent) MarkOpened(at time.Time) {
	if e.OpenedAt == nil {
		e.OpenedAt = &at
		e.Touch()
	}
}

// MarkClicked records that the user clicked through the message
func (e *CommunicationEvent) MarkClicked(at time.Time) {
	if e.ClickedAt == nil {
		e.ClickedAt = &at
		e.Touch()
	}
}

// MarkActioned records that the user completed the call to action
func (e *CommunicationEvent) MarkActioned(at time.Time) {
	if e.ActionedAt == nil {
		e.ActionedAt = &at
		e.Touch()
	}
}
