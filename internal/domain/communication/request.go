package communication

import (
	"time"

	"github.com/finpilot/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Payload holds the template variables for a communication
type Payload map[string]any

// CommunicationRequest describes a single communication to be orchestrated.
// Requests are immutable once created: the optimizer and the fallback path
// always derive a new request instead of mutating in place, so the request
// observed at each pipeline step is stable.
type CommunicationRequest struct {
	shared.BaseEntity
	UserID      uuid.UUID   // The user this communication targets
	TriggerType TriggerType // What caused this communication
	Channel     Channel     // Requested delivery channel
	Priority    Priority    // Urgency; CRITICAL dispatches immediately
	Payload     Payload     // Template variables
	ScheduledAt *time.Time  // Optional explicit send time
	RetryCount  int         // Number of fallback attempts so far
	MaxRetries  int         // Upper bound on fallback attempts
}

// DefaultMaxRetries is the fallback budget for a request that does not set one
const DefaultMaxRetries = 1

// NewCommunicationRequest creates a validated communication request. Channel
// and priority default from the trigger catalog when left empty.
func NewCommunicationRequest(userID uuid.UUID, trigger TriggerType, channel Channel, priority Priority, payload Payload) (*CommunicationRequest, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if !trigger.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRIGGER_TYPE", "Invalid trigger type")
	}

	defaults := CatalogEntryFor(trigger)
	if channel == "" {
		channel = defaults.DefaultChannel
	}
	if priority == "" {
		priority = defaults.DefaultPriority
	}
	if !channel.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Invalid channel")
	}
	if !priority.IsValid() {
		return nil, shared.NewDomainError("INVALID_PRIORITY", "Invalid priority")
	}
	if payload == nil {
		payload = make(Payload)
	}

	return &CommunicationRequest{
		BaseEntity:  shared.NewBaseEntity(),
		UserID:      userID,
		TriggerType: trigger,
		Channel:     channel,
		Priority:    priority,
		Payload:     payload,
		MaxRetries:  DefaultMaxRetries,
	}, nil
}

// WithScheduledAt returns a copy of the request with an explicit send time
func (r *CommunicationRequest) WithScheduledAt(at time.Time) *CommunicationRequest {
	c := r.clone()
	c.ScheduledAt = &at
	return c
}

// WithChannel returns a copy of the request targeting a different channel
func (r *CommunicationRequest) WithChannel(channel Channel) *CommunicationRequest {
	c := r.clone()
	c.Channel = channel
	return c
}

// Fallback derives the fallback request for a failed dispatch: same payload,
// same identity, channel swapped to the other single channel, retry count
// incremented. Returns an error when no fallback channel exists (channel is
// BOTH) or the retry budget is exhausted.
func (r *CommunicationRequest) Fallback() (*CommunicationRequest, error) {
	if !r.Channel.IsSingle() {
		return nil, shared.NewDomainError("NO_FALLBACK_CHANNEL", "Channel BOTH has no fallback channel")
	}
	if r.RetryCount >= r.MaxRetries {
		return nil, shared.NewDomainError("RETRIES_EXHAUSTED", "Fallback retry budget exhausted")
	}
	c := r.clone()
	c.Channel = r.Channel.Other()
	c.RetryCount = r.RetryCount + 1
	return c, nil
}

// HasExplicitSchedule reports whether the caller supplied a send time
func (r *CommunicationRequest) HasExplicitSchedule() bool {
	return r.ScheduledAt != nil
}

// clone returns a deep copy of the request
func (r *CommunicationRequest) clone() *CommunicationRequest {
	c := *r
	c.Payload = make(Payload, len(r.Payload))
	for k, v := range r.Payload {
		c.Payload[k] = v
	}
	if r.ScheduledAt != nil {
		at := *r.ScheduledAt
		c.ScheduledAt = &at
	}
	return &c
}
