package communication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PreferenceGateway provides read-only access to user channel preferences and
// consent records. A missing preference record is reported as (nil, nil), not
// as an error, so callers can tell "absent" apart from "lookup failed".
type PreferenceGateway interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*UserChannelPreferences, error)
	CheckConsent(ctx context.Context, userID uuid.UUID, trigger TriggerType, channel Channel) (*ConsentDecision, error)
	Ping(ctx context.Context) error
}

// HistoryFilter narrows a communication history query
type HistoryFilter struct {
	TriggerType *TriggerType
	Channel     *Channel
	Limit       int
}

// CommunicationEventRepository persists and queries the communication history
type CommunicationEventRepository interface {
	Append(ctx context.Context, event *CommunicationEvent) error
	History(ctx context.Context, userID uuid.UUID, filter HistoryFilter) ([]*CommunicationEvent, error)
	// CountSince returns the number of history entries for the (user, trigger)
	// pair recorded at or after the given instant.
	CountSince(ctx context.Context, userID uuid.UUID, trigger TriggerType, since time.Time) (int, error)
	// Engagement computes the rolling engagement snapshot for one channel over
	// the user's most recent window entries on that channel.
	Engagement(ctx context.Context, userID uuid.UUID, channel Channel, window int) (*EngagementSnapshot, error)
	// DeleteOlderThan removes history entries older than the cutoff and
	// returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// TaskStatus is the lifecycle state of a task on the execution substrate
type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskStarted TaskStatus = "STARTED"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailure TaskStatus = "FAILURE"
	TaskRevoked TaskStatus = "REVOKED"
	// TaskUnknown is returned when the substrate is unreachable or the task
	// identifier is not recognized.
	TaskUnknown TaskStatus = "UNKNOWN"
)

// TaskHandle identifies a task accepted by the execution substrate
type TaskHandle struct {
	TaskID      string    `json:"task_id"`
	Handler     string    `json:"handler"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TaskResult is the observed state of a previously submitted task
type TaskResult struct {
	TaskID string         `json:"task_id"`
	Status TaskStatus     `json:"status"`
	Result map[string]any `json:"result,omitempty"`
}

// ExecutionSubstrate is the asynchronous task backend communications are
// dispatched into. Submission is fire-and-forget: Submit returns once the task
// is accepted, not when the message is delivered.
type ExecutionSubstrate interface {
	Submit(ctx context.Context, handler string, userID uuid.UUID, params map[string]any) (*TaskHandle, error)
	GetResult(ctx context.Context, taskID string) (*TaskResult, error)
	Revoke(ctx context.Context, taskID string) (bool, error)
	Ping(ctx context.Context) error
}

// Reservation is an in-flight frequency slot held between the cap check and
// the recording of the attempt.
type Reservation struct {
	UserID      uuid.UUID
	TriggerType TriggerType
	// InFlight is the number of reservations held for this key including this
	// one, at the moment it was taken.
	InFlight int
}

// FrequencyReserver closes the gap between reading frequency counts and
// recording the send. Reserve atomically claims a slot for the (user, trigger)
// key; the caller must Release it once the attempt is recorded or rejected.
type FrequencyReserver interface {
	Reserve(ctx context.Context, userID uuid.UUID, trigger TriggerType) (*Reservation, error)
	Release(ctx context.Context, reservation *Reservation) error
}
