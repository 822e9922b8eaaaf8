package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueuePrefix = "finpilot:tasks"
	defaultResultTTL   = 24 * time.Hour
)

// taskEnvelope is the wire form of a queued task
type taskEnvelope struct {
	TaskID      string         `json:"task_id"`
	Handler     string         `json:"handler"`
	UserID      uuid.UUID      `json:"user_id"`
	Params      map[string]any `json:"params"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// resultRecord is the stored observable state of a task
type resultRecord struct {
	TaskID string                   `json:"task_id"`
	Status communication.TaskStatus `json:"status"`
	Result map[string]any           `json:"result,omitempty"`
}

// RedisSubstrate implements communication.ExecutionSubstrate on a Redis list
// queue. Workers consume envelopes from the queue key and write their outcome
// back to the per-task result key.
type RedisSubstrate struct {
	client      *redis.Client
	queuePrefix string
	resultTTL   time.Duration
}

// NewRedisSubstrate creates a substrate with an existing Redis client
func NewRedisSubstrate(client *redis.Client, queuePrefix string, resultTTL time.Duration) *RedisSubstrate {
	if queuePrefix == "" {
		queuePrefix = defaultQueuePrefix
	}
	if resultTTL <= 0 {
		resultTTL = defaultResultTTL
	}
	return &RedisSubstrate{
		client:      client,
		queuePrefix: queuePrefix,
		resultTTL:   resultTTL,
	}
}

func (s *RedisSubstrate) queueKey() string {
	return s.queuePrefix + ":queue"
}

func (s *RedisSubstrate) resultKey(taskID string) string {
	return fmt.Sprintf("%s:result:%s", s.queuePrefix, taskID)
}

// Submit enqueues a task envelope and records a PENDING result. It returns
// once the envelope is accepted by the queue, not when the task runs.
func (s *RedisSubstrate) Submit(ctx context.Context, handler string, userID uuid.UUID, params map[string]any) (*communication.TaskHandle, error) {
	envelope := taskEnvelope{
		TaskID:      uuid.NewString(),
		Handler:     handler,
		UserID:      userID,
		Params:      params,
		SubmittedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task envelope: %w", err)
	}

	record, err := json.Marshal(resultRecord{
		TaskID: envelope.TaskID,
		Status: communication.TaskPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode task result: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.resultKey(envelope.TaskID), record, s.resultTTL)
	pipe.LPush(ctx, s.queueKey(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &communication.TaskHandle{
		TaskID:      envelope.TaskID,
		Handler:     envelope.Handler,
		SubmittedAt: envelope.SubmittedAt,
	}, nil
}

// GetResult reads the stored state of a task. Unknown or expired task
// identifiers yield an UNKNOWN status, not an error.
func (s *RedisSubstrate) GetResult(ctx context.Context, taskID string) (*communication.TaskResult, error) {
	raw, err := s.client.Get(ctx, s.resultKey(taskID)).Bytes()
	if err == redis.Nil {
		return &communication.TaskResult{TaskID: taskID, Status: communication.TaskUnknown}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task result: %w", err)
	}

	var record resultRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode task result: %w", err)
	}

	return &communication.TaskResult{
		TaskID: record.TaskID,
		Status: record.Status,
		Result: record.Result,
	}, nil
}

// Revoke removes a still-pending task from the queue and marks it REVOKED.
// Tasks already picked up by a worker cannot be revoked.
func (s *RedisSubstrate) Revoke(ctx context.Context, taskID string) (bool, error) {
	result, err := s.GetResult(ctx, taskID)
	if err != nil {
		return false, err
	}
	if result.Status != communication.TaskPending {
		return false, nil
	}

	removed, err := s.removeFromQueue(ctx, taskID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	record, err := json.Marshal(resultRecord{
		TaskID: taskID,
		Status: communication.TaskRevoked,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode task result: %w", err)
	}
	if err := s.client.Set(ctx, s.resultKey(taskID), record, s.resultTTL).Err(); err != nil {
		return false, fmt.Errorf("failed to mark task revoked: %w", err)
	}
	return true, nil
}

// removeFromQueue scans the queue for the envelope carrying the task ID and
// removes it. The queue is short-lived so a linear scan is acceptable.
func (s *RedisSubstrate) removeFromQueue(ctx context.Context, taskID string) (bool, error) {
	entries, err := s.client.LRange(ctx, s.queueKey(), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to scan task queue: %w", err)
	}

	for _, entry := range entries {
		var envelope taskEnvelope
		if err := json.Unmarshal([]byte(entry), &envelope); err != nil {
			continue
		}
		if envelope.TaskID != taskID {
			continue
		}
		removed, err := s.client.LRem(ctx, s.queueKey(), 1, entry).Result()
		if err != nil {
			return false, fmt.Errorf("failed to remove task from queue: %w", err)
		}
		return removed > 0, nil
	}
	return false, nil
}

// QueueDepth reports how many envelopes are waiting in the queue
func (s *RedisSubstrate) QueueDepth(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.queueKey()).Result()
}

// Ping checks Redis connectivity
func (s *RedisSubstrate) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
