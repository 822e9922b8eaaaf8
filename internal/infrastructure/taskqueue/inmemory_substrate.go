package taskqueue

import (
	"context"
	"sync"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/google/uuid"
)

type memoryTask struct {
	handle communication.TaskHandle
	status communication.TaskStatus
	result map[string]any
}

// InMemorySubstrate implements communication.ExecutionSubstrate with a
// process-local task table. It never executes anything; tasks stay PENDING
// until a test or an embedded worker marks them complete.
type InMemorySubstrate struct {
	mu    sync.Mutex
	tasks map[string]*memoryTask
}

// NewInMemorySubstrate creates a new in-memory substrate
func NewInMemorySubstrate() *InMemorySubstrate {
	return &InMemorySubstrate{
		tasks: make(map[string]*memoryTask),
	}
}

// Submit records a PENDING task and returns its handle
func (s *InMemorySubstrate) Submit(_ context.Context, handler string, _ uuid.UUID, _ map[string]any) (*communication.TaskHandle, error) {
	handle := communication.TaskHandle{
		TaskID:      uuid.NewString(),
		Handler:     handler,
		SubmittedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[handle.TaskID] = &memoryTask{
		handle: handle,
		status: communication.TaskPending,
	}
	return &handle, nil
}

// GetResult reads the stored state of a task
func (s *InMemorySubstrate) GetResult(_ context.Context, taskID string) (*communication.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return &communication.TaskResult{TaskID: taskID, Status: communication.TaskUnknown}, nil
	}
	return &communication.TaskResult{
		TaskID: taskID,
		Status: task.status,
		Result: task.result,
	}, nil
}

// Revoke marks a still-pending task as REVOKED
func (s *InMemorySubstrate) Revoke(_ context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.status != communication.TaskPending {
		return false, nil
	}
	task.status = communication.TaskRevoked
	return true, nil
}

// Complete transitions a task to a terminal status. Used by tests and by
// embedded workers draining the in-memory queue.
func (s *InMemorySubstrate) Complete(taskID string, status communication.TaskStatus, result map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false
	}
	task.status = status
	task.result = result
	return true
}

// QueueDepth reports how many tasks are still pending
func (s *InMemorySubstrate) QueueDepth(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var depth int64
	for _, task := range s.tasks {
		if task.status == communication.TaskPending {
			depth++
		}
	}
	return depth, nil
}

// Ping always succeeds for the in-memory substrate
func (s *InMemorySubstrate) Ping(_ context.Context) error {
	return nil
}
