package communication

import (
	"github.com/shopspring/decimal"

	"github.com/finpilot/backend/internal/domain/communication"
)

// BatchSummary aggregates the outcome of a batch send. Only successful items
// contribute to TotalCost.
type BatchSummary struct {
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}

// TaskStatusDTO is the observed state of a dispatched task
type TaskStatusDTO struct {
	TaskID string                   `json:"task_id"`
	Status communication.TaskStatus `json:"status"`
	Result map[string]any           `json:"result,omitempty"`
}

// Health status values
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
)

// HealthStatus reports the orchestrator's dependency probes
type HealthStatus struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// Healthy reports whether every probed dependency responded
func (h *HealthStatus) Healthy() bool {
	return h.Status == HealthStatusHealthy
}
