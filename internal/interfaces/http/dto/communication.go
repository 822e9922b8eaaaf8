package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpilot/backend/internal/domain/communication"
)

// SendCommunicationRequest is the body of POST /communication/send. Channel
// and priority are optional; when omitted they default from the trigger
// catalog. ScheduledTime pins an explicit send time and disables send-time
// optimization for this request.
type SendCommunicationRequest struct {
	UserID        string         `json:"user_id" binding:"required,uuid"`
	TriggerType   string         `json:"trigger_type" binding:"required"`
	Data          map[string]any `json:"data"`
	Channel       string         `json:"channel" binding:"omitempty,oneof=SMS EMAIL BOTH"`
	Priority      string         `json:"priority" binding:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	ScheduledTime *time.Time     `json:"scheduled_time"`
}

// SendCommunicationResponse is the flat result contract of a single send.
// Rejections and terminal dispatch failures come back as success=false with
// a human-readable error; all other fields are zero in that case.
type SendCommunicationResponse struct {
	Success          bool            `json:"success"`
	TaskID           string          `json:"task_id,omitempty"`
	Cost             decimal.Decimal `json:"cost"`
	FallbackUsed     bool            `json:"fallback_used"`
	AnalyticsTracked bool            `json:"analytics_tracked"`
	Error            string          `json:"error,omitempty"`
}

// NewSendCommunicationResponse maps a pipeline result onto the flat contract
func NewSendCommunicationResponse(result *communication.CommunicationResult) SendCommunicationResponse {
	return SendCommunicationResponse{
		Success:          result.Success,
		TaskID:           result.TaskID,
		Cost:             result.Cost,
		FallbackUsed:     result.FallbackUsed,
		AnalyticsTracked: result.AnalyticsTracked,
		Error:            result.ErrorMessage,
	}
}

// BatchCommunicationRequest is the body of POST /communication/batch
type BatchCommunicationRequest struct {
	Communications []SendCommunicationRequest `json:"communications" binding:"required,min=1,dive"`
}

// BatchSummaryResponse aggregates a batch outcome
type BatchSummaryResponse struct {
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}

// BatchCommunicationResponse is the response of POST /communication/batch.
// Results are in request order; Success reflects the batch being accepted,
// not every item succeeding.
type BatchCommunicationResponse struct {
	Success bool                        `json:"success"`
	Results []SendCommunicationResponse `json:"results"`
	Summary BatchSummaryResponse        `json:"summary"`
}

// TaskStatusResponse is the response of GET /communication/status/:task_id
type TaskStatusResponse struct {
	TaskID string         `json:"task_id"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
}

// CancelTaskResponse is the response of POST /communication/cancel/:task_id
type CancelTaskResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CommunicationHealthResponse reports the orchestrator's dependency probes.
// Served with HTTP 503 when status is degraded.
type CommunicationHealthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// TriggerTypeEntry describes one trigger type in the static catalog
type TriggerTypeEntry struct {
	TriggerType     string `json:"trigger_type"`
	DisplayName     string `json:"display_name"`
	DefaultChannel  string `json:"default_channel"`
	DefaultPriority string `json:"default_priority"`
}

// TriggerTypesResponse is the response of GET /communication/trigger-types
type TriggerTypesResponse struct {
	TriggerTypes []TriggerTypeEntry `json:"trigger_types"`
}
