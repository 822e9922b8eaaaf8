package communication

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommunicationResult is the outcome of one orchestration call. Fallback
// retries are internal to the dispatcher and collapse into this single
// result: Success=true means exactly one underlying dispatch attempt
// succeeded, and FallbackUsed records whether it was the fallback.
type CommunicationResult struct {
	Success          bool            // Whether a dispatch attempt succeeded
	MessageID        uuid.UUID       // Identity of the request that produced this result
	TaskID           string          // Task identifier on the execution substrate
	Channel          Channel         // Channel the successful (or final) attempt used
	Cost             decimal.Decimal // Unit cost of the successful dispatch; zero on failure
	ErrorMessage     string          // Rejection reason or concatenated dispatch errors
	FallbackUsed     bool            // True whenever a fallback attempt was made
	AnalyticsTracked bool            // Whether the attempt was recorded in history
}

// NewSuccessResult builds a result for a successful dispatch
func NewSuccessResult(req *CommunicationRequest, taskID string, cost decimal.Decimal, fallbackUsed bool) *CommunicationResult {
	return &CommunicationResult{
		Success:      true,
		MessageID:    req.ID,
		TaskID:       taskID,
		Channel:      req.Channel,
		Cost:         cost,
		FallbackUsed: fallbackUsed,
	}
}

// NewFailureResult builds a result for a failed or rejected communication
func NewFailureResult(req *CommunicationRequest, errMsg string, fallbackUsed bool) *CommunicationResult {
	return &CommunicationResult{
		Success:      false,
		MessageID:    req.ID,
		Channel:      req.Channel,
		Cost:         decimal.Zero,
		ErrorMessage: errMsg,
		FallbackUsed: fallbackUsed,
	}
}
