package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcomm "github.com/finpilot/backend/internal/application/communication"
	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/interfaces/http/dto"
)

// CommunicationHandler handles communication orchestration HTTP requests.
// The send, status, cancel and batch endpoints answer in the flat contract
// consumed by the dispatch clients, not the standard response envelope.
type CommunicationHandler struct {
	BaseHandler
	orchestrator *appcomm.Orchestrator
}

// NewCommunicationHandler creates a new CommunicationHandler
func NewCommunicationHandler(orchestrator *appcomm.Orchestrator) *CommunicationHandler {
	return &CommunicationHandler{
		orchestrator: orchestrator,
	}
}

// RegisterRoutes registers all communication routes
func (h *CommunicationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	comm := rg.Group("/communication")
	{
		comm.POST("/send", h.Send)
		comm.GET("/status/:task_id", h.GetStatus)
		comm.POST("/cancel/:task_id", h.Cancel)
		comm.POST("/batch", h.SendBatch)
		comm.GET("/health", h.Health)
		comm.GET("/trigger-types", h.GetTriggerTypes)
	}
}

// Send runs one communication through the orchestration pipeline. Validation
// rejections and terminal dispatch failures are part of the contract, not
// transport errors: they come back as HTTP 200 with success=false.
func (h *CommunicationHandler) Send(c *gin.Context) {
	var req dto.SendCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	domainReq, err := toDomainRequest(&req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	result := h.orchestrator.Send(c.Request.Context(), domainReq)
	c.JSON(http.StatusOK, dto.NewSendCommunicationResponse(result))
}

// SendBatch processes a batch of communications. Items are independent; one
// item failing never aborts the rest. Items that fail domain validation are
// reported in place as success=false without reaching the pipeline.
func (h *CommunicationHandler) SendBatch(c *gin.Context) {
	var req dto.BatchCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	// Items that do not form a valid domain request are settled up front;
	// the remainder is dispatched as one batch and stitched back in order.
	responses := make([]dto.SendCommunicationResponse, len(req.Communications))
	domainReqs := make([]*communication.CommunicationRequest, 0, len(req.Communications))
	positions := make([]int, 0, len(req.Communications))
	invalid := 0
	for i := range req.Communications {
		domainReq, err := toDomainRequest(&req.Communications[i])
		if err != nil {
			responses[i] = dto.SendCommunicationResponse{Success: false, Error: err.Error()}
			invalid++
			continue
		}
		domainReqs = append(domainReqs, domainReq)
		positions = append(positions, i)
	}

	results, summary := h.orchestrator.SendBatch(c.Request.Context(), domainReqs)
	for j, result := range results {
		responses[positions[j]] = dto.NewSendCommunicationResponse(result)
	}

	c.JSON(http.StatusOK, dto.BatchCommunicationResponse{
		Success: true,
		Results: responses,
		Summary: dto.BatchSummaryResponse{
			Total:      summary.Total + invalid,
			Successful: summary.Successful,
			Failed:     summary.Failed + invalid,
			TotalCost:  summary.TotalCost,
		},
	})
}

// GetStatus reports the observed state of a dispatched task. Unknown or
// expired task ids answer with status UNKNOWN rather than an error.
func (h *CommunicationHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		h.BadRequest(c, "Task ID is required")
		return
	}

	status := h.orchestrator.GetStatus(c.Request.Context(), taskID)
	c.JSON(http.StatusOK, dto.TaskStatusResponse{
		TaskID: status.TaskID,
		Status: string(status.Status),
		Result: status.Result,
	})
}

// Cancel revokes a not-yet-executed task, best effort
func (h *CommunicationHandler) Cancel(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		h.BadRequest(c, "Task ID is required")
		return
	}

	if h.orchestrator.Cancel(c.Request.Context(), taskID) {
		c.JSON(http.StatusOK, dto.CancelTaskResponse{
			Success: true,
			Message: "Task cancelled",
		})
		return
	}
	c.JSON(http.StatusOK, dto.CancelTaskResponse{
		Success: false,
		Message: "Task could not be cancelled",
	})
}

// Health probes the pipeline's dependencies. Answers 503 when any probe
// fails so load balancers can steer traffic away.
func (h *CommunicationHandler) Health(c *gin.Context) {
	health := h.orchestrator.Health(c.Request.Context())

	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.CommunicationHealthResponse{
		Status:   health.Status,
		Services: health.Services,
	})
}

// GetTriggerTypes serves the static trigger catalog
func (h *CommunicationHandler) GetTriggerTypes(c *gin.Context) {
	catalog := communication.Catalog()
	entries := make([]dto.TriggerTypeEntry, 0, len(catalog))
	for _, entry := range catalog {
		entries = append(entries, dto.TriggerTypeEntry{
			TriggerType:     string(entry.TriggerType),
			DisplayName:     entry.DisplayName,
			DefaultChannel:  string(entry.DefaultChannel),
			DefaultPriority: string(entry.DefaultPriority),
		})
	}
	c.JSON(http.StatusOK, dto.TriggerTypesResponse{TriggerTypes: entries})
}

// toDomainRequest converts the HTTP body into a validated domain request
func toDomainRequest(req *dto.SendCommunicationRequest) (*communication.CommunicationRequest, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, err
	}

	domainReq, err := communication.NewCommunicationRequest(
		userID,
		communication.TriggerType(req.TriggerType),
		communication.Channel(req.Channel),
		communication.Priority(req.Priority),
		communication.Payload(req.Data),
	)
	if err != nil {
		return nil, err
	}
	if req.ScheduledTime != nil {
		domainReq = domainReq.WithScheduledAt(*req.ScheduledTime)
	}
	return domainReq, nil
}
