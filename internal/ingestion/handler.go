package ingestion

import (
	"net/http"

	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const errInvalidRequest = "invalid request body"

// Handler handles the public ingestion endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new ingestion handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createLeadResponse struct {
	Success bool         `json:"success"`
	Data    *domain.Lead `json:"data"`
	Message string       `json:"message"`
}

type webhookResponse struct {
	Success bool       `json:"success"`
	LeadID  *uuid.UUID `json:"leadId,omitempty"`
	IsNew   bool       `json:"isNew"`
	Pending bool       `json:"pending"`
}

// HandleCreateLead captures a lead from the public form.
// POST /api/v1/leads
func (h *Handler) HandleCreateLead(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	result, err := h.service.CaptureWebLead(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	if result.Outcome == OutcomeAppended {
		c.JSON(http.StatusOK, createLeadResponse{Success: true, Data: result.Lead, Message: "Existing lead updated"})
		return
	}
	c.JSON(http.StatusCreated, createLeadResponse{Success: true, Data: result.Lead, Message: "Lead captured successfully"})
}

// HandleInboundMessage processes the messaging provider webhook. Both JSON
// and form-encoded bodies are accepted.
// POST /api/v1/webhooks/messages
func (h *Handler) HandleInboundMessage(c *gin.Context) {
	var payload MessagePayload
	if err := c.ShouldBind(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	result, err := h.service.HandleInboundMessage(c.Request.Context(), payload)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, toWebhookResponse(result))
}

// HandleInboundEmail processes the inbound email webhook.
// POST /api/v1/webhooks/email
func (h *Handler) HandleInboundEmail(c *gin.Context) {
	var payload EmailPayload
	if err := c.ShouldBind(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	result, err := h.service.HandleInboundEmail(c.Request.Context(), payload)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, toWebhookResponse(result))
}

func toWebhookResponse(r Result) webhookResponse {
	return webhookResponse{
		Success: true,
		LeadID:  r.LeadID(),
		IsNew:   r.Outcome == OutcomeCreated,
		Pending: r.Outcome == OutcomePending,
	}
}
