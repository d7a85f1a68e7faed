package handler

import (
	"net/http"

	"listing_leads_backend/internal/leads/management"
	"listing_leads_backend/internal/leads/transport"
	"listing_leads_backend/platform/httpkit"
	"listing_leads_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *management.Service
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *management.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/stats", h.Stats)
	rg.GET("/high-priority", h.HighPriority)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/rescore", h.Rescore)
}

func actorFrom(c *gin.Context) (management.Actor, bool) {
	identity := httpkit.GetIdentity(c)
	if identity == nil || !identity.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return management.Actor{}, false
	}
	return management.Actor{ID: identity.UserID(), Admin: identity.IsAdmin()}, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) HighPriority(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req transport.HighPriorityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.HighPriority(c.Request.Context(), actor, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Stats(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

func (h *Handler) GetByID(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Rescore(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.Rescore(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
