package handler

import (
	"context"
	"net/http"
	"strconv"

	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/internal/notification/preferences"
	"listing_leads_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Inbox interface {
	List(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]inapp.Notification, int, error)
	CountUnread(ctx context.Context, ownerID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, ownerID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type PreferenceService interface {
	Get(ctx context.Context, ownerID uuid.UUID) (preferences.View, error)
	Update(ctx context.Context, ownerID uuid.UUID, patch preferences.Override) (preferences.View, error)
}

// TestNotifyFunc sends a sample alert through the owner's channels.
type TestNotifyFunc func(ctx context.Context, ownerID uuid.UUID) (any, error)

type HTTPHandler struct {
	inbox  Inbox
	prefs  PreferenceService
	test   TestNotifyFunc
	stream gin.HandlerFunc
}

func NewHTTPHandler(inbox Inbox, prefs PreferenceService, test TestNotifyFunc, stream gin.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{inbox: inbox, prefs: prefs, test: test, stream: stream}
}

func (h *HTTPHandler) RegisterInboxRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread-count", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.POST("/read-all", h.MarkAllRead)
	rg.DELETE("/:id", h.Delete)
	if h.stream != nil {
		rg.GET("/stream", h.stream)
	}
}

func (h *HTTPHandler) RegisterPreferenceRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetPreferences)
	rg.PUT("", h.UpdatePreferences)
	rg.POST("/test", h.SendTest)
}

// OwnerID resolves the authenticated owner for the SSE stream.
func OwnerID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	items, total, err := h.inbox.List(c.Request.Context(), identity.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := h.inbox.CountUnread(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"count": count})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}

	if err := h.inbox.MarkRead(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	updated, err := h.inbox.MarkAllRead(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok", "updated": updated})
}

func (h *HTTPHandler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}

	if err := h.inbox.Delete(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) GetPreferences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	view, err := h.prefs.Get(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"success": true, "data": view})
}

func (h *HTTPHandler) UpdatePreferences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var patch preferences.Override
	if err := c.ShouldBindJSON(&patch); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	view, err := h.prefs.Update(c.Request.Context(), identity.UserID(), patch)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"success": true, "data": view, "message": "Notification preferences updated"})
}

func (h *HTTPHandler) SendTest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.test(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"success": true, "data": result, "message": "Test notification sent"})
}
