package followup

import (
	"net/http"

	apphttp "listing_leads_backend/internal/http"
	"listing_leads_backend/internal/scheduler"
	"listing_leads_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes admin triggers for one-off job runs.
type Module struct {
	jobs scheduler.JobEnqueuer
}

func NewModule(jobs scheduler.JobEnqueuer) *Module {
	return &Module{jobs: jobs}
}

func (m *Module) Name() string { return "followup" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	jobs := ctx.Admin.Group("/jobs")
	jobs.POST("/rescore", m.runRescore)
	jobs.POST("/follow-ups", m.runFollowUps)
}

func (m *Module) runRescore(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if err := m.jobs.EnqueueRescore(c.Request.Context(), identity.UserID().String()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"success": true, "message": "Rescore queued"})
}

func (m *Module) runFollowUps(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if err := m.jobs.EnqueueFollowUps(c.Request.Context(), identity.UserID().String()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"success": true, "message": "Follow-up run queued"})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
