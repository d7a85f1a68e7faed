// Package leads wires the owner-facing lead surface: listing, stats,
// status updates and manual rescoring.
package leads

import (
	"listing_leads_backend/internal/events"
	apphttp "listing_leads_backend/internal/http"
	"listing_leads_backend/internal/leads/handler"
	"listing_leads_backend/internal/leads/management"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/leads/scoring"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo       *repository.Repository
	scoring    *scoring.Service
	management *management.Service
	handler    *handler.Handler
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, listingReader listings.Reader, eventBus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	scoringSvc := scoring.New(repo, listingReader, scoring.NewEngine(log), log)
	mgmtSvc := management.New(repo, scoringSvc, eventBus)

	return &Module{
		repo:       repo,
		scoring:    scoringSvc,
		management: mgmtSvc,
		handler:    handler.New(mgmtSvc),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository returns the shared lead store for ingestion and notifications.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// ScoringService returns the persisted-score service.
func (m *Module) ScoringService() *scoring.Service {
	return m.scoring
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
