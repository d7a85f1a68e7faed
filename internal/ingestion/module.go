package ingestion

import (
	apphttp "listing_leads_backend/internal/http"
)

// Module is the ingestion bounded context module implementing http.Module.
type Module struct {
	service       *Service
	handler       *Handler
	webhookSecret string
}

// NewModule creates the ingestion module around an assembled service.
func NewModule(service *Service, webhookSecret string) *Module {
	return &Module{
		service:       service,
		handler:       NewHandler(service),
		webhookSecret: webhookSecret,
	}
}

// Service exposes the gateways for the mailbox poller.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingestion"
}

// RegisterRoutes mounts the public capture and webhook routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/leads", m.handler.HandleCreateLead)

	hooks := ctx.Public.Group("/webhooks")
	hooks.Use(APIKeyAuthMiddleware(m.webhookSecret))
	hooks.POST("/messages", m.handler.HandleInboundMessage)
	hooks.POST("/email", m.handler.HandleInboundEmail)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
