// Package notification alerts listing owners about captured leads. It
// subscribes to lead events, resolves the owner's preferences and dispatches
// to every configured channel.
package notification

import (
	"context"

	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/events"
	apphttp "listing_leads_backend/internal/http"
	"listing_leads_backend/internal/listings"
	notifhandler "listing_leads_backend/internal/notification/handler"
	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/internal/notification/preferences"
	"listing_leads_backend/internal/notification/ratelimit"
	"listing_leads_backend/internal/notification/sse"
	"listing_leads_backend/platform/config"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// notifier is the slice of the orchestrator the event handlers drive.
type notifier interface {
	NotifyLeadCaptured(ctx context.Context, leadID uuid.UUID) (Result, error)
	NotifyEmailInquiry(ctx context.Context, leadID uuid.UUID) (Result, error)
}

type livePublisher interface {
	Publish(ownerID uuid.UUID, event sse.Event)
}

// ModuleDeps carries the collaborators owned by other modules.
type ModuleDeps struct {
	Pool      *pgxpool.Pool
	Redis     redis.Scripter
	Leads     LeadReader
	Listings  ListingReader
	Owners    listings.OwnerReader
	SMS       SMSSender
	Messaging MessagingSender
	Email     email.Sender
	Config    config.NotificationConfig
	Log       *logger.Logger
}

// Module handles all notification-related event subscriptions.
type Module struct {
	orchestrator *Orchestrator
	notifier     notifier
	inAppService *inapp.Service
	preferences  *preferences.Service
	sse          *sse.Service
	live         livePublisher
	handler      *notifhandler.HTTPHandler
	log          *logger.Logger
}

// New creates a new notification module.
func New(deps ModuleDeps) *Module {
	log := deps.Log

	prefSvc := preferences.NewService(preferences.NewRepository(deps.Pool), log)
	inAppSvc := inapp.NewService(inapp.NewRepository(deps.Pool), deps.Config.GetNotificationRetention(), log)
	sseSvc := sse.New(log)
	inAppSvc.SetSSE(sseSvc)

	var limiter RateLimiter
	if deps.Redis != nil {
		limiter = ratelimit.New(deps.Redis, log)
	}

	orch := NewOrchestrator(Deps{
		Leads:       deps.Leads,
		Listings:    deps.Listings,
		Owners:      deps.Owners,
		Preferences: prefSvc,
		Limiter:     limiter,
		SMS:         deps.SMS,
		Messaging:   deps.Messaging,
		Email:       deps.Email,
		InApp:       inAppSvc,
		Attempts:    NewAttemptRepository(deps.Pool),
	}, Options{
		AppBaseURL:     deps.Config.GetAppBaseURL(),
		ChannelTimeout: deps.Config.GetChannelTimeout(),
	}, log)

	m := &Module{
		orchestrator: orch,
		notifier:     orch,
		inAppService: inAppSvc,
		preferences:  prefSvc,
		sse:          sseSvc,
		live:         sseSvc,
		log:          log,
	}
	m.handler = notifhandler.NewHTTPHandler(inAppSvc, prefSvc, m.sendTest, sseSvc.Handler(notifhandler.OwnerID))
	return m
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers the inbox, stream and preference routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterInboxRoutes(ctx.Protected.Group("/notifications"))
	m.handler.RegisterPreferenceRoutes(ctx.Protected.Group("/notification-preferences"))
}

// Orchestrator exposes the dispatcher for the follow-up scheduler.
func (m *Module) Orchestrator() *Orchestrator { return m.orchestrator }

// InAppService exposes the in-app notification service for integration points.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// SSE exposes the live stream so shutdown can close it.
func (m *Module) SSE() *sse.Service { return m.sse }

func (m *Module) sendTest(ctx context.Context, ownerID uuid.UUID) (any, error) {
	return m.orchestrator.SendTestNotification(ctx, ownerID)
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadCaptured{}.EventName(), m)
	bus.Subscribe(events.EmailInquiryReceived{}.EventName(), m)
	bus.Subscribe(events.LeadInteractionAppended{}.EventName(), m)
	bus.Subscribe(events.LeadRescored{}.EventName(), m)
	bus.Subscribe(events.LeadClosed{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCaptured:
		return m.handleLeadCaptured(ctx, e)
	case events.EmailInquiryReceived:
		return m.handleEmailInquiry(ctx, e)
	case events.LeadInteractionAppended:
		m.push(e.OwnerID, sse.Event{Type: sse.EventLeadUpdated, LeadID: e.LeadID, Data: map[string]any{"source": e.Source, "score": e.Score}})
		return nil
	case events.LeadRescored:
		m.push(e.OwnerID, sse.Event{Type: sse.EventLeadRescored, LeadID: e.LeadID, Data: map[string]any{"previousScore": e.PreviousScore, "score": e.Score}})
		return nil
	case events.LeadClosed:
		m.push(e.OwnerID, sse.Event{Type: sse.EventLeadClosed, LeadID: e.LeadID})
		return nil
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadCaptured(ctx context.Context, e events.LeadCaptured) error {
	m.push(e.OwnerID, sse.Event{Type: sse.EventLeadCaptured, LeadID: e.LeadID, Data: map[string]any{"source": e.Source, "score": e.Score}})

	res, err := m.notifier.NotifyLeadCaptured(ctx, e.LeadID)
	if err != nil {
		return err
	}
	m.logResult(e.LeadID, res)
	return nil
}

func (m *Module) handleEmailInquiry(ctx context.Context, e events.EmailInquiryReceived) error {
	kind := sse.EventLeadUpdated
	if e.IsNew {
		kind = sse.EventLeadCaptured
	}
	m.push(e.OwnerID, sse.Event{Type: kind, LeadID: e.LeadID, Data: map[string]any{"source": "email"}})

	res, err := m.notifier.NotifyEmailInquiry(ctx, e.LeadID)
	if err != nil {
		return err
	}
	m.logResult(e.LeadID, res)
	return nil
}

func (m *Module) push(ownerID uuid.UUID, event sse.Event) {
	if m.live == nil || ownerID == uuid.Nil {
		return
	}
	m.live.Publish(ownerID, event)
}

func (m *Module) logResult(leadID uuid.UUID, res Result) {
	for r := &res; r != nil; r = r.FollowOn {
		m.log.Info("notification cycle finished",
			"leadId", leadID,
			"trigger", r.Trigger,
			"success", r.Success,
			"skipped", r.Skipped,
			"reason", r.Reason,
			"channels", len(r.Results),
		)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
