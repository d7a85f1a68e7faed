// Package ingestion turns raw web, message and email payloads into
// persisted, scored leads.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/besteffort"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadStore is the lead repository surface the gateways depend on.
type LeadStore interface {
	repository.DedupFinder
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error)
}

// PendingBuffer stores messages that arrived before a listing could be resolved.
type PendingBuffer interface {
	AppendPending(ctx context.Context, key string, channel domain.Channel, msg domain.ConversationEntry) error
	TakePending(ctx context.Context, keys ...string) ([]domain.PendingEntry, error)
}

// ListingResolver maps free text to a listing, or nil.
type ListingResolver interface {
	Resolve(ctx context.Context, text string) (*listings.Listing, error)
}

// Scorer is the pure scoring engine.
type Scorer interface {
	Score(lead *domain.Lead, listing *listings.Listing) domain.Score
}

// Outcome names what happened to an inbound signal.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeAppended Outcome = "appended"
	OutcomePending  Outcome = "pending"
)

// Result is returned by every gateway.
type Result struct {
	Outcome Outcome
	Lead    *domain.Lead
}

// LeadID returns the affected lead id, or nil for buffered signals.
func (r Result) LeadID() *uuid.UUID {
	if r.Lead == nil {
		return nil
	}
	id := r.Lead.ID
	return &id
}

// ServiceDeps groups the collaborators of the ingestion service.
type ServiceDeps struct {
	Leads    LeadStore
	Pending  PendingBuffer
	Listings listings.Reader
	Resolver ListingResolver
	Scorer   Scorer
	Bus      events.Bus
	Archive  RawArchiver
	Runner   *besteffort.Runner
	Log      *logger.Logger
}

// Service implements the dedup resolver and the three ingestion gateways.
type Service struct {
	leads    LeadStore
	pending  PendingBuffer
	listings listings.Reader
	resolver ListingResolver
	scorer   Scorer
	bus      events.Bus
	archive  RawArchiver
	runner   *besteffort.Runner
	locks    *keyedMutex
	now      func() time.Time
	log      *logger.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		leads:    deps.Leads,
		pending:  deps.Pending,
		listings: deps.Listings,
		resolver: deps.Resolver,
		scorer:   deps.Scorer,
		bus:      deps.Bus,
		archive:  deps.Archive,
		runner:   deps.Runner,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
		log:      deps.Log,
	}
}

// creation bundles everything needed to build a lead on a dedup miss.
type creation struct {
	listing     *listings.Listing
	client      domain.Client
	dealType    domain.DealType
	interaction domain.Interaction
	annotations []domain.EngagementAction
	pendingKeys []string
}

// createOrMerge persists a new lead. When the (email, listing) pair already
// exists the interaction is appended to that lead instead.
func (s *Service) createOrMerge(ctx context.Context, c creation) (domain.Lead, bool, error) {
	now := s.now()
	lead := domain.NewLead(c.listing.ID, c.listing.OwnerID, c.client, c.dealType, now)

	taken, err := s.takePending(ctx, c.pendingKeys)
	if err != nil {
		return domain.Lead{}, false, err
	}
	for _, entry := range taken {
		lead.AttachPending(entry, now)
	}
	lead.RecordInteraction(c.interaction)
	for _, a := range c.annotations {
		lead.Annotate(a)
	}
	lead.ApplyScore(s.scorer.Score(lead, c.listing))

	created, err := s.leads.Create(ctx, *lead)
	if err == nil {
		return created, true, nil
	}
	s.restorePending(ctx, taken)
	if !apperr.Is(err, apperr.KindConflict) {
		return domain.Lead{}, false, err
	}

	existing, findErr := s.leads.FindByEmailAndListing(ctx, c.client.Email, c.listing.ID)
	if findErr != nil {
		return domain.Lead{}, false, fmt.Errorf("resolve conflicting lead: %w", findErr)
	}
	merged, err := s.appendInteraction(ctx, existing.ID, c.listing, c.interaction, c.pendingKeys, c.annotations...)
	if err != nil {
		return domain.Lead{}, false, err
	}
	return merged, false, nil
}

// appendInteraction merges pending messages and the interaction into an
// existing lead and rescores it, all inside one row-locked update.
func (s *Service) appendInteraction(ctx context.Context, leadID uuid.UUID, listing *listings.Listing, in domain.Interaction, pendingKeys []string, annotations ...domain.EngagementAction) (domain.Lead, error) {
	taken, err := s.takePending(ctx, pendingKeys)
	if err != nil {
		return domain.Lead{}, err
	}

	now := s.now()
	updated, err := s.leads.Mutate(ctx, leadID, func(lead *domain.Lead) error {
		for _, entry := range taken {
			lead.AttachPending(entry, now)
		}
		lead.RecordInteraction(in)
		for _, a := range annotations {
			lead.Annotate(a)
		}
		lead.ApplyScore(s.scorer.Score(lead, listing))
		return nil
	})
	if err != nil {
		s.restorePending(ctx, taken)
		return domain.Lead{}, err
	}
	return updated, nil
}

func (s *Service) takePending(ctx context.Context, keys []string) ([]domain.PendingEntry, error) {
	if s.pending == nil || len(keys) == 0 {
		return nil, nil
	}
	entries, err := s.pending.TakePending(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("take pending messages: %w", err)
	}
	return entries, nil
}

// restorePending puts taken messages back after a failed write.
func (s *Service) restorePending(ctx context.Context, entries []domain.PendingEntry) {
	for _, entry := range entries {
		for _, msg := range entry.Messages {
			if err := s.pending.AppendPending(ctx, entry.ContactKey, entry.Channel, msg); err != nil {
				s.log.Error("failed to restore pending message", "contactKey", entry.ContactKey, "error", err)
			}
		}
	}
}

func (s *Service) buffer(ctx context.Context, key string, channel domain.Channel, entry domain.ConversationEntry) (Result, error) {
	if err := s.pending.AppendPending(ctx, key, channel, entry); err != nil {
		return Result{}, fmt.Errorf("buffer pending message: %w", err)
	}
	s.log.Info("inbound message buffered without listing", "contactKey", key, "channel", channel)
	return Result{Outcome: OutcomePending}, nil
}

func (s *Service) lookupListing(ctx context.Context, id string) (*listings.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		return nil, err
	}
	return &listing, nil
}

func inboundEntry(ev InteractionEvent, text string) domain.ConversationEntry {
	return domain.ConversationEntry{
		Role:      domain.RoleClient,
		Text:      text,
		Channel:   ev.Channel,
		Direction: domain.DirectionInbound,
		Timestamp: ev.ReceivedAt,
		Metadata:  ev.Metadata,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
