package scoring

import (
	"context"
	"errors"

	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadStore is the slice of the lead repository the scorer needs.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error)
}

// Service persists fresh scores for stored leads.
type Service struct {
	repo     LeadStore
	listings listings.Reader
	engine   *Engine
	log      *logger.Logger
}

// New creates a new scoring service.
func New(repo LeadStore, listingReader listings.Reader, engine *Engine, log *logger.Logger) *Service {
	return &Service{repo: repo, listings: listingReader, engine: engine, log: log}
}

// Engine exposes the pure scorer for callers that already hold a lead.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Recalculate scores the lead inside an atomic update and returns the stored lead.
func (s *Service) Recalculate(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	current, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	listing := s.lookupListing(ctx, current.ListingID)

	return s.repo.Mutate(ctx, leadID, func(lead *domain.Lead) error {
		lead.ApplyScore(s.engine.Score(lead, listing))
		return nil
	})
}

func (s *Service) lookupListing(ctx context.Context, id string) *listings.Listing {
	if id == "" || s.listings == nil {
		return nil
	}
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, listings.ErrNotFound) && s.log != nil {
			s.log.Warn("listing lookup for scoring failed", "listingId", id, "error", err)
		}
		return nil
	}
	return &listing
}
