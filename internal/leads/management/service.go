// Package management handles the owner-facing lead query and update surface.
package management

import (
	"context"
	"errors"
	"time"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/leads/transport"
	"listing_leads_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	// HighPriorityMinScore matches the "high" buying intent tier.
	HighPriorityMinScore = 60
	defaultHighPriority  = 20
)

// Repository defines the data access interface needed by the management service.
type Repository interface {
	repository.LeadReader
	Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Rescorer recomputes and stores a lead's score.
type Rescorer interface {
	Recalculate(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
}

// Actor is the authenticated caller. Admins bypass ownership checks.
type Actor struct {
	ID    uuid.UUID
	Admin bool
}

func (a Actor) ownerScope() *uuid.UUID {
	if a.Admin {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) canAccess(lead domain.Lead) bool {
	return a.Admin || lead.OwnerID == a.ID
}

// Service handles lead management operations.
type Service struct {
	repo     Repository
	rescorer Rescorer
	bus      events.Bus
	now      func() time.Time
}

// New creates a new lead management service.
func New(repo Repository, rescorer Rescorer, bus events.Bus) *Service {
	return &Service{
		repo:     repo,
		rescorer: rescorer,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the caller's leads, newest first.
func (s *Service) List(ctx context.Context, actor Actor, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	params := repository.ListParams{OwnerID: actor.ownerScope(), MinScore: req.MinScore, Limit: req.Limit}
	if req.Status != "" {
		status, ok := domain.ParseStatus(req.Status)
		if !ok {
			return transport.LeadListResponse{}, apperr.Validation("invalid status filter")
		}
		params.Status = &status
	}
	if req.DealType != "" {
		deal, ok := domain.ParseDealType(req.DealType)
		if !ok {
			return transport.LeadListResponse{}, apperr.Validation("invalid dealType filter")
		}
		params.DealType = &deal
	}

	items, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	return transport.LeadListResponse{Items: items, Total: len(items)}, nil
}

// HighPriority lists active leads at or above the high intent tier, best first.
func (s *Service) HighPriority(ctx context.Context, actor Actor, limit int) (transport.LeadListResponse, error) {
	if limit <= 0 {
		limit = defaultHighPriority
	}
	minScore := HighPriorityMinScore
	items, err := s.repo.List(ctx, repository.ListParams{
		OwnerID:      actor.ownerScope(),
		MinScore:     &minScore,
		ActiveOnly:   true,
		OrderByScore: true,
		Limit:        limit,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	return transport.LeadListResponse{Items: items, Total: len(items)}, nil
}

// Stats counts the caller's leads by status and deal type.
func (s *Service) Stats(ctx context.Context, actor Actor) (repository.Stats, error) {
	return s.repo.Stats(ctx, actor.ownerScope())
}

// GetByID retrieves a lead the caller owns.
func (s *Service) GetByID(ctx context.Context, actor Actor, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, mapNotFound(err)
	}
	if !actor.canAccess(lead) {
		return domain.Lead{}, apperr.Forbidden("forbidden")
	}
	return lead, nil
}

// Update changes status, notes and the follow-up switch. Closing a lead
// stamps closedAt once and publishes LeadClosed.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, req transport.UpdateLeadRequest) (domain.Lead, error) {
	if _, err := s.GetByID(ctx, actor, id); err != nil {
		return domain.Lead{}, err
	}

	var closedNow bool
	updated, err := s.repo.Mutate(ctx, id, func(lead *domain.Lead) error {
		now := s.now()
		if req.Status != nil {
			wasStamped := lead.ClosedAt != nil
			if err := lead.TransitionTo(domain.Status(*req.Status), now); err != nil {
				return err
			}
			closedNow = !wasStamped && lead.ClosedAt != nil
		}
		if req.Notes != nil {
			lead.Notes = *req.Notes
			lead.UpdatedAt = now
		}
		if req.AutoFollowUpEnabled != nil {
			lead.AutoFollowUpEnabled = *req.AutoFollowUpEnabled
			lead.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return domain.Lead{}, mapNotFound(err)
	}

	if closedNow && s.bus != nil {
		s.bus.Publish(ctx, events.LeadClosed{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    updated.ID,
			OwnerID:   updated.OwnerID,
		})
	}
	return updated, nil
}

// Delete removes a lead the caller owns.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, actor, id); err != nil {
		return err
	}
	return mapNotFound(s.repo.Delete(ctx, id))
}

// Rescore recomputes the score from the stored lead and persists it.
func (s *Service) Rescore(ctx context.Context, actor Actor, id uuid.UUID) (transport.RescoreResponse, error) {
	current, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return transport.RescoreResponse{}, err
	}

	updated, err := s.rescorer.Recalculate(ctx, id)
	if err != nil {
		return transport.RescoreResponse{}, mapNotFound(err)
	}

	if updated.Score != current.Score && s.bus != nil {
		s.bus.Publish(ctx, events.LeadRescored{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        updated.ID,
			OwnerID:       updated.OwnerID,
			PreviousScore: current.Score,
			Score:         updated.Score,
		})
	}

	return transport.RescoreResponse{
		LeadID:         updated.ID.String(),
		PreviousScore:  current.Score,
		Score:          updated.Score,
		ScoreBreakdown: updated.ScoreBreakdown,
		BuyingIntent:   updated.BuyingIntent,
	}, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}
