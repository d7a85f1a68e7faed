package preferences

import (
	"context"

	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type Store interface {
	GetOverride(ctx context.Context, ownerID uuid.UUID) (Override, error)
	SaveOverride(ctx context.Context, ownerID uuid.UUID, o Override) error
}

// View is what the owner sees: the stored override and its effective result.
type View struct {
	Effective Preferences `json:"effective"`
	Override  Override    `json:"override"`
}

type Service struct {
	store Store
	log   *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Effective resolves the owner's preferences. A storage failure degrades to
// the defaults so notifications still go out.
func (s *Service) Effective(ctx context.Context, ownerID uuid.UUID) Preferences {
	o, err := s.store.GetOverride(ctx, ownerID)
	if err != nil {
		s.log.Warn("falling back to default notification preferences", "owner_id", ownerID, "error", err)
		return Defaults()
	}
	return Merge(Defaults(), o)
}

func (s *Service) Get(ctx context.Context, ownerID uuid.UUID) (View, error) {
	o, err := s.store.GetOverride(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	return View{Effective: Merge(Defaults(), o), Override: o}, nil
}

// Update validates patch, layers it onto the stored override and persists it.
func (s *Service) Update(ctx context.Context, ownerID uuid.UUID, patch Override) (View, error) {
	if err := patch.Validate(); err != nil {
		return View{}, err
	}

	current, err := s.store.GetOverride(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	next := current.Apply(patch)
	if err := s.store.SaveOverride(ctx, ownerID, next); err != nil {
		return View{}, err
	}

	s.log.Info("notification preferences updated", "owner_id", ownerID)
	return View{Effective: Merge(Defaults(), next), Override: next}, nil
}
