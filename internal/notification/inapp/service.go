// Package inapp stores owner notification records and serves the inbox.
package inapp

import (
	"context"
	"time"

	"listing_leads_backend/internal/notification/sse"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

// DefaultRetention is how long a record stays visible in the inbox.
const DefaultRetention = 30 * 24 * time.Hour

// Store is the persistence contract implemented by Repository.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, ownerID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Delete(ctx context.Context, ownerID, notificationID uuid.UUID) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Publisher pushes live events to connected owners.
type Publisher interface {
	Publish(ownerID uuid.UUID, event sse.Event)
}

type Service struct {
	repo      Store
	sse       Publisher
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewService(repo Store, retention time.Duration, log *logger.Logger) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		repo:      repo,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// SetSSE injects the live stream hub. Processes without one leave it unset.
func (s *Service) SetSSE(publisher Publisher) {
	s.sse = publisher
}

type SendParams struct {
	OwnerID  uuid.UUID
	Type     Type
	Title    string
	Message  string
	Metadata Metadata
}

// Send persists the notification and pushes it via SSE if the owner is online.
func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}
	if p.Type == "" {
		p.Type = TypeSystem
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		OwnerID:   p.OwnerID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Metadata:  p.Metadata,
		ExpiresAt: s.now().Add(s.retention),
	})
	if err != nil {
		s.log.Error("failed to persist in-app notification", "error", err, "owner_id", p.OwnerID)
		return Notification{}, err
	}

	if s.sse != nil {
		s.sse.Publish(p.OwnerID, sse.Event{
			Type:    sse.EventNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}

	return notif, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, ownerID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, ownerID)
}

func (s *Service) MarkRead(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, ownerID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, ownerID)
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// PurgeExpired removes records past their retention window.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("purged expired notifications", "count", removed)
	}
	return removed, nil
}
