package notification

import (
	"context"

	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/internal/notification/preferences"

	"github.com/google/uuid"
)

// LeadReader loads the lead a trigger refers to.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// ListingReader loads the listing a lead is attached to.
type ListingReader interface {
	GetByID(ctx context.Context, id string) (listings.Listing, error)
}

type PreferenceSource interface {
	Effective(ctx context.Context, ownerID uuid.UUID) preferences.Preferences
}

// RateLimiter admits and records one dispatch per call.
type RateLimiter interface {
	Allow(ctx context.Context, ownerID uuid.UUID, channel preferences.Channel, limit preferences.RateLimit) bool
}

type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber string, message string) error
}

type MessagingSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

type InAppSender interface {
	Send(ctx context.Context, p inapp.SendParams) (inapp.Notification, error)
}

type AttemptRecorder interface {
	Record(ctx context.Context, a Attempt) error
}

// allowAll is used when no limiter is wired.
type allowAll struct{}

func (allowAll) Allow(context.Context, uuid.UUID, preferences.Channel, preferences.RateLimit) bool {
	return true
}
