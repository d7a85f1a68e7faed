package repository

import (
	"context"
	"time"

	"listing_leads_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, error)
	Stats(ctx context.Context, ownerID *uuid.UUID) (Stats, error)
}

// DedupFinder looks up the existing lead for an inbound identity.
type DedupFinder interface {
	FindLatestByMessagingNumber(ctx context.Context, number string, listingID string) (domain.Lead, error)
	FindByEmailAndListing(ctx context.Context, email string, listingID string) (domain.Lead, error)
}

// LeadWriter provides write operations. Mutate is the only way to change an
// existing lead's history or score: it runs fn under a row lock.
type LeadWriter interface {
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FollowUpStore feeds the periodic rescore and follow-up jobs.
type FollowUpStore interface {
	ListActiveIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	ListDueForFollowUp(ctx context.Context, now time.Time, after *domain.FollowUpCursor, limit int) ([]domain.FollowUpCursor, error)
}

// PendingBuffer holds messages received before a listing could be resolved.
type PendingBuffer interface {
	AppendPending(ctx context.Context, key string, channel domain.Channel, msg domain.ConversationEntry) error
	TakePending(ctx context.Context, keys ...string) ([]domain.PendingEntry, error)
	PurgePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LeadsRepository composes every lead store contract.
type LeadsRepository interface {
	LeadReader
	DedupFinder
	LeadWriter
	FollowUpStore
	PendingBuffer
}

var _ LeadsRepository = (*Repository)(nil)
