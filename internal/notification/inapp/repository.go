package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing_leads_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate       = "notification.inapp.repository.create"
	opList         = "notification.inapp.repository.list"
	opCountUnread  = "notification.inapp.repository.count_unread"
	opMarkRead     = "notification.inapp.repository.mark_read"
	opMarkAllRead  = "notification.inapp.repository.mark_all_read"
	opDelete       = "notification.inapp.repository.delete"
	opPurgeExpired = "notification.inapp.repository.purge_expired"

	errRepoNotConfigured = "in-app notification repository not configured"
	errOwnerIDRequired   = "ownerId is required"
	errNotFound          = "notification not found"
)

// Type classifies a notification record for the owner inbox.
type Type string

const (
	TypeLeadCaptured    Type = "lead_captured"
	TypePurchaseInquiry Type = "purchase_inquiry"
	TypeLead            Type = "lead"
	TypeSystem          Type = "system"
)

// Metadata links a notification back to the lead that raised it.
type Metadata struct {
	LeadID     string `json:"leadId,omitempty"`
	ListingID  string `json:"listingId,omitempty"`
	DealType   string `json:"dealType,omitempty"`
	ClientName string `json:"clientName,omitempty"`
	Link       string `json:"link,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

type Notification struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CreateParams struct {
	OwnerID   uuid.UUID
	Type      Type
	Title     string
	Message   string
	Metadata  Metadata
	ExpiresAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, owner_id, type, title, message, is_read, metadata, created_at, expires_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n    Notification
		meta []byte
	)
	if err := row.Scan(&n.ID, &n.OwnerID, &n.Type, &n.Title, &n.Message, &n.IsRead, &meta, &n.CreatedAt, &n.ExpiresAt); err != nil {
		return Notification{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Metadata); err != nil {
			return Notification{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return n, nil
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.OwnerID == uuid.Nil {
		return Notification{}, apperr.Validation(errOwnerIDRequired).WithOp(opCreate)
	}
	if p.Title == "" || p.Message == "" {
		return Notification{}, apperr.Validation("title and message are required").WithOp(opCreate)
	}

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return Notification{}, apperr.Internal(fmt.Sprintf("encode metadata failed: %v", err)).WithOp(opCreate)
	}

	n, err := scanNotification(r.pool.QueryRow(ctx, `
		INSERT INTO notifications (owner_id, type, title, message, metadata, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		p.OwnerID, p.Type, p.Title, p.Message, meta, p.ExpiresAt))
	if err != nil {
		return Notification{}, apperr.Internal(fmt.Sprintf("create notification failed: %v", err)).WithOp(opCreate)
	}
	return n, nil
}

// List returns unexpired notifications newest first, plus the unexpired total.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if ownerID == uuid.Nil {
		return nil, 0, apperr.Validation(errOwnerIDRequired).WithOp(opList)
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE owner_id = $1 AND expires_at > now()
	`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE owner_id = $1 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notifications failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", err)).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, ownerID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}
	if ownerID == uuid.Nil {
		return 0, apperr.Validation(errOwnerIDRequired).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE owner_id = $1 AND is_read = FALSE AND expires_at > now()
	`, ownerID).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}
	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	if ownerID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("ownerId and notificationId are required").WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND owner_id = $2 AND expires_at > now()
	`, notificationID, ownerID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errNotFound).WithOp(opMarkRead)
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}
	if ownerID == uuid.Nil {
		return 0, apperr.Validation(errOwnerIDRequired).WithOp(opMarkAllRead)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE owner_id = $1 AND is_read = FALSE AND expires_at > now()
	`, ownerID)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opDelete)
	}
	if ownerID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("ownerId and notificationId are required").WithOp(opDelete)
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notifications WHERE id = $1 AND owner_id = $2
	`, notificationID, ownerID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete notification failed: %v", err)).WithOp(opDelete)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errNotFound).WithOp(opDelete)
	}
	return nil
}

// PurgeExpired deletes every record whose expiry is at or before now.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opPurgeExpired)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("purge expired notifications failed: %v", err)).WithOp(opPurgeExpired)
	}
	return tag.RowsAffected(), nil
}
