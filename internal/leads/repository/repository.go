package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, listing_id, owner_id,
	client_name, client_address, client_contact, client_email, client_email_synthetic, client_messaging_number,
	deal_type, status, conversation_history, ai_engagement,
	score, score_breakdown, buying_intent,
	last_follow_up_at, next_follow_up_at, follow_up_count, auto_follow_up_enabled,
	notes, created_at, updated_at, closed_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead                           domain.Lead
		dealType, status, intent       string
		history, engagement, breakdown []byte
	)
	err := row.Scan(
		&lead.ID, &lead.ListingID, &lead.OwnerID,
		&lead.Client.Name, &lead.Client.Address, &lead.Client.Contact, &lead.Client.Email, &lead.Client.EmailSynthetic, &lead.Client.MessagingNumber,
		&dealType, &status, &history, &engagement,
		&lead.Score, &breakdown, &intent,
		&lead.LastFollowUpAt, &lead.NextFollowUpAt, &lead.FollowUpCount, &lead.AutoFollowUpEnabled,
		&lead.Notes, &lead.CreatedAt, &lead.UpdatedAt, &lead.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, err
	}

	lead.DealType = domain.DealType(dealType)
	lead.Status = domain.Status(status)
	lead.BuyingIntent = domain.BuyingIntent(intent)
	if err := json.Unmarshal(history, &lead.ConversationHistory); err != nil {
		return domain.Lead{}, fmt.Errorf("decode conversation history: %w", err)
	}
	if err := json.Unmarshal(engagement, &lead.Engagement); err != nil {
		return domain.Lead{}, fmt.Errorf("decode engagement: %w", err)
	}
	if err := json.Unmarshal(breakdown, &lead.ScoreBreakdown); err != nil {
		return domain.Lead{}, fmt.Errorf("decode score breakdown: %w", err)
	}
	if lead.ConversationHistory == nil {
		lead.ConversationHistory = []domain.ConversationEntry{}
	}
	return lead, nil
}

type documents struct {
	history    []byte
	engagement []byte
	breakdown  []byte
}

func encodeDocuments(lead domain.Lead) (documents, error) {
	history := lead.ConversationHistory
	if history == nil {
		history = []domain.ConversationEntry{}
	}
	var docs documents
	var err error
	if docs.history, err = json.Marshal(history); err != nil {
		return docs, fmt.Errorf("encode conversation history: %w", err)
	}
	if docs.engagement, err = json.Marshal(lead.Engagement); err != nil {
		return docs, fmt.Errorf("encode engagement: %w", err)
	}
	if docs.breakdown, err = json.Marshal(lead.ScoreBreakdown); err != nil {
		return docs, fmt.Errorf("encode score breakdown: %w", err)
	}
	return docs, nil
}

// Create inserts a new lead. A second lead for the same (email, listing)
// pair is rejected with an apperr conflict.
func (r *Repository) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	docs, err := encodeDocuments(lead)
	if err != nil {
		return domain.Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, listing_id, owner_id,
			client_name, client_address, client_contact, client_email, client_email_synthetic, client_messaging_number,
			deal_type, status, conversation_history, ai_engagement,
			score, score_breakdown, buying_intent,
			last_follow_up_at, next_follow_up_at, follow_up_count, auto_follow_up_enabled,
			notes, created_at, updated_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING `+leadColumns,
		lead.ID, lead.ListingID, lead.OwnerID,
		lead.Client.Name, lead.Client.Address, lead.Client.Contact, lead.Client.Email, lead.Client.EmailSynthetic, lead.Client.MessagingNumber,
		string(lead.DealType), string(lead.Status), docs.history, docs.engagement,
		lead.Score, docs.breakdown, string(lead.BuyingIntent),
		lead.LastFollowUpAt, lead.NextFollowUpAt, lead.FollowUpCount, lead.AutoFollowUpEnabled,
		lead.Notes, lead.CreatedAt, lead.UpdatedAt, lead.ClosedAt,
	)
	created, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Lead{}, apperr.Wrap(apperr.KindConflict, "lead already exists for this email and listing", err).WithOp("leads.repository.create")
		}
		return domain.Lead{}, err
	}
	return created, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

// FindLatestByMessagingNumber returns the most recent lead for number. An
// empty listingID searches across all listings.
func (r *Repository) FindLatestByMessagingNumber(ctx context.Context, number string, listingID string) (domain.Lead, error) {
	if listingID == "" {
		return scanLead(r.pool.QueryRow(ctx, `
			SELECT `+leadColumns+`
			FROM leads
			WHERE client_messaging_number = $1
			ORDER BY created_at DESC
			LIMIT 1
		`, number))
	}
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_messaging_number = $1 AND listing_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, number, listingID))
}

func (r *Repository) FindByEmailAndListing(ctx context.Context, email string, listingID string) (domain.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_email = $1 AND listing_id = $2
	`, email, listingID))
}

// Mutate loads the lead with SELECT ... FOR UPDATE, applies fn and writes the
// result back in the same transaction. fn must not perform network calls.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Lead{}, err
	}
	if err := fn(&lead); err != nil {
		return domain.Lead{}, err
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = time.Now().UTC()
	}

	docs, err := encodeDocuments(lead)
	if err != nil {
		return domain.Lead{}, err
	}
	updated, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			client_name = $2, client_address = $3, client_contact = $4, client_messaging_number = $5,
			deal_type = $6, status = $7, conversation_history = $8, ai_engagement = $9,
			score = $10, score_breakdown = $11, buying_intent = $12,
			last_follow_up_at = $13, next_follow_up_at = $14, follow_up_count = $15, auto_follow_up_enabled = $16,
			notes = $17, updated_at = $18, closed_at = $19
		WHERE id = $1
		RETURNING `+leadColumns,
		lead.ID,
		lead.Client.Name, lead.Client.Address, lead.Client.Contact, lead.Client.MessagingNumber,
		string(lead.DealType), string(lead.Status), docs.history, docs.engagement,
		lead.Score, docs.breakdown, string(lead.BuyingIntent),
		lead.LastFollowUpAt, lead.NextFollowUpAt, lead.FollowUpCount, lead.AutoFollowUpEnabled,
		lead.Notes, lead.UpdatedAt, lead.ClosedAt,
	))
	if err != nil {
		return domain.Lead{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveIDs pages through non-terminal leads by id.
func (r *Repository) ListActiveIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return r.collectIDs(ctx, `
		SELECT id FROM leads
		WHERE status NOT IN ('closed', 'lost') AND id > $1
		ORDER BY id ASC
		LIMIT $2
	`, after, limit)
}

// ListDueForFollowUp pages through due leads in (due time, id) order,
// starting after the cursor. Leads of opted-out owners are left out.
func (r *Repository) ListDueForFollowUp(ctx context.Context, now time.Time, after *domain.FollowUpCursor, limit int) ([]domain.FollowUpCursor, error) {
	var afterAt *time.Time
	afterID := uuid.Nil
	if after != nil {
		afterAt = &after.DueAt
		afterID = after.ID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, COALESCE(l.next_follow_up_at, l.created_at) AS due_at
		FROM leads l
		WHERE l.auto_follow_up_enabled = true
			AND l.status NOT IN ('closed', 'lost')
			AND (l.last_follow_up_at IS NULL OR l.next_follow_up_at IS NULL OR l.next_follow_up_at <= $1)
			AND NOT EXISTS (
				SELECT 1 FROM owners o WHERE o.id = l.owner_id AND o.auto_follow_up_enabled = false
			)
			AND ($2::timestamptz IS NULL
				OR (COALESCE(l.next_follow_up_at, l.created_at), l.id) > ($2::timestamptz, $3::uuid))
		ORDER BY due_at ASC, l.id ASC
		LIMIT $4
	`, now, afterAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := make([]domain.FollowUpCursor, 0)
	for rows.Next() {
		var c domain.FollowUpCursor
		if err := rows.Scan(&c.ID, &c.DueAt); err != nil {
			return nil, err
		}
		due = append(due, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

func (r *Repository) collectIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}
