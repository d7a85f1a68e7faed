package notification

import (
	"context"
	"fmt"

	"listing_leads_backend/internal/notification/preferences"
	"listing_leads_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opRecordAttempt = "notification.attempts.record"

// Attempt is one channel dispatch, successful or not.
type Attempt struct {
	OwnerID uuid.UUID
	LeadID  *uuid.UUID
	Trigger preferences.Trigger
	Channel preferences.Channel
	Success bool
	Error   string
}

type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Record(ctx context.Context, a Attempt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_attempts (owner_id, lead_id, trigger_name, channel, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.OwnerID, a.LeadID, string(a.Trigger), string(a.Channel), a.Success, a.Error)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("record notification attempt failed: %v", err)).WithOp(opRecordAttempt)
	}
	return nil
}
