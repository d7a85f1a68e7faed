package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"listing_leads_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opGetOverride  = "notification.preferences.repository.get"
	opSaveOverride = "notification.preferences.repository.save"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOverride returns the stored override, or an empty one when the owner has none.
func (r *Repository) GetOverride(ctx context.Context, ownerID uuid.UUID) (Override, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT preferences FROM notification_preferences WHERE owner_id = $1
	`, ownerID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, nil
	}
	if err != nil {
		return Override{}, apperr.Internal(fmt.Sprintf("load notification preferences failed: %v", err)).WithOp(opGetOverride)
	}

	var o Override
	if err := json.Unmarshal(raw, &o); err != nil {
		return Override{}, apperr.Internal(fmt.Sprintf("decode notification preferences failed: %v", err)).WithOp(opGetOverride)
	}
	return o, nil
}

func (r *Repository) SaveOverride(ctx context.Context, ownerID uuid.UUID, o Override) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("encode notification preferences failed: %v", err)).WithOp(opSaveOverride)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notification_preferences (owner_id, preferences, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner_id) DO UPDATE
		SET preferences = EXCLUDED.preferences, updated_at = now()
	`, ownerID, raw)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("save notification preferences failed: %v", err)).WithOp(opSaveOverride)
	}
	return nil
}
