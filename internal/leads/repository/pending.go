package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing_leads_backend/internal/leads/domain"
)

// AppendPending adds msg to the buffer for key, creating the entry on first use.
func (r *Repository) AppendPending(ctx context.Context, key string, channel domain.Channel, msg domain.ConversationEntry) error {
	payload, err := json.Marshal([]domain.ConversationEntry{msg})
	if err != nil {
		return fmt.Errorf("encode pending message: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO pending_messages (contact_key, channel, messages, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (contact_key) DO UPDATE SET
			messages = pending_messages.messages || EXCLUDED.messages,
			updated_at = now()
	`, key, string(channel), payload)
	return err
}

// TakePending atomically removes and returns the buffered entries for keys.
func (r *Repository) TakePending(ctx context.Context, keys ...string) ([]domain.PendingEntry, error) {
	keys = nonEmpty(keys)
	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		DELETE FROM pending_messages
		WHERE contact_key = ANY($1)
		RETURNING contact_key, channel, messages, created_at, updated_at
	`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.PendingEntry
	for rows.Next() {
		var (
			entry   domain.PendingEntry
			channel string
			raw     []byte
		)
		if err := rows.Scan(&entry.ContactKey, &channel, &raw, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entry.Channel = domain.Channel(channel)
		if err := json.Unmarshal(raw, &entry.Messages); err != nil {
			return nil, fmt.Errorf("decode pending messages: %w", err)
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// PurgePendingBefore drops entries that have not been touched since cutoff.
func (r *Repository) PurgePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_messages WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nonEmpty(keys []string) []string {
	out := keys[:0:0]
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
