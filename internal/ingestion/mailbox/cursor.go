package mailbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CursorStore remembers the highest processed UID per mailbox.
type CursorStore interface {
	LastUID(ctx context.Context, mailbox string) (int, error)
	SaveUID(ctx context.Context, mailbox string, uid int) error
}

type PgCursorStore struct {
	pool *pgxpool.Pool
}

func NewCursorStore(pool *pgxpool.Pool) *PgCursorStore {
	return &PgCursorStore{pool: pool}
}

func (s *PgCursorStore) LastUID(ctx context.Context, mailbox string) (int, error) {
	var uid int64
	err := s.pool.QueryRow(ctx, `SELECT last_uid FROM mailbox_cursors WHERE mailbox = $1`, mailbox).Scan(&uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(uid), nil
}

// SaveUID never moves the cursor backwards.
func (s *PgCursorStore) SaveUID(ctx context.Context, mailbox string, uid int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mailbox_cursors (mailbox, last_uid, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (mailbox) DO UPDATE
		SET last_uid = GREATEST(mailbox_cursors.last_uid, EXCLUDED.last_uid), updated_at = now()`,
		mailbox, int64(uid))
	return err
}
