// Package listings reads listing and owner records maintained by the
// listing service. This package never writes them.
package listings

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("listing not found")
	ErrOwnerNotFound = errors.New("owner not found")
)

// PriceType is the listing's own sale/rental classification.
type PriceType string

const (
	PriceSale   PriceType = "sale"
	PriceRental PriceType = "rental"
)

type Listing struct {
	ID        string
	OwnerID   uuid.UUID
	Title     string
	Location  string
	Price     int64
	Currency  string
	PriceType PriceType
}

type Owner struct {
	ID                   uuid.UUID
	Name                 string
	Email                string
	Phone                string
	MessagingNumber      string
	FollowUpIntervalDays int
	AutoFollowUpEnabled  bool
}

// Reader looks up listings by identifier or by title fragment.
type Reader interface {
	GetByID(ctx context.Context, id string) (Listing, error)
	FindByTitle(ctx context.Context, fragment string) (Listing, error)
}

// OwnerReader resolves the agent responsible for a listing.
type OwnerReader interface {
	GetOwner(ctx context.Context, id uuid.UUID) (Owner, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Reader = (*Repository)(nil)
var _ OwnerReader = (*Repository)(nil)

const listingColumns = `id, owner_id, title, location, price, currency, price_type`

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	var priceType string
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Location, &l.Price, &l.Currency, &priceType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, err
	}
	l.PriceType = PriceType(priceType)
	return l, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

// FindByTitle returns the listing whose title contains fragment, case-insensitively.
// The shortest matching title wins so that exact titles beat longer ones.
func (r *Repository) FindByTitle(ctx context.Context, fragment string) (Listing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE lower(title) LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY length(title) ASC, id ASC
		LIMIT 1
	`, escapeLike(strings.ToLower(fragment)))
	return scanListing(row)
}

func (r *Repository) GetOwner(ctx context.Context, id uuid.UUID) (Owner, error) {
	var o Owner
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), COALESCE(messaging_number, ''),
			follow_up_interval_days, auto_follow_up_enabled
		FROM owners
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.MessagingNumber, &o.FollowUpIntervalDays, &o.AutoFollowUpEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, ErrOwnerNotFound
		}
		return Owner{}, err
	}
	return o, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
