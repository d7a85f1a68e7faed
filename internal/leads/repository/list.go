package repository

import (
	"context"
	"fmt"
	"strings"

	"listing_leads_backend/internal/leads/domain"

	"github.com/google/uuid"
)

const defaultListLimit = 100

// ListParams filters the owner-facing lead list. A nil OwnerID lists every lead.
type ListParams struct {
	OwnerID      *uuid.UUID
	Status       *domain.Status
	DealType     *domain.DealType
	MinScore     *int
	ActiveOnly   bool
	OrderByScore bool
	Limit        int
}

func buildListQuery(params ListParams) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if params.OwnerID != nil {
		add("owner_id = $%d", *params.OwnerID)
	}
	if params.Status != nil {
		add("status = $%d", string(*params.Status))
	}
	if params.DealType != nil {
		add("deal_type = $%d", string(*params.DealType))
	}
	if params.MinScore != nil {
		add("score >= $%d", *params.MinScore)
	}
	if params.ActiveOnly {
		where = append(where, "status NOT IN ('closed', 'lost')")
	}

	var b strings.Builder
	b.WriteString("SELECT " + leadColumns + " FROM leads")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if params.OrderByScore {
		b.WriteString(" ORDER BY score DESC, created_at DESC")
	} else {
		b.WriteString(" ORDER BY created_at DESC")
	}

	limit := params.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))

	return b.String(), args
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	query, args := buildListQuery(params)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// Stats holds lead counts grouped by status and by deal type.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByDealType map[string]int `json:"byDealType"`
}

func (r *Repository) Stats(ctx context.Context, ownerID *uuid.UUID) (Stats, error) {
	stats := Stats{ByStatus: map[string]int{}, ByDealType: map[string]int{}}

	rows, err := r.pool.Query(ctx, `
		SELECT 'status' AS dimension, status AS bucket, count(*) FROM leads
		WHERE $1::uuid IS NULL OR owner_id = $1
		GROUP BY status
		UNION ALL
		SELECT 'deal_type', deal_type, count(*) FROM leads
		WHERE $1::uuid IS NULL OR owner_id = $1
		GROUP BY deal_type
	`, ownerID)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var dimension, bucket string
		var count int
		if err := rows.Scan(&dimension, &bucket, &count); err != nil {
			return Stats{}, err
		}
		if dimension == "status" {
			stats.ByStatus[bucket] = count
			stats.Total += count
		} else {
			stats.ByDealType[bucket] = count
		}
	}
	if rows.Err() != nil {
		return Stats{}, rows.Err()
	}
	return stats, nil
}
