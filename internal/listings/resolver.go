package listings

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"listing_leads_backend/internal/leads/domain"
)

var (
	idPattern    = regexp.MustCompile(`(?i)(?:#|(?:listing|property)/|(?:listing|property)_id[:\s]*)([A-Za-z0-9][A-Za-z0-9_-]{2,63})`)
	quotePattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// Resolver maps free text to a listing. It never guesses: text without a
// recognised identifier or quoted title yields no listing.
type Resolver struct {
	reader Reader
}

func NewResolver(reader Reader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve returns the referenced listing, or nil when nothing matches.
// Only storage failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, text string) (*Listing, error) {
	for _, id := range candidateIDs(text) {
		listing, err := r.reader.GetByID(ctx, id)
		if err == nil {
			return &listing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	for _, title := range quotedTitles(text) {
		listing, err := r.reader.FindByTitle(ctx, title)
		if err == nil {
			return &listing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func candidateIDs(text string) []string {
	matches := idPattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	}
	return ids
}

func quotedTitles(text string) []string {
	var titles []string
	for _, m := range quotePattern.FindAllStringSubmatch(text, -1) {
		title := m[1]
		if title == "" {
			title = m[2]
		}
		title = strings.TrimSpace(title)
		if len(title) >= 3 {
			titles = append(titles, title)
		}
	}
	return titles
}

var dealKeywords = []struct {
	deal     domain.DealType
	keywords []string
}{
	{domain.DealRental, []string{"rent", "rental", "lease"}},
	{domain.DealPurchase, []string{"buy", "purchase"}},
	{domain.DealViewing, []string{"view", "visit", "tour"}},
}

// InferDealType checks rental, purchase and viewing keywords in that order,
// then falls back to the listing's own price type.
func InferDealType(text string, listing *Listing) domain.DealType {
	lower := strings.ToLower(text)
	for _, group := range dealKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.deal
			}
		}
	}
	if listing != nil && listing.PriceType == PriceRental {
		return domain.DealRental
	}
	return domain.DealPurchase
}
