// Package scoring computes lead priority scores.
package scoring

import (
	"math"
	"strings"
	"time"

	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/platform/logger"
)

const (
	maxResponseTime       = 20
	maxEngagement         = 25
	maxListingMatch       = 25
	maxUrgency            = 20
	maxContactQuality     = 10
	maxInteractionQuality = 15
	maxIntentSignals      = 10

	rawMaximum = maxResponseTime + maxEngagement + maxListingMatch + maxUrgency +
		maxContactQuality + maxInteractionQuality + maxIntentSignals
)

// intentKeywords are buying signals counted once each in the conversation text.
var intentKeywords = []string{
	"buy", "purchase", "viewing", "schedule", "available",
	"budget", "move in", "when can", "interested", "serious",
}

var dealUrgency = map[domain.DealType]int{
	domain.DealPurchase: 20,
	domain.DealViewing:  18,
	domain.DealRental:   15,
}

// Engine is stateless apart from its clock and is safe for concurrent use.
type Engine struct {
	now func() time.Time
	log *logger.Logger
}

func NewEngine(log *logger.Logger) *Engine {
	return &Engine{now: func() time.Time { return time.Now().UTC() }, log: log}
}

// WithClock returns a copy of the engine that reads time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// Score never fails. Any panic while scoring yields domain.ZeroScore.
func (e *Engine) Score(lead *domain.Lead, listing *listings.Listing) (result domain.Score) {
	defer func() {
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Error("lead scoring failed", "panic", r)
			}
			result = domain.ZeroScore()
		}
	}()
	if lead == nil {
		return domain.ZeroScore()
	}

	b := domain.ScoreBreakdown{
		ResponseTime:       scoreResponseTime(lead.CreatedAt, e.now()),
		Engagement:         capAt(5*len(lead.ConversationHistory), maxEngagement),
		ListingMatch:       scoreListingMatch(lead, listing),
		Urgency:            scoreUrgency(lead.DealType),
		ContactQuality:     scoreContactQuality(lead.Client),
		InteractionQuality: scoreInteractionQuality(lead.InteractionTypes()),
		IntentSignals:      scoreIntentSignals(lead.ConversationText()),
	}

	value := rescale(b.Total())
	return domain.Score{Value: value, Breakdown: b, Intent: domain.IntentForScore(value)}
}

func scoreResponseTime(createdAt, now time.Time) int {
	if createdAt.IsZero() {
		return 5
	}
	age := now.Sub(createdAt)
	switch {
	case age < time.Hour:
		return 20
	case age < 24*time.Hour:
		return 15
	case age < 72*time.Hour:
		return 10
	default:
		return 5
	}
}

func scoreListingMatch(lead *domain.Lead, listing *listings.Listing) int {
	if listing != nil || lead.ListingID != "" {
		return maxListingMatch
	}
	return 15
}

func scoreUrgency(deal domain.DealType) int {
	if v, ok := dealUrgency[deal]; ok {
		return v
	}
	return 10
}

func scoreContactQuality(c domain.Client) int {
	score := 0
	if c.HasDeliverableEmail() {
		score += 3
	}
	if present(c.Contact) {
		score += 3
	}
	if present(c.MessagingNumber) {
		score += 2
	}
	if present(c.Address) {
		score += 2
	}
	return capAt(score, maxContactQuality)
}

func scoreInteractionQuality(types []domain.InteractionType) int {
	score := 0
	distinct := make(map[domain.InteractionType]struct{}, len(types))
	for _, t := range types {
		distinct[t] = struct{}{}
	}
	if _, ok := distinct[domain.InteractionEmailInquiry]; ok {
		score += 10
	}
	if _, ok := distinct[domain.InteractionConnectNow]; ok {
		score += 5
	}
	score += min(5, len(distinct))
	return capAt(score, maxInteractionQuality)
}

func scoreIntentSignals(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range intentKeywords {
		if strings.Contains(lower, kw) {
			score += 2
		}
	}
	return capAt(score, maxIntentSignals)
}

func rescale(total int) int {
	scaled := math.Round(math.Min(100, float64(total)/float64(rawMaximum)*100))
	if scaled < 0 {
		return 0
	}
	return int(scaled)
}

func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "n/a")
}

func capAt(v, limit int) int {
	if v > limit {
		return limit
	}
	if v < 0 {
		return 0
	}
	return v
}
