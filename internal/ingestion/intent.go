package ingestion

import (
	"fmt"
	"strings"
)

// IntentAnalysis is the keyword tally attached to inbound email.
type IntentAnalysis struct {
	Intent    string
	Urgency   string
	Buying    int
	Viewing   int
	Budget    int
	Timeline  int
	UrgentHit int
}

var (
	urgentKeywords   = []string{"urgent", "asap", "immediately", "right away", "today", "now"}
	buyingKeywords   = []string{"buy", "purchase", "acquire", "invest", "interested in buying"}
	viewingKeywords  = []string{"view", "see", "visit", "schedule", "tour", "inspection"}
	budgetKeywords   = []string{"budget", "afford", "price", "cost", "payment", "financing"}
	timelineKeywords = []string{"when", "timeline", "move in", "available", "ready"}
)

// AnalyzeIntent counts keyword groups in text and classifies intent and urgency.
func AnalyzeIntent(text string) IntentAnalysis {
	lower := strings.ToLower(text)
	a := IntentAnalysis{
		Buying:    countKeywords(lower, buyingKeywords),
		Viewing:   countKeywords(lower, viewingKeywords),
		Budget:    countKeywords(lower, budgetKeywords),
		Timeline:  countKeywords(lower, timelineKeywords),
		UrgentHit: countKeywords(lower, urgentKeywords),
	}

	switch {
	case a.Buying >= 2:
		a.Intent = "buying"
	case a.Viewing >= 2:
		a.Intent = "viewing"
	case a.Budget >= 2:
		a.Intent = "budget_inquiry"
	default:
		a.Intent = "general_inquiry"
	}

	switch {
	case a.UrgentHit >= 2:
		a.Urgency = "high"
	case a.UrgentHit >= 1:
		a.Urgency = "medium"
	default:
		a.Urgency = "low"
	}
	return a
}

// Reasoning summarises the tally for the engagement log.
func (a IntentAnalysis) Reasoning() string {
	return fmt.Sprintf("Detected %d buying signals, %d viewing signals, %d urgency indicators", a.Buying, a.Viewing, a.UrgentHit)
}

// Outcome is the short label stored on the engagement action.
func (a IntentAnalysis) Outcome() string {
	return fmt.Sprintf("Intent: %s, Urgency: %s", a.Intent, a.Urgency)
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
