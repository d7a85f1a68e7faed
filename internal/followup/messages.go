package followup

import (
	"fmt"

	"listing_leads_backend/internal/leads/domain"
)

const fallbackListingTitle = "the property you inquired about"

var intentMessages = map[domain.BuyingIntent]string{
	domain.IntentVeryHigh: "I hope this message finds you well. I wanted to follow up on your interest in %s. Given your high level of engagement, I'd love to schedule a viewing at your earliest convenience. Are you available this week?",
	domain.IntentHigh:     "I'm reaching out regarding %s. I noticed your strong interest and wanted to see if you have any questions or would like to schedule a viewing. Please let me know how I can assist you.",
	domain.IntentMedium:   "Just following up on your inquiry about %s. Have you had a chance to consider it further? I'm here to answer any questions you might have.",
	domain.IntentLow:      "I wanted to check in about your interest in %s. If you'd like more information or have any questions, please don't hesitate to reach out.",
}

// followUpBody picks the message tier from the lead's buying intent.
// Unknown tiers read like medium.
func followUpBody(intent domain.BuyingIntent, listingTitle string) string {
	tmpl, ok := intentMessages[intent]
	if !ok {
		tmpl = intentMessages[domain.IntentMedium]
	}
	return fmt.Sprintf(tmpl, listingTitle)
}

func messagingBody(clientName, body string) string {
	if clientName == "" {
		clientName = "there"
	}
	return fmt.Sprintf("Hi %s, %s", clientName, body)
}
