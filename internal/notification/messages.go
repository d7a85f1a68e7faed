package notification

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/internal/notification/preferences"
)

const smsHighScoreTemplate = `HIGH PRIORITY LEAD: {{.Lead.Client.Name}}

Property: {{.Listing.Title}}
Score: {{.Lead.Score}}/100 ({{.Lead.BuyingIntent}} intent)
Type: {{.Lead.DealType}}

Contact: {{.Lead.Client.Contact}}
View: {{.Link}}`

const smsLeadTemplate = `New Lead: {{.Lead.Client.Name}}

Property: {{.Listing.Title}}
Type: {{.Lead.DealType}}
Score: {{.Lead.Score}}/100
Intent: {{.Lead.BuyingIntent}}

Contact: {{.Lead.Client.Contact}}
View: {{.Link}}`

const messagingHighScoreTemplate = `*HIGH PRIORITY LEAD CAPTURED!*

*Property:* {{.Listing.Title}}
*Lead Score:* {{.Lead.Score}}/100 ({{.Lead.BuyingIntent}} intent)

*Client Details:*
Name: {{.Lead.Client.Name}}
{{- if .ClientEmail}}
Email: {{.ClientEmail}}{{end}}
{{- if .Lead.Client.Contact}}
Phone: {{.Lead.Client.Contact}}{{end}}
{{- if .Lead.Client.Address}}
Address: {{.Lead.Client.Address}}{{end}}

*Interaction:* {{.Interaction}}
*Deal Type:* {{.Lead.DealType}}

*Action Required:* Contact this lead ASAP!

View full details: {{.Link}}`

const messagingLeadTemplate = `*New {{.Lead.DealType}} Lead Captured!*

*Property:* {{.Listing.Title}}
*Lead Score:* {{.Lead.Score}}/100 ({{.Lead.BuyingIntent}} intent)

*Client Details:*
Name: {{.Lead.Client.Name}}
{{- if .ClientEmail}}
Email: {{.ClientEmail}}{{end}}
{{- if .Lead.Client.Contact}}
Phone: {{.Lead.Client.Contact}}{{end}}
{{- if .Lead.Client.Address}}
Address: {{.Lead.Client.Address}}{{end}}

*Interaction:* {{.Interaction}}

View full details: {{.Link}}`

var (
	smsHighScoreTmpl       = template.Must(template.New("sms_high").Parse(smsHighScoreTemplate))
	smsLeadTmpl            = template.Must(template.New("sms_lead").Parse(smsLeadTemplate))
	messagingHighScoreTmpl = template.Must(template.New("messaging_high").Parse(messagingHighScoreTemplate))
	messagingLeadTmpl      = template.Must(template.New("messaging_lead").Parse(messagingLeadTemplate))
)

// messageData is the variable set shared by every channel template.
type messageData struct {
	Lead        domain.Lead
	Listing     listings.Listing
	Link        string
	ClientEmail string
	Interaction string
}

func newMessageData(lead domain.Lead, listing listings.Listing, link string) messageData {
	d := messageData{Lead: lead, Listing: listing, Link: link, Interaction: "unknown"}
	if lead.Client.HasDeliverableEmail() {
		d.ClientEmail = lead.Client.Email
	}
	for i := len(lead.Engagement.Actions) - 1; i >= 0; i-- {
		if t := lead.Engagement.Actions[i].InteractionType; t != "" {
			d.Interaction = string(t)
			break
		}
	}
	return d
}

func render(tmpl *template.Template, d messageData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}

func smsText(trigger preferences.Trigger, d messageData) (string, error) {
	if trigger == preferences.TriggerHighScoreLead {
		return render(smsHighScoreTmpl, d)
	}
	return render(smsLeadTmpl, d)
}

func messagingText(trigger preferences.Trigger, d messageData) (string, error) {
	if trigger == preferences.TriggerHighScoreLead {
		return render(messagingHighScoreTmpl, d)
	}
	return render(messagingLeadTmpl, d)
}

func ownerEmail(trigger preferences.Trigger, d messageData) (email.Message, error) {
	return email.RenderLeadAlert(email.LeadAlertData{
		HighPriority:    trigger == preferences.TriggerHighScoreLead,
		ClientName:      d.Lead.Client.Name,
		ClientEmail:     d.ClientEmail,
		ClientContact:   d.Lead.Client.Contact,
		ClientAddress:   d.Lead.Client.Address,
		ListingTitle:    d.Listing.Title,
		ListingLocation: d.Listing.Location,
		Price:           formatPrice(d.Listing.Price, d.Listing.Currency),
		DealType:        string(d.Lead.DealType),
		Score:           d.Lead.Score,
		BuyingIntent:    string(d.Lead.BuyingIntent),
		Interactions:    d.Lead.Engagement.TotalInteractions,
		LastMessage:     lastClientMessage(d.Lead),
		DashboardURL:    d.Link,
	})
}

func inAppTitle(trigger preferences.Trigger, lead domain.Lead) string {
	switch trigger {
	case preferences.TriggerHighScoreLead:
		return "High Priority Lead: " + lead.Client.Name
	case preferences.TriggerEmailInquiry:
		return "Email Inquiry: " + lead.Client.Name
	default:
		return "New Lead: " + lead.Client.Name
	}
}

func inAppMessage(trigger preferences.Trigger, lead domain.Lead, listing listings.Listing) string {
	switch trigger {
	case preferences.TriggerHighScoreLead:
		return fmt.Sprintf("High-score lead (%d/100) for %s. Contact ASAP!", lead.Score, listing.Title)
	case preferences.TriggerEmailInquiry:
		return fmt.Sprintf("Email inquiry received for %s. Score: %d/100", listing.Title, lead.Score)
	default:
		return fmt.Sprintf("New %s inquiry for %s. Score: %d/100", lead.DealType, listing.Title, lead.Score)
	}
}

func inAppType(trigger preferences.Trigger) inapp.Type {
	if trigger == preferences.TriggerEmailInquiry {
		return inapp.TypePurchaseInquiry
	}
	return inapp.TypeLeadCaptured
}

func lastClientMessage(lead domain.Lead) string {
	for i := len(lead.ConversationHistory) - 1; i >= 0; i-- {
		e := lead.ConversationHistory[i]
		if e.Role == domain.RoleClient && e.Text != "" {
			return e.Text
		}
	}
	return ""
}

// formatPrice renders 15000000 KSh as "KSh 15,000,000".
func formatPrice(amount int64, currency string) string {
	if amount <= 0 {
		return ""
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if currency == "" {
		return b.String()
	}
	return currency + " " + b.String()
}
