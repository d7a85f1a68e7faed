package ingestion

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/phone"
	"listing_leads_backend/platform/sanitize"

	"github.com/badoux/checkmail"
)

const syntheticEmailDomain = "synthetic.invalid"

// InteractionEvent is a single normalized inbound signal before it is merged into a lead.
type InteractionEvent struct {
	Channel        domain.Channel
	Name           string
	Email          string
	EmailSynthetic bool
	Phone          string
	Subject        string
	Text           string
	ReceivedAt     time.Time
	Metadata       map[string]string
}

// ContactKeys returns the identities a pending buffer entry may be stored under.
func (e InteractionEvent) ContactKeys() []string {
	keys := make([]string, 0, 2)
	if e.Phone != "" {
		keys = append(keys, e.Phone)
	}
	if e.Email != "" && !e.EmailSynthetic {
		keys = append(keys, e.Email)
	}
	return keys
}

// MessagePayload is the inbound chat-style message webhook body.
type MessagePayload struct {
	From        string `json:"from" form:"From"`
	Body        string `json:"body" form:"Body"`
	ProfileName string `json:"profileName" form:"ProfileName"`
	To          string `json:"to" form:"To"`
	MessageID   string `json:"messageId" form:"MessageSid"`
	WaID        string `json:"waId" form:"WaId"`
}

// EmailPayload is the inbound email webhook body.
type EmailPayload struct {
	From    string `json:"from" form:"from"`
	To      string `json:"to" form:"to"`
	Subject string `json:"subject" form:"subject"`
	Text    string `json:"text" form:"text"`
	HTML    string `json:"html" form:"html"`
}

// NormalizeMessage validates and canonicalizes an inbound message.
func NormalizeMessage(p MessagePayload, now time.Time) (InteractionEvent, error) {
	number := phone.NormalizeE164(p.From)
	body := sanitize.Text(p.Body)
	if number == "" || phone.Digits(number) == "" {
		return InteractionEvent{}, apperr.Validation("missing sender number")
	}
	if body == "" {
		return InteractionEvent{}, apperr.Validation("missing message body")
	}

	meta := map[string]string{}
	for k, v := range map[string]string{"to": p.To, "messageId": p.MessageID, "waId": p.WaID, "profileName": p.ProfileName} {
		if v = strings.TrimSpace(v); v != "" {
			meta[k] = v
		}
	}

	return InteractionEvent{
		Channel:        domain.ChannelMessaging,
		Name:           sanitize.Text(p.ProfileName),
		Email:          SyntheticEmail(number),
		EmailSynthetic: true,
		Phone:          number,
		Text:           body,
		ReceivedAt:     now,
		Metadata:       meta,
	}, nil
}

// NormalizeEmail validates and canonicalizes an inbound email.
func NormalizeEmail(p EmailPayload, now time.Time) (InteractionEvent, error) {
	address, err := NormalizeEmailAddress(p.From)
	if err != nil {
		return InteractionEvent{}, err
	}

	body := strings.TrimSpace(p.Text)
	if body == "" && p.HTML != "" {
		body = sanitize.HTMLToText(p.HTML)
	}
	subject := sanitize.Text(p.Subject)
	if body == "" && subject == "" {
		return InteractionEvent{}, apperr.Validation("missing email body")
	}

	meta := map[string]string{}
	if to := strings.TrimSpace(p.To); to != "" {
		meta["to"] = to
	}

	number := ""
	if raw := ExtractPhoneNumber(body); raw != "" {
		number = phone.NormalizeE164(raw)
	}

	return InteractionEvent{
		Channel:    domain.ChannelEmail,
		Name:       ExtractName(body, address),
		Email:      address,
		Phone:      number,
		Subject:    subject,
		Text:       body,
		ReceivedAt: now,
		Metadata:   meta,
	}, nil
}

var addressPattern = regexp.MustCompile(`<([^>]+)>|([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

// NormalizeEmailAddress extracts the address from a From header and lower-cases it.
func NormalizeEmailAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.Validation("missing sender address")
	}
	address := raw
	if m := addressPattern.FindStringSubmatch(raw); m != nil {
		address = m[1]
		if address == "" {
			address = m[2]
		}
	}
	address = strings.ToLower(strings.TrimSpace(address))
	if err := checkmail.ValidateFormat(address); err != nil {
		return "", apperr.Validation(fmt.Sprintf("invalid sender address %q", address))
	}
	return address, nil
}

// SyntheticEmail builds the non-deliverable placeholder used for messaging-only contacts.
func SyntheticEmail(number string) string {
	return "msg-" + phone.Digits(number) + "@" + syntheticEmailDomain
}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+254\s?[17]\d{8}`),
	regexp.MustCompile(`254\s?[17]\d{8}`),
	regexp.MustCompile(`0[17]\d{8}`),
}

// ExtractPhoneNumber finds the first Kenyan mobile number in text.
func ExtractPhoneNumber(text string) string {
	for _, p := range phonePatterns {
		if m := p.FindString(text); m != "" {
			return strings.Join(strings.Fields(m), "")
		}
	}
	return ""
}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "dear": {}, "good morning": {}, "good afternoon": {}, "good evening": {},
}

// ExtractName takes the first short line of the body as a signature, or
// derives a name from the address local part.
func ExtractName(body, address string) string {
	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines) && i < 3; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || len(line) >= 50 || strings.Contains(line, "@") {
			continue
		}
		if isGreeting(line) {
			continue
		}
		return line
	}

	local, _, _ := strings.Cut(address, "@")
	words := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Email Inquiry"
	}
	return strings.Join(words, " ")
}

func isGreeting(line string) bool {
	lower := strings.ToLower(strings.TrimRight(line, ",.!:"))
	if _, ok := greetings[lower]; ok {
		return true
	}
	first, _, _ := strings.Cut(lower, " ")
	_, ok := greetings[first]
	return ok && strings.HasSuffix(strings.TrimSpace(line), ",")
}
