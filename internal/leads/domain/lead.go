// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DealType is the nature of the prospect's interest in a listing.
type DealType string

const (
	DealPurchase DealType = "purchase"
	DealRental   DealType = "rental"
	DealViewing  DealType = "viewing"
)

// ParseDealType validates a raw deal type value.
func ParseDealType(raw string) (DealType, bool) {
	switch DealType(raw) {
	case DealPurchase, DealRental, DealViewing:
		return DealType(raw), true
	}
	return "", false
}

// BuyingIntent is the coarse tier derived from the numeric score.
type BuyingIntent string

const (
	IntentLow      BuyingIntent = "low"
	IntentMedium   BuyingIntent = "medium"
	IntentHigh     BuyingIntent = "high"
	IntentVeryHigh BuyingIntent = "very-high"
)

// IntentForScore buckets a 0-100 score.
func IntentForScore(score int) BuyingIntent {
	switch {
	case score >= 80:
		return IntentVeryHigh
	case score >= 60:
		return IntentHigh
	case score >= 40:
		return IntentMedium
	default:
		return IntentLow
	}
}

// Channel tags where an interaction entered the system.
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelMessaging Channel = "messaging"
	ChannelEmail     Channel = "email"
	ChannelSystem    Channel = "system"
)

// InteractionType classifies an engagement action for scoring.
type InteractionType string

const (
	InteractionConnectNow       InteractionType = "connect_now"
	InteractionEmailInquiry     InteractionType = "email_inquiry"
	InteractionMessagingMessage InteractionType = "messaging_message"
	InteractionChatMessage      InteractionType = "chat_message"
)

// Client is the contact subdocument of a lead.
type Client struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	Contact         string `json:"contact"`
	Email           string `json:"email"`
	EmailSynthetic  bool   `json:"emailSynthetic"`
	MessagingNumber string `json:"whatsappNumber"`
}

// HasDeliverableEmail reports whether the client email can actually receive mail.
func (c Client) HasDeliverableEmail() bool {
	return c.Email != "" && !c.EmailSynthetic
}

// ConversationEntry is one chronological, channel-tagged history item.
type ConversationEntry struct {
	Role      string            `json:"role"`
	Text      string            `json:"text"`
	Channel   Channel           `json:"channel"`
	Direction string            `json:"direction"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	RoleClient = "client"
	RoleSystem = "system"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ScoreBreakdown holds the seven capped sub-scores.
type ScoreBreakdown struct {
	ResponseTime       int `json:"responseTime"`
	Engagement         int `json:"engagement"`
	ListingMatch       int `json:"listingMatch"`
	Urgency            int `json:"urgency"`
	ContactQuality     int `json:"contactQuality"`
	InteractionQuality int `json:"interactionQuality"`
	IntentSignals      int `json:"intentSignals"`
}

// Total sums the sub-scores before rescaling.
func (b ScoreBreakdown) Total() int {
	return b.ResponseTime + b.Engagement + b.ListingMatch + b.Urgency +
		b.ContactQuality + b.InteractionQuality + b.IntentSignals
}

// Score is the output of one scoring pass.
type Score struct {
	Value     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Intent    BuyingIntent   `json:"buyingIntent"`
}

// ZeroScore is returned whenever scoring cannot complete.
func ZeroScore() Score {
	return Score{Intent: IntentLow}
}

// Lead is the canonical record of one prospective client's interest in one listing.
type Lead struct {
	ID                  uuid.UUID           `json:"id"`
	ListingID           string              `json:"listingId"`
	OwnerID             uuid.UUID           `json:"ownerId"`
	Client              Client              `json:"client"`
	DealType            DealType            `json:"dealType"`
	Status              Status              `json:"status"`
	ConversationHistory []ConversationEntry `json:"conversationHistory"`
	Engagement          Engagement          `json:"aiEngagement"`
	Score               int                 `json:"score"`
	ScoreBreakdown      ScoreBreakdown      `json:"scoreBreakdown"`
	BuyingIntent        BuyingIntent        `json:"buyingIntent"`
	LastFollowUpAt      *time.Time          `json:"lastFollowUpDate,omitempty"`
	NextFollowUpAt      *time.Time          `json:"nextFollowUpDate,omitempty"`
	FollowUpCount       int                 `json:"followUpCount"`
	AutoFollowUpEnabled bool                `json:"autoFollowUpEnabled"`
	Notes               string              `json:"notes"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	ClosedAt            *time.Time          `json:"closedAt,omitempty"`
}

// NewLead builds a lead in status new. The caller records the first interaction.
func NewLead(listingID string, ownerID uuid.UUID, client Client, dealType DealType, now time.Time) *Lead {
	return &Lead{
		ID:                  uuid.New(),
		ListingID:           listingID,
		OwnerID:             ownerID,
		Client:              client,
		DealType:            dealType,
		Status:              StatusNew,
		ConversationHistory: []ConversationEntry{},
		Engagement:          Engagement{Actions: []EngagementAction{}},
		BuyingIntent:        IntentLow,
		AutoFollowUpEnabled: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// ApplyScore stores a scoring result on the lead.
func (l *Lead) ApplyScore(s Score) {
	l.Score = s.Value
	l.ScoreBreakdown = s.Breakdown
	l.BuyingIntent = s.Intent
}

// ConversationText concatenates all history text for keyword matching.
func (l *Lead) ConversationText() string {
	parts := make([]string, 0, len(l.ConversationHistory))
	for _, e := range l.ConversationHistory {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, " ")
}

// PendingEntry is a buffered set of messages for a contact with no resolvable listing.
type PendingEntry struct {
	ContactKey string              `json:"contactKey"`
	Channel    Channel             `json:"channel"`
	Messages   []ConversationEntry `json:"messages"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}
