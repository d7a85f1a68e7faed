// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"listing_leads_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCaptured is published after a new lead is persisted by any gateway.
type LeadCaptured struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	ListingID string    `json:"listingId"`
	Source    string    `json:"source"`
	Score     int       `json:"score"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadInteractionAppended is published when an inbound signal is merged into an existing lead.
type LeadInteractionAppended struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	OwnerID uuid.UUID `json:"ownerId"`
	Source  string    `json:"source"`
	Score   int       `json:"score"`
}

func (e LeadInteractionAppended) EventName() string { return "leads.lead.interaction_appended" }

// EmailInquiryReceived is published for every inbound email merged into a lead, new or existing.
type EmailInquiryReceived struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OwnerID   uuid.UUID `json:"ownerId"`
	ListingID string    `json:"listingId"`
	IsNew     bool      `json:"isNew"`
}

func (e EmailInquiryReceived) EventName() string { return "leads.email.inquiry_received" }

// LeadRescored is published when a stored score changes.
type LeadRescored struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	OwnerID       uuid.UUID `json:"ownerId"`
	PreviousScore int       `json:"previousScore"`
	Score         int       `json:"score"`
}

func (e LeadRescored) EventName() string { return "leads.lead.rescored" }

// LeadClosed is published on the first transition of a lead to closed.
type LeadClosed struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	OwnerID uuid.UUID `json:"ownerId"`
}

func (e LeadClosed) EventName() string { return "leads.lead.closed" }
