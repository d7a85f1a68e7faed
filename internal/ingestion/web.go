package ingestion

import (
	"context"
	"strings"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/phone"
	"listing_leads_backend/platform/sanitize"
	"listing_leads_backend/platform/validator"
)

// ClientRequest is the client subdocument of the capture form.
type ClientRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=200"`
	Address        string `json:"address" validate:"required,min=1,max=500"`
	Contact        string `json:"contact" validate:"required,phone"`
	Email          string `json:"email" validate:"required,email,max=320"`
	WhatsappNumber string `json:"whatsappNumber" validate:"required,phone"`
}

// CreateLeadRequest is the public capture form body.
type CreateLeadRequest struct {
	ListingID           string        `json:"listingId" validate:"required,max=64"`
	Client              ClientRequest `json:"client" validate:"required"`
	DealType            string        `json:"dealType" validate:"required,oneof=purchase rental viewing"`
	ConversationHistory []string      `json:"conversationHistory" validate:"max=50,dive,max=5000"`
}

// CaptureWebLead creates a lead from the capture form. A duplicate
// (email, listing) pair is appended to the existing lead.
func (s *Service) CaptureWebLead(ctx context.Context, req CreateLeadRequest) (Result, error) {
	if err := validator.Validate.Struct(req); err != nil {
		return Result{}, apperr.Validation("invalid lead request").WithDetails(err.Error())
	}

	listing, err := s.lookupListing(ctx, strings.TrimSpace(req.ListingID))
	if err != nil {
		return Result{}, err
	}

	email, err := NormalizeEmailAddress(req.Client.Email)
	if err != nil {
		return Result{}, err
	}
	client := domain.Client{
		Name:            sanitize.Text(req.Client.Name),
		Address:         sanitize.Text(req.Client.Address),
		Contact:         phone.NormalizeE164(req.Client.Contact),
		Email:           email,
		MessagingNumber: phone.NormalizeE164(req.Client.WhatsappNumber),
	}
	dealType, _ := domain.ParseDealType(req.DealType)

	now := s.now()
	entries := make([]domain.ConversationEntry, 0, len(req.ConversationHistory))
	for _, text := range req.ConversationHistory {
		if text = sanitize.Text(text); text != "" {
			entries = append(entries, domain.ConversationEntry{
				Role:      domain.RoleClient,
				Text:      text,
				Channel:   domain.ChannelWeb,
				Direction: domain.DirectionInbound,
				Timestamp: now,
			})
		}
	}
	in := domain.Interaction{
		Entries: entries,
		Action: domain.EngagementAction{
			Action:            "lead_captured_via_web",
			Timestamp:         now,
			Success:           true,
			Outcome:           "Lead created from capture form",
			InteractionType:   domain.InteractionConnectNow,
			InteractionSource: domain.ChannelWeb,
		},
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	lead, isNew, err := s.createOrMerge(ctx, creation{
		listing:     listing,
		client:      client,
		dealType:    dealType,
		interaction: in,
		pendingKeys: []string{client.MessagingNumber, email},
	})
	if err != nil {
		return Result{}, err
	}

	if isNew {
		s.bus.Publish(ctx, events.LeadCaptured{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			OwnerID:   lead.OwnerID,
			ListingID: lead.ListingID,
			Source:    string(domain.ChannelWeb),
			Score:     lead.Score,
		})
		return Result{Outcome: OutcomeCreated, Lead: &lead}, nil
	}

	s.bus.Publish(ctx, events.LeadInteractionAppended{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		OwnerID:   lead.OwnerID,
		Source:    string(domain.ChannelWeb),
		Score:     lead.Score,
	})
	return Result{Outcome: OutcomeAppended, Lead: &lead}, nil
}
