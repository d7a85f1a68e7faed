package ingestion

import (
	"context"
	"errors"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/listings"
)

const (
	defaultMessagingName    = "Messaging Lead"
	messagingAddressPending = "Provided via messaging"
)

// HandleInboundMessage merges a chat-style message into a lead, creates a
// new lead, or buffers the message when no listing can be resolved.
func (s *Service) HandleInboundMessage(ctx context.Context, p MessagePayload) (Result, error) {
	ev, err := NormalizeMessage(p, s.now())
	if err != nil {
		return Result{}, err
	}

	listing, err := s.resolver.Resolve(ctx, ev.Text)
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(ev.Phone)
	defer unlock()

	listingID := ""
	if listing != nil {
		listingID = listing.ID
	}
	existing, err := s.leads.FindLatestByMessagingNumber(ctx, ev.Phone, listingID)
	found := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Result{}, err
	}

	entry := inboundEntry(ev, ev.Text)
	in := domain.Interaction{
		Entries: []domain.ConversationEntry{entry},
		Action: domain.EngagementAction{
			Action:            "messaging_message_received",
			Timestamp:         ev.ReceivedAt,
			Success:           true,
			Reasoning:         "Client sent a message",
			Outcome:           "Lead updated with messaging interaction",
			InteractionType:   domain.InteractionMessagingMessage,
			InteractionSource: domain.ChannelMessaging,
			Metadata:          map[string]any{"messageLength": len(ev.Text)},
		},
	}

	if found {
		if listing == nil {
			listing = s.listingForScoring(ctx, existing.ListingID)
		}
		updated, err := s.appendInteraction(ctx, existing.ID, listing, in, []string{ev.Phone})
		if err != nil {
			return Result{}, err
		}
		s.bus.Publish(ctx, events.LeadInteractionAppended{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    updated.ID,
			OwnerID:   updated.OwnerID,
			Source:    string(domain.ChannelMessaging),
			Score:     updated.Score,
		})
		return Result{Outcome: OutcomeAppended, Lead: &updated}, nil
	}

	if listing == nil {
		return s.buffer(ctx, ev.Phone, domain.ChannelMessaging, entry)
	}

	in.Action.Action = "lead_captured_via_messaging"
	in.Action.Outcome = "Lead created from messaging channel"
	lead, isNew, err := s.createOrMerge(ctx, creation{
		listing: listing,
		client: domain.Client{
			Name:            firstNonEmpty(ev.Name, defaultMessagingName),
			Address:         messagingAddressPending,
			Contact:         ev.Phone,
			Email:           ev.Email,
			EmailSynthetic:  true,
			MessagingNumber: ev.Phone,
		},
		dealType:    listings.InferDealType(ev.Text, listing),
		interaction: in,
		pendingKeys: []string{ev.Phone},
	})
	if err != nil {
		return Result{}, err
	}

	if !isNew {
		s.bus.Publish(ctx, events.LeadInteractionAppended{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			OwnerID:   lead.OwnerID,
			Source:    string(domain.ChannelMessaging),
			Score:     lead.Score,
		})
		return Result{Outcome: OutcomeAppended, Lead: &lead}, nil
	}
	s.bus.Publish(ctx, events.LeadCaptured{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		OwnerID:   lead.OwnerID,
		ListingID: lead.ListingID,
		Source:    string(domain.ChannelMessaging),
		Score:     lead.Score,
	})
	return Result{Outcome: OutcomeCreated, Lead: &lead}, nil
}

// listingForScoring loads the lead's own listing; failures only affect the listing-match factor.
func (s *Service) listingForScoring(ctx context.Context, id string) *listings.Listing {
	if id == "" {
		return nil
	}
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil
	}
	return &listing
}
