package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/listings"

	"github.com/google/uuid"
)

const (
	defaultEmailName    = "Email Inquiry"
	emailAddressPending = "Provided via email"
)

// RawArchiver keeps a copy of every inbound email payload.
type RawArchiver interface {
	ArchiveInboundEmail(ctx context.Context, key string, payload []byte) error
}

// HandleInboundEmail merges an email into the lead for (sender, listing),
// creating it on a miss. Intent analysis is appended as an annotation.
func (s *Service) HandleInboundEmail(ctx context.Context, p EmailPayload) (Result, error) {
	ev, err := NormalizeEmail(p, s.now())
	if err != nil {
		return Result{}, err
	}
	s.archiveEmail(ctx, p)

	listing, err := s.resolver.Resolve(ctx, ev.Subject+" "+ev.Text)
	if err != nil {
		return Result{}, err
	}

	entry := inboundEntry(ev, fmt.Sprintf("Email Subject: %s\n\nMessage: %s", ev.Subject, ev.Text))
	if listing == nil {
		return s.buffer(ctx, ev.Email, domain.ChannelEmail, entry)
	}

	unlock := s.locks.Lock(ev.Email)
	defer unlock()

	analysis := AnalyzeIntent(ev.Text)
	annotation := domain.EngagementAction{
		Action:            "email_intent_analyzed",
		Timestamp:         ev.ReceivedAt,
		Success:           true,
		Reasoning:         analysis.Reasoning(),
		Outcome:           analysis.Outcome(),
		InteractionSource: domain.ChannelEmail,
		Metadata: map[string]any{
			"intent":   analysis.Intent,
			"urgency":  analysis.Urgency,
			"budget":   analysis.Budget,
			"timeline": analysis.Timeline,
		},
	}
	in := domain.Interaction{
		Entries: []domain.ConversationEntry{entry},
		Action: domain.EngagementAction{
			Action:            "email_inquiry_received",
			Timestamp:         ev.ReceivedAt,
			Success:           true,
			Reasoning:         "Client sent email inquiry",
			Outcome:           "Lead updated with email interaction",
			InteractionType:   domain.InteractionEmailInquiry,
			InteractionSource: domain.ChannelEmail,
			Metadata:          map[string]any{"emailLength": len(ev.Text)},
		},
	}

	var (
		lead  domain.Lead
		isNew bool
	)
	existing, err := s.leads.FindByEmailAndListing(ctx, ev.Email, listing.ID)
	switch {
	case err == nil:
		lead, err = s.appendInteraction(ctx, existing.ID, listing, in, []string{ev.Email}, annotation)
	case errors.Is(err, repository.ErrNotFound):
		in.Action.Outcome = "Lead created from email inquiry"
		lead, isNew, err = s.createOrMerge(ctx, creation{
			listing: listing,
			client: domain.Client{
				Name:            firstNonEmpty(ev.Name, defaultEmailName),
				Address:         emailAddressPending,
				Contact:         ev.Phone,
				Email:           ev.Email,
				MessagingNumber: ev.Phone,
			},
			dealType:    listings.InferDealType(ev.Subject+" "+ev.Text, listing),
			interaction: in,
			annotations: []domain.EngagementAction{annotation},
			pendingKeys: []string{ev.Email, ev.Phone},
		})
	}
	if err != nil {
		return Result{}, err
	}

	s.bus.Publish(ctx, events.EmailInquiryReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		OwnerID:   lead.OwnerID,
		ListingID: lead.ListingID,
		IsNew:     isNew,
	})

	outcome := OutcomeAppended
	if isNew {
		outcome = OutcomeCreated
	}
	return Result{Outcome: outcome, Lead: &lead}, nil
}

func (s *Service) archiveEmail(ctx context.Context, p EmailPayload) {
	if s.archive == nil || s.runner == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	key := fmt.Sprintf("inbound/%s/%s.json", s.now().Format("2006/01/02"), uuid.NewString())
	s.runner.Go(ctx, "ingestion.archive_email", func(ctx context.Context) error {
		return s.archive.ArchiveInboundEmail(ctx, key, payload)
	})
}
