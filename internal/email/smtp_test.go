package email

import (
	"context"
	"errors"
	"html"
	"io"
	"strings"
	"testing"
	"time"

	"listing_leads_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

func newTestSender(deliver func(context.Context, *gomail.Msg) error) *SMTPSender {
	return &SMTPSender{
		fromName:    "Listing Leads",
		fromEmail:   "alerts@example.com",
		maxAttempts: 3,
		backoff:     time.Millisecond,
		log:         logger.NewWithWriter("test", io.Discard),
		deliver:     deliver,
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	calls := 0
	s := newTestSender(func(context.Context, *gomail.Msg) error {
		calls++
		if calls < 3 {
			return errors.New("421 try again later")
		}
		return nil
	})

	if err := s.Send(context.Background(), Message{To: "owner@example.com", Subject: "hi", HTML: "<p>hi</p>"}); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 deliveries, got %d", calls)
	}
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	s := newTestSender(func(context.Context, *gomail.Msg) error {
		calls++
		return errors.New("connection refused")
	})

	err := s.Send(context.Background(), Message{To: "owner@example.com", Subject: "hi", HTML: "<p>hi</p>"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 deliveries, got %d", calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendRejectsInvalidRecipientWithoutDelivering(t *testing.T) {
	calls := 0
	s := newTestSender(func(context.Context, *gomail.Msg) error {
		calls++
		return nil
	})

	err := s.Send(context.Background(), Message{To: "not an address", Subject: "hi"})
	if !errors.Is(err, errInvalidMessage) {
		t.Fatalf("expected invalid message error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no delivery, got %d", calls)
	}
}

func TestSendStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSender(func(context.Context, *gomail.Msg) error {
		cancel()
		return errors.New("timeout")
	})
	s.backoff = time.Hour

	err := s.Send(ctx, Message{To: "owner@example.com", Subject: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestRenderLeadAlert(t *testing.T) {
	msg, err := RenderLeadAlert(LeadAlertData{
		HighPriority:  true,
		ClientName:    "Jane Wanjiru",
		ClientContact: "+254712345678",
		ListingTitle:  "3BR Apartment",
		DealType:      "purchase",
		Score:         82,
		BuyingIntent:  "very-high",
		DashboardURL:  "https://app.example.com/dashboard/leads/abc",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Subject != "HIGH PRIORITY LEAD: Jane Wanjiru - 3BR Apartment" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	// html/template escapes "+" as &#43; in text.
	body := html.UnescapeString(msg.HTML)
	for _, want := range []string{"82/100", "Jane Wanjiru", "https://app.example.com/dashboard/leads/abc", "+254712345678"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected html to contain %q", want)
		}
	}
}

func TestRenderFollowUpEscapesClientText(t *testing.T) {
	msg, err := RenderFollowUp(FollowUpData{
		ClientName:   "<b>Otieno</b>",
		ListingTitle: "Studio Flat",
		Body:         "Are you still interested?",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(msg.HTML, "<b>Otieno</b>") {
		t.Fatalf("client name should be escaped")
	}
	if msg.Subject != "Following up on Studio Flat" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
}
