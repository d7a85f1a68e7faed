package ingestion

import (
	"testing"
	"time"

	"listing_leads_backend/platform/apperr"
)

var fixedNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestNormalizeMessageBuildsSyntheticIdentity(t *testing.T) {
	ev, err := NormalizeMessage(MessagePayload{
		From:        "whatsapp:+254712345678",
		Body:        "  Is it <b>available</b>?  ",
		ProfileName: "Akinyi",
		MessageID:   "SM123",
	}, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Phone != "+254712345678" {
		t.Fatalf("expected E.164 number, got %q", ev.Phone)
	}
	if ev.Email != "msg-254712345678@synthetic.invalid" || !ev.EmailSynthetic {
		t.Fatalf("unexpected synthetic email %q", ev.Email)
	}
	if ev.Metadata["messageId"] != "SM123" {
		t.Fatalf("expected message id metadata, got %v", ev.Metadata)
	}
	if keys := ev.ContactKeys(); len(keys) != 1 || keys[0] != "+254712345678" {
		t.Fatalf("synthetic email must not be a contact key: %v", keys)
	}
}

func TestNormalizeEmailFallsBackToHTML(t *testing.T) {
	ev, err := NormalizeEmail(EmailPayload{
		From:    "Mary Njeri <MARY@Example.COM>",
		Subject: "Viewing",
		HTML:    "<p>Can I view it on Saturday?</p>",
	}, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Email != "mary@example.com" {
		t.Fatalf("expected lower-cased address, got %q", ev.Email)
	}
	if ev.Text == "" {
		t.Fatal("expected text extracted from html")
	}
	if ev.Phone != "" {
		t.Fatalf("expected no phone, got %q", ev.Phone)
	}
}

func TestNormalizeEmailRejectsBadInput(t *testing.T) {
	cases := []EmailPayload{
		{From: "", Subject: "x", Text: "y"},
		{From: "not-an-address", Subject: "x", Text: "y"},
		{From: "a@example.com"},
	}
	for _, p := range cases {
		if _, err := NormalizeEmail(p, fixedNow); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %+v, got %v", p, err)
		}
	}
}

func TestExtractPhoneNumber(t *testing.T) {
	cases := map[string]string{
		"call +254 712345678 anytime": "+254712345678",
		"my number is 254712345678":   "254712345678",
		"reach me on 0712345678 pls":  "0712345678",
		"no number here":              "",
	}
	for in, want := range cases {
		if got := ExtractPhoneNumber(in); got != want {
			t.Fatalf("ExtractPhoneNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractName(t *testing.T) {
	cases := []struct {
		body    string
		address string
		want    string
	}{
		{"Hi,\nJohn Mwangi\nI would like details", "x@example.com", "John Mwangi"},
		{"Good morning\nDear,\nthis line is long enough to be skipped because it rambles on", "grace.wambui@example.com", "Grace Wambui"},
		{"", "@example.com", "Email Inquiry"},
	}
	for _, tc := range cases {
		if got := ExtractName(tc.body, tc.address); got != tc.want {
			t.Fatalf("ExtractName(%q, %q) = %q, want %q", tc.body, tc.address, got, tc.want)
		}
	}
}
