package notification

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/leads/domain"
	leadrepo "listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/internal/notification/preferences"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeads map[uuid.UUID]domain.Lead

func (f fakeLeads) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	l, ok := f[id]
	if !ok {
		return domain.Lead{}, leadrepo.ErrNotFound
	}
	return l, nil
}

type fakeListings map[string]listings.Listing

func (f fakeListings) GetByID(_ context.Context, id string) (listings.Listing, error) {
	l, ok := f[id]
	if !ok {
		return listings.Listing{}, listings.ErrNotFound
	}
	return l, nil
}

type fakeOwners map[uuid.UUID]listings.Owner

func (f fakeOwners) GetOwner(_ context.Context, id uuid.UUID) (listings.Owner, error) {
	o, ok := f[id]
	if !ok {
		return listings.Owner{}, listings.ErrOwnerNotFound
	}
	return o, nil
}

type fixedPrefs struct{ p preferences.Preferences }

func (f fixedPrefs) Effective(context.Context, uuid.UUID) preferences.Preferences {
	return preferences.Merge(f.p, preferences.Override{})
}

type denyLimiter struct{ deny map[preferences.Channel]bool }

func (d denyLimiter) Allow(_ context.Context, _ uuid.UUID, ch preferences.Channel, _ preferences.RateLimit) bool {
	return !d.deny[ch]
}

type sent struct {
	channel string
	to      string
	body    string
}

type recorder struct {
	mu       sync.Mutex
	sent     []sent
	inapp    []inapp.SendParams
	attempts []Attempt
	failSMS  error
}

func (r *recorder) SendSMS(_ context.Context, to, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSMS != nil {
		return r.failSMS
	}
	r.sent = append(r.sent, sent{"sms", to, msg})
	return nil
}

func (r *recorder) SendMessage(_ context.Context, to, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{"messaging", to, msg})
	return nil
}

func (r *recorder) Send(_ context.Context, m email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{"email", m.To, m.Subject})
	return nil
}

type inAppRecorder struct{ r *recorder }

func (a inAppRecorder) Send(_ context.Context, p inapp.SendParams) (inapp.Notification, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.r.inapp = append(a.r.inapp, p)
	return inapp.Notification{ID: uuid.New(), OwnerID: p.OwnerID, Title: p.Title}, nil
}

type attemptRecorder struct{ r *recorder }

func (a attemptRecorder) Record(_ context.Context, at Attempt) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.r.attempts = append(a.r.attempts, at)
	return nil
}

type fixture struct {
	orch    *Orchestrator
	rec     *recorder
	lead    domain.Lead
	ownerID uuid.UUID
}

func newFixture(t *testing.T, score int, prefs preferences.Preferences, limiter RateLimiter) fixture {
	t.Helper()
	owner := listings.Owner{
		ID:              uuid.New(),
		Name:            "Agent Achieng",
		Email:           "agent@example.com",
		Phone:           "+254700111222",
		MessagingNumber: "+254700333444",
	}
	listing := listings.Listing{ID: "PROP-1", OwnerID: owner.ID, Title: "3BR Apartment", Location: "Kilimani", Price: 12500000, Currency: "KSh"}
	lead := *domain.NewLead(listing.ID, owner.ID, domain.Client{Name: "Jane Wanjiru", Contact: "+254712345678", Email: "jane@example.com"}, domain.DealPurchase, time.Now())
	lead.Score = score
	lead.BuyingIntent = domain.IntentForScore(score)

	rec := &recorder{}
	orch := NewOrchestrator(Deps{
		Leads:       fakeLeads{lead.ID: lead},
		Listings:    fakeListings{listing.ID: listing},
		Owners:      fakeOwners{owner.ID: owner},
		Preferences: fixedPrefs{p: prefs},
		Limiter:     limiter,
		SMS:         rec,
		Messaging:   rec,
		Email:       rec,
		InApp:       inAppRecorder{rec},
		Attempts:    attemptRecorder{rec},
	}, Options{AppBaseURL: "https://app.example.com", ChannelTimeout: time.Second}, logger.NewWithWriter("test", io.Discard))

	return fixture{orch: orch, rec: rec, lead: lead, ownerID: owner.ID}
}

func withTrigger(p preferences.Preferences, t preferences.Trigger, fn func(*preferences.TriggerPreference)) preferences.Preferences {
	tp := p.Triggers[t]
	fn(&tp)
	p.Triggers[t] = tp
	return p
}

func TestDisabledTriggerIsSkippedWithoutSideEffects(t *testing.T) {
	prefs := withTrigger(preferences.Defaults(), preferences.TriggerLeadCaptured, func(tp *preferences.TriggerPreference) {
		tp.Enabled = false
	})
	f := newFixture(t, 90, prefs, nil)

	res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !res.Success || !res.Skipped {
		t.Fatalf("expected success+skipped, got %+v", res)
	}
	if res.FollowOn != nil {
		t.Fatalf("a skipped capture cycle must not trigger a follow-on")
	}
	if len(f.rec.inapp) != 0 || len(f.rec.sent) != 0 || len(f.rec.attempts) != 0 {
		t.Fatalf("expected zero dispatches, got inapp=%d sent=%d attempts=%d", len(f.rec.inapp), len(f.rec.sent), len(f.rec.attempts))
	}
}

func TestHighScoreRunsExactlyOneFollowOnCycle(t *testing.T) {
	f := newFixture(t, 82, preferences.Defaults(), nil)

	res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if res.FollowOn == nil {
		t.Fatalf("expected a follow-on cycle")
	}
	if res.FollowOn.Trigger != preferences.TriggerHighScoreLead || res.FollowOn.Skipped {
		t.Fatalf("unexpected follow-on %+v", res.FollowOn)
	}
	if res.FollowOn.FollowOn != nil {
		t.Fatalf("follow-on must not chain")
	}

	// leadCaptured: messaging + inApp, highScoreLead: sms + messaging + inApp.
	if len(f.rec.attempts) != 5 {
		t.Fatalf("expected 5 attempts, got %d", len(f.rec.attempts))
	}
	if len(f.rec.inapp) != 2 {
		t.Fatalf("expected 2 in-app records, got %d", len(f.rec.inapp))
	}
	titles := []string{f.rec.inapp[0].Title, f.rec.inapp[1].Title}
	if !containsPrefix(titles, "High Priority Lead: Jane Wanjiru") || !containsPrefix(titles, "New Lead: Jane Wanjiru") {
		t.Fatalf("unexpected in-app titles %v", titles)
	}
}

func TestBelowThresholdHasNoFollowOn(t *testing.T) {
	f := newFixture(t, 74, preferences.Defaults(), nil)

	res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if res.FollowOn != nil {
		t.Fatalf("expected no follow-on below threshold")
	}
	if len(f.rec.attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(f.rec.attempts))
	}
}

func TestFollowOnNeedsBothThresholds(t *testing.T) {
	tests := []struct {
		name       string
		captured   int
		high       int
		wantFollow bool
	}{
		{"capture threshold raised above score", 90, 75, false},
		{"high score threshold raised above score", 75, 90, false},
		{"both thresholds met", 80, 80, true},
	}
	for _, tt := range tests {
		prefs := withTrigger(preferences.Defaults(), preferences.TriggerLeadCaptured, func(tp *preferences.TriggerPreference) {
			tp.ScoreThreshold = tt.captured
		})
		prefs = withTrigger(prefs, preferences.TriggerHighScoreLead, func(tp *preferences.TriggerPreference) {
			tp.ScoreThreshold = tt.high
		})
		f := newFixture(t, 82, prefs, nil)

		res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
		if err != nil {
			t.Fatalf("%s: notify: %v", tt.name, err)
		}
		if got := res.FollowOn != nil; got != tt.wantFollow {
			t.Fatalf("%s: follow-on=%v, want %v", tt.name, got, tt.wantFollow)
		}
		if res.Skipped {
			t.Fatalf("%s: the capture cycle itself must still run", tt.name)
		}
	}
}

func TestDirectHighScoreCycleChecksThreshold(t *testing.T) {
	f := newFixture(t, 50, preferences.Defaults(), nil)

	res, err := f.orch.NotifyHighScoreLead(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !res.Skipped || len(f.rec.attempts) != 0 {
		t.Fatalf("expected skip below threshold, got %+v", res)
	}
}

func TestOneChannelFailureDoesNotBlockOthers(t *testing.T) {
	prefs := withTrigger(preferences.Defaults(), preferences.TriggerLeadCaptured, func(tp *preferences.TriggerPreference) {
		tp.Channels = []preferences.Channel{preferences.ChannelSMS, preferences.ChannelMessaging, preferences.ChannelEmail, preferences.ChannelInApp}
	})
	f := newFixture(t, 30, prefs, nil)
	f.rec.failSMS = errors.New("gateway down")

	res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !res.Success {
		t.Fatalf("partial failure should still report success")
	}
	if res.Results[preferences.ChannelSMS].Success || !strings.Contains(res.Results[preferences.ChannelSMS].Error, "gateway down") {
		t.Fatalf("unexpected sms outcome %+v", res.Results[preferences.ChannelSMS])
	}
	for _, ch := range []preferences.Channel{preferences.ChannelMessaging, preferences.ChannelEmail, preferences.ChannelInApp} {
		if !res.Results[ch].Success {
			t.Fatalf("%s should succeed, got %+v", ch, res.Results[ch])
		}
	}
	if len(f.rec.attempts) != 4 {
		t.Fatalf("every attempt must be recorded, got %d", len(f.rec.attempts))
	}
	if res.Results[preferences.ChannelInApp].NotificationID == nil {
		t.Fatalf("in-app outcome should carry the record id")
	}
}

func TestRateLimitedChannelIsRecordedAsFailure(t *testing.T) {
	f := newFixture(t, 30, preferences.Defaults(), denyLimiter{deny: map[preferences.Channel]bool{preferences.ChannelMessaging: true}})

	res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := res.Results[preferences.ChannelMessaging]; got.Success || got.Error != outcomeRateLimited {
		t.Fatalf("expected rate limited outcome, got %+v", got)
	}
	for _, s := range f.rec.sent {
		if s.channel == "messaging" {
			t.Fatalf("rate limited channel must not send")
		}
	}
	failed := 0
	for _, a := range f.rec.attempts {
		if !a.Success {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed attempt, got %d", failed)
	}
}

func TestDestinationOverridesAndFallbacks(t *testing.T) {
	prefs := withTrigger(preferences.Defaults(), preferences.TriggerLeadCaptured, func(tp *preferences.TriggerPreference) {
		tp.Channels = []preferences.Channel{preferences.ChannelSMS, preferences.ChannelMessaging, preferences.ChannelEmail}
	})
	prefs.Contacts.SMSPhone = "+254799000111"
	f := newFixture(t, 30, prefs, nil)

	if _, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := map[string]string{}
	for _, s := range f.rec.sent {
		got[s.channel] = s.to
	}
	if got["sms"] != "+254799000111" || got["messaging"] != "+254700333444" || got["email"] != "agent@example.com" {
		t.Fatalf("unexpected destinations %v", got)
	}
}

func TestMissingDestinationIsFailedOutcome(t *testing.T) {
	f := newFixture(t, 30, preferences.Defaults(), nil)
	owners := f.orch.deps.Owners.(fakeOwners)
	o := owners[f.ownerID]
	o.MessagingNumber, o.Phone = "", ""
	owners[f.ownerID] = o

	res, err := f.orch.NotifyLeadCaptured(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if res.Results[preferences.ChannelMessaging].Success {
		t.Fatalf("messaging without a number must fail")
	}
	if !res.Results[preferences.ChannelInApp].Success {
		t.Fatalf("in-app should still succeed")
	}
}

func TestUnknownLeadIsNotFound(t *testing.T) {
	f := newFixture(t, 30, preferences.Defaults(), nil)

	_, err := f.orch.NotifyLeadCaptured(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSendTestNotificationUsesMockLead(t *testing.T) {
	prefs := withTrigger(preferences.Defaults(), preferences.TriggerLeadCaptured, func(tp *preferences.TriggerPreference) {
		tp.Enabled = false
	})
	f := newFixture(t, 30, prefs, nil)

	res, err := f.orch.SendTestNotification(context.Background(), f.ownerID)
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if res.Skipped || res.FollowOn != nil {
		t.Fatalf("test notification should dispatch once, got %+v", res)
	}
	if len(f.rec.inapp) != 1 || f.rec.inapp[0].Title != "New Lead: Test Client" {
		t.Fatalf("unexpected in-app records %+v", f.rec.inapp)
	}
	for _, a := range f.rec.attempts {
		if a.LeadID != nil {
			t.Fatalf("test attempts must not reference a lead")
		}
	}
	for _, s := range f.rec.sent {
		if s.channel == "messaging" && !strings.Contains(s.body, "Test Property - 3BR Apartment") {
			t.Fatalf("unexpected messaging body %q", s.body)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{15000000, "KSh", "KSh 15,000,000"},
		{950, "USD", "USD 950"},
		{1000, "", "1,000"},
		{0, "KSh", ""},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.amount, tt.currency); got != tt.want {
			t.Fatalf("formatPrice(%d, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func containsPrefix(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

func TestDispatchBudgetCoversFollowOnEmailRetries(t *testing.T) {
	tests := []struct {
		channel time.Duration
		want    time.Duration
	}{
		{10 * time.Second, 70 * time.Second},
		{0, 70 * time.Second},
		{2 * time.Second, 14 * time.Second},
	}
	for _, tt := range tests {
		got := DispatchBudget(tt.channel)
		if got != tt.want {
			t.Fatalf("channel %v: expected budget %v, got %v", tt.channel, tt.want, got)
		}
		opts := NewOrchestrator(Deps{}, Options{ChannelTimeout: tt.channel}, nil).opts
		if got < 2*opts.EmailTimeout {
			t.Fatalf("channel %v: budget %v shorter than two email cycles", tt.channel, got)
		}
	}
}
