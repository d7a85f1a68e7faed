package followup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/leads/domain"
	leadrepo "listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeLeadStore struct {
	leads     map[uuid.UUID]*domain.Lead
	order     []uuid.UUID
	listCalls int
	dueCalls  int
}

func newFakeLeadStore(leads ...*domain.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: map[uuid.UUID]*domain.Lead{}}
	for _, l := range leads {
		s.leads[l.ID] = l
		s.order = append(s.order, l.ID)
	}
	return s
}

func (s *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, leadrepo.ErrNotFound
	}
	return *l, nil
}

func (s *fakeLeadStore) Mutate(_ context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, leadrepo.ErrNotFound
	}
	cp := *l
	if err := fn(&cp); err != nil {
		return domain.Lead{}, err
	}
	s.leads[id] = &cp
	return cp, nil
}

func (s *fakeLeadStore) ListActiveIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.listCalls++
	var ids []uuid.UUID
	seen := after == uuid.Nil
	for _, id := range s.order {
		if !seen {
			seen = id == after
			continue
		}
		if s.leads[id].Status.IsTerminal() {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// ListDueForFollowUp orders and pages like the SQL query. Due-ness and the
// owner opt-out are left to the processor's own checks.
func (s *fakeLeadStore) ListDueForFollowUp(_ context.Context, _ time.Time, after *domain.FollowUpCursor, limit int) ([]domain.FollowUpCursor, error) {
	s.dueCalls++
	var due []domain.FollowUpCursor
	for _, id := range s.order {
		if l := s.leads[id]; l.AutoFollowUpEnabled && !l.Status.IsTerminal() {
			due = append(due, domain.FollowUpCursor{DueAt: l.FollowUpDueAt(), ID: id})
		}
	}
	slices.SortFunc(due, compareCursor)

	page := make([]domain.FollowUpCursor, 0, limit)
	for _, c := range due {
		if after != nil && compareCursor(c, *after) <= 0 {
			continue
		}
		page = append(page, c)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func compareCursor(a, b domain.FollowUpCursor) int {
	if c := a.DueAt.Compare(b.DueAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

type fakeRescorer struct {
	failFor map[uuid.UUID]bool
	calls   []uuid.UUID
}

func (r *fakeRescorer) Recalculate(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	r.calls = append(r.calls, id)
	if r.failFor[id] {
		return domain.Lead{}, errors.New("listing lookup timed out")
	}
	return domain.Lead{ID: id}, nil
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

type captureEmail struct {
	sent []email.Message
	err  error
}

func (c *captureEmail) Send(_ context.Context, m email.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

type captureMessaging struct {
	to   []string
	body []string
	err  error
}

func (c *captureMessaging) SendMessage(_ context.Context, phone, msg string) error {
	if c.err != nil {
		return c.err
	}
	c.to = append(c.to, phone)
	c.body = append(c.body, msg)
	return nil
}

type captureInbox struct {
	sent []inapp.SendParams
}

func (c *captureInbox) Send(_ context.Context, p inapp.SendParams) (inapp.Notification, error) {
	c.sent = append(c.sent, p)
	return inapp.Notification{ID: uuid.New()}, nil
}

type purger struct {
	notifications int64
	pending       int64
	cutoff        time.Time
	err           error
}

func (p *purger) PurgeExpired(context.Context) (int64, error) { return p.notifications, p.err }

func (p *purger) PurgePendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.pending, nil
}

type fixture struct {
	store     *fakeLeadStore
	owner     listings.Owner
	email     *captureEmail
	messaging *captureMessaging
	inbox     *captureInbox
	proc      *Processor
}

func newFixture(t *testing.T, owner listings.Owner, leads ...*domain.Lead) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFakeLeadStore(leads...),
		owner:     owner,
		email:     &captureEmail{},
		messaging: &captureMessaging{},
		inbox:     &captureInbox{},
	}
	f.proc = NewProcessor(Deps{
		Leads:     f.store,
		Rescorer:  &fakeRescorer{},
		Listings:  fakeListings{"listing-1": {ID: "listing-1", OwnerID: owner.ID, Title: "Garden Villa"}},
		Owners:    fakeOwners{owner.ID: owner},
		Email:     f.email,
		Messaging: f.messaging,
		Notifier:  f.inbox,
	}, Options{Now: func() time.Time { return testNow }}, logger.NewWithWriter("test", io.Discard))
	return f
}

func newDueLead(ownerID uuid.UUID, intent domain.BuyingIntent) *domain.Lead {
	l := domain.NewLead("listing-1", ownerID, domain.Client{
		Name:            "Jane Wanjiru",
		Email:           "jane@example.com",
		MessagingNumber: "+254712345678",
	}, domain.DealPurchase, testNow.Add(-72*time.Hour))
	l.BuyingIntent = intent
	return l
}

func TestProcessDueSendsAndAdvances(t *testing.T) {
	owner := listings.Owner{ID: uuid.New(), Email: "agent@example.com", AutoFollowUpEnabled: true, FollowUpIntervalDays: 3}
	lead := newDueLead(owner.ID, domain.IntentVeryHigh)
	f := newFixture(t, owner, lead)

	stats, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("expected 1 follow-up, got %+v", stats)
	}

	if len(f.email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(f.email.sent))
	}
	msg := f.email.sent[0]
	if msg.To != "jane@example.com" || msg.ReplyTo != "agent@example.com" {
		t.Fatalf("unexpected email routing %+v", msg)
	}
	if !strings.Contains(msg.HTML, "schedule a viewing at your earliest convenience") {
		t.Fatalf("expected very-high tier body in email")
	}
	if len(f.messaging.body) != 1 || !strings.HasPrefix(f.messaging.body[0], "Hi Jane Wanjiru, ") {
		t.Fatalf("unexpected messaging body %v", f.messaging.body)
	}

	stored := f.store.leads[lead.ID]
	if stored.FollowUpCount != 1 {
		t.Fatalf("expected follow-up count 1, got %d", stored.FollowUpCount)
	}
	if stored.LastFollowUpAt == nil || !stored.LastFollowUpAt.Equal(testNow) {
		t.Fatalf("expected last follow-up at %v, got %v", testNow, stored.LastFollowUpAt)
	}
	if want := testNow.Add(72 * time.Hour); stored.NextFollowUpAt == nil || !stored.NextFollowUpAt.Equal(want) {
		t.Fatalf("expected next follow-up at %v, got %v", want, stored.NextFollowUpAt)
	}

	if len(f.inbox.sent) != 1 {
		t.Fatalf("expected one owner notification, got %d", len(f.inbox.sent))
	}
	n := f.inbox.sent[0]
	if n.Title != "Follow-up Sent" || n.Type != inapp.TypeLead || n.Metadata.Priority != "low" {
		t.Fatalf("unexpected owner notification %+v", n)
	}
	if n.Message != "Automatic follow-up sent to Jane Wanjiru for Garden Villa" {
		t.Fatalf("unexpected notification message %q", n.Message)
	}
}

func TestProcessDueDefaultIntervalAndSyntheticEmail(t *testing.T) {
	owner := listings.Owner{ID: uuid.New(), AutoFollowUpEnabled: true}
	lead := newDueLead(owner.ID, domain.IntentLow)
	lead.Client.Email = "msg-254712345678@synthetic.invalid"
	lead.Client.EmailSynthetic = true
	f := newFixture(t, owner, lead)

	if _, err := f.proc.ProcessDue(context.Background()); err != nil {
		t.Fatalf("process due: %v", err)
	}
	if len(f.email.sent) != 0 {
		t.Fatalf("synthetic address must never be emailed")
	}
	if len(f.messaging.body) != 1 {
		t.Fatalf("expected messaging follow-up")
	}
	stored := f.store.leads[lead.ID]
	if want := testNow.Add(48 * time.Hour); stored.NextFollowUpAt == nil || !stored.NextFollowUpAt.Equal(want) {
		t.Fatalf("expected default 2 day interval, got %v", stored.NextFollowUpAt)
	}
}

func TestProcessDueSkipsOwnersWithAutoFollowUpDisabled(t *testing.T) {
	owner := listings.Owner{ID: uuid.New(), AutoFollowUpEnabled: false}
	lead := newDueLead(owner.ID, domain.IntentHigh)
	f := newFixture(t, owner, lead)

	stats, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Fatalf("expected lead skipped, got %+v", stats)
	}
	if len(f.email.sent)+len(f.messaging.body)+len(f.inbox.sent) != 0 {
		t.Fatalf("nothing should be sent for an opted-out owner")
	}
	if f.store.leads[lead.ID].FollowUpCount != 0 {
		t.Fatalf("lead must not advance")
	}
}

func TestProcessDueSkipsLeadsNotYetDue(t *testing.T) {
	owner := listings.Owner{ID: uuid.New(), AutoFollowUpEnabled: true}
	lead := newDueLead(owner.ID, domain.IntentHigh)
	last := testNow.Add(-time.Hour)
	next := testNow.Add(time.Hour)
	lead.LastFollowUpAt = &last
	lead.NextFollowUpAt = &next
	f := newFixture(t, owner, lead)

	stats, _ := f.proc.ProcessDue(context.Background())
	if stats.Skipped != 1 || len(f.email.sent) != 0 {
		t.Fatalf("expected not-yet-due lead skipped, got %+v", stats)
	}
}

func TestProcessDueIsolatesFailures(t *testing.T) {
	owner := listings.Owner{ID: uuid.New(), AutoFollowUpEnabled: true}
	failing := newDueLead(owner.ID, domain.IntentMedium)
	failing.Client.MessagingNumber = ""
	ok := newDueLead(owner.ID, domain.IntentMedium)
	ok.Client.Email = ""
	f := newFixture(t, owner, failing, ok)
	f.email.err = errors.New("smtp unavailable")

	stats, err := f.proc.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if stats.Failed != 1 || stats.Processed != 1 {
		t.Fatalf("expected one failure and one success, got %+v", stats)
	}
	if f.store.leads[failing.ID].FollowUpCount != 0 {
		t.Fatalf("failed lead must stay due for the next run")
	}
	if f.store.leads[ok.ID].FollowUpCount != 1 {
		t.Fatalf("second lead should still be processed")
	}
}

func TestProcessDuePagesPastLeadsThatStayDue(t *testing.T) {
	optedOut := listings.Owner{ID: uuid.New(), AutoFollowUpEnabled: false}
	optedIn := listings.Owner{ID: uuid.New(), AutoFollowUpEnabled: true}
	first := newDueLead(optedOut.ID, domain.IntentHigh)
	second := newDueLead(optedOut.ID, domain.IntentHigh)
	waiting := newDueLead(optedIn.ID, domain.IntentHigh)
	first.CreatedAt = testNow.Add(-96 * time.Hour)
	second.CreatedAt = testNow.Add(-90 * time.Hour)
	waiting.CreatedAt = testNow.Add(-80 * time.Hour)

	f := newFixture(t, optedIn, first, second, waiting)
	f.proc.deps.Owners = fakeOwners{optedOut.ID: optedOut, optedIn.ID: optedIn}
	f.proc.opts.BatchSize = 2

	for run := 0; run < 2; run++ {
		stats, err := f.proc.ProcessDue(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if run == 0 && (stats.Skipped != 2 || stats.Processed != 1) {
			t.Fatalf("expected 2 skipped and 1 sent, got %+v", stats)
		}
	}
	if f.store.leads[waiting.ID].FollowUpCount != 1 {
		t.Fatalf("lead behind skipped leads must get its follow-up, count=%d", f.store.leads[waiting.ID].FollowUpCount)
	}
	if f.store.leads[first.ID].FollowUpCount != 0 || f.store.leads[second.ID].FollowUpCount != 0 {
		t.Fatalf("opted-out leads must not advance")
	}
}

func TestRescoreActivePagesAndIsolatesFailures(t *testing.T) {
	owner := listings.Owner{ID: uuid.New()}
	var leads []*domain.Lead
	for i := 0; i < 5; i++ {
		leads = append(leads, newDueLead(owner.ID, domain.IntentLow))
	}
	leads[4].Status = domain.StatusClosed
	f := newFixture(t, owner, leads...)
	rescorer := &fakeRescorer{failFor: map[uuid.UUID]bool{leads[1].ID: true}}
	f.proc.deps.Rescorer = rescorer
	f.proc.opts.BatchSize = 2

	stats, err := f.proc.RescoreActive(context.Background())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if len(rescorer.calls) != 4 {
		t.Fatalf("expected 4 active leads rescored, got %d", len(rescorer.calls))
	}
	if stats.Processed != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if f.store.listCalls != 3 {
		t.Fatalf("expected 3 pages, got %d", f.store.listCalls)
	}
}

func TestCleanupPurgesWithRetentionCutoff(t *testing.T) {
	p := &purger{notifications: 4, pending: 2}
	proc := NewProcessor(Deps{Notifications: p, Pending: p}, Options{
		PendingRetention: 30 * 24 * time.Hour,
		Now:              func() time.Time { return testNow },
	}, logger.NewWithWriter("test", io.Discard))

	if err := proc.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if want := testNow.Add(-30 * 24 * time.Hour); !p.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, p.cutoff)
	}
}

func TestFollowUpBodyTiers(t *testing.T) {
	tests := []struct {
		intent domain.BuyingIntent
		want   string
	}{
		{domain.IntentVeryHigh, "Are you available this week?"},
		{domain.IntentHigh, "I noticed your strong interest"},
		{domain.IntentMedium, "Have you had a chance to consider it further?"},
		{domain.IntentLow, "please don't hesitate to reach out"},
		{"", "Have you had a chance to consider it further?"},
	}
	for _, tt := range tests {
		got := followUpBody(tt.intent, "Garden Villa")
		if !strings.Contains(got, tt.want) || !strings.Contains(got, "Garden Villa") {
			t.Fatalf("intent %q: unexpected body %q", tt.intent, got)
		}
	}
}
