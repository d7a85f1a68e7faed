package ingestion

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/leads/scoring"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead
	order []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{leads: make(map[uuid.UUID]domain.Lead)}
}

func cloneLead(l domain.Lead) domain.Lead {
	l.ConversationHistory = append([]domain.ConversationEntry(nil), l.ConversationHistory...)
	l.Engagement.Actions = append([]domain.EngagementAction(nil), l.Engagement.Actions...)
	perChannel := make(map[domain.Channel]int, len(l.Engagement.Metrics.PerChannel))
	for k, v := range l.Engagement.Metrics.PerChannel {
		perChannel[k] = v
	}
	l.Engagement.Metrics.PerChannel = perChannel
	return l
}

func (m *memStore) Create(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.leads {
		if existing.Client.Email == lead.Client.Email && existing.ListingID == lead.ListingID {
			return domain.Lead{}, apperr.Conflict("lead already exists for this email and listing")
		}
	}
	m.leads[lead.ID] = cloneLead(lead)
	m.order = append(m.order, lead.ID)
	return cloneLead(lead), nil
}

func (m *memStore) Mutate(_ context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	lead = cloneLead(lead)
	if err := fn(&lead); err != nil {
		return domain.Lead{}, err
	}
	m.leads[id] = lead
	return cloneLead(lead), nil
}

func (m *memStore) FindLatestByMessagingNumber(_ context.Context, number string, listingID string) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		lead := m.leads[m.order[i]]
		if lead.Client.MessagingNumber != number {
			continue
		}
		if listingID != "" && lead.ListingID != listingID {
			continue
		}
		return cloneLead(lead), nil
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (m *memStore) FindByEmailAndListing(_ context.Context, email string, listingID string) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range m.leads {
		if lead.Client.Email == email && lead.ListingID == listingID {
			return cloneLead(lead), nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (m *memStore) all() []domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Lead, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneLead(m.leads[id]))
	}
	return out
}

type memPending struct {
	mu      sync.Mutex
	entries map[string]*domain.PendingEntry
}

func newMemPending() *memPending {
	return &memPending{entries: make(map[string]*domain.PendingEntry)}
}

func (p *memPending) AppendPending(_ context.Context, key string, channel domain.Channel, msg domain.ConversationEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		e = &domain.PendingEntry{ContactKey: key, Channel: channel, CreatedAt: msg.Timestamp}
		p.entries[key] = e
	}
	e.Messages = append(e.Messages, msg)
	e.UpdatedAt = msg.Timestamp
	return nil
}

func (p *memPending) TakePending(_ context.Context, keys ...string) ([]domain.PendingEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.PendingEntry
	for _, k := range keys {
		if e, ok := p.entries[k]; ok {
			out = append(out, *e)
			delete(p.entries, k)
		}
	}
	return out, nil
}

func (p *memPending) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[key]; ok {
		return len(e.Messages)
	}
	return 0
}

type memListings struct {
	byID map[string]listings.Listing
}

func (l memListings) GetByID(_ context.Context, id string) (listings.Listing, error) {
	if v, ok := l.byID[id]; ok {
		return v, nil
	}
	return listings.Listing{}, listings.ErrNotFound
}

func (l memListings) FindByTitle(_ context.Context, _ string) (listings.Listing, error) {
	return listings.Listing{}, listings.ErrNotFound
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	sort.Strings(out)
	return out
}

var testOwner = uuid.MustParse("7f1d3c52-9a0b-4a53-8d7e-2f1c5b6a9e01")

type fixture struct {
	svc     *Service
	store   *memStore
	pending *memPending
	bus     *recordingBus
	clock   time.Time
}

func newFixture() *fixture {
	store := newMemStore()
	pending := newMemPending()
	bus := &recordingBus{}
	reader := memListings{byID: map[string]listings.Listing{
		"ABC123": {ID: "ABC123", OwnerID: testOwner, Title: "Sunny 2BR Apartment", PriceType: listings.PriceSale},
		"RENT42": {ID: "RENT42", OwnerID: testOwner, Title: "Garden Cottage", PriceType: listings.PriceRental},
	}}

	f := &fixture{store: store, pending: pending, bus: bus, clock: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	log := logger.NewWithWriter("test", io.Discard)
	f.svc = NewService(ServiceDeps{
		Leads:    store,
		Pending:  pending,
		Listings: reader,
		Resolver: listings.NewResolver(reader),
		Scorer:   scoring.NewEngine(log).WithClock(func() time.Time { return f.clock }),
		Bus:      bus,
		Log:      log,
	})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}
