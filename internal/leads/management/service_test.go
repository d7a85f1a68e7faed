package management

import (
	"context"
	"sync"
	"testing"
	"time"

	"listing_leads_backend/internal/events"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/leads/repository"
	"listing_leads_backend/internal/leads/transport"
	"listing_leads_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu     sync.Mutex
	leads  map[uuid.UUID]domain.Lead
	params []repository.ListParams
}

func newFakeRepo(leads ...domain.Lead) *fakeRepo {
	r := &fakeRepo{leads: map[uuid.UUID]domain.Lead{}}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return l, nil
}

func (r *fakeRepo) List(_ context.Context, params repository.ListParams) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = append(r.params, params)
	var out []domain.Lead
	for _, l := range r.leads {
		if params.OwnerID != nil && l.OwnerID != *params.OwnerID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *fakeRepo) Stats(context.Context, *uuid.UUID) (repository.Stats, error) {
	return repository.Stats{}, nil
}

func (r *fakeRepo) Mutate(_ context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if err := fn(&l); err != nil {
		return domain.Lead{}, err
	}
	r.leads[id] = l
	return l, nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.leads, id)
	return nil
}

type fixedRescorer struct {
	repo  *fakeRepo
	score int
}

func (f fixedRescorer) Recalculate(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return f.repo.Mutate(ctx, id, func(l *domain.Lead) error {
		l.ApplyScore(domain.Score{Value: f.score, Intent: domain.IntentForScore(f.score)})
		return nil
	})
}

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *captureBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

var (
	ownerA = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	ownerB = uuid.MustParse("22222222-2222-4222-8222-222222222222")
)

func newLead(owner uuid.UUID) domain.Lead {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return *domain.NewLead("ABC123", owner, domain.Client{Name: "Jane", Email: "jane@example.com"}, domain.DealPurchase, now)
}

func strPtr(s string) *string { return &s }

func TestGetByIDEnforcesOwnership(t *testing.T) {
	lead := newLead(ownerA)
	svc := New(newFakeRepo(lead), nil, nil)
	ctx := context.Background()

	if _, err := svc.GetByID(ctx, Actor{ID: ownerA}, lead.ID); err != nil {
		t.Fatalf("owner should read lead: %v", err)
	}
	if _, err := svc.GetByID(ctx, Actor{ID: ownerB}, lead.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.GetByID(ctx, Actor{ID: ownerB, Admin: true}, lead.ID); err != nil {
		t.Fatalf("admin should bypass ownership: %v", err)
	}
	if _, err := svc.GetByID(ctx, Actor{ID: ownerA}, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListScopesToOwner(t *testing.T) {
	repo := newFakeRepo(newLead(ownerA), newLead(ownerB))
	svc := New(repo, nil, nil)

	res, err := svc.List(context.Background(), Actor{ID: ownerA}, transport.ListLeadsRequest{Status: "new"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || res.Items[0].OwnerID != ownerA {
		t.Fatalf("expected only owner A leads, got %+v", res)
	}
	if p := repo.params[0]; p.Status == nil || *p.Status != domain.StatusNew {
		t.Fatalf("status filter not forwarded: %+v", p)
	}

	res, err = svc.List(context.Background(), Actor{ID: ownerA, Admin: true}, transport.ListLeadsRequest{})
	if err != nil || res.Total != 2 {
		t.Fatalf("admin should see all leads, got %d (%v)", res.Total, err)
	}
}

func TestHighPriorityFilters(t *testing.T) {
	repo := newFakeRepo(newLead(ownerA))
	svc := New(repo, nil, nil)

	if _, err := svc.HighPriority(context.Background(), Actor{ID: ownerA}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := repo.params[0]
	if p.MinScore == nil || *p.MinScore != HighPriorityMinScore || !p.ActiveOnly || !p.OrderByScore || p.Limit != defaultHighPriority {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestUpdateClosedStampsOnceAndPublishes(t *testing.T) {
	lead := newLead(ownerA)
	repo := newFakeRepo(lead)
	bus := &captureBus{}
	svc := New(repo, nil, bus)
	first := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	ctx := context.Background()

	updated, err := svc.Update(ctx, Actor{ID: ownerA}, lead.ID, transport.UpdateLeadRequest{Status: strPtr("closed"), Notes: strPtr("sold")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ClosedAt == nil || !updated.ClosedAt.Equal(first) || updated.Notes != "sold" {
		t.Fatalf("unexpected lead after close: %+v", updated)
	}

	svc.now = func() time.Time { return first.Add(24 * time.Hour) }
	updated, err = svc.Update(ctx, Actor{ID: ownerA}, lead.ID, transport.UpdateLeadRequest{Status: strPtr("closed")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.ClosedAt.Equal(first) {
		t.Fatalf("closedAt overwritten: %v", updated.ClosedAt)
	}
	if len(bus.events) != 1 {
		t.Fatalf("expected a single LeadClosed event, got %d", len(bus.events))
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	lead := newLead(ownerA)
	svc := New(newFakeRepo(lead), nil, nil)
	_, err := svc.Update(context.Background(), Actor{ID: ownerA}, lead.ID, transport.UpdateLeadRequest{Status: strPtr("archived")})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	lead := newLead(ownerA)
	repo := newFakeRepo(lead)
	svc := New(repo, nil, nil)

	if err := svc.Delete(context.Background(), Actor{ID: ownerB}, lead.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), Actor{ID: ownerA}, lead.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.leads[lead.ID]; ok {
		t.Fatal("lead not deleted")
	}
}

func TestRescorePublishesChange(t *testing.T) {
	lead := newLead(ownerA)
	repo := newFakeRepo(lead)
	bus := &captureBus{}
	svc := New(repo, fixedRescorer{repo: repo, score: 81}, bus)

	res, err := svc.Rescore(context.Background(), Actor{ID: ownerA}, lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PreviousScore != 0 || res.Score != 81 || res.BuyingIntent != domain.IntentVeryHigh {
		t.Fatalf("unexpected rescore response %+v", res)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != (events.LeadRescored{}).EventName() {
		t.Fatalf("expected LeadRescored, got %v", bus.events)
	}
}
