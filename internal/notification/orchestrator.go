package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
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
	"golang.org/x/sync/errgroup"
)

const (
	defaultChannelTimeout = 10 * time.Second

	outcomeRateLimited = "rate limit exceeded"
)

// Outcome is the result of one channel dispatch.
type Outcome struct {
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	NotificationID *uuid.UUID `json:"notificationId,omitempty"`
}

// Result describes one notification cycle. FollowOn carries the high-score
// cycle that may run after a leadCaptured cycle.
type Result struct {
	Trigger  preferences.Trigger             `json:"trigger"`
	Success  bool                            `json:"success"`
	Skipped  bool                            `json:"skipped"`
	Reason   string                          `json:"reason,omitempty"`
	Results  map[preferences.Channel]Outcome `json:"results,omitempty"`
	FollowOn *Result                         `json:"followOn,omitempty"`
}

type Deps struct {
	Leads       LeadReader
	Listings    ListingReader
	Owners      listings.OwnerReader
	Preferences PreferenceSource
	Limiter     RateLimiter
	SMS         SMSSender
	Messaging   MessagingSender
	Email       email.Sender
	InApp       InAppSender
	Attempts    AttemptRecorder
}

type Options struct {
	AppBaseURL     string
	ChannelTimeout time.Duration
	// EmailTimeout covers every retry of the email channel.
	EmailTimeout time.Duration
}

// Orchestrator decides whether, where and how to alert a listing owner.
type Orchestrator struct {
	deps Deps
	opts Options
	log  *logger.Logger
}

func NewOrchestrator(deps Deps, opts Options, log *logger.Logger) *Orchestrator {
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = defaultChannelTimeout
	}
	if opts.EmailTimeout <= 0 {
		opts.EmailTimeout = 3 * opts.ChannelTimeout
	}
	if deps.Limiter == nil {
		deps.Limiter = allowAll{}
	}
	if deps.Email == nil {
		deps.Email = email.NoopSender{}
	}
	return &Orchestrator{deps: deps, opts: opts, log: log}
}

// DispatchBudget is the longest one Notify call can take with the default
// email budget: a leadCaptured cycle and its highScoreLead follow-on, each
// possibly waiting on email retries, plus one channel timeout for lookups
// and attempt records. Contexts that run Notify must not be shorter.
func DispatchBudget(channelTimeout time.Duration) time.Duration {
	if channelTimeout <= 0 {
		channelTimeout = defaultChannelTimeout
	}
	return 2*3*channelTimeout + channelTimeout
}

// target bundles everything one cycle needs.
type target struct {
	lead    domain.Lead
	listing listings.Listing
	owner   listings.Owner
	prefs   preferences.Preferences
	test    bool
}

func (o *Orchestrator) NotifyLeadCaptured(ctx context.Context, leadID uuid.UUID) (Result, error) {
	return o.Notify(ctx, leadID, preferences.TriggerLeadCaptured)
}

func (o *Orchestrator) NotifyEmailInquiry(ctx context.Context, leadID uuid.UUID) (Result, error) {
	return o.Notify(ctx, leadID, preferences.TriggerEmailInquiry)
}

func (o *Orchestrator) NotifyHighScoreLead(ctx context.Context, leadID uuid.UUID) (Result, error) {
	return o.Notify(ctx, leadID, preferences.TriggerHighScoreLead)
}

// Notify runs one cycle for trigger. After a leadCaptured cycle that was not
// skipped, a single highScoreLead cycle follows when the score reaches both
// the leadCaptured and the highScoreLead thresholds.
func (o *Orchestrator) Notify(ctx context.Context, leadID uuid.UUID, trigger preferences.Trigger) (Result, error) {
	t, err := o.load(ctx, leadID)
	if err != nil {
		return Result{Trigger: trigger, Reason: err.Error()}, err
	}

	res := o.cycle(ctx, t, trigger)

	if trigger == preferences.TriggerLeadCaptured && !res.Skipped {
		captured := t.prefs.For(preferences.TriggerLeadCaptured).ScoreThreshold
		high := t.prefs.For(preferences.TriggerHighScoreLead).ScoreThreshold
		if t.lead.Score >= captured && t.lead.Score >= high {
			follow := o.cycle(ctx, t, preferences.TriggerHighScoreLead)
			res.FollowOn = &follow
		}
	}
	return res, nil
}

// SendTestNotification sends a sample leadCaptured alert through the owner's
// configured channels. Nothing but the in-app record and attempts is stored.
func (o *Orchestrator) SendTestNotification(ctx context.Context, ownerID uuid.UUID) (Result, error) {
	owner, err := o.deps.Owners.GetOwner(ctx, ownerID)
	if err != nil {
		return Result{}, mapLookupError(err, "owner not found")
	}

	prefs := o.deps.Preferences.Effective(ctx, ownerID)
	tp := prefs.Triggers[preferences.TriggerLeadCaptured]
	tp.Enabled = true
	prefs.Triggers[preferences.TriggerLeadCaptured] = tp

	lead, listing := mockLead(ownerID, time.Now())
	return o.cycle(ctx, target{lead: lead, listing: listing, owner: owner, prefs: prefs, test: true}, preferences.TriggerLeadCaptured), nil
}

func (o *Orchestrator) load(ctx context.Context, leadID uuid.UUID) (target, error) {
	lead, err := o.deps.Leads.GetByID(ctx, leadID)
	if err != nil {
		return target{}, mapLookupError(err, "lead not found")
	}
	listing, err := o.deps.Listings.GetByID(ctx, lead.ListingID)
	if err != nil {
		return target{}, mapLookupError(err, "listing not found")
	}
	owner, err := o.deps.Owners.GetOwner(ctx, lead.OwnerID)
	if err != nil {
		return target{}, mapLookupError(err, "owner not found")
	}
	return target{
		lead:    lead,
		listing: listing,
		owner:   owner,
		prefs:   o.deps.Preferences.Effective(ctx, lead.OwnerID),
	}, nil
}

func mapLookupError(err error, msg string) error {
	if errors.Is(err, leadrepo.ErrNotFound) || errors.Is(err, listings.ErrNotFound) || errors.Is(err, listings.ErrOwnerNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

func (o *Orchestrator) cycle(ctx context.Context, t target, trigger preferences.Trigger) Result {
	tp := t.prefs.For(trigger)
	res := Result{Trigger: trigger}

	switch {
	case !tp.Enabled:
		res.Success, res.Skipped, res.Reason = true, true, "trigger disabled"
		return res
	case trigger == preferences.TriggerHighScoreLead && t.lead.Score < tp.ScoreThreshold:
		res.Success, res.Skipped, res.Reason = true, true, "score below threshold"
		return res
	case len(tp.Channels) == 0:
		res.Success, res.Skipped, res.Reason = true, true, "no channels configured"
		return res
	}

	data := newMessageData(t.lead, t.listing, o.dashboardLink(t.lead.ID))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	res.Results = make(map[preferences.Channel]Outcome, len(tp.Channels))
	for _, ch := range tp.Channels {
		g.Go(func() error {
			out := o.dispatch(ctx, t, trigger, tp, ch, data)
			o.record(ctx, t, trigger, ch, out)

			mu.Lock()
			res.Results[ch] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range res.Results {
		if out.Success {
			res.Success = true
			break
		}
	}
	return res
}

func (o *Orchestrator) dispatch(ctx context.Context, t target, trigger preferences.Trigger, tp preferences.TriggerPreference, ch preferences.Channel, data messageData) Outcome {
	dest := o.destination(t, ch)
	if dest == "" && ch != preferences.ChannelInApp {
		return Outcome{Error: fmt.Sprintf("no %s destination configured", ch)}
	}

	if !o.deps.Limiter.Allow(ctx, t.owner.ID, ch, t.prefs.LimitFor(ch)) {
		return Outcome{Error: outcomeRateLimited}
	}

	timeout := o.opts.ChannelTimeout
	if ch == preferences.ChannelEmail {
		timeout = o.opts.EmailTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	var notifID *uuid.UUID
	switch ch {
	case preferences.ChannelSMS:
		err = o.sendSMS(cctx, dest, trigger, data)
	case preferences.ChannelMessaging:
		err = o.sendMessaging(cctx, dest, trigger, data)
	case preferences.ChannelEmail:
		err = o.sendEmail(cctx, dest, trigger, data)
	case preferences.ChannelInApp:
		notifID, err = o.sendInApp(cctx, t, trigger, tp)
	default:
		err = fmt.Errorf("unsupported channel %q", ch)
	}

	if err != nil {
		return Outcome{Error: err.Error()}
	}
	return Outcome{Success: true, NotificationID: notifID}
}

func (o *Orchestrator) destination(t target, ch preferences.Channel) string {
	switch ch {
	case preferences.ChannelSMS:
		return firstNonEmpty(t.prefs.Contacts.SMSPhone, t.owner.Phone)
	case preferences.ChannelMessaging:
		return firstNonEmpty(t.prefs.Contacts.MessagingPhone, t.owner.MessagingNumber, t.owner.Phone)
	case preferences.ChannelEmail:
		return firstNonEmpty(t.prefs.Contacts.EmailAddress, t.owner.Email)
	case preferences.ChannelInApp:
		return t.owner.ID.String()
	}
	return ""
}

func (o *Orchestrator) sendSMS(ctx context.Context, to string, trigger preferences.Trigger, data messageData) error {
	if o.deps.SMS == nil {
		return errors.New("sms channel not configured")
	}
	text, err := smsText(trigger, data)
	if err != nil {
		return err
	}
	return o.deps.SMS.SendSMS(ctx, to, text)
}

func (o *Orchestrator) sendMessaging(ctx context.Context, to string, trigger preferences.Trigger, data messageData) error {
	if o.deps.Messaging == nil {
		return errors.New("messaging channel not configured")
	}
	text, err := messagingText(trigger, data)
	if err != nil {
		return err
	}
	return o.deps.Messaging.SendMessage(ctx, to, text)
}

func (o *Orchestrator) sendEmail(ctx context.Context, to string, trigger preferences.Trigger, data messageData) error {
	msg, err := ownerEmail(trigger, data)
	if err != nil {
		return err
	}
	msg.To = to
	return o.deps.Email.Send(ctx, msg)
}

func (o *Orchestrator) sendInApp(ctx context.Context, t target, trigger preferences.Trigger, tp preferences.TriggerPreference) (*uuid.UUID, error) {
	if o.deps.InApp == nil {
		return nil, errors.New("in-app channel not configured")
	}
	n, err := o.deps.InApp.Send(ctx, inapp.SendParams{
		OwnerID: t.owner.ID,
		Type:    inAppType(trigger),
		Title:   inAppTitle(trigger, t.lead),
		Message: inAppMessage(trigger, t.lead, t.listing),
		Metadata: inapp.Metadata{
			LeadID:     t.lead.ID.String(),
			ListingID:  t.listing.ID,
			DealType:   string(t.lead.DealType),
			ClientName: t.lead.Client.Name,
			Link:       "/dashboard/leads/" + t.lead.ID.String(),
			Priority:   string(tp.Priority),
		},
	})
	if err != nil {
		return nil, err
	}
	return &n.ID, nil
}

func (o *Orchestrator) record(ctx context.Context, t target, trigger preferences.Trigger, ch preferences.Channel, out Outcome) {
	var dispatchErr error
	if !out.Success {
		dispatchErr = errors.New(out.Error)
	}
	o.log.ChannelDispatch(string(trigger), string(ch), t.owner.ID.String(), out.Success, dispatchErr)

	if o.deps.Attempts == nil {
		return
	}
	a := Attempt{
		OwnerID: t.owner.ID,
		Trigger: trigger,
		Channel: ch,
		Success: out.Success,
		Error:   out.Error,
	}
	if !t.test {
		id := t.lead.ID
		a.LeadID = &id
	}
	if err := o.deps.Attempts.Record(context.WithoutCancel(ctx), a); err != nil {
		o.log.Warn("failed to record notification attempt", "owner_id", t.owner.ID, "channel", ch, "error", err)
	}
}

func (o *Orchestrator) dashboardLink(leadID uuid.UUID) string {
	return o.opts.AppBaseURL + "/dashboard/leads/" + leadID.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mockLead(ownerID uuid.UUID, now time.Time) (domain.Lead, listings.Listing) {
	listing := listings.Listing{
		ID:        "test-listing",
		OwnerID:   ownerID,
		Title:     "Test Property - 3BR Apartment",
		Location:  "Westlands, Nairobi",
		Price:     15000000,
		Currency:  "KSh",
		PriceType: listings.PriceSale,
	}
	lead := domain.NewLead(listing.ID, ownerID, domain.Client{
		Name:            "Test Client",
		Address:         "Test Address, Nairobi",
		Contact:         "+254712345678",
		Email:           "test@example.com",
		MessagingNumber: "+254712345678",
	}, domain.DealPurchase, now)
	lead.Score = 85
	lead.BuyingIntent = domain.IntentHigh
	lead.RecordInteraction(domain.Interaction{
		Entries: []domain.ConversationEntry{{
			Role:      domain.RoleClient,
			Text:      "I'm interested in this property. Can we schedule a viewing?",
			Channel:   domain.ChannelWeb,
			Direction: domain.DirectionInbound,
			Timestamp: now,
		}},
		Action: domain.EngagementAction{
			Action:            "lead_captured",
			Timestamp:         now,
			Success:           true,
			InteractionType:   domain.InteractionConnectNow,
			InteractionSource: domain.ChannelWeb,
		},
	})
	return *lead, listing
}
