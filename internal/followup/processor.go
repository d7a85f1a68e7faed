// Package followup runs the periodic lead jobs: re-scoring active leads,
// sending automatic client follow-ups and purging expired records.
package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listing_leads_backend/internal/email"
	"listing_leads_backend/internal/leads/domain"
	"listing_leads_backend/internal/listings"
	"listing_leads_backend/internal/notification/inapp"
	"listing_leads_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultBatchSize   = 200
	defaultSendTimeout = 30 * time.Second
	followUpTitle      = "Follow-up Sent"
)

var errNotDue = errors.New("lead no longer due for follow-up")

type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Lead) error) (domain.Lead, error)
	ListActiveIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	ListDueForFollowUp(ctx context.Context, now time.Time, after *domain.FollowUpCursor, limit int) ([]domain.FollowUpCursor, error)
}

type Rescorer interface {
	Recalculate(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
}

type ListingReader interface {
	GetByID(ctx context.Context, id string) (listings.Listing, error)
}

type MessagingSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// OwnerNotifier raises the in-app record telling the owner a follow-up went out.
type OwnerNotifier interface {
	Send(ctx context.Context, p inapp.SendParams) (inapp.Notification, error)
}

type NotificationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type PendingPurger interface {
	PurgePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Deps struct {
	Leads         LeadStore
	Rescorer      Rescorer
	Listings      ListingReader
	Owners        listings.OwnerReader
	Email         email.Sender
	Messaging     MessagingSender
	Notifier      OwnerNotifier
	Notifications NotificationPurger
	Pending       PendingPurger
}

type Options struct {
	DefaultInterval  time.Duration
	PendingRetention time.Duration
	BatchSize        int
	SendTimeout      time.Duration
	AppBaseURL       string
	Now              func() time.Time
}

// RunStats summarises one job run.
type RunStats struct {
	Processed int
	Skipped   int
	Failed    int
}

// Processor holds the job bodies. Every lead is handled on its own: one
// lead's failure is logged and the run moves on.
type Processor struct {
	deps Deps
	opts Options
	log  *logger.Logger
}

func NewProcessor(deps Deps, opts Options, log *logger.Logger) *Processor {
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = domain.DefaultFollowUpInterval
	}
	if opts.PendingRetention <= 0 {
		opts.PendingRetention = 30 * 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Email == nil {
		deps.Email = email.NoopSender{}
	}
	return &Processor{deps: deps, opts: opts, log: log}
}

// RescoreActive recomputes the stored score of every non-terminal lead,
// walking the table in id order.
func (p *Processor) RescoreActive(ctx context.Context) (RunStats, error) {
	var stats RunStats
	after := uuid.Nil
	for {
		ids, err := p.deps.Leads.ListActiveIDs(ctx, after, p.opts.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("list active leads: %w", err)
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if _, err := p.deps.Rescorer.Recalculate(ctx, id); err != nil {
				stats.Failed++
				p.log.Warn("lead rescore failed", "leadId", id, "error", err)
				continue
			}
			stats.Processed++
		}
		if len(ids) < p.opts.BatchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	p.log.Info("lead rescore run finished", "updated", stats.Processed, "failed", stats.Failed)
	return stats, nil
}

// ProcessDue sends a follow-up to every lead that is due right now. The due
// set is walked with a cursor so leads that stay due (skipped or failed)
// never hide the ones behind them.
func (p *Processor) ProcessDue(ctx context.Context) (RunStats, error) {
	var stats RunStats
	now := p.opts.Now()

	var after *domain.FollowUpCursor
	for {
		due, err := p.deps.Leads.ListDueForFollowUp(ctx, now, after, p.opts.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("list due follow-ups: %w", err)
		}

		for _, d := range due {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			sent, err := p.followUp(ctx, d.ID, now)
			switch {
			case err != nil:
				stats.Failed++
				p.log.Warn("follow-up failed", "leadId", d.ID, "error", err)
			case !sent:
				stats.Skipped++
			default:
				stats.Processed++
			}
		}

		if len(due) < p.opts.BatchSize {
			break
		}
		last := due[len(due)-1]
		after = &last
	}

	p.log.Info("follow-up run finished", "sent", stats.Processed, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func (p *Processor) followUp(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	lead, err := p.deps.Leads.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !lead.IsDueForFollowUp(now) {
		return false, nil
	}

	owner, err := p.deps.Owners.GetOwner(ctx, lead.OwnerID)
	if err != nil {
		return false, fmt.Errorf("load owner: %w", err)
	}
	if !owner.AutoFollowUpEnabled {
		return false, nil
	}

	title := fallbackListingTitle
	if listing, err := p.deps.Listings.GetByID(ctx, lead.ListingID); err == nil && listing.Title != "" {
		title = listing.Title
	} else if err != nil && !errors.Is(err, listings.ErrNotFound) {
		p.log.Warn("listing lookup for follow-up failed", "leadId", id, "listingId", lead.ListingID, "error", err)
	}

	body := followUpBody(lead.BuyingIntent, title)
	if err := p.deliver(ctx, lead, owner, title, body); err != nil {
		return false, err
	}

	interval := p.opts.DefaultInterval
	if owner.FollowUpIntervalDays > 0 {
		interval = time.Duration(owner.FollowUpIntervalDays) * 24 * time.Hour
	}
	_, err = p.deps.Leads.Mutate(ctx, id, func(l *domain.Lead) error {
		if !l.IsDueForFollowUp(now) {
			return errNotDue
		}
		l.AdvanceFollowUp(now, interval)
		return nil
	})
	if errors.Is(err, errNotDue) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("advance follow-up: %w", err)
	}

	p.notifyOwner(ctx, lead, title)
	return true, nil
}

// deliver sends the follow-up on every channel the client can be reached
// on. It fails only when every attempted channel failed.
func (p *Processor) deliver(ctx context.Context, lead domain.Lead, owner listings.Owner, title, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()

	var errs []error
	attempted := 0

	if lead.Client.HasDeliverableEmail() {
		attempted++
		msg, err := email.RenderFollowUp(email.FollowUpData{
			ClientName:   lead.Client.Name,
			ListingTitle: title,
			Body:         body,
		})
		if err == nil {
			msg.To = lead.Client.Email
			msg.ReplyTo = owner.Email
			err = p.deps.Email.Send(sendCtx, msg)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if lead.Client.MessagingNumber != "" && p.deps.Messaging != nil {
		attempted++
		if err := p.deps.Messaging.SendMessage(sendCtx, lead.Client.MessagingNumber, messagingBody(lead.Client.Name, body)); err != nil {
			errs = append(errs, fmt.Errorf("messaging: %w", err))
		}
	}

	if attempted > 0 && len(errs) == attempted {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		p.log.Warn("follow-up channel failed", "leadId", lead.ID, "error", err)
	}
	return nil
}

func (p *Processor) notifyOwner(ctx context.Context, lead domain.Lead, title string) {
	if p.deps.Notifier == nil {
		return
	}
	link := ""
	if p.opts.AppBaseURL != "" {
		link = p.opts.AppBaseURL + "/dashboard/leads/" + lead.ID.String()
	}
	_, err := p.deps.Notifier.Send(ctx, inapp.SendParams{
		OwnerID: lead.OwnerID,
		Type:    inapp.TypeLead,
		Title:   followUpTitle,
		Message: fmt.Sprintf("Automatic follow-up sent to %s for %s", lead.Client.Name, title),
		Metadata: inapp.Metadata{
			LeadID:     lead.ID.String(),
			ListingID:  lead.ListingID,
			ClientName: lead.Client.Name,
			Link:       link,
			Priority:   "low",
		},
	})
	if err != nil {
		p.log.SideEffectFailed("followup.owner_notification", err)
	}
}

// Cleanup purges expired inbox records and stale pending-buffer entries.
func (p *Processor) Cleanup(ctx context.Context) error {
	var errs []error

	if p.deps.Notifications != nil {
		purged, err := p.deps.Notifications.PurgeExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge notifications: %w", err))
		} else if purged > 0 {
			p.log.Info("expired notifications purged", "deleted", purged)
		}
	}

	if p.deps.Pending != nil {
		cutoff := p.opts.Now().Add(-p.opts.PendingRetention)
		purged, err := p.deps.Pending.PurgePendingBefore(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge pending buffer: %w", err))
		} else if purged > 0 {
			p.log.Info("stale pending messages purged", "deleted", purged, "cutoff", cutoff)
		}
	}

	return errors.Join(errs...)
}
