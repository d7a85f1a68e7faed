// Package mailbox polls an IMAP inbox and feeds new messages to the email gateway.
package mailbox

import (
	"context"
	"fmt"
	"time"

	"listing_leads_backend/internal/ingestion"
	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/logger"
)

const (
	defaultPollInterval = 2 * time.Minute
	defaultBatchSize    = 50
)

// EmailGateway is the ingestion entry point for inbound email.
type EmailGateway interface {
	HandleInboundEmail(ctx context.Context, p ingestion.EmailPayload) (ingestion.Result, error)
}

// Poller periodically drains new messages from a Source.
type Poller struct {
	source   Source
	cursors  CursorStore
	gateway  EmailGateway
	log      *logger.Logger
	interval time.Duration
	batch    int
}

func NewPoller(source Source, cursors CursorStore, gateway EmailGateway, log *logger.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		source:   source,
		cursors:  cursors,
		gateway:  gateway,
		log:      log,
		interval: interval,
		batch:    defaultBatchSize,
	}
}

func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.source == nil {
		return
	}

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	n, err := p.PollOnce(ctx)
	if err != nil {
		p.log.Warn("mailbox poll failed", "mailbox", p.source.Name(), "error", err)
		return
	}
	if n > 0 {
		p.log.Info("mailbox poll ingested messages", "mailbox", p.source.Name(), "count", n)
	}
}

// PollOnce ingests one batch and returns how many messages were processed.
// Messages rejected as invalid are skipped; any other failure stops the batch
// so the message is retried on the next poll.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	name := p.source.Name()
	last, err := p.cursors.LastUID(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	msgs, err := p.source.FetchAfter(ctx, last, p.batch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, m := range msgs {
		_, err := p.gateway.HandleInboundEmail(ctx, ingestion.EmailPayload{
			From:    m.From,
			To:      m.To,
			Subject: m.Subject,
			Text:    m.Text,
			HTML:    m.HTML,
		})
		if err != nil && !apperr.Is(err, apperr.KindValidation) {
			return processed, fmt.Errorf("ingest uid %d: %w", m.UID, err)
		}
		if err != nil {
			p.log.Warn("skipping invalid mailbox message", "mailbox", name, "uid", m.UID, "error", err)
		}
		if err := p.cursors.SaveUID(ctx, name, m.UID); err != nil {
			return processed, fmt.Errorf("save cursor: %w", err)
		}
		processed++
	}
	return processed, nil
}
