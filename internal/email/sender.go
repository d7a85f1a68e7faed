// Package email delivers HTML mail for the owner email channel and for
// client follow-ups.
package email

import "context"

// Message is one rendered email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NoopSender drops every message. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error {
	return nil
}
