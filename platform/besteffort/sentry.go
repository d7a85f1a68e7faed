package besteffort

import (
	"time"

	"listing_leads_backend/platform/config"

	"github.com/getsentry/sentry-go"
)

// SentryReporter forwards side-effect failures to Sentry.
type SentryReporter struct{}

// InitSentry configures the Sentry client. It returns a nil reporter and a
// no-op flush when no DSN is configured.
func InitSentry(cfg config.SentryConfig) (Reporter, func(), error) {
	if cfg.GetSentryDSN() == "" {
		return nil, func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.GetSentryDSN(),
		Environment: cfg.GetEnv(),
	})
	if err != nil {
		return nil, func() {}, err
	}

	flush := func() { sentry.Flush(2 * time.Second) }
	return SentryReporter{}, flush, nil
}

// Report captures err tagged with the task name.
func (SentryReporter) Report(task string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("side_effect", task)
		sentry.CaptureException(err)
	})
}
