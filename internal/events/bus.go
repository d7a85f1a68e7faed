// Package events re-exports the platform event bus for convenience.
// This allows internal modules to import events from internal/events
// while the implementation lives in platform/events.
package events

import (
	"listing_leads_backend/platform/besteffort"
	platformevents "listing_leads_backend/platform/events"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus whose subscribers run on runner.
func NewInMemoryBus(runner *besteffort.Runner) *InMemoryBus {
	return platformevents.NewInMemoryBus(runner)
}
