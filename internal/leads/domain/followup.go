package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultFollowUpInterval applies when the owner has not configured one.
const DefaultFollowUpInterval = 48 * time.Hour

// FollowUpCursor is a position in the due follow-up order: the time the
// lead became due, then its id.
type FollowUpCursor struct {
	DueAt time.Time
	ID    uuid.UUID
}

// FollowUpDueAt is the ordering key of the lead in the due follow-up queue.
func (l *Lead) FollowUpDueAt() time.Time {
	if l.NextFollowUpAt != nil {
		return *l.NextFollowUpAt
	}
	return l.CreatedAt
}

// IsDueForFollowUp reports whether the scheduler should contact the client now.
func (l *Lead) IsDueForFollowUp(now time.Time) bool {
	if !l.AutoFollowUpEnabled || l.Status.IsTerminal() {
		return false
	}
	if l.LastFollowUpAt == nil {
		return true
	}
	return l.NextFollowUpAt == nil || !l.NextFollowUpAt.After(now)
}

// AdvanceFollowUp records a sent follow-up and schedules the next one.
func (l *Lead) AdvanceFollowUp(now time.Time, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFollowUpInterval
	}
	last := now
	next := now.Add(interval)
	l.LastFollowUpAt = &last
	l.NextFollowUpAt = &next
	l.FollowUpCount++
	l.UpdatedAt = now
}
