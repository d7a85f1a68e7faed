package domain

import (
	"sort"
	"time"
)

// EngagementAction is one entry in the ordered action log.
type EngagementAction struct {
	Action            string          `json:"action"`
	Timestamp         time.Time       `json:"timestamp"`
	Success           bool            `json:"success"`
	Outcome           string          `json:"outcome,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty"`
	InteractionType   InteractionType `json:"interactionType,omitempty"`
	InteractionSource Channel         `json:"interactionSource,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
}

// InteractionMetrics are rolling counters over all recorded interactions.
type InteractionMetrics struct {
	FirstInteractionAt *time.Time      `json:"firstInteractionAt,omitempty"`
	LastInteractionAt  *time.Time      `json:"lastInteractionAt,omitempty"`
	PerChannel         map[Channel]int `json:"perChannel"`
}

// Engagement tracks interaction totals and the action log.
type Engagement struct {
	TotalInteractions int                `json:"totalInteractions"`
	Actions           []EngagementAction `json:"actions"`
	Metrics           InteractionMetrics `json:"metrics"`
}

// Interaction is a normalized inbound signal ready to merge into a lead.
type Interaction struct {
	Entries []ConversationEntry
	Action  EngagementAction
}

// RecordInteraction appends history entries and the action, and counts one interaction.
func (l *Lead) RecordInteraction(in Interaction) {
	l.ConversationHistory = append(l.ConversationHistory, in.Entries...)
	l.Engagement.Actions = append(l.Engagement.Actions, in.Action)
	l.touch(in.Action.InteractionSource, in.Action.Timestamp, 1)
}

// Annotate pushes an action without counting it as an interaction.
func (l *Lead) Annotate(action EngagementAction) {
	l.Engagement.Actions = append(l.Engagement.Actions, action)
	if action.Timestamp.After(l.UpdatedAt) {
		l.UpdatedAt = action.Timestamp
	}
}

// AttachPending merges buffered messages into history in chronological order.
// Each buffered message counts as one interaction on its channel.
func (l *Lead) AttachPending(entry PendingEntry, now time.Time) {
	if len(entry.Messages) == 0 {
		return
	}
	msgs := append([]ConversationEntry(nil), entry.Messages...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })

	l.ConversationHistory = append(l.ConversationHistory, msgs...)
	for _, m := range msgs {
		l.touch(m.Channel, m.Timestamp, 1)
	}
	l.Engagement.Actions = append(l.Engagement.Actions, EngagementAction{
		Action:            "pending_messages_attached",
		Timestamp:         now,
		Success:           true,
		Outcome:           "buffered messages merged",
		InteractionSource: entry.Channel,
		Metadata:          map[string]any{"count": len(msgs), "contactKey": entry.ContactKey},
	})
}

func (l *Lead) touch(ch Channel, at time.Time, n int) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	l.Engagement.TotalInteractions += n
	m := &l.Engagement.Metrics
	if m.PerChannel == nil {
		m.PerChannel = make(map[Channel]int)
	}
	if ch != "" {
		m.PerChannel[ch] += n
	}
	if m.FirstInteractionAt == nil || at.Before(*m.FirstInteractionAt) {
		first := at
		m.FirstInteractionAt = &first
	}
	if m.LastInteractionAt == nil || at.After(*m.LastInteractionAt) {
		last := at
		m.LastInteractionAt = &last
	}
	if at.After(l.UpdatedAt) {
		l.UpdatedAt = at
	}
}

// InteractionTypes returns every typed interaction recorded in the action log.
func (l *Lead) InteractionTypes() []InteractionType {
	var out []InteractionType
	for _, a := range l.Engagement.Actions {
		if a.InteractionType != "" {
			out = append(out, a.InteractionType)
		}
	}
	return out
}
