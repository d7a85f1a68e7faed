package preferences

import (
	"fmt"
	"slices"
	"strings"

	"listing_leads_backend/platform/apperr"
	"listing_leads_backend/platform/phone"

	"github.com/badoux/checkmail"
)

// TriggerOverride replaces individual fields of a default trigger preference.
// A nil field inherits. Channels is nil to inherit and empty to mute.
type TriggerOverride struct {
	Enabled        *bool     `json:"enabled,omitempty"`
	Channels       []Channel `json:"channels"`
	Priority       *Priority `json:"priority,omitempty"`
	ScoreThreshold *int      `json:"scoreThreshold,omitempty"`
}

// ChannelOverride holds a destination override for one channel.
type ChannelOverride struct {
	PhoneNumber  *string `json:"phoneNumber,omitempty"`
	EmailAddress *string `json:"emailAddress,omitempty"`
}

type RateLimitOverride struct {
	MaxPerHour *int `json:"maxPerHour,omitempty"`
	MaxPerDay  *int `json:"maxPerDay,omitempty"`
}

// Override is the document stored per owner.
type Override struct {
	Triggers   map[Trigger]TriggerOverride   `json:"triggers,omitempty"`
	Channels   map[Channel]ChannelOverride   `json:"channels,omitempty"`
	RateLimits map[Channel]RateLimitOverride `json:"rateLimits,omitempty"`
}

// Validate rejects unknown keys and out of range values.
func (o Override) Validate() error {
	var problems []string

	for t, tr := range o.Triggers {
		if !validTrigger(t) {
			problems = append(problems, fmt.Sprintf("unknown trigger %q", t))
			continue
		}
		for _, c := range tr.Channels {
			if !validChannel(c) {
				problems = append(problems, fmt.Sprintf("%s: unknown channel %q", t, c))
			}
		}
		if tr.Priority != nil && !validPriority(*tr.Priority) {
			problems = append(problems, fmt.Sprintf("%s: unknown priority %q", t, *tr.Priority))
		}
		if tr.ScoreThreshold != nil && (*tr.ScoreThreshold < 0 || *tr.ScoreThreshold > 100) {
			problems = append(problems, fmt.Sprintf("%s: scoreThreshold must be between 0 and 100", t))
		}
	}

	for c, ch := range o.Channels {
		if !validChannel(c) {
			problems = append(problems, fmt.Sprintf("unknown channel %q", c))
			continue
		}
		if ch.PhoneNumber != nil && *ch.PhoneNumber != "" {
			if c != ChannelSMS && c != ChannelMessaging {
				problems = append(problems, fmt.Sprintf("%s: phoneNumber not supported", c))
			} else if !phone.IsValid(*ch.PhoneNumber) {
				problems = append(problems, fmt.Sprintf("%s: invalid phoneNumber", c))
			}
		}
		if ch.EmailAddress != nil && *ch.EmailAddress != "" {
			if c != ChannelEmail {
				problems = append(problems, fmt.Sprintf("%s: emailAddress not supported", c))
			} else if checkmail.ValidateFormat(*ch.EmailAddress) != nil {
				problems = append(problems, fmt.Sprintf("%s: invalid emailAddress", c))
			}
		}
	}

	for c, rl := range o.RateLimits {
		if !validChannel(c) {
			problems = append(problems, fmt.Sprintf("unknown channel %q", c))
			continue
		}
		if (rl.MaxPerHour != nil && *rl.MaxPerHour < 0) || (rl.MaxPerDay != nil && *rl.MaxPerDay < 0) {
			problems = append(problems, fmt.Sprintf("%s: rate limits must not be negative", c))
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return apperr.Validation("invalid notification preferences").WithDetails(problems)
	}
	return nil
}

// Apply layers patch onto o and returns the combined override. Fields set in
// patch win; fields absent in patch keep their stored value.
func (o Override) Apply(patch Override) Override {
	out := Override{
		Triggers:   make(map[Trigger]TriggerOverride, len(o.Triggers)),
		Channels:   make(map[Channel]ChannelOverride, len(o.Channels)),
		RateLimits: make(map[Channel]RateLimitOverride, len(o.RateLimits)),
	}
	for k, v := range o.Triggers {
		out.Triggers[k] = v
	}
	for k, v := range o.Channels {
		out.Channels[k] = v
	}
	for k, v := range o.RateLimits {
		out.RateLimits[k] = v
	}

	for t, p := range patch.Triggers {
		cur := out.Triggers[t]
		if p.Enabled != nil {
			cur.Enabled = p.Enabled
		}
		if p.Channels != nil {
			cur.Channels = slices.Clone(p.Channels)
		}
		if p.Priority != nil {
			cur.Priority = p.Priority
		}
		if p.ScoreThreshold != nil {
			cur.ScoreThreshold = p.ScoreThreshold
		}
		out.Triggers[t] = cur
	}
	for c, p := range patch.Channels {
		cur := out.Channels[c]
		if p.PhoneNumber != nil {
			cur.PhoneNumber = p.PhoneNumber
		}
		if p.EmailAddress != nil {
			cur.EmailAddress = p.EmailAddress
		}
		out.Channels[c] = cur
	}
	for c, p := range patch.RateLimits {
		cur := out.RateLimits[c]
		if p.MaxPerHour != nil {
			cur.MaxPerHour = p.MaxPerHour
		}
		if p.MaxPerDay != nil {
			cur.MaxPerDay = p.MaxPerDay
		}
		out.RateLimits[c] = cur
	}
	return out
}

// Merge overlays override onto base and returns the effective preferences.
func Merge(base Preferences, override Override) Preferences {
	out := base.clone()

	for t, o := range override.Triggers {
		cur, ok := out.Triggers[t]
		if !ok {
			continue
		}
		if o.Enabled != nil {
			cur.Enabled = *o.Enabled
		}
		if o.Channels != nil {
			cur.Channels = dedupeChannels(o.Channels)
		}
		if o.Priority != nil {
			cur.Priority = *o.Priority
		}
		if o.ScoreThreshold != nil {
			cur.ScoreThreshold = *o.ScoreThreshold
		}
		out.Triggers[t] = cur
	}

	for c, o := range override.Channels {
		switch c {
		case ChannelSMS:
			if o.PhoneNumber != nil {
				out.Contacts.SMSPhone = phone.NormalizeE164(*o.PhoneNumber)
			}
		case ChannelMessaging:
			if o.PhoneNumber != nil {
				out.Contacts.MessagingPhone = phone.NormalizeE164(*o.PhoneNumber)
			}
		case ChannelEmail:
			if o.EmailAddress != nil {
				out.Contacts.EmailAddress = strings.ToLower(strings.TrimSpace(*o.EmailAddress))
			}
		}
	}

	for c, o := range override.RateLimits {
		cur := out.RateLimits[c]
		if o.MaxPerHour != nil {
			cur.MaxPerHour = *o.MaxPerHour
		}
		if o.MaxPerDay != nil {
			cur.MaxPerDay = *o.MaxPerDay
		}
		out.RateLimits[c] = cur
	}

	return out
}

func dedupeChannels(in []Channel) []Channel {
	out := make([]Channel, 0, len(in))
	for _, c := range in {
		if validChannel(c) && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
