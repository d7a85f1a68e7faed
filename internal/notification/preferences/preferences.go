// Package preferences resolves per-owner notification behaviour: which
// triggers fire, on which channels, to which destinations, and how often.
package preferences

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

type Trigger string

const (
	TriggerLeadCaptured  Trigger = "leadCaptured"
	TriggerEmailInquiry  Trigger = "emailInquiry"
	TriggerHighScoreLead Trigger = "highScoreLead"
)

// Triggers lists every known trigger in dispatch order.
var Triggers = []Trigger{TriggerLeadCaptured, TriggerEmailInquiry, TriggerHighScoreLead}

type Channel string

const (
	ChannelSMS       Channel = "sms"
	ChannelMessaging Channel = "messaging"
	ChannelEmail     Channel = "email"
	ChannelInApp     Channel = "inApp"
)

var Channels = []Channel{ChannelSMS, ChannelMessaging, ChannelEmail, ChannelInApp}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func validTrigger(t Trigger) bool { return slices.Contains(Triggers, t) }
func validChannel(c Channel) bool { return slices.Contains(Channels, c) }
func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type TriggerPreference struct {
	Enabled        bool      `yaml:"enabled" json:"enabled"`
	Channels       []Channel `yaml:"channels" json:"channels"`
	Priority       Priority  `yaml:"priority" json:"priority"`
	ScoreThreshold int       `yaml:"scoreThreshold" json:"scoreThreshold"`
}

// HasChannel reports whether the trigger dispatches on c.
func (t TriggerPreference) HasChannel(c Channel) bool {
	return slices.Contains(t.Channels, c)
}

// RateLimit caps dispatches per owner and channel. Zero means no ceiling.
type RateLimit struct {
	MaxPerHour int `yaml:"maxPerHour" json:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay" json:"maxPerDay"`
}

// Contacts overrides the owner's profile destinations per channel.
type Contacts struct {
	SMSPhone       string `json:"smsPhoneNumber,omitempty"`
	MessagingPhone string `json:"messagingPhoneNumber,omitempty"`
	EmailAddress   string `json:"emailAddress,omitempty"`
}

// Preferences is the effective, fully populated configuration of one owner.
type Preferences struct {
	Triggers   map[Trigger]TriggerPreference `yaml:"triggers" json:"triggers"`
	Contacts   Contacts                      `yaml:"-" json:"contacts"`
	RateLimits map[Channel]RateLimit         `yaml:"rateLimits" json:"rateLimits"`
}

// For returns the preference of one trigger. Unknown triggers are disabled.
func (p Preferences) For(t Trigger) TriggerPreference {
	return p.Triggers[t]
}

// LimitFor returns the rate limit of one channel.
func (p Preferences) LimitFor(c Channel) RateLimit {
	return p.RateLimits[c]
}

func (p Preferences) clone() Preferences {
	out := Preferences{
		Triggers:   make(map[Trigger]TriggerPreference, len(p.Triggers)),
		Contacts:   p.Contacts,
		RateLimits: make(map[Channel]RateLimit, len(p.RateLimits)),
	}
	for k, v := range p.Triggers {
		v.Channels = slices.Clone(v.Channels)
		out.Triggers[k] = v
	}
	for k, v := range p.RateLimits {
		out.RateLimits[k] = v
	}
	return out
}

//go:embed defaults.yaml
var defaultsYAML []byte

var defaults = mustParseDefaults(defaultsYAML)

func mustParseDefaults(raw []byte) Preferences {
	var p Preferences
	if err := yaml.Unmarshal(raw, &p); err != nil {
		panic(fmt.Sprintf("parse default notification preferences: %v", err))
	}
	for _, t := range Triggers {
		if _, ok := p.Triggers[t]; !ok {
			panic(fmt.Sprintf("default notification preferences missing trigger %s", t))
		}
	}
	return p
}

// Defaults returns a copy of the built-in preference table.
func Defaults() Preferences {
	return defaults.clone()
}
