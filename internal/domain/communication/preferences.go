package communication

import (
	"time"

	"github.com/google/uuid"
)

// ConsentStatus represents the state of a per-(trigger, channel) consent record
type ConsentStatus string

const (
	// ConsentGranted means the user has granted permission for this pair
	ConsentGranted ConsentStatus = "GRANTED"
	// ConsentRevoked means the user has withdrawn a previously granted consent
	ConsentRevoked ConsentStatus = "REVOKED"
	// ConsentExpired means the consent lapsed without explicit revocation
	ConsentExpired ConsentStatus = "EXPIRED"
)

// ConsentRecord is a per-user permission to send a specific trigger type on a
// specific channel. It is distinct from the channel-level opt-in flag.
type ConsentRecord struct {
	TriggerType TriggerType   `json:"trigger_type"`
	Channel     Channel       `json:"channel"`
	Status      ConsentStatus `json:"status"`
	GrantedAt   time.Time     `json:"granted_at"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

// Active reports whether the consent currently permits sending
func (c *ConsentRecord) Active(now time.Time) bool {
	if c.Status != ConsentGranted {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return true
}

// ConsentDecision is the gateway's answer to a consent check
type ConsentDecision struct {
	CanSend bool   `json:"can_send"`
	Reason  string `json:"reason,omitempty"`
}

// UserChannelPreferences holds a user's channel opt-ins, consent records and
// per-channel optimal send hours. It is owned by the preference store and
// read-only to the orchestration pipeline.
type UserChannelPreferences struct {
	UserID       uuid.UUID       `json:"user_id"`
	OptedOut     bool            `json:"opted_out"`
	SMSEnabled   bool            `json:"sms_enabled"`
	EmailEnabled bool            `json:"email_enabled"`
	Timezone     string          `json:"timezone"`
	OptimalHours map[Channel]int `json:"optimal_hours,omitempty"`
	Consents     []ConsentRecord `json:"consents,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ChannelEnabled reports whether the given channel is enabled for the user.
// BOTH is enabled when at least one single channel is.
func (p *UserChannelPreferences) ChannelEnabled(channel Channel) bool {
	switch channel {
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelBoth:
		return p.SMSEnabled || p.EmailEnabled
	default:
		return false
	}
}

// AnyChannelEnabled reports whether the user has at least one channel enabled
func (p *UserChannelPreferences) AnyChannelEnabled() bool {
	return p.SMSEnabled || p.EmailEnabled
}

// OptimalHourFor returns the user's stored optimal send hour for a channel
func (p *UserChannelPreferences) OptimalHourFor(channel Channel) (int, bool) {
	if p.OptimalHours == nil {
		return 0, false
	}
	hour, ok := p.OptimalHours[channel]
	if !ok || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// Location resolves the user's time zone, falling back to UTC when the stored
// zone name is empty or unknown.
func (p *UserChannelPreferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConsentFor returns the consent record for a (trigger, channel) pair, or nil
func (p *UserChannelPreferences) ConsentFor(trigger TriggerType, channel Channel) *ConsentRecord {
	for i := range p.Consents {
		if p.Consents[i].TriggerType == trigger && p.Consents[i].Channel == channel {
			return &p.Consents[i]
		}
	}
	return nil
}
