package communication

import "fmt"

// TriggerType represents the category of event that causes a communication
type TriggerType string

const (
	// TriggerPaymentReminder notifies the user of an upcoming or missed payment
	TriggerPaymentReminder TriggerType = "PAYMENT_REMINDER"

	// TriggerFinancialAlert warns about unusual account activity or balances
	TriggerFinancialAlert TriggerType = "FINANCIAL_ALERT"

	// TriggerSecurityAlert warns about suspicious sign-ins or credential changes
	TriggerSecurityAlert TriggerType = "SECURITY_ALERT"

	// TriggerSubscriptionRenewal reminds the user of an upcoming renewal charge
	TriggerSubscriptionRenewal TriggerType = "SUBSCRIPTION_RENEWAL"

	// TriggerUsageLimitWarning warns that a plan limit is close to being reached
	TriggerUsageLimitWarning TriggerType = "USAGE_LIMIT_WARNING"

	// TriggerGoalMilestone celebrates progress toward a savings or budget goal
	TriggerGoalMilestone TriggerType = "GOAL_MILESTONE"

	// TriggerWeeklyCheckin is the recurring weekly engagement summary
	TriggerWeeklyCheckin TriggerType = "WEEKLY_CHECKIN"

	// TriggerMonthlySummary is the recurring monthly account summary
	TriggerMonthlySummary TriggerType = "MONTHLY_SUMMARY"

	// TriggerInactivityNudge re-engages users who stopped using the product
	TriggerInactivityNudge TriggerType = "INACTIVITY_NUDGE"

	// TriggerOnboardingTip guides new users through product features
	TriggerOnboardingTip TriggerType = "ONBOARDING_TIP"
)

// AllTriggerTypes lists every valid trigger type in catalog order
var AllTriggerTypes = []TriggerType{
	TriggerPaymentReminder,
	TriggerFinancialAlert,
	TriggerSecurityAlert,
	TriggerSubscriptionRenewal,
	TriggerUsageLimitWarning,
	TriggerGoalMilestone,
	TriggerWeeklyCheckin,
	TriggerMonthlySummary,
	TriggerInactivityNudge,
	TriggerOnboardingTip,
}

// String returns the string representation of TriggerType
func (t TriggerType) String() string {
	return string(t)
}

// IsValid returns true if the trigger type is valid
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerPaymentReminder,
		TriggerFinancialAlert,
		TriggerSecurityAlert,
		TriggerSubscriptionRenewal,
		TriggerUsageLimitWarning,
		TriggerGoalMilestone,
		TriggerWeeklyCheckin,
		TriggerMonthlySummary,
		TriggerInactivityNudge,
		TriggerOnboardingTip:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the trigger type
func (t TriggerType) DisplayName() string {
	switch t {
	case TriggerPaymentReminder:
		return "Payment Reminder"
	case TriggerFinancialAlert:
		return "Financial Alert"
	case TriggerSecurityAlert:
		return "Security Alert"
	case TriggerSubscriptionRenewal:
		return "Subscription Renewal"
	case TriggerUsageLimitWarning:
		return "Usage Limit Warning"
	case TriggerGoalMilestone:
		return "Goal Milestone"
	case TriggerWeeklyCheckin:
		return "Weekly Check-in"
	case TriggerMonthlySummary:
		return "Monthly Summary"
	case TriggerInactivityNudge:
		return "Inactivity Nudge"
	case TriggerOnboardingTip:
		return "Onboarding Tip"
	default:
		return string(t)
	}
}

// ParseTriggerType parses a string into a TriggerType
func ParseTriggerType(s string) (TriggerType, error) {
	t := TriggerType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid trigger type: %q", s)
	}
	return t, nil
}

// Channel represents a delivery channel for a communication
type Channel string

const (
	// ChannelSMS delivers over SMS
	ChannelSMS Channel = "SMS"

	// ChannelEmail delivers over email
	ChannelEmail Channel = "EMAIL"

	// ChannelBoth delivers over SMS and email simultaneously
	ChannelBoth Channel = "BOTH"
)

// String returns the string representation of Channel
func (c Channel) String() string {
	return string(c)
}

// IsValid returns true if the channel is valid
func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelBoth:
		return true
	}
	return false
}

// IsSingle returns true for a single concrete channel (SMS or EMAIL)
func (c Channel) IsSingle() bool {
	return c == ChannelSMS || c == ChannelEmail
}

// Other returns the opposite single channel. It is only defined for single
// channels; BOTH returns itself since it has no fallback counterpart.
func (c Channel) Other() Channel {
	switch c {
	case ChannelSMS:
		return ChannelEmail
	case ChannelEmail:
		return ChannelSMS
	default:
		return c
	}
}

// ParseChannel parses a string into a Channel
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid channel: %q", s)
	}
	return c, nil
}

// Priority represents the urgency of a communication
type Priority string

const (
	// PriorityCritical bypasses send-time optimization and dispatches immediately
	PriorityCritical Priority = "CRITICAL"

	// PriorityHigh is time-sensitive but schedulable
	PriorityHigh Priority = "HIGH"

	// PriorityMedium is the default priority
	PriorityMedium Priority = "MEDIUM"

	// PriorityLow is background-level messaging
	PriorityLow Priority = "LOW"
)

// String returns the string representation of Priority
func (p Priority) String() string {
	return string(p)
}

// IsValid returns true if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority parses a string into a Priority
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %q", s)
	}
	return p, nil
}
