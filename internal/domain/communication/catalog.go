package communication

// CatalogEntry describes the static defaults for a trigger type, served by
// the trigger-types endpoint and applied when a request omits a channel or
// priority.
type CatalogEntry struct {
	TriggerType     TriggerType `json:"trigger_type"`
	DisplayName     string      `json:"display_name"`
	DefaultChannel  Channel     `json:"default_channel"`
	DefaultPriority Priority    `json:"default_priority"`
}

// triggerCatalog is the static per-trigger default table. Alert-class
// triggers favor SMS; recurring digests stay on email.
var triggerCatalog = map[TriggerType]CatalogEntry{
	TriggerPaymentReminder:     {TriggerPaymentReminder, "Payment Reminder", ChannelSMS, PriorityHigh},
	TriggerFinancialAlert:      {TriggerFinancialAlert, "Financial Alert", ChannelSMS, PriorityCritical},
	TriggerSecurityAlert:       {TriggerSecurityAlert, "Security Alert", ChannelBoth, PriorityCritical},
	TriggerSubscriptionRenewal: {TriggerSubscriptionRenewal, "Subscription Renewal", ChannelEmail, PriorityMedium},
	TriggerUsageLimitWarning:   {TriggerUsageLimitWarning, "Usage Limit Warning", ChannelEmail, PriorityHigh},
	TriggerGoalMilestone:       {TriggerGoalMilestone, "Goal Milestone", ChannelEmail, PriorityLow},
	TriggerWeeklyCheckin:       {TriggerWeeklyCheckin, "Weekly Check-in", ChannelEmail, PriorityLow},
	TriggerMonthlySummary:      {TriggerMonthlySummary, "Monthly Summary", ChannelEmail, PriorityLow},
	TriggerInactivityNudge:     {TriggerInactivityNudge, "Inactivity Nudge", ChannelEmail, PriorityMedium},
	TriggerOnboardingTip:       {TriggerOnboardingTip, "Onboarding Tip", ChannelEmail, PriorityMedium},
}

// CatalogEntryFor returns the catalog entry for a trigger type. Unknown
// triggers get conservative defaults rather than a zero value.
func CatalogEntryFor(trigger TriggerType) CatalogEntry {
	if entry, ok := triggerCatalog[trigger]; ok {
		return entry
	}
	return CatalogEntry{
		TriggerType:     trigger,
		DisplayName:     trigger.DisplayName(),
		DefaultChannel:  ChannelEmail,
		DefaultPriority: PriorityMedium,
	}
}

// Catalog returns all catalog entries in stable order
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(AllTriggerTypes))
	for _, t := range AllTriggerTypes {
		entries = append(entries, CatalogEntryFor(t))
	}
	return entries
}
