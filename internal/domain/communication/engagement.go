package communication

// DefaultEngagementWindow is the number of most recent messages per channel
// considered when computing an engagement rate.
const DefaultEngagementWindow = 50

// Frequency cap limits per (user, trigger type)
const (
	MaxSendsPerHour = 2
	MaxSendsPerDay  = 5
)

// EngagementSnapshot is the per-channel engagement over a rolling window.
// It is derived from the communication history and never persisted directly.
type EngagementSnapshot struct {
	Channel Channel `json:"channel"`
	Sent    int     `json:"sent"`
	Engaged int     `json:"engaged"`
}

// Rate returns engaged divided by sent, or zero when nothing was sent
func (s *EngagementSnapshot) Rate() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Engaged) / float64(s.Sent)
}

// FrequencyWindow holds the send counts for the trailing hour and day for one
// (user, trigger type) pair. Both counts must come from the same consistent
// read of the history.
type FrequencyWindow struct {
	HourCount int `json:"hour_count"`
	DayCount  int `json:"day_count"`
}

// Exceeded reports whether either rolling cap is already reached
func (w FrequencyWindow) Exceeded() bool {
	return w.HourCount >= MaxSendsPerHour || w.DayCount >= MaxSendsPerDay
}

// ExceededWith reports whether admitting extra in-flight sends on top of the
// recorded counts would breach either cap.
func (w FrequencyWindow) ExceededWith(inFlight int) bool {
	return w.HourCount+inFlight > MaxSendsPerHour || w.DayCount+inFlight > MaxSendsPerDay
}
