package communication

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finpilot/backend/internal/domain/communication"
)

// DefaultSendHour is the local hour used when the user has no stored optimal
// send time.
const DefaultSendHour = 9

// ChannelOptimizer refines a validated request: it may switch the channel
// based on per-channel engagement and attach a send time based on the user's
// stored optimal hour. The input request is never mutated.
type ChannelOptimizer struct {
	prefs   communication.PreferenceGateway
	history communication.CommunicationEventRepository
	logger  *zap.Logger
	timeout time.Duration
	window  int
	now     func() time.Time
}

// NewChannelOptimizer creates a new ChannelOptimizer
func NewChannelOptimizer(
	prefs communication.PreferenceGateway,
	history communication.CommunicationEventRepository,
	logger *zap.Logger,
	timeout time.Duration,
) *ChannelOptimizer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChannelOptimizer{
		prefs:   prefs,
		history: history,
		logger:  logger,
		timeout: timeout,
		window:  communication.DefaultEngagementWindow,
		now:     time.Now,
	}
}

// WithEngagementWindow overrides the rolling window used for engagement
// comparisons. Values below one keep the default.
func (o *ChannelOptimizer) WithEngagementWindow(window int) *ChannelOptimizer {
	if window > 0 {
		o.window = window
	}
	return o
}

// Optimize returns a derived request with the best channel and send time.
// Optimization is best-effort: any dependency failure leaves the affected
// decision at the requested value rather than failing the send.
func (o *ChannelOptimizer) Optimize(ctx context.Context, req *communication.CommunicationRequest) *communication.CommunicationRequest {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prefs, err := o.prefs.GetPreferences(ctx, req.UserID)
	if err != nil {
		o.logger.Warn("Preference lookup failed, skipping optimization",
			zap.String("user_id", req.UserID.String()),
			zap.Error(err))
		prefs = nil
	}

	optimized := req
	if channel := o.selectChannel(ctx, req, prefs); channel != req.Channel {
		o.logger.Debug("Optimizer switched channel",
			zap.String("user_id", req.UserID.String()),
			zap.String("from", string(req.Channel)),
			zap.String("to", string(channel)))
		optimized = optimized.WithChannel(channel)
	}

	if sendAt, ok := o.selectSendTime(optimized, prefs); ok {
		optimized = optimized.WithScheduledAt(sendAt)
	}
	return optimized
}

// selectChannel applies the channel rules: a disabled channel is swapped for
// the other single channel, and when both are enabled the channel with the
// higher rolling engagement rate wins. Ties keep the requested channel.
func (o *ChannelOptimizer) selectChannel(ctx context.Context, req *communication.CommunicationRequest, prefs *communication.UserChannelPreferences) communication.Channel {
	if prefs == nil || !req.Channel.IsSingle() {
		return req.Channel
	}

	if !prefs.ChannelEnabled(req.Channel) {
		other := req.Channel.Other()
		if prefs.ChannelEnabled(other) {
			return other
		}
		return req.Channel
	}

	other := req.Channel.Other()
	if !prefs.ChannelEnabled(other) {
		return req.Channel
	}

	requested, err := o.history.Engagement(ctx, req.UserID, req.Channel, o.window)
	if err != nil {
		o.logger.Warn("Engagement lookup failed, keeping requested channel", zap.Error(err))
		return req.Channel
	}
	alternative, err := o.history.Engagement(ctx, req.UserID, other, o.window)
	if err != nil {
		o.logger.Warn("Engagement lookup failed, keeping requested channel", zap.Error(err))
		return req.Channel
	}

	if alternative.Rate() > requested.Rate() {
		return other
	}
	return req.Channel
}

// selectSendTime applies the send-time rules. An explicit schedule is honored
// unchanged and CRITICAL requests stay unscheduled for immediate dispatch.
func (o *ChannelOptimizer) selectSendTime(req *communication.CommunicationRequest, prefs *communication.UserChannelPreferences) (time.Time, bool) {
	if req.HasExplicitSchedule() {
		return time.Time{}, false
	}
	if req.Priority == communication.PriorityCritical {
		return time.Time{}, false
	}

	loc := time.UTC
	if prefs != nil {
		loc = prefs.Location()
	}
	now := o.now().In(loc)

	if prefs != nil {
		if hour, ok := prefs.OptimalHourFor(req.Channel); ok {
			return nextOccurrenceOfHour(now, hour), true
		}
	}
	return nextBusinessDayAt(now, DefaultSendHour), true
}

// nextOccurrenceOfHour returns the next time the wall clock reads the given
// hour: today if that hour is still ahead, otherwise tomorrow.
func nextOccurrenceOfHour(now time.Time, hour int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// nextBusinessDayAt returns the given hour on the next weekday after now
func nextBusinessDayAt(now time.Time, hour int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	for candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
