package communication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finpilot/backend/internal/domain/communication"
)

// ValidationOutcome is the validator's verdict on a request. Allowed outcomes
// may carry a frequency reservation that the caller must release once the
// attempt is recorded; rejected outcomes never hold a reservation.
type ValidationOutcome struct {
	Allowed bool
	// FailOpen marks an outcome that was allowed only because a dependency
	// failed during validation.
	FailOpen    bool
	Reason      string
	Reservation *communication.Reservation
}

func rejected(reason string) *ValidationOutcome {
	return &ValidationOutcome{Allowed: false, Reason: reason}
}

// RequestValidator enforces opt-out, consent and frequency-cap rules before a
// communication is dispatched. Checks run in a fixed order and the first
// rejection wins; dependency failures during a check let the request through
// rather than blocking it.
type RequestValidator struct {
	prefs    communication.PreferenceGateway
	history  communication.CommunicationEventRepository
	reserver communication.FrequencyReserver
	logger   *zap.Logger
	timeout  time.Duration
}

// NewRequestValidator creates a new RequestValidator
func NewRequestValidator(
	prefs communication.PreferenceGateway,
	history communication.CommunicationEventRepository,
	reserver communication.FrequencyReserver,
	logger *zap.Logger,
	timeout time.Duration,
) *RequestValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RequestValidator{
		prefs:    prefs,
		history:  history,
		reserver: reserver,
		logger:   logger,
		timeout:  timeout,
	}
}

// Validate runs the validation pipeline for one request. Missing preferences
// reject the request; a failed preference lookup does not, it fails open.
func (v *RequestValidator) Validate(ctx context.Context, req *communication.CommunicationRequest) *ValidationOutcome {
	failOpen := false

	prefs, err := v.getPreferences(ctx, req.UserID)
	if err != nil {
		v.logger.Warn("Preference lookup failed, allowing request",
			zap.String("user_id", req.UserID.String()),
			zap.String("trigger_type", string(req.TriggerType)),
			zap.Error(err))
		failOpen = true
	} else {
		if prefs == nil {
			return rejected("no communication preferences on file")
		}
		if prefs.OptedOut {
			return rejected("user has opted out of communications")
		}
		if !prefs.AnyChannelEnabled() {
			return rejected("all communication channels are disabled")
		}
		if !prefs.ChannelEnabled(req.Channel) {
			return rejected(fmt.Sprintf("channel %s is disabled", req.Channel))
		}
	}

	if outcome := v.checkConsent(ctx, req); outcome != nil {
		if !outcome.Allowed {
			return outcome
		}
		failOpen = failOpen || outcome.FailOpen
	}

	outcome := v.checkFrequency(ctx, req)
	if !outcome.Allowed {
		return outcome
	}
	outcome.FailOpen = failOpen || outcome.FailOpen
	return outcome
}

func (v *RequestValidator) getPreferences(ctx context.Context, userID uuid.UUID) (*communication.UserChannelPreferences, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.prefs.GetPreferences(ctx, userID)
}

// checkConsent returns nil only when there is nothing to report; a non-nil
// allowed outcome may carry the fail-open flag.
func (v *RequestValidator) checkConsent(ctx context.Context, req *communication.CommunicationRequest) *ValidationOutcome {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	decision, err := v.prefs.CheckConsent(ctx, req.UserID, req.TriggerType, req.Channel)
	if err != nil {
		v.logger.Warn("Consent check failed, allowing request",
			zap.String("user_id", req.UserID.String()),
			zap.String("trigger_type", string(req.TriggerType)),
			zap.Error(err))
		return &ValidationOutcome{Allowed: true, FailOpen: true}
	}
	if !decision.CanSend {
		reason := decision.Reason
		if reason == "" {
			reason = "consent check failed"
		}
		return rejected(reason)
	}
	return nil
}

// checkFrequency reads the durable send counts for both rolling windows, then
// atomically reserves an in-flight slot so two concurrent requests cannot both
// pass the cap. History errors and reservation errors fail open.
func (v *RequestValidator) checkFrequency(ctx context.Context, req *communication.CommunicationRequest) *ValidationOutcome {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	now := time.Now()
	hourCount, err := v.history.CountSince(ctx, req.UserID, req.TriggerType, now.Add(-time.Hour))
	if err != nil {
		return v.frequencyFailOpen(req, err)
	}
	dayCount, err := v.history.CountSince(ctx, req.UserID, req.TriggerType, now.Add(-24*time.Hour))
	if err != nil {
		return v.frequencyFailOpen(req, err)
	}

	window := communication.FrequencyWindow{HourCount: hourCount, DayCount: dayCount}
	if window.Exceeded() {
		return rejected(fmt.Sprintf("frequency cap exceeded for %s", req.TriggerType))
	}

	reservation, err := v.reserver.Reserve(ctx, req.UserID, req.TriggerType)
	if err != nil {
		return v.frequencyFailOpen(req, err)
	}
	if window.ExceededWith(reservation.InFlight) {
		if relErr := v.reserver.Release(ctx, reservation); relErr != nil {
			v.logger.Warn("Failed to release frequency reservation", zap.Error(relErr))
		}
		return rejected(fmt.Sprintf("frequency cap exceeded for %s", req.TriggerType))
	}

	return &ValidationOutcome{Allowed: true, Reservation: reservation}
}

func (v *RequestValidator) frequencyFailOpen(req *communication.CommunicationRequest, err error) *ValidationOutcome {
	v.logger.Warn("Frequency check failed, allowing request",
		zap.String("user_id", req.UserID.String()),
		zap.String("trigger_type", string(req.TriggerType)),
		zap.Error(err))
	return &ValidationOutcome{Allowed: true, FailOpen: true}
}

// ReleaseReservation returns a held frequency slot. Safe to call with a nil
// reservation.
func (v *RequestValidator) ReleaseReservation(ctx context.Context, reservation *communication.Reservation) {
	if reservation == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := v.reserver.Release(ctx, reservation); err != nil {
		v.logger.Warn("Failed to release frequency reservation",
			zap.String("user_id", reservation.UserID.String()),
			zap.String("trigger_type", string(reservation.TriggerType)),
			zap.Error(err))
	}
}
