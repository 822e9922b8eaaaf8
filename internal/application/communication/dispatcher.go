package communication

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finpilot/backend/internal/domain/communication"
)

// Default execution handler names, one per channel
const (
	HandlerSendSMS   = "communications.send_sms"
	HandlerSendEmail = "communications.send_email"
	HandlerSendMulti = "communications.send_multichannel"
)

// handlerKey addresses one (trigger type, channel) pair in the routing table
type handlerKey struct {
	trigger communication.TriggerType
	channel communication.Channel
}

// defaultHandlerTable maps (trigger, channel) pairs to dedicated execution
// handlers. Pairs not listed here fall back to the per-channel default. The
// table is fixed at initialization and never grown at request time.
func defaultHandlerTable() map[handlerKey]string {
	return map[handlerKey]string{
		{communication.TriggerPaymentReminder, communication.ChannelSMS}:       "communications.payment_reminder_sms",
		{communication.TriggerPaymentReminder, communication.ChannelEmail}:     "communications.payment_reminder_email",
		{communication.TriggerSecurityAlert, communication.ChannelSMS}:         "communications.security_alert_sms",
		{communication.TriggerSecurityAlert, communication.ChannelEmail}:       "communications.security_alert_email",
		{communication.TriggerSecurityAlert, communication.ChannelBoth}:        "communications.security_alert_multichannel",
		{communication.TriggerFinancialAlert, communication.ChannelSMS}:        "communications.financial_alert_sms",
		{communication.TriggerMonthlySummary, communication.ChannelEmail}:      "communications.monthly_summary_email",
		{communication.TriggerSubscriptionRenewal, communication.ChannelEmail}: "communications.subscription_renewal_email",
	}
}

// channelCosts is the static per-channel unit cost attached to successful
// dispatches. SMS delivery is two orders of magnitude more expensive than
// email; BOTH pays for one message on each channel.
func channelCosts() map[communication.Channel]decimal.Decimal {
	sms := decimal.RequireFromString("0.0500")
	email := decimal.RequireFromString("0.0010")
	return map[communication.Channel]decimal.Decimal{
		communication.ChannelSMS:   sms,
		communication.ChannelEmail: email,
		communication.ChannelBoth:  sms.Add(email),
	}
}

// Dispatcher submits communications to the execution substrate. Submission is
// fire-and-forget: a successful dispatch means the task was accepted, not that
// the message was delivered. A failed submission gets exactly one fallback
// attempt on the other single channel, which must pass validation again.
type Dispatcher struct {
	substrate communication.ExecutionSubstrate
	validator *RequestValidator
	logger    *zap.Logger
	timeout   time.Duration
	handlers  map[handlerKey]string
	defaults  map[communication.Channel]string
	costs     map[communication.Channel]decimal.Decimal
}

// NewDispatcher creates a new Dispatcher with the static routing table
func NewDispatcher(
	substrate communication.ExecutionSubstrate,
	validator *RequestValidator,
	logger *zap.Logger,
	timeout time.Duration,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		substrate: substrate,
		validator: validator,
		logger:    logger,
		timeout:   timeout,
		handlers:  defaultHandlerTable(),
		defaults: map[communication.Channel]string{
			communication.ChannelSMS:   HandlerSendSMS,
			communication.ChannelEmail: HandlerSendEmail,
			communication.ChannelBoth:  HandlerSendMulti,
		},
		costs: channelCosts(),
	}
}

// HandlerFor resolves the execution handler for a (trigger, channel) pair
func (d *Dispatcher) HandlerFor(trigger communication.TriggerType, channel communication.Channel) string {
	if handler, ok := d.handlers[handlerKey{trigger, channel}]; ok {
		return handler
	}
	return d.defaults[channel]
}

// CostFor returns the unit cost of a successful dispatch on a channel
func (d *Dispatcher) CostFor(channel communication.Channel) decimal.Decimal {
	return d.costs[channel]
}

// Dispatch submits the request and, on failure, attempts the channel-swap
// fallback. It takes ownership of the frequency slot `held` by the primary
// attempt's validation and returns whichever slot is still outstanding; the
// caller releases that one once the attempt is recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, req *communication.CommunicationRequest, held *communication.Reservation) (*communication.CommunicationResult, *communication.Reservation) {
	handle, err := d.submit(ctx, req)
	if err == nil {
		return communication.NewSuccessResult(req, handle.TaskID, d.CostFor(req.Channel), req.RetryCount > 0), held
	}

	d.logger.Warn("Dispatch failed, attempting fallback",
		zap.String("user_id", req.UserID.String()),
		zap.String("trigger_type", string(req.TriggerType)),
		zap.String("channel", string(req.Channel)),
		zap.Error(err))

	fallback, fbErr := req.Fallback()
	if fbErr != nil {
		return communication.NewFailureResult(req, fmt.Sprintf("%s; %s", err.Error(), fbErr.Error()), false), held
	}

	// the fallback replaces the primary attempt, so its slot goes back
	// before re-validation or the same communication counts twice
	d.validator.ReleaseReservation(ctx, held)

	// a fallback send must still respect consent and frequency caps
	outcome := d.validator.Validate(ctx, fallback)
	if !outcome.Allowed {
		msg := fmt.Sprintf("%s; fallback rejected: %s", err.Error(), outcome.Reason)
		return communication.NewFailureResult(fallback, msg, true), nil
	}

	handle, retryErr := d.submit(ctx, fallback)
	if retryErr != nil {
		msg := fmt.Sprintf("%s; fallback failed: %s", err.Error(), retryErr.Error())
		return communication.NewFailureResult(fallback, msg, true), outcome.Reservation
	}
	result := communication.NewSuccessResult(fallback, handle.TaskID, d.CostFor(fallback.Channel), true)
	return result, outcome.Reservation
}

func (d *Dispatcher) submit(ctx context.Context, req *communication.CommunicationRequest) (*communication.TaskHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	handler := d.HandlerFor(req.TriggerType, req.Channel)
	params := map[string]any{
		"request_id":   req.ID.String(),
		"trigger_type": string(req.TriggerType),
		"channel":      string(req.Channel),
		"priority":     string(req.Priority),
		"payload":      map[string]any(req.Payload),
	}
	if req.ScheduledAt != nil {
		params["scheduled_at"] = req.ScheduledAt.Format(time.RFC3339)
	}
	return d.substrate.Submit(ctx, handler, req.UserID, params)
}
