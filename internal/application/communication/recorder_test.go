package communication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/domain/shared"
)

func TestAnalyticsRecorder_Record_Success(t *testing.T) {
	events := new(mockEventRepository)
	publisher := new(mockEventPublisher)
	recorder := NewAnalyticsRecorder(events, publisher, zap.NewNop(), time.Second)

	req, err := communication.NewCommunicationRequest(uuid.New(), communication.TriggerPaymentReminder, communication.ChannelSMS, communication.PriorityHigh, nil)
	require.NoError(t, err)
	result := communication.NewSuccessResult(req, "task-1", decimal.RequireFromString("0.0500"), false)

	events.On("Append", mock.Anything, mock.MatchedBy(func(e *communication.CommunicationEvent) bool {
		return e.UserID == req.UserID && e.Status == communication.DeliverySent && e.TaskID == "task-1"
	})).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evs []shared.DomainEvent) bool {
		return len(evs) == 1 && evs[0].EventType() == communication.EventTypeCommunicationDispatched
	})).Return(nil)

	recorder.Record(context.Background(), req, result)

	assert.True(t, result.AnalyticsTracked)
	events.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestAnalyticsRecorder_Record_FailureResultStillAppends(t *testing.T) {
	events := new(mockEventRepository)
	publisher := new(mockEventPublisher)
	recorder := NewAnalyticsRecorder(events, publisher, zap.NewNop(), time.Second)

	req, err := communication.NewCommunicationRequest(uuid.New(), communication.TriggerPaymentReminder, communication.ChannelSMS, communication.PriorityHigh, nil)
	require.NoError(t, err)
	result := communication.NewFailureResult(req, "provider down", true)

	events.On("Append", mock.Anything, mock.MatchedBy(func(e *communication.CommunicationEvent) bool {
		return e.Status == communication.DeliveryFailed && e.FallbackUsed
	})).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evs []shared.DomainEvent) bool {
		return len(evs) == 1 && evs[0].EventType() == communication.EventTypeCommunicationFailed
	})).Return(nil)

	recorder.Record(context.Background(), req, result)

	assert.True(t, result.AnalyticsTracked)
}

func TestAnalyticsRecorder_Record_NeverPropagatesErrors(t *testing.T) {
	events := new(mockEventRepository)
	publisher := new(mockEventPublisher)
	recorder := NewAnalyticsRecorder(events, publisher, zap.NewNop(), time.Second)

	req, err := communication.NewCommunicationRequest(uuid.New(), communication.TriggerPaymentReminder, communication.ChannelSMS, communication.PriorityHigh, nil)
	require.NoError(t, err)
	result := communication.NewSuccessResult(req, "task-1", decimal.RequireFromString("0.0500"), false)

	events.On("Append", mock.Anything, mock.Anything).Return(errors.New("store down"))
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	// must not panic and must not surface either failure
	recorder.Record(context.Background(), req, result)

	assert.False(t, result.AnalyticsTracked)
	assert.True(t, result.Success, "the send outcome is untouched by recording failures")
}

func TestAnalyticsRecorder_Ping(t *testing.T) {
	events := new(mockEventRepository)
	recorder := NewAnalyticsRecorder(events, nil, zap.NewNop(), time.Second)

	events.On("Ping", mock.Anything).Return(nil).Once()
	assert.NoError(t, recorder.Ping(context.Background()))

	events.On("Ping", mock.Anything).Return(errors.New("down")).Once()
	assert.Error(t, recorder.Ping(context.Background()))
}
