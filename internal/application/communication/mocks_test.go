package communication

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/domain/shared"
)

// Mock implementations

type mockPreferenceGateway struct {
	mock.Mock
}

func (m *mockPreferenceGateway) GetPreferences(ctx context.Context, userID uuid.UUID) (*communication.UserChannelPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*communication.UserChannelPreferences), args.Error(1)
}

func (m *mockPreferenceGateway) CheckConsent(ctx context.Context, userID uuid.UUID, trigger communication.TriggerType, channel communication.Channel) (*communication.ConsentDecision, error) {
	args := m.Called(ctx, userID, trigger, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*communication.ConsentDecision), args.Error(1)
}

func (m *mockPreferenceGateway) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockEventRepository struct {
	mock.Mock
}

func (m *mockEventRepository) Append(ctx context.Context, event *communication.CommunicationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventRepository) History(ctx context.Context, userID uuid.UUID, filter communication.HistoryFilter) ([]*communication.CommunicationEvent, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*communication.CommunicationEvent), args.Error(1)
}

func (m *mockEventRepository) CountSince(ctx context.Context, userID uuid.UUID, trigger communication.TriggerType, since time.Time) (int, error) {
	args := m.Called(ctx, userID, trigger, since)
	return args.Int(0), args.Error(1)
}

func (m *mockEventRepository) Engagement(ctx context.Context, userID uuid.UUID, channel communication.Channel, window int) (*communication.EngagementSnapshot, error) {
	args := m.Called(ctx, userID, channel, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*communication.EngagementSnapshot), args.Error(1)
}

func (m *mockEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockEventRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockExecutionSubstrate struct {
	mock.Mock
}

func (m *mockExecutionSubstrate) Submit(ctx context.Context, handler string, userID uuid.UUID, params map[string]any) (*communication.TaskHandle, error) {
	args := m.Called(ctx, handler, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*communication.TaskHandle), args.Error(1)
}

func (m *mockExecutionSubstrate) GetResult(ctx context.Context, taskID string) (*communication.TaskResult, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*communication.TaskResult), args.Error(1)
}

func (m *mockExecutionSubstrate) Revoke(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *mockExecutionSubstrate) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockFrequencyReserver struct {
	mock.Mock
}

func (m *mockFrequencyReserver) Reserve(ctx context.Context, userID uuid.UUID, trigger communication.TriggerType) (*communication.Reservation, error) {
	args := m.Called(ctx, userID, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*communication.Reservation), args.Error(1)
}

func (m *mockFrequencyReserver) Release(ctx context.Context, reservation *communication.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// Test fixtures

func enabledPrefs(userID uuid.UUID) *communication.UserChannelPreferences {
	return &communication.UserChannelPreferences{
		UserID:       userID,
		SMSEnabled:   true,
		EmailEnabled: true,
		Timezone:     "UTC",
	}
}

func allowConsent() *communication.ConsentDecision {
	return &communication.ConsentDecision{CanSend: true}
}

func reservationFor(userID uuid.UUID, trigger communication.TriggerType) *communication.Reservation {
	return &communication.Reservation{UserID: userID, TriggerType: trigger, InFlight: 1}
}
