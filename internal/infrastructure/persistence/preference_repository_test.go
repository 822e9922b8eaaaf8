package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// UserChannelPreferenceModelSQLite is a SQLite-compatible version of
// UserChannelPreferenceModel for testing
type UserChannelPreferenceModelSQLite struct {
	UserID       string `gorm:"primaryKey"`
	OptedOut     bool   `gorm:"not null;default:false"`
	SMSEnabled   bool   `gorm:"column:sms_enabled;not null;default:false"`
	EmailEnabled bool   `gorm:"not null;default:false"`
	Timezone     string
	OptimalHours string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserChannelPreferenceModelSQLite) TableName() string {
	return "user_channel_preferences"
}

// ConsentRecordModelSQLite is a SQLite-compatible version of
// ConsentRecordModel for testing
type ConsentRecordModelSQLite struct {
	ID          string    `gorm:"primaryKey"`
	UserID      string    `gorm:"index;not null"`
	TriggerType string    `gorm:"not null"`
	Channel     string    `gorm:"not null"`
	Status      string    `gorm:"not null"`
	GrantedAt   time.Time `gorm:"not null"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ConsentRecordModelSQLite) TableName() string {
	return "consent_records"
}

func setupPreferenceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&UserChannelPreferenceModelSQLite{}, &ConsentRecordModelSQLite{})
	require.NoError(t, err)

	return db
}

func storedPreferences(userID uuid.UUID) *communication.UserChannelPreferences {
	return &communication.UserChannelPreferences{
		UserID:       userID,
		SMSEnabled:   true,
		EmailEnabled: true,
		Timezone:     "America/New_York",
		OptimalHours: map[communication.Channel]int{
			communication.ChannelSMS:   18,
			communication.ChannelEmail: 9,
		},
		UpdatedAt: time.Now(),
	}
}

func TestPreferenceRepository_GetPreferences(t *testing.T) {
	db := setupPreferenceTestDB(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	t.Run("returns nil without error for an unknown user", func(t *testing.T) {
		prefs, err := repo.GetPreferences(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, prefs)
	})

	t.Run("round-trips preferences with optimal hours", func(t *testing.T) {
		userID := uuid.New()
		require.NoError(t, repo.SavePreferences(ctx, storedPreferences(userID)))

		prefs, err := repo.GetPreferences(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, prefs)

		assert.Equal(t, userID, prefs.UserID)
		assert.False(t, prefs.OptedOut)
		assert.True(t, prefs.SMSEnabled)
		assert.True(t, prefs.EmailEnabled)
		assert.Equal(t, "America/New_York", prefs.Timezone)

		hour, ok := prefs.OptimalHourFor(communication.ChannelSMS)
		require.True(t, ok)
		assert.Equal(t, 18, hour)
	})

	t.Run("loads consent records alongside preferences", func(t *testing.T) {
		userID := uuid.New()
		stored := storedPreferences(userID)
		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerPaymentReminder,
				Channel:     communication.ChannelSMS,
				Status:      communication.ConsentGranted,
				GrantedAt:   time.Now().Add(-time.Hour),
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		prefs, err := repo.GetPreferences(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, prefs)
		require.Len(t, prefs.Consents, 1)

		record := prefs.ConsentFor(communication.TriggerPaymentReminder, communication.ChannelSMS)
		require.NotNil(t, record)
		assert.Equal(t, communication.ConsentGranted, record.Status)
	})
}

func TestPreferenceRepository_CheckConsent(t *testing.T) {
	db := setupPreferenceTestDB(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	t.Run("blocks sending when no record exists", func(t *testing.T) {
		decision, err := repo.CheckConsent(ctx, uuid.New(), communication.TriggerFinancialAlert, communication.ChannelSMS)
		require.NoError(t, err)
		assert.False(t, decision.CanSend, "consent must be granted, not merely not revoked")
		assert.Contains(t, decision.Reason, "no consent on record")
	})

	t.Run("a grant for one channel does not cover the other", func(t *testing.T) {
		userID := uuid.New()
		stored := storedPreferences(userID)
		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerFinancialAlert,
				Channel:     communication.ChannelEmail,
				Status:      communication.ConsentGranted,
				GrantedAt:   time.Now().Add(-time.Hour),
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		decision, err := repo.CheckConsent(ctx, userID, communication.TriggerFinancialAlert, communication.ChannelSMS)
		require.NoError(t, err)
		assert.False(t, decision.CanSend)
	})

	t.Run("permits sending under an active grant", func(t *testing.T) {
		userID := uuid.New()
		stored := storedPreferences(userID)
		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerPaymentReminder,
				Channel:     communication.ChannelSMS,
				Status:      communication.ConsentGranted,
				GrantedAt:   time.Now().Add(-time.Hour),
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		decision, err := repo.CheckConsent(ctx, userID, communication.TriggerPaymentReminder, communication.ChannelSMS)
		require.NoError(t, err)
		assert.True(t, decision.CanSend)
	})

	t.Run("blocks sending under a revoked record", func(t *testing.T) {
		userID := uuid.New()
		stored := storedPreferences(userID)
		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerMonthlySummary,
				Channel:     communication.ChannelEmail,
				Status:      communication.ConsentRevoked,
				GrantedAt:   time.Now().Add(-48 * time.Hour),
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		decision, err := repo.CheckConsent(ctx, userID, communication.TriggerMonthlySummary, communication.ChannelEmail)
		require.NoError(t, err)
		assert.False(t, decision.CanSend)
		assert.Contains(t, decision.Reason, "REVOKED")
	})

	t.Run("blocks sending once a grant has expired", func(t *testing.T) {
		userID := uuid.New()
		expiry := time.Now().Add(-time.Minute)
		stored := storedPreferences(userID)
		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerPaymentReminder,
				Channel:     communication.ChannelSMS,
				Status:      communication.ConsentGranted,
				GrantedAt:   time.Now().Add(-48 * time.Hour),
				ExpiresAt:   &expiry,
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		decision, err := repo.CheckConsent(ctx, userID, communication.TriggerPaymentReminder, communication.ChannelSMS)
		require.NoError(t, err)
		assert.False(t, decision.CanSend)
	})
}

func TestPreferenceRepository_SavePreferences(t *testing.T) {
	db := setupPreferenceTestDB(t)
	repo := NewPreferenceRepository(db)
	ctx := context.Background()

	t.Run("replaces consents on update", func(t *testing.T) {
		userID := uuid.New()
		stored := storedPreferences(userID)
		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerPaymentReminder,
				Channel:     communication.ChannelSMS,
				Status:      communication.ConsentGranted,
				GrantedAt:   time.Now(),
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		stored.Consents = []communication.ConsentRecord{
			{
				TriggerType: communication.TriggerPaymentReminder,
				Channel:     communication.ChannelSMS,
				Status:      communication.ConsentRevoked,
				GrantedAt:   time.Now(),
			},
		}
		require.NoError(t, repo.SavePreferences(ctx, stored))

		prefs, err := repo.GetPreferences(ctx, userID)
		require.NoError(t, err)
		require.Len(t, prefs.Consents, 1)
		assert.Equal(t, communication.ConsentRevoked, prefs.Consents[0].Status)
	})

	t.Run("persists the opt-out flag", func(t *testing.T) {
		userID := uuid.New()
		stored := storedPreferences(userID)
		stored.OptedOut = true
		require.NoError(t, repo.SavePreferences(ctx, stored))

		prefs, err := repo.GetPreferences(ctx, userID)
		require.NoError(t, err)
		assert.True(t, prefs.OptedOut)
	})
}
