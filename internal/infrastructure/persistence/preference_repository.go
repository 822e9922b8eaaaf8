package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserChannelPreferenceModel is the GORM model for user channel preferences
type UserChannelPreferenceModel struct {
	UserID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	OptedOut     bool      `gorm:"not null;default:false"`
	SMSEnabled   bool      `gorm:"column:sms_enabled;not null;default:false"`
	EmailEnabled bool      `gorm:"not null;default:false"`
	Timezone     string    `gorm:"type:varchar(64)"`
	OptimalHours []byte    `gorm:"type:jsonb;default:'{}'"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UserChannelPreferenceModel) TableName() string {
	return "user_channel_preferences"
}

// ConsentRecordModel is the GORM model for per-(trigger, channel) consents
type ConsentRecordModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null"`
	TriggerType string    `gorm:"type:varchar(50);not null"`
	Channel     string    `gorm:"type:varchar(10);not null"`
	Status      string    `gorm:"type:varchar(10);not null"`
	GrantedAt   time.Time `gorm:"not null"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (ConsentRecordModel) TableName() string {
	return "consent_records"
}

// ToEntity converts the model to a domain consent record
func (m *ConsentRecordModel) ToEntity() communication.ConsentRecord {
	return communication.ConsentRecord{
		TriggerType: communication.TriggerType(m.TriggerType),
		Channel:     communication.Channel(m.Channel),
		Status:      communication.ConsentStatus(m.Status),
		GrantedAt:   m.GrantedAt,
		ExpiresAt:   m.ExpiresAt,
	}
}

// ToEntity converts the model and its consents to a domain preferences value
func (m *UserChannelPreferenceModel) ToEntity(consents []ConsentRecordModel) *communication.UserChannelPreferences {
	var hours map[communication.Channel]int
	if len(m.OptimalHours) > 0 {
		_ = json.Unmarshal(m.OptimalHours, &hours)
	}

	prefs := &communication.UserChannelPreferences{
		UserID:       m.UserID,
		OptedOut:     m.OptedOut,
		SMSEnabled:   m.SMSEnabled,
		EmailEnabled: m.EmailEnabled,
		Timezone:     m.Timezone,
		OptimalHours: hours,
		UpdatedAt:    m.UpdatedAt,
	}
	for i := range consents {
		prefs.Consents = append(prefs.Consents, consents[i].ToEntity())
	}
	return prefs
}

// UserChannelPreferenceModelFromEntity creates a model from a domain value
func UserChannelPreferenceModelFromEntity(p *communication.UserChannelPreferences) *UserChannelPreferenceModel {
	var hoursBytes []byte
	if p.OptimalHours != nil {
		hoursBytes, _ = json.Marshal(p.OptimalHours)
	} else {
		hoursBytes = []byte("{}")
	}

	return &UserChannelPreferenceModel{
		UserID:       p.UserID,
		OptedOut:     p.OptedOut,
		SMSEnabled:   p.SMSEnabled,
		EmailEnabled: p.EmailEnabled,
		Timezone:     p.Timezone,
		OptimalHours: hoursBytes,
		UpdatedAt:    p.UpdatedAt,
	}
}

// PreferenceRepository implements the communication.PreferenceGateway
// interface over the local preference tables
type PreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetPreferences retrieves a user's channel preferences with consents. A user
// without a preference row yields (nil, nil).
func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*communication.UserChannelPreferences, error) {
	var model UserChannelPreferenceModel
	if err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	var consents []ConsentRecordModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("granted_at DESC").
		Find(&consents).Error; err != nil {
		return nil, err
	}

	return model.ToEntity(consents), nil
}

// CheckConsent resolves the consent decision for a (user, trigger, channel)
// tuple. Consent must be explicitly granted: a missing record blocks sending
// the same way a revoked or expired one does.
func (r *PreferenceRepository) CheckConsent(ctx context.Context, userID uuid.UUID, trigger communication.TriggerType, channel communication.Channel) (*communication.ConsentDecision, error) {
	var model ConsentRecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("trigger_type = ?", string(trigger)).
		Where("channel = ?", string(channel)).
		Order("granted_at DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			reason := fmt.Sprintf("no consent on record for %s on %s", trigger, channel)
			return &communication.ConsentDecision{CanSend: false, Reason: reason}, nil
		}
		return nil, err
	}

	record := model.ToEntity()
	if record.Active(time.Now()) {
		return &communication.ConsentDecision{CanSend: true}, nil
	}

	reason := fmt.Sprintf("consent for %s on %s is %s", trigger, channel, record.Status)
	return &communication.ConsentDecision{CanSend: false, Reason: reason}, nil
}

// SavePreferences upserts a user's preference row and replaces their consents
func (r *PreferenceRepository) SavePreferences(ctx context.Context, prefs *communication.UserChannelPreferences) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := UserChannelPreferenceModelFromEntity(prefs)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", prefs.UserID).Delete(&ConsentRecordModel{}).Error; err != nil {
			return err
		}
		for i := range prefs.Consents {
			c := &prefs.Consents[i]
			consent := &ConsentRecordModel{
				ID:          uuid.New(),
				UserID:      prefs.UserID,
				TriggerType: string(c.TriggerType),
				Channel:     string(c.Channel),
				Status:      string(c.Status),
				GrantedAt:   c.GrantedAt,
				ExpiresAt:   c.ExpiresAt,
			}
			if err := tx.Create(consent).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping checks that the underlying database connection is alive
func (r *PreferenceRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
