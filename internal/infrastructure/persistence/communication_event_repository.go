package persistence

import (
	"context"
	"time"

	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommunicationEventModel is the GORM model for communication history entries
type CommunicationEventModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID       `gorm:"type:uuid;index:idx_comm_events_user_created;not null"`
	TriggerType  string          `gorm:"type:varchar(50);not null"`
	Channel      string          `gorm:"type:varchar(10);not null"`
	Priority     string          `gorm:"type:varchar(10);not null"`
	Status       string          `gorm:"type:varchar(10);not null"`
	TaskID       string          `gorm:"type:varchar(255)"`
	Cost         decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`
	ErrorMessage string          `gorm:"type:text"`
	FallbackUsed bool            `gorm:"not null;default:false"`
	OpenedAt     *time.Time
	ClickedAt    *time.Time
	ActionedAt   *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_comm_events_user_created"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (CommunicationEventModel) TableName() string {
	return "communication_events"
}

// ToEntity converts the model to a domain entity
func (m *CommunicationEventModel) ToEntity() *communication.CommunicationEvent {
	return &communication.CommunicationEvent{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:       m.UserID,
		TriggerType:  communication.TriggerType(m.TriggerType),
		Channel:      communication.Channel(m.Channel),
		Priority:     communication.Priority(m.Priority),
		Status:       communication.DeliveryStatus(m.Status),
		TaskID:       m.TaskID,
		Cost:         m.Cost,
		ErrorMessage: m.ErrorMessage,
		FallbackUsed: m.FallbackUsed,
		OpenedAt:     m.OpenedAt,
		ClickedAt:    m.ClickedAt,
		ActionedAt:   m.ActionedAt,
	}
}

// CommunicationEventModelFromEntity creates a model from a domain entity
func CommunicationEventModelFromEntity(e *communication.CommunicationEvent) *CommunicationEventModel {
	return &CommunicationEventModel{
		ID:           e.ID,
		UserID:       e.UserID,
		TriggerType:  string(e.TriggerType),
		Channel:      string(e.Channel),
		Priority:     string(e.Priority),
		Status:       string(e.Status),
		TaskID:       e.TaskID,
		Cost:         e.Cost,
		ErrorMessage: e.ErrorMessage,
		FallbackUsed: e.FallbackUsed,
		OpenedAt:     e.OpenedAt,
		ClickedAt:    e.ClickedAt,
		ActionedAt:   e.ActionedAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// CommunicationEventRepository implements the
// communication.CommunicationEventRepository interface
type CommunicationEventRepository struct {
	db *gorm.DB
}

// NewCommunicationEventRepository creates a new communication event repository
func NewCommunicationEventRepository(db *gorm.DB) *CommunicationEventRepository {
	return &CommunicationEventRepository{db: db}
}

// Append persists a new history entry
func (r *CommunicationEventRepository) Append(ctx context.Context, event *communication.CommunicationEvent) error {
	model := CommunicationEventModelFromEntity(event)
	return r.db.WithContext(ctx).Create(model).Error
}

// History retrieves a user's communication history, newest first
func (r *CommunicationEventRepository) History(ctx context.Context, userID uuid.UUID, filter communication.HistoryFilter) ([]*communication.CommunicationEvent, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if filter.TriggerType != nil {
		query = query.Where("trigger_type = ?", string(*filter.TriggerType))
	}
	if filter.Channel != nil {
		query = query.Where("channel = ?", string(*filter.Channel))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []CommunicationEventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]*communication.CommunicationEvent, len(models))
	for i := range models {
		events[i] = models[i].ToEntity()
	}
	return events, nil
}

// CountSince counts history entries for a (user, trigger) pair recorded at or
// after the given instant
func (r *CommunicationEventRepository) CountSince(ctx context.Context, userID uuid.UUID, trigger communication.TriggerType, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&CommunicationEventModel{}).
		Where("user_id = ?", userID).
		Where("trigger_type = ?", string(trigger)).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// Engagement computes the sent and engaged counts over the user's most recent
// window entries on the given channel
func (r *CommunicationEventRepository) Engagement(ctx context.Context, userID uuid.UUID, channel communication.Channel, window int) (*communication.EngagementSnapshot, error) {
	if window <= 0 {
		window = communication.DefaultEngagementWindow
	}

	recent := r.db.WithContext(ctx).
		Model(&CommunicationEventModel{}).
		Select("status", "opened_at", "clicked_at", "actioned_at").
		Where("user_id = ?", userID).
		Where("channel = ?", string(channel)).
		Order("created_at DESC").
		Limit(window)

	type engagementRow struct {
		Sent    int64
		Engaged int64
	}

	var row engagementRow
	err := r.db.WithContext(ctx).
		Table("(?) AS recent", recent).
		Select(
			"COUNT(CASE WHEN status = ? THEN 1 END) AS sent, "+
				"COUNT(CASE WHEN status = ? AND (opened_at IS NOT NULL OR clicked_at IS NOT NULL OR actioned_at IS NOT NULL) THEN 1 END) AS engaged",
			string(communication.DeliverySent), string(communication.DeliverySent),
		).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &communication.EngagementSnapshot{
		Channel: channel,
		Sent:    int(row.Sent),
		Engaged: int(row.Engaged),
	}, nil
}

// DeleteOlderThan removes history entries created before the cutoff and
// returns how many were deleted
func (r *CommunicationEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&CommunicationEventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ping checks that the underlying database connection is alive
func (r *CommunicationEventRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
