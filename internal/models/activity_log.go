package models

import "time"

const (
	ActionStatusChanged = "status_changed"
	ActionAssigned      = "assigned"
	ActionCommented     = "commented"
	ActionCreated       = "created"
	ActionEdited        = "edited"
)

// ActivityLogEntry is append-only; nothing updates or deletes these rows.
type ActivityLogEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WorkItemID uint      `gorm:"index;not null" json:"workItemId"`
	MeridianID uint      `gorm:"index;not null" json:"meridianId"`
	UserID     uint      `gorm:"not null" json:"userId"`
	Action     string    `gorm:"size:30;not null" json:"action"`
	FieldName  *string   `gorm:"size:50" json:"fieldName"`
	OldValue   *string   `gorm:"type:text" json:"oldValue"`
	NewValue   *string   `gorm:"type:text" json:"newValue"`
	Note       *string   `gorm:"type:text" json:"note"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (ActivityLogEntry) TableName() string { return "activity_log" }
