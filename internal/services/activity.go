package services

import (
	"strings"
	"time"

	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

type CommentRequest struct {
	Note string `json:"note" binding:"required,max=10000"`
}

type ActivityView struct {
	ID         uint      `json:"id"`
	WorkItemID uint      `json:"workItemId"`
	UserID     uint      `json:"userId"`
	UserName   string    `json:"userName"`
	Action     string    `json:"action"`
	FieldName  *string   `json:"fieldName"`
	OldValue   *string   `json:"oldValue"`
	NewValue   *string   `json:"newValue"`
	Note       *string   `json:"note"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Append records an entry on db, which is normally the caller's transaction.
func (s *ActivityService) Append(db *gorm.DB, entry *models.ActivityLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return db.Create(entry).Error
}

// List returns an item's history, oldest first.
func (s *ActivityService) List(itemID, userID uint) ([]ActivityView, error) {
	item, err := loadActiveItem(s.db, itemID)
	if err != nil {
		return nil, err
	}
	if err := requireRead(s.db, userID, item.MeridianID); err != nil {
		return nil, err
	}

	entries := make([]ActivityView, 0)
	err = s.db.Table("activity_log").
		Select("activity_log.id, activity_log.work_item_id, activity_log.user_id, users.display_name AS user_name, activity_log.action, activity_log.field_name, activity_log.old_value, activity_log.new_value, activity_log.note, activity_log.created_at").
		Joins("LEFT JOIN users ON users.id = activity_log.user_id").
		Where("activity_log.work_item_id = ?", itemID).
		Order("activity_log.created_at, activity_log.id").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Comment appends a free-text note to an item's history.
func (s *ActivityService) Comment(itemID uint, note string, userID uint) (*models.ActivityLogEntry, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, response.NewBadRequest("note is required")
	}
	item, err := loadActiveItem(s.db, itemID)
	if err != nil {
		return nil, err
	}
	if err := requireWrite(s.db, userID, item.MeridianID); err != nil {
		return nil, err
	}

	entry := &models.ActivityLogEntry{
		WorkItemID: item.ID,
		MeridianID: item.MeridianID,
		UserID:     userID,
		Action:     models.ActionCommented,
		Note:       &note,
	}
	if err := s.Append(s.db, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func loadActiveItem(db *gorm.DB, itemID uint) (*models.WorkItem, error) {
	var item models.WorkItem
	if err := db.Where("id = ? AND is_active = ?", itemID, true).Take(&item).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("item not found")
		}
		return nil, err
	}
	return &item, nil
}
