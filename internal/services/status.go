package services

import (
	"strings"

	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultStatusColor = "#94A3B8"

type StatusService struct {
	db *gorm.DB
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db}
}

type CreateStatusRequest struct {
	Name       string  `json:"name" binding:"required,max=100"`
	Color      *string `json:"color" binding:"omitempty,max=20"`
	IsDefault  bool    `json:"isDefault"`
	IsComplete bool    `json:"isComplete"`
	IsBlocked  bool    `json:"isBlocked"`
}

type UpdateStatusRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=100"`
	Color      *string `json:"color" binding:"omitempty,max=20"`
	Position   *int    `json:"position"`
	IsDefault  *bool   `json:"isDefault"`
	IsComplete *bool   `json:"isComplete"`
	IsBlocked  *bool   `json:"isBlocked"`
}

type DeleteStatusResult struct {
	DeletedID    uint `json:"deletedId"`
	ReassignedTo uint `json:"reassignedTo"`
}

func (s *StatusService) List(meridianID, userID uint) ([]models.Status, error) {
	if err := requireRead(s.db, userID, meridianID); err != nil {
		return nil, err
	}
	var statuses []models.Status
	if err := s.db.Where("meridian_id = ?", meridianID).Order("position, id").Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// Create appends a status at the end of the pipeline.
func (s *StatusService) Create(meridianID uint, req *CreateStatusRequest, userID uint) (*models.Status, error) {
	if err := requireManage(s.db, userID, meridianID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewBadRequest("name is required")
	}
	color := defaultStatusColor
	if c := optionalText(req.Color); c != nil {
		color = *c
	}

	status := models.Status{
		MeridianID: meridianID,
		Name:       name,
		Color:      color,
		IsDefault:  req.IsDefault,
		IsComplete: req.IsComplete,
		IsBlocked:  req.IsBlocked,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureStatusNameFree(tx, meridianID, name, 0); err != nil {
			return err
		}
		var next int
		if err := tx.Model(&models.Status{}).
			Where("meridian_id = ?", meridianID).
			Select("COALESCE(MAX(position), -1) + 1").
			Scan(&next).Error; err != nil {
			return err
		}
		status.Position = next
		if err := tx.Create(&status).Error; err != nil {
			if isDuplicate(err) {
				return response.NewConflict("a status with this name already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Update applies a partial patch. A meridian always keeps one default.
func (s *StatusService) Update(statusID uint, req *UpdateStatusRequest, userID uint) (*models.Status, error) {
	status, err := s.load(s.db, statusID)
	if err != nil {
		return nil, err
	}
	if err := requireManage(s.db, userID, status.MeridianID); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewBadRequest("name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Color != nil {
		color := defaultStatusColor
		if c := optionalText(req.Color); c != nil {
			color = *c
		}
		updates["color"] = color
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if req.IsDefault != nil {
		updates["is_default"] = *req.IsDefault
	}
	if req.IsComplete != nil {
		updates["is_complete"] = *req.IsComplete
	}
	if req.IsBlocked != nil {
		updates["is_blocked"] = *req.IsBlocked
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("no fields to update")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.load(tx, statusID)
		if err != nil {
			return err
		}
		if name, ok := updates["name"].(string); ok {
			if err := ensureStatusNameFree(tx, current.MeridianID, name, current.ID); err != nil {
				return err
			}
		}
		if req.IsDefault != nil && !*req.IsDefault {
			locked, err := lockStatuses(tx, current.MeridianID)
			if err != nil {
				return err
			}
			if latest := findStatus(locked, statusID); latest != nil && latest.IsDefault && countDefaults(locked) <= 1 {
				return response.NewConflict("a meridian must keep at least one default status")
			}
		}
		if err := tx.Model(&models.Status{}).Where("id = ?", statusID).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return response.NewConflict("a status with this name already exists")
			}
			return err
		}
		status, err = s.load(tx, statusID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Delete removes a status and moves its items to the remaining default with
// the lowest position.
func (s *StatusService) Delete(statusID, userID uint) (*DeleteStatusResult, error) {
	status, err := s.load(s.db, statusID)
	if err != nil {
		return nil, err
	}
	if err := requireManage(s.db, userID, status.MeridianID); err != nil {
		return nil, err
	}

	result := &DeleteStatusResult{DeletedID: statusID}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.load(tx, statusID)
		if err != nil {
			return err
		}

		locked, err := lockStatuses(tx, current.MeridianID)
		if err != nil {
			return err
		}
		current = findStatus(locked, statusID)
		if current == nil {
			return response.NewNotFound("status not found")
		}
		if len(locked) <= 1 {
			return response.NewConflict("cannot delete the only status")
		}
		if current.IsDefault && countDefaults(locked) <= 1 {
			return response.NewConflict("cannot delete the only default status")
		}

		var replacement *models.Status
		for i := range locked {
			if st := &locked[i]; st.IsDefault && st.ID != current.ID {
				replacement = st
				break
			}
		}
		if replacement == nil {
			return response.NewConflict("no default status to reassign items to")
		}

		if err := tx.Model(&models.WorkItem{}).
			Where("status_id = ?", current.ID).
			Update("status_id", replacement.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Status{}, current.ID).Error; err != nil {
			return err
		}
		result.ReassignedTo = replacement.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StatusService) load(db *gorm.DB, statusID uint) (*models.Status, error) {
	var status models.Status
	if err := db.First(&status, statusID).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("status not found")
		}
		return nil, err
	}
	return &status, nil
}

func ensureStatusNameFree(tx *gorm.DB, meridianID uint, name string, exceptID uint) error {
	var taken int64
	if err := tx.Model(&models.Status{}).
		Where("meridian_id = ? AND name = ? AND id <> ?", meridianID, name, exceptID).
		Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return response.NewConflict("a status with this name already exists")
	}
	return nil
}

// lockStatuses reads every status of the meridian FOR UPDATE, ordered by
// position, so concurrent deletes and default changes serialise on the same
// rows. SQLite ignores the lock; its writer lock already serialises.
func lockStatuses(tx *gorm.DB, meridianID uint) ([]models.Status, error) {
	var statuses []models.Status
	err := statusesForUpdate(tx, meridianID).Find(&statuses).Error
	return statuses, err
}

func statusesForUpdate(tx *gorm.DB, meridianID uint) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("meridian_id = ?", meridianID).
		Order("position, id")
}

func findStatus(statuses []models.Status, id uint) *models.Status {
	for i := range statuses {
		if statuses[i].ID == id {
			return &statuses[i]
		}
	}
	return nil
}

func countDefaults(statuses []models.Status) int {
	n := 0
	for _, s := range statuses {
		if s.IsDefault {
			n++
		}
	}
	return n
}

// defaultStatus returns the default status with the lowest position.
func defaultStatus(tx *gorm.DB, meridianID uint) (*models.Status, error) {
	var status models.Status
	err := tx.Where("meridian_id = ? AND is_default = ?", meridianID, true).Order("position, id").Take(&status).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}
