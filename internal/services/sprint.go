package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

var sprintStates = map[string]bool{
	models.SprintPlanning: true,
	models.SprintActive:   true,
	models.SprintComplete: true,
}

var sprintColumns = map[string]string{
	"name":      "name",
	"goal":      "goal",
	"state":     "state",
	"startDate": "start_date",
	"endDate":   "end_date",
}

type SprintService struct {
	db *gorm.DB
}

func NewSprintService(db *gorm.DB) *SprintService {
	return &SprintService{db: db}
}

type CreateSprintRequest struct {
	MeridianID uint    `json:"meridianId" binding:"required"`
	Name       string  `json:"name" binding:"required,max=200"`
	Goal       *string `json:"goal"`
	State      string  `json:"state" binding:"omitempty,oneof=planning active complete"`
	StartDate  *string `json:"startDate"`
	EndDate    *string `json:"endDate"`
}

func (s *SprintService) Create(req *CreateSprintRequest, userID uint) (*models.Sprint, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewBadRequest("name is required")
	}
	state := req.State
	if state == "" {
		state = models.SprintPlanning
	}
	if !sprintStates[state] {
		return nil, response.NewBadRequest("state must be planning, active or complete")
	}
	if req.MeridianID == 0 {
		return nil, response.NewBadRequest("meridianId is required")
	}
	startDate, err := normalizeDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := normalizeDate("endDate", req.EndDate)
	if err != nil {
		return nil, err
	}
	if err := requireWrite(s.db, userID, req.MeridianID); err != nil {
		return nil, err
	}

	sprint := models.Sprint{
		MeridianID: req.MeridianID,
		Name:       name,
		Goal:       optionalText(req.Goal),
		State:      state,
		StartDate:  startDate,
		EndDate:    endDate,
		CreatedBy:  userID,
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&sprint).Error; err != nil {
		return nil, err
	}
	return &sprint, nil
}

// UpdateField changes one of name, goal, state, startDate or endDate.
func (s *SprintService) UpdateField(sprintID uint, field string, value json.RawMessage, userID uint) (*models.Sprint, error) {
	column, ok := sprintColumns[field]
	if !ok {
		return nil, response.Errorf(response.NewBadRequest(""), "field %q is not updatable", field)
	}
	sprint, err := s.load(sprintID)
	if err != nil {
		return nil, err
	}
	if err := requireWrite(s.db, userID, sprint.MeridianID); err != nil {
		return nil, err
	}

	text, err := decodeText(field, value)
	if err != nil {
		return nil, err
	}

	var newValue interface{}
	switch field {
	case "name":
		if text == nil || strings.TrimSpace(*text) == "" {
			return nil, response.NewBadRequest("name cannot be empty")
		}
		newValue = strings.TrimSpace(*text)
	case "goal":
		newValue = optionalText(text)
	case "state":
		if text == nil || !sprintStates[*text] {
			return nil, response.NewBadRequest("state must be planning, active or complete")
		}
		newValue = *text
	case "startDate", "endDate":
		date, err := normalizeDate(field, text)
		if err != nil {
			return nil, err
		}
		newValue = date
	}

	if err := s.db.Model(&models.Sprint{}).Where("id = ?", sprintID).Update(column, newValue).Error; err != nil {
		return nil, err
	}
	return s.load(sprintID)
}

// Delete detaches every item from the sprint, then removes it. Owners only.
func (s *SprintService) Delete(sprintID, userID uint) error {
	sprint, err := s.load(sprintID)
	if err != nil {
		return err
	}
	if err := requireManage(s.db, userID, sprint.MeridianID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkItem{}).Where("sprint_id = ?", sprintID).Update("sprint_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Sprint{}, sprintID).Error
	})
}

func (s *SprintService) ListForMeridians(meridianIDs []uint) ([]models.Sprint, error) {
	sprints := make([]models.Sprint, 0)
	if len(meridianIDs) == 0 {
		return sprints, nil
	}
	err := s.db.Where("meridian_id IN ?", meridianIDs).Order("id").Find(&sprints).Error
	return sprints, err
}

func (s *SprintService) load(sprintID uint) (*models.Sprint, error) {
	var sprint models.Sprint
	if err := s.db.First(&sprint, sprintID).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("sprint not found")
		}
		return nil, err
	}
	return &sprint, nil
}
