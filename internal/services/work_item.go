package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/huangang/meridian/internal/access"
	"github.com/huangang/meridian/internal/hierarchy"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

// Fields accepted by UpdateField.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatusID    = "statusId"
	FieldAssigneeID  = "assigneeId"
	FieldSprintID    = "sprintId"
	FieldParentID    = "parentId"
	FieldMeridianID  = "meridianId"
	FieldStartDate   = "startDate"
	FieldDueDate     = "dueDate"
)

var updatableItemFields = map[string]bool{
	FieldTitle:       true,
	FieldDescription: true,
	FieldStatusID:    true,
	FieldAssigneeID:  true,
	FieldSprintID:    true,
	FieldParentID:    true,
	FieldMeridianID:  true,
	FieldStartDate:   true,
	FieldDueDate:     true,
}

type WorkItemService struct {
	db       *gorm.DB
	activity *ActivityService
}

func NewWorkItemService(db *gorm.DB) *WorkItemService {
	return &WorkItemService{db: db, activity: NewActivityService(db)}
}

type CreateItemRequest struct {
	MeridianID  uint    `json:"meridianId"`
	ParentID    *uint   `json:"parentId"`
	Type        string  `json:"type" binding:"required"`
	Title       string  `json:"title" binding:"required,max=500"`
	Description *string `json:"description"`
	StatusID    *uint   `json:"statusId"`
	AssigneeID  *uint   `json:"assigneeId"`
	SprintID    *uint   `json:"sprintId"`
	StartDate   *string `json:"startDate"`
	DueDate     *string `json:"dueDate"`
}

type UpdateFieldRequest struct {
	Field string          `json:"field" binding:"required"`
	Value json.RawMessage `json:"value"`
}

// CreateItem inserts a work item. A child always lands in its arc's meridian,
// whatever meridianId the request names.
func (s *WorkItemService) CreateItem(req *CreateItemRequest, userID uint) (*models.WorkItem, error) {
	itemType, ok := hierarchy.ParseType(req.Type)
	if !ok {
		return nil, response.NewBadRequest("type must be arc, episode, signal or relay")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewBadRequest("title is required")
	}
	if req.ParentID == nil && req.MeridianID == 0 {
		return nil, response.NewBadRequest("meridianId is required")
	}
	startDate, err := normalizeDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := normalizeDate("dueDate", req.DueDate)
	if err != nil {
		return nil, err
	}
	if req.SprintID != nil && itemType == hierarchy.Arc {
		return nil, response.NewBadRequest("arcs cannot be assigned to a sprint")
	}

	var item models.WorkItem
	err = s.db.Transaction(func(tx *gorm.DB) error {
		meridianID := req.MeridianID
		if req.ParentID == nil {
			if err := hierarchy.ValidateParent(itemType, nil); err != nil {
				return response.NewBadRequest(err.Error())
			}
		} else {
			parent, err := loadActiveItem(tx, *req.ParentID)
			if err != nil {
				return response.NewNotFound("parent item not found")
			}
			parentType := hierarchy.ItemType(parent.Type)
			if err := hierarchy.ValidateParent(itemType, &parentType); err != nil {
				return response.NewBadRequest(err.Error())
			}
			meridianID, err = arcMeridian(tx, parent)
			if err != nil {
				return err
			}
		}

		if err := requireWrite(tx, userID, meridianID); err != nil {
			return err
		}

		statusID, err := s.resolveStatus(tx, meridianID, req.StatusID)
		if err != nil {
			return err
		}
		if err := checkAssignee(tx, meridianID, req.AssigneeID); err != nil {
			return err
		}
		if err := checkSprint(tx, meridianID, req.SprintID); err != nil {
			return err
		}

		siblings := tx.Model(&models.WorkItem{}).Where("type = ? AND is_active = ?", string(itemType), true)
		if req.ParentID != nil {
			siblings = siblings.Where("parent_id = ?", *req.ParentID)
		} else {
			siblings = siblings.Where("parent_id IS NULL AND meridian_id = ?", meridianID)
		}
		var position int64
		if err := siblings.Count(&position).Error; err != nil {
			return err
		}

		item = models.WorkItem{
			MeridianID:  meridianID,
			ParentID:    req.ParentID,
			Type:        string(itemType),
			Title:       title,
			Description: optionalText(req.Description),
			StatusID:    statusID,
			AssigneeID:  req.AssigneeID,
			SprintID:    req.SprintID,
			StartDate:   startDate,
			DueDate:     dueDate,
			Position:    int(position),
			IsActive:    true,
			CreatedBy:   userID,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		return s.activity.Append(tx, &models.ActivityLogEntry{
			WorkItemID: item.ID,
			MeridianID: item.MeridianID,
			UserID:     userID,
			Action:     models.ActionCreated,
			NewValue:   &item.Title,
		})
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateField changes one field of an active item. parentId and meridianId
// changes cascade the owning meridian to every active descendant.
func (s *WorkItemService) UpdateField(itemID uint, field string, value json.RawMessage, userID uint) (*models.WorkItem, error) {
	if !updatableItemFields[field] {
		return nil, response.Errorf(response.NewBadRequest(""), "field %q is not updatable", field)
	}

	var updated models.WorkItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		item, err := loadActiveItem(tx, itemID)
		if err != nil {
			return err
		}
		if err := requireWrite(tx, userID, item.MeridianID); err != nil {
			return err
		}

		switch field {
		case FieldTitle:
			err = s.updateTitle(tx, item, value, userID)
		case FieldDescription:
			err = s.updateDescription(tx, item, value, userID)
		case FieldStartDate:
			err = s.updateDate(tx, item, field, "start_date", item.StartDate, value, userID)
		case FieldDueDate:
			err = s.updateDate(tx, item, field, "due_date", item.DueDate, value, userID)
		case FieldStatusID:
			err = s.updateStatus(tx, item, value, userID)
		case FieldAssigneeID:
			err = s.updateAssignee(tx, item, value, userID)
		case FieldSprintID:
			err = s.updateSprint(tx, item, value, userID)
		case FieldParentID:
			err = s.reparent(tx, item, value, userID)
		case FieldMeridianID:
			err = s.move(tx, item, value, userID)
		}
		if err != nil {
			return err
		}
		return tx.First(&updated, itemID).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItem soft-deletes an item and its whole active subtree. It returns
// how many rows were deactivated.
func (s *WorkItemService) DeleteItem(itemID, userID uint) (int, error) {
	var count int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		item, err := loadActiveItem(tx, itemID)
		if err != nil {
			return err
		}
		if err := requireWrite(tx, userID, item.MeridianID); err != nil {
			return err
		}

		ids, err := hierarchy.NewWalker(itemNodes{db: tx}).Descendants(item.ID)
		if err != nil {
			return fmt.Errorf("collect descendants of item %d: %w", item.ID, err)
		}
		ids = append(ids, item.ID)
		if err := tx.Model(&models.WorkItem{}).Where("id IN ?", ids).Update("is_active", false).Error; err != nil {
			return err
		}
		count = len(ids)
		return nil
	})
	return count, err
}

// ListForMeridians returns the active items of the given meridians.
func (s *WorkItemService) ListForMeridians(meridianIDs []uint) ([]models.WorkItem, error) {
	items := make([]models.WorkItem, 0)
	if len(meridianIDs) == 0 {
		return items, nil
	}
	err := s.db.Where("meridian_id IN ? AND is_active = ?", meridianIDs, true).Order("id").Find(&items).Error
	return items, err
}

func (s *WorkItemService) updateTitle(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	title, err := decodeText(FieldTitle, value)
	if err != nil {
		return err
	}
	if title == nil || strings.TrimSpace(*title) == "" {
		return response.NewBadRequest("title cannot be empty")
	}
	newTitle := strings.TrimSpace(*title)
	if err := setItemColumn(tx, item.ID, "title", newTitle); err != nil {
		return err
	}
	return s.logChange(tx, item, userID, models.ActionEdited, FieldTitle, &item.Title, &newTitle)
}

func (s *WorkItemService) updateDescription(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	desc, err := decodeText(FieldDescription, value)
	if err != nil {
		return err
	}
	desc = optionalText(desc)
	if err := setItemColumn(tx, item.ID, "description", desc); err != nil {
		return err
	}
	return s.logChange(tx, item, userID, models.ActionEdited, FieldDescription, item.Description, desc)
}

func (s *WorkItemService) updateDate(tx *gorm.DB, item *models.WorkItem, field, column string, old *string, value json.RawMessage, userID uint) error {
	raw, err := decodeText(field, value)
	if err != nil {
		return err
	}
	date, err := normalizeDate(field, raw)
	if err != nil {
		return err
	}
	if err := setItemColumn(tx, item.ID, column, date); err != nil {
		return err
	}
	return s.logChange(tx, item, userID, models.ActionEdited, field, old, date)
}

// updateStatus moves an item along the pipeline. Leaving the default status
// for an active one stamps startDate when it is still unset.
func (s *WorkItemService) updateStatus(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	id, err := decodeID(FieldStatusID, value)
	if err != nil {
		return err
	}
	if id == nil {
		return response.NewBadRequest("statusId cannot be null")
	}
	var status models.Status
	if err := tx.Where("id = ? AND meridian_id = ?", *id, item.MeridianID).Take(&status).Error; err != nil {
		if isNotFound(err) {
			return response.NewBadRequest("status does not belong to this meridian")
		}
		return err
	}

	updates := map[string]interface{}{"status_id": status.ID}
	if !status.IsDefault && !status.IsComplete && item.StartDate == nil {
		updates["start_date"] = today()
	}
	if err := tx.Model(&models.WorkItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		return err
	}
	return s.logChange(tx, item, userID, models.ActionStatusChanged, FieldStatusID, idText(item.StatusID), idText(&status.ID))
}

func (s *WorkItemService) updateAssignee(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	id, err := decodeID(FieldAssigneeID, value)
	if err != nil {
		return err
	}
	if err := checkAssignee(tx, item.MeridianID, id); err != nil {
		return err
	}
	if err := setItemColumn(tx, item.ID, "assignee_id", nullableID(id)); err != nil {
		return err
	}
	return s.logChange(tx, item, userID, models.ActionAssigned, FieldAssigneeID, idText(item.AssigneeID), idText(id))
}

func (s *WorkItemService) updateSprint(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	id, err := decodeID(FieldSprintID, value)
	if err != nil {
		return err
	}
	if id != nil && item.Type == string(hierarchy.Arc) {
		return response.NewBadRequest("arcs cannot be assigned to a sprint")
	}
	if err := checkSprint(tx, item.MeridianID, id); err != nil {
		return err
	}
	if err := setItemColumn(tx, item.ID, "sprint_id", nullableID(id)); err != nil {
		return err
	}
	return s.logChange(tx, item, userID, models.ActionEdited, FieldSprintID, idText(item.SprintID), idText(id))
}

// reparent moves an item under a new parent. The item and its subtree take
// the meridian of the new parent's arc, or keep theirs when there is none.
func (s *WorkItemService) reparent(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	newParentID, err := decodeID(FieldParentID, value)
	if err != nil {
		return err
	}
	itemType := hierarchy.ItemType(item.Type)
	walker := hierarchy.NewWalker(itemNodes{db: tx})
	target := item.MeridianID

	if newParentID == nil {
		if err := hierarchy.ValidateParent(itemType, nil); err != nil {
			return response.NewBadRequest(err.Error())
		}
	} else {
		within, err := walker.IsWithin(*newParentID, item.ID)
		if err != nil {
			return fmt.Errorf("walk ancestors of item %d: %w", *newParentID, err)
		}
		if within {
			return response.NewConflict("cannot move an item beneath itself or one of its descendants")
		}
		parent, err := loadActiveItem(tx, *newParentID)
		if err != nil {
			return response.NewNotFound("parent item not found")
		}
		parentType := hierarchy.ItemType(parent.Type)
		if err := hierarchy.ValidateParent(itemType, &parentType); err != nil {
			return response.NewBadRequest(err.Error())
		}
		arc, err := walker.FindArcAncestor(parent.ID)
		if err != nil {
			return fmt.Errorf("find arc of item %d: %w", parent.ID, err)
		}
		if arc != nil {
			target = arc.MeridianID
		}
	}

	if target != item.MeridianID {
		if err := requireWrite(tx, userID, target); err != nil {
			return err
		}
		if err := cascadeMeridian(tx, walker, item.ID, target); err != nil {
			return err
		}
	}
	if err := setItemColumn(tx, item.ID, "parent_id", nullableID(newParentID)); err != nil {
		return err
	}
	item.MeridianID = target
	return s.logChange(tx, item, userID, models.ActionEdited, FieldParentID, idText(item.ParentID), idText(newParentID))
}

// move hands a top-level item and its subtree to another meridian. Children
// change meridian only through reparent so a parent link never crosses
// meridians.
func (s *WorkItemService) move(tx *gorm.DB, item *models.WorkItem, value json.RawMessage, userID uint) error {
	target, err := decodeID(FieldMeridianID, value)
	if err != nil {
		return err
	}
	if target == nil {
		return response.NewBadRequest("meridianId cannot be null")
	}
	if item.ParentID != nil {
		return response.NewBadRequest("only top-level items can change meridian directly; change parentId instead")
	}
	if *target == item.MeridianID {
		return nil
	}
	if err := requireWrite(tx, userID, *target); err != nil {
		return err
	}

	walker := hierarchy.NewWalker(itemNodes{db: tx})
	if err := cascadeMeridian(tx, walker, item.ID, *target); err != nil {
		return err
	}
	old := item.MeridianID
	item.MeridianID = *target
	return s.logChange(tx, item, userID, models.ActionEdited, FieldMeridianID, idText(&old), idText(target))
}

func (s *WorkItemService) resolveStatus(tx *gorm.DB, meridianID uint, statusID *uint) (*uint, error) {
	if statusID == nil {
		def, err := defaultStatus(tx, meridianID)
		if err != nil || def == nil {
			return nil, err
		}
		return &def.ID, nil
	}
	var n int64
	if err := tx.Model(&models.Status{}).Where("id = ? AND meridian_id = ?", *statusID, meridianID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, response.NewBadRequest("status does not belong to this meridian")
	}
	return statusID, nil
}

// logChange appends an activity entry unless the value did not change.
func (s *WorkItemService) logChange(tx *gorm.DB, item *models.WorkItem, userID uint, action, field string, oldValue, newValue *string) error {
	if sameText(oldValue, newValue) {
		return nil
	}
	fieldName := field
	return s.activity.Append(tx, &models.ActivityLogEntry{
		WorkItemID: item.ID,
		MeridianID: item.MeridianID,
		UserID:     userID,
		Action:     action,
		FieldName:  &fieldName,
		OldValue:   oldValue,
		NewValue:   newValue,
	})
}

// cascadeMeridian assigns target to rootID and every active descendant.
// Statuses and sprints that belong elsewhere are remapped: statuses to the
// target's default, sprints to none.
func cascadeMeridian(tx *gorm.DB, walker *hierarchy.Walker, rootID, target uint) error {
	ids, err := walker.Descendants(rootID)
	if err != nil {
		return fmt.Errorf("collect descendants of item %d: %w", rootID, err)
	}
	ids = append(ids, rootID)

	if err := tx.Model(&models.WorkItem{}).Where("id IN ?", ids).Update("meridian_id", target).Error; err != nil {
		return err
	}

	def, err := defaultStatus(tx, target)
	if err != nil {
		return err
	}
	var statusValue interface{}
	if def != nil {
		statusValue = def.ID
	}
	targetStatuses := tx.Model(&models.Status{}).Select("id").Where("meridian_id = ?", target)
	if err := tx.Model(&models.WorkItem{}).
		Where("id IN ? AND status_id IS NOT NULL AND status_id NOT IN (?)", ids, targetStatuses).
		Update("status_id", statusValue).Error; err != nil {
		return err
	}

	targetSprints := tx.Model(&models.Sprint{}).Select("id").Where("meridian_id = ?", target)
	return tx.Model(&models.WorkItem{}).
		Where("id IN ? AND sprint_id IS NOT NULL AND sprint_id NOT IN (?)", ids, targetSprints).
		Update("sprint_id", nil).Error
}

// arcMeridian returns the meridian of item's arc ancestor, or item's own
// meridian when the chain has no arc.
func arcMeridian(tx *gorm.DB, item *models.WorkItem) (uint, error) {
	arc, err := hierarchy.NewWalker(itemNodes{db: tx}).FindArcAncestor(item.ID)
	if err != nil {
		return 0, fmt.Errorf("find arc of item %d: %w", item.ID, err)
	}
	if arc == nil {
		return item.MeridianID, nil
	}
	return arc.MeridianID, nil
}

func checkAssignee(tx *gorm.DB, meridianID uint, assigneeID *uint) error {
	if assigneeID == nil {
		return nil
	}
	role, err := RoleOf(tx, *assigneeID, meridianID)
	if err != nil {
		return err
	}
	if role == access.RoleNone {
		return response.NewBadRequest("assignee is not a member of this meridian")
	}
	return nil
}

func checkSprint(tx *gorm.DB, meridianID uint, sprintID *uint) error {
	if sprintID == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Sprint{}).Where("id = ? AND meridian_id = ?", *sprintID, meridianID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return response.NewBadRequest("sprint does not belong to this meridian")
	}
	return nil
}

func setItemColumn(tx *gorm.DB, itemID uint, column string, value interface{}) error {
	return tx.Model(&models.WorkItem{}).Where("id = ?", itemID).Update(column, value).Error
}

func nullableID(id *uint) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func idText(id *uint) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatUint(uint64(*id), 10)
	return &s
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func isJSONNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// decodeID accepts null, a positive integer, or a numeric string.
func decodeID(field string, raw json.RawMessage) (*uint, error) {
	if isJSONNull(raw) {
		return nil, nil
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		id := uint(n)
		return &id, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32); err == nil && n > 0 {
			id := uint(n)
			return &id, nil
		}
	}
	return nil, response.Errorf(response.NewBadRequest(""), "%s must be a positive id or null", field)
}

func decodeText(field string, raw json.RawMessage) (*string, error) {
	if isJSONNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, response.Errorf(response.NewBadRequest(""), "%s must be a string or null", field)
	}
	return &s, nil
}
