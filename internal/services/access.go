package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/meridian/internal/access"
	"github.com/huangang/meridian/internal/hierarchy"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// RoleOf returns the caller's role in a meridian, derived only from
// meridian_members. Soft-deleted meridians yield RoleNone for everyone.
func RoleOf(db *gorm.DB, userID, meridianID uint) (access.Role, error) {
	var roles []string
	err := db.Model(&models.MeridianMember{}).
		Joins("JOIN meridians ON meridians.id = meridian_members.meridian_id").
		Where("meridian_members.meridian_id = ? AND meridian_members.user_id = ? AND meridians.is_active = ?", meridianID, userID, true).
		Pluck("meridian_members.role", &roles).Error
	if err != nil {
		return access.RoleNone, fmt.Errorf("load role: %w", err)
	}
	if len(roles) == 0 {
		return access.RoleNone, nil
	}
	role, ok := access.ParseRole(roles[0])
	if !ok {
		return access.RoleNone, nil
	}
	return role, nil
}

func authorize(db *gorm.DB, userID, meridianID uint, allowed func(access.Role) bool) (access.Role, error) {
	role, err := RoleOf(db, userID, meridianID)
	if err != nil {
		return access.RoleNone, err
	}
	if role == access.RoleNone {
		return role, response.NewForbidden("not a member of this meridian")
	}
	if !allowed(role) {
		return role, response.Errorf(response.NewForbidden(""), "insufficient role: %s", role)
	}
	return role, nil
}

func requireRead(db *gorm.DB, userID, meridianID uint) error {
	_, err := authorize(db, userID, meridianID, access.CanRead)
	return err
}

func requireWrite(db *gorm.DB, userID, meridianID uint) error {
	_, err := authorize(db, userID, meridianID, access.CanWrite)
	return err
}

func requireManage(db *gorm.DB, userID, meridianID uint) error {
	_, err := authorize(db, userID, meridianID, access.CanManage)
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// normalizeDate accepts nil, "" or YYYY-MM-DD. Empty clears the value.
func normalizeDate(field string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return nil, response.Errorf(response.NewBadRequest(""), "%s must be a date in YYYY-MM-DD format", field)
	}
	return &s, nil
}

func today() string {
	return time.Now().Format(dateLayout)
}

// optionalText trims v and maps blank to nil.
func optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

// itemNodes exposes active work items to a hierarchy.Walker. It must be built
// on the transaction the caller is working in.
type itemNodes struct {
	db *gorm.DB
}

func (s itemNodes) Node(id uint) (*hierarchy.Node, error) {
	var item models.WorkItem
	err := s.db.Select([]string{"id", "parent_id", "type", "meridian_id"}).
		Where("id = ? AND is_active = ?", id, true).
		Take(&item).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n := toNode(&item)
	return &n, nil
}

func (s itemNodes) Children(parentIDs []uint) ([]hierarchy.Node, error) {
	var items []models.WorkItem
	if err := s.db.Select([]string{"id", "parent_id", "type", "meridian_id"}).
		Where("parent_id IN ? AND is_active = ?", parentIDs, true).
		Find(&items).Error; err != nil {
		return nil, err
	}
	nodes := make([]hierarchy.Node, 0, len(items))
	for i := range items {
		nodes = append(nodes, toNode(&items[i]))
	}
	return nodes, nil
}

func toNode(item *models.WorkItem) hierarchy.Node {
	return hierarchy.Node{
		ID:         item.ID,
		ParentID:   item.ParentID,
		Type:       hierarchy.ItemType(item.Type),
		MeridianID: item.MeridianID,
	}
}
