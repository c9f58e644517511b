package services

import (
	"time"

	"github.com/huangang/meridian/internal/access"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemberService struct {
	db *gorm.DB
}

func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

type AddMemberRequest struct {
	UserID uint   `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=owner member viewer"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=owner member viewer"`
}

// MemberView is a membership joined with the user's public profile.
type MemberView struct {
	UserID      uint      `json:"userId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	AvatarURL   *string   `json:"avatarUrl"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// List returns members ordered owner, member, viewer, then by name.
func (s *MemberService) List(meridianID, userID uint) ([]MemberView, error) {
	if err := requireRead(s.db, userID, meridianID); err != nil {
		return nil, err
	}

	members := make([]MemberView, 0)
	err := s.db.Table("meridian_members").
		Select("meridian_members.user_id, users.display_name, users.email, users.avatar_url, meridian_members.role, meridian_members.joined_at").
		Joins("JOIN users ON users.id = meridian_members.user_id").
		Where("meridian_members.meridian_id = ?", meridianID).
		Order("CASE meridian_members.role WHEN 'owner' THEN 0 WHEN 'member' THEN 1 ELSE 2 END, users.display_name").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember grants a role to an existing user, overwriting any role the user
// already holds. The last owner cannot be overwritten with a lower role.
func (s *MemberService) AddMember(meridianID uint, req *AddMemberRequest, callerID uint) (*models.MeridianMember, error) {
	role, ok := access.ParseRole(req.Role)
	if !ok {
		return nil, response.NewBadRequest("role must be owner, member or viewer")
	}
	if err := requireManage(s.db, callerID, meridianID); err != nil {
		return nil, err
	}

	var member models.MeridianMember
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ? AND is_active = ?", req.UserID, true).Take(&user).Error; err != nil {
			if isNotFound(err) {
				return response.NewNotFound("user not found")
			}
			return err
		}

		owners, err := lockOwners(tx, meridianID)
		if err != nil {
			return err
		}

		err = tx.Where("meridian_id = ? AND user_id = ?", meridianID, req.UserID).Take(&member).Error
		if isNotFound(err) {
			member = models.MeridianMember{
				MeridianID: meridianID,
				UserID:     req.UserID,
				Role:       string(role),
			}
			return tx.Create(&member).Error
		}
		if err != nil {
			return err
		}

		if member.Role == string(access.RoleOwner) && role != access.RoleOwner && owners <= 1 {
			return response.NewConflict("cannot demote the only owner")
		}
		member.Role = string(role)
		return tx.Model(&member).Update("role", member.Role).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ChangeRole sets the role of an existing member.
func (s *MemberService) ChangeRole(meridianID, targetUserID uint, newRole string, callerID uint) (*models.MeridianMember, error) {
	role, ok := access.ParseRole(newRole)
	if !ok {
		return nil, response.NewBadRequest("role must be owner, member or viewer")
	}
	if err := requireManage(s.db, callerID, meridianID); err != nil {
		return nil, err
	}

	var member models.MeridianMember
	err := s.db.Transaction(func(tx *gorm.DB) error {
		owners, err := lockOwners(tx, meridianID)
		if err != nil {
			return err
		}
		if err := tx.Where("meridian_id = ? AND user_id = ?", meridianID, targetUserID).Take(&member).Error; err != nil {
			if isNotFound(err) {
				return response.NewNotFound("member not found")
			}
			return err
		}
		if member.Role == string(access.RoleOwner) && role != access.RoleOwner && owners <= 1 {
			return response.NewConflict("cannot demote the only owner")
		}
		member.Role = string(role)
		return tx.Model(&member).Update("role", member.Role).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// RemoveMember lets owners remove anyone and members remove themselves.
func (s *MemberService) RemoveMember(meridianID, targetUserID, callerID uint) error {
	if callerID == targetUserID {
		if err := requireRead(s.db, callerID, meridianID); err != nil {
			return err
		}
	} else if err := requireManage(s.db, callerID, meridianID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		owners, err := lockOwners(tx, meridianID)
		if err != nil {
			return err
		}
		var member models.MeridianMember
		if err := tx.Where("meridian_id = ? AND user_id = ?", meridianID, targetUserID).Take(&member).Error; err != nil {
			if isNotFound(err) {
				return response.NewNotFound("member not found")
			}
			return err
		}
		if member.Role == string(access.RoleOwner) && owners <= 1 {
			return response.NewConflict("cannot remove the only owner")
		}
		return tx.Delete(&member).Error
	})
}

// lockOwners reads the owner rows FOR UPDATE so concurrent demotions and
// removals serialise on them. SQLite ignores the lock; its writer lock
// already serialises transactions.
func lockOwners(tx *gorm.DB, meridianID uint) (int, error) {
	var owners []models.MeridianMember
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("meridian_id = ? AND role = ?", meridianID, string(access.RoleOwner)).
		Find(&owners).Error
	return len(owners), err
}
