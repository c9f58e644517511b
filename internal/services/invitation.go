package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/huangang/meridian/internal/access"
	"github.com/huangang/meridian/internal/config"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/internal/utils"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

const invitationTokenBytes = 32

var validate = validator.New()

type InvitationService struct {
	db  *gorm.DB
	cfg config.InvitationConfig
	now func() time.Time
}

func NewInvitationService(db *gorm.DB, cfg config.InvitationConfig) *InvitationService {
	if cfg.DefaultTTLHours <= 0 {
		cfg.DefaultTTLHours = 72
	}
	if cfg.MaxTTLHours < cfg.DefaultTTLHours {
		cfg.MaxTTLHours = cfg.DefaultTTLHours
	}
	return &InvitationService{db: db, cfg: cfg, now: time.Now}
}

type CreateInvitationRequest struct {
	Role     string  `json:"role" binding:"omitempty,oneof=member viewer"`
	Email    *string `json:"email" binding:"omitempty,email"`
	TTLHours int     `json:"ttlHours" binding:"omitempty,min=1"`
}

type PendingInvitation struct {
	ID            uint      `json:"id"`
	Token         string    `json:"token"`
	Email         *string   `json:"email"`
	Role          string    `json:"role"`
	CreatedBy     uint      `json:"createdBy"`
	InvitedByName string    `json:"invitedByName"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

type InvitationPreview struct {
	MeridianID    uint      `json:"meridianId"`
	MeridianName  string    `json:"meridianName"`
	MeridianColor *string   `json:"meridianColor"`
	Role          string    `json:"role"`
	Email         *string   `json:"email"`
	InvitedByName string    `json:"invitedByName"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type AcceptResult struct {
	MeridianID uint   `json:"meridianId"`
	Role       string `json:"role"`
}

var errInvitationGone = response.NewNotFound("invitation not found or no longer valid")

// Create issues a single-use invitation token for a meridian.
func (s *InvitationService) Create(meridianID uint, req *CreateInvitationRequest, callerID uint) (*models.Invitation, error) {
	role := access.RoleMember
	if req.Role != "" {
		parsed, ok := access.ParseRole(req.Role)
		if !ok || !access.Invitable(parsed) {
			return nil, response.NewBadRequest("role must be member or viewer")
		}
		role = parsed
	}

	ttl := req.TTLHours
	if ttl == 0 {
		ttl = s.cfg.DefaultTTLHours
	}
	if ttl < 1 || ttl > s.cfg.MaxTTLHours {
		return nil, response.Errorf(response.NewBadRequest(""), "ttlHours must be between 1 and %d", s.cfg.MaxTTLHours)
	}

	email := optionalText(req.Email)
	if email != nil {
		if err := validate.Var(*email, "email"); err != nil {
			return nil, response.NewBadRequest("email is not a valid address")
		}
	}

	if err := requireManage(s.db, callerID, meridianID); err != nil {
		return nil, err
	}

	token, err := utils.RandomToken(invitationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}

	now := s.now()
	inv := models.Invitation{
		MeridianID: meridianID,
		Token:      token,
		Email:      email,
		Role:       string(role),
		CreatedBy:  callerID,
		ExpiresAt:  now.Add(time.Duration(ttl) * time.Hour),
		CreatedAt:  now,
	}
	if err := s.db.Create(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListPending returns unused, unexpired invitations, newest first.
func (s *InvitationService) ListPending(meridianID, callerID uint) ([]PendingInvitation, error) {
	if err := requireManage(s.db, callerID, meridianID); err != nil {
		return nil, err
	}

	pending := make([]PendingInvitation, 0)
	err := s.db.Table("invitations").
		Select("invitations.id, invitations.token, invitations.email, invitations.role, invitations.created_by, users.display_name AS invited_by_name, invitations.expires_at, invitations.created_at").
		Joins("LEFT JOIN users ON users.id = invitations.created_by").
		Where("invitations.meridian_id = ? AND invitations.used_at IS NULL AND invitations.expires_at > ?", meridianID, s.now()).
		Order("invitations.created_at DESC, invitations.id DESC").
		Scan(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Preview describes a pending invitation to whoever holds its token.
func (s *InvitationService) Preview(token string) (*InvitationPreview, error) {
	inv, err := s.findPending(s.db, token)
	if err != nil {
		return nil, err
	}

	var meridian models.Meridian
	if err := s.db.Where("id = ? AND is_active = ?", inv.MeridianID, true).Take(&meridian).Error; err != nil {
		if isNotFound(err) {
			return nil, errInvitationGone
		}
		return nil, err
	}

	var inviter models.User
	inviterName := ""
	if err := s.db.Select("display_name").First(&inviter, inv.CreatedBy).Error; err == nil {
		inviterName = inviter.DisplayName
	} else if !isNotFound(err) {
		return nil, err
	}

	return &InvitationPreview{
		MeridianID:    meridian.ID,
		MeridianName:  meridian.Name,
		MeridianColor: meridian.Color,
		Role:          inv.Role,
		Email:         inv.Email,
		InvitedByName: inviterName,
		ExpiresAt:     inv.ExpiresAt,
	}, nil
}

// Accept claims the invitation and joins the caller to its meridian. The
// claim is a conditional update, so of two racing accepts exactly one wins.
// An existing membership is left untouched.
func (s *InvitationService) Accept(token string, callerID uint) (*AcceptResult, error) {
	var result AcceptResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inv models.Invitation
		if err := tx.Where("token = ?", token).Take(&inv).Error; err != nil {
			if isNotFound(err) {
				return errInvitationGone
			}
			return err
		}

		now := s.now()
		claim := tx.Model(&models.Invitation{}).
			Where("id = ? AND used_at IS NULL AND expires_at > ?", inv.ID, now).
			Updates(map[string]interface{}{"used_at": now, "used_by": callerID})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return errInvitationGone
		}

		var active int64
		if err := tx.Model(&models.Meridian{}).Where("id = ? AND is_active = ?", inv.MeridianID, true).Count(&active).Error; err != nil {
			return err
		}
		if active == 0 {
			return errInvitationGone
		}

		if inv.Email != nil {
			var caller models.User
			if err := tx.Select("email").First(&caller, callerID).Error; err != nil {
				return err
			}
			if !strings.EqualFold(strings.TrimSpace(caller.Email), strings.TrimSpace(*inv.Email)) {
				return response.NewForbidden("this invitation was issued to a different email address")
			}
		}

		result.MeridianID = inv.MeridianID
		var existing models.MeridianMember
		err := tx.Where("meridian_id = ? AND user_id = ?", inv.MeridianID, callerID).Take(&existing).Error
		if err == nil {
			result.Role = existing.Role
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		member := models.MeridianMember{
			MeridianID: inv.MeridianID,
			UserID:     callerID,
			Role:       inv.Role,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		result.Role = member.Role
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Revoke deletes a pending invitation. Used, expired and unknown tokens all
// answer 404 before any role check.
func (s *InvitationService) Revoke(token string, callerID uint) error {
	inv, err := s.findPending(s.db, token)
	if err != nil {
		return err
	}
	if err := requireManage(s.db, callerID, inv.MeridianID); err != nil {
		return err
	}

	res := s.db.Where("id = ? AND used_at IS NULL", inv.ID).Delete(&models.Invitation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errInvitationGone
	}
	return nil
}

// PurgeExpired deletes unused invitations that expired more than olderThan
// ago. They are already unreachable through every other operation.
func (s *InvitationService) PurgeExpired(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.Where("used_at IS NULL AND expires_at < ?", cutoff).Delete(&models.Invitation{})
	return res.RowsAffected, res.Error
}

func (s *InvitationService) findPending(db *gorm.DB, token string) (*models.Invitation, error) {
	if token == "" {
		return nil, errInvitationGone
	}
	var inv models.Invitation
	if err := db.Where("token = ?", token).Take(&inv).Error; err != nil {
		if isNotFound(err) {
			return nil, errInvitationGone
		}
		return nil, err
	}
	if inv.State(s.now()) != models.InvitationPending {
		return nil, errInvitationGone
	}
	return &inv, nil
}
