package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Identity is the caller as described by the authentication edge.
type Identity struct {
	Provider   string
	ExternalID string
	TenantID   string
	Email      string
	Name       string
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=200"`
}

// EnsureUser returns the local user for an identity, creating it on first
// sight. Later calls refresh lastLogin, email and tenant; the display name
// only follows the edge until the user picks their own.
func (s *UserService) EnsureUser(id *Identity) (*models.User, error) {
	if id == nil || strings.TrimSpace(id.ExternalID) == "" {
		return nil, response.NewUnauthorized("missing caller identity")
	}
	provider := strings.TrimSpace(id.Provider)
	if provider == "" {
		provider = "unknown"
	}
	now := time.Now()

	var user models.User
	err := s.db.Where("identity_provider = ? AND external_id = ?", provider, id.ExternalID).Take(&user).Error
	if isNotFound(err) {
		user = models.User{
			IdentityProvider: provider,
			ExternalID:       id.ExternalID,
			TenantID:         optionalText(&id.TenantID),
			Email:            strings.TrimSpace(id.Email),
			DisplayName:      displayNameFor(id),
			IsActive:         true,
			LastLogin:        &now,
		}
		if err := s.db.Create(&user).Error; err != nil {
			if !isDuplicate(err) {
				return nil, fmt.Errorf("create user: %w", err)
			}
			// Lost a first-sight race with a parallel request.
			if err := s.db.Where("identity_provider = ? AND external_id = ?", provider, id.ExternalID).Take(&user).Error; err != nil {
				return nil, fmt.Errorf("load user: %w", err)
			}
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.IsActive {
		return nil, response.NewForbidden("user is disabled")
	}

	updates := map[string]interface{}{"last_login": now}
	user.LastLogin = &now
	if email := strings.TrimSpace(id.Email); email != "" && email != user.Email {
		updates["email"] = email
		user.Email = email
	}
	if tenant := optionalText(&id.TenantID); tenant != nil && (user.TenantID == nil || *user.TenantID != *tenant) {
		updates["tenant_id"] = *tenant
		user.TenantID = tenant
	}
	if name := strings.TrimSpace(id.Name); !user.DisplayNameLocked && name != "" && name != user.DisplayName {
		updates["display_name"] = name
		user.DisplayName = name
	}

	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

// UpdateDisplayName sets a user-chosen name and stops edge syncing.
func (s *UserService) UpdateDisplayName(userID uint, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("displayName is required")
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}

	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"display_name":        name,
		"display_name_locked": true,
	}).Error; err != nil {
		return nil, err
	}
	user.DisplayName = name
	user.DisplayNameLocked = true
	return &user, nil
}

func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func displayNameFor(id *Identity) string {
	if name := strings.TrimSpace(id.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(id.Email); email != "" {
		return email
	}
	return "Unknown"
}
