package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/huangang/meridian/internal/access"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/response"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidSlug reports whether s is lowercase letters, digits and hyphens.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

type MeridianService struct {
	db *gorm.DB
}

func NewMeridianService(db *gorm.DB) *MeridianService {
	return &MeridianService{db: db}
}

type CreateMeridianRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Slug        string  `json:"slug" binding:"required,slug,max=100"`
	Color       *string `json:"color" binding:"omitempty,max=20"`
	Description *string `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type UpdateMeridianRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Slug        *string `json:"slug" binding:"omitempty,slug,max=100"`
	Color       *string `json:"color" binding:"omitempty,max=20"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

// Create inserts a meridian, seeds its status pipeline and makes the caller
// its owner, all or nothing.
func (s *MeridianService) Create(req *CreateMeridianRequest, userID uint) (*models.Meridian, error) {
	name := strings.TrimSpace(req.Name)
	slug := strings.TrimSpace(req.Slug)
	if name == "" {
		return nil, response.NewBadRequest("name is required")
	}
	if slug == "" {
		return nil, response.NewBadRequest("slug is required")
	}
	if !ValidSlug(slug) {
		return nil, response.NewBadRequest("slug may only contain lowercase letters, digits and hyphens")
	}
	startDate, err := normalizeDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := normalizeDate("endDate", req.EndDate)
	if err != nil {
		return nil, err
	}

	meridian := models.Meridian{
		Name:        name,
		Slug:        slug,
		Color:       optionalText(req.Color),
		Description: optionalText(req.Description),
		IsActive:    true,
		StartDate:   startDate,
		EndDate:     endDate,
		CreatedBy:   userID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Meridian{}).Where("slug = ?", slug).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return response.NewConflict("slug is already in use")
		}
		if err := tx.Create(&meridian).Error; err != nil {
			if isDuplicate(err) {
				return response.NewConflict("slug is already in use")
			}
			return err
		}

		statuses := models.DefaultStatuses(meridian.ID)
		if err := tx.Create(&statuses).Error; err != nil {
			return fmt.Errorf("seed statuses: %w", err)
		}

		owner := models.MeridianMember{
			MeridianID: meridian.ID,
			UserID:     userID,
			Role:       string(access.RoleOwner),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meridian, nil
}

// Update patches meridian settings. Owners only.
func (s *MeridianService) Update(id uint, req *UpdateMeridianRequest, userID uint) (*models.Meridian, error) {
	if err := requireManage(s.db, userID, id); err != nil {
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
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if !ValidSlug(slug) {
			return nil, response.NewBadRequest("slug may only contain lowercase letters, digits and hyphens")
		}
		updates["slug"] = slug
	}
	if req.Color != nil {
		updates["color"] = optionalText(req.Color)
	}
	if req.Description != nil {
		updates["description"] = optionalText(req.Description)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.StartDate != nil {
		d, err := normalizeDate("startDate", req.StartDate)
		if err != nil {
			return nil, err
		}
		updates["start_date"] = d
	}
	if req.EndDate != nil {
		d, err := normalizeDate("endDate", req.EndDate)
		if err != nil {
			return nil, err
		}
		updates["end_date"] = d
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("no fields to update")
	}

	var meridian models.Meridian
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if slug, ok := updates["slug"]; ok {
			var taken int64
			if err := tx.Model(&models.Meridian{}).Where("slug = ? AND id <> ?", slug, id).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return response.NewConflict("slug is already in use")
			}
		}
		if err := tx.Model(&models.Meridian{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return response.NewConflict("slug is already in use")
			}
			return err
		}
		return tx.First(&meridian, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &meridian, nil
}

// Delete soft-deletes a meridian. Its items, statuses and members stay in
// place but every read stops seeing them.
func (s *MeridianService) Delete(id, userID uint) error {
	if err := requireManage(s.db, userID, id); err != nil {
		return err
	}
	return s.db.Model(&models.Meridian{}).Where("id = ?", id).Update("is_active", false).Error
}

// GetByID returns an active meridian the caller belongs to.
func (s *MeridianService) GetByID(id, userID uint) (*models.Meridian, error) {
	if err := requireRead(s.db, userID, id); err != nil {
		return nil, err
	}
	var meridian models.Meridian
	if err := s.db.First(&meridian, id).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("meridian not found")
		}
		return nil, err
	}
	return &meridian, nil
}
