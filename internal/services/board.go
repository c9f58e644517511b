package services

import (
	"sort"
	"time"

	"github.com/huangang/meridian/internal/hierarchy"
	"github.com/huangang/meridian/internal/models"
	"gorm.io/gorm"
)

type BoardService struct {
	db      *gorm.DB
	items   *WorkItemService
	sprints *SprintService
}

func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{
		db:      db,
		items:   NewWorkItemService(db),
		sprints: NewSprintService(db),
	}
}

type BoardUser struct {
	ID          uint    `json:"id"`
	DisplayName string  `json:"displayName"`
	Email       string  `json:"email"`
	AvatarURL   *string `json:"avatarUrl"`
}

// Board is everything the client needs to render, scoped to the caller's
// active meridians.
type Board struct {
	MyUserID  uint              `json:"myUserId"`
	MyRoles   map[uint]string   `json:"myRoles"`
	Meridians []models.Meridian `json:"meridians"`
	Statuses  []models.Status   `json:"statuses"`
	Sprints   []models.Sprint   `json:"sprints"`
	Users     []BoardUser       `json:"users"`
	Items     []models.WorkItem `json:"items"`
}

func (s *BoardService) Get(userID uint) (*Board, error) {
	board := &Board{
		MyUserID:  userID,
		MyRoles:   make(map[uint]string),
		Meridians: make([]models.Meridian, 0),
		Statuses:  make([]models.Status, 0),
		Users:     make([]BoardUser, 0),
	}

	var memberships []models.MeridianMember
	if err := s.db.Joins("JOIN meridians ON meridians.id = meridian_members.meridian_id").
		Where("meridian_members.user_id = ? AND meridians.is_active = ?", userID, true).
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	meridianIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		board.MyRoles[m.MeridianID] = m.Role
		meridianIDs = append(meridianIDs, m.MeridianID)
	}

	var err error
	if board.Items, err = s.items.ListForMeridians(meridianIDs); err != nil {
		return nil, err
	}
	if board.Sprints, err = s.sprints.ListForMeridians(meridianIDs); err != nil {
		return nil, err
	}
	if len(meridianIDs) == 0 {
		return board, nil
	}

	if err := s.db.Where("id IN ?", meridianIDs).Order("name, id").Find(&board.Meridians).Error; err != nil {
		return nil, err
	}
	if err := s.db.Where("meridian_id IN ?", meridianIDs).Order("meridian_id, position, id").Find(&board.Statuses).Error; err != nil {
		return nil, err
	}
	if err := s.db.Table("users").
		Select("DISTINCT users.id, users.display_name, users.email, users.avatar_url").
		Joins("JOIN meridian_members ON meridian_members.user_id = users.id").
		Where("meridian_members.meridian_id IN ? AND users.is_active = ?", meridianIDs, true).
		Order("users.id").
		Scan(&board.Users).Error; err != nil {
		return nil, err
	}

	sortBoardItems(board.Items)
	sortSprints(board.Sprints)
	return board, nil
}

// sortBoardItems orders by meridian, depth, parent, then due date falling back
// to creation time.
func sortBoardItems(items []models.WorkItem) {
	key := func(it *models.WorkItem) time.Time {
		if it.DueDate != nil {
			if t, err := time.ParseInLocation(dateLayout, *it.DueDate, it.CreatedAt.Location()); err == nil {
				return t
			}
		}
		return it.CreatedAt
	}
	parent := func(it *models.WorkItem) uint {
		if it.ParentID == nil {
			return 0
		}
		return *it.ParentID
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if a.MeridianID != b.MeridianID {
			return a.MeridianID < b.MeridianID
		}
		if da, dbt := hierarchy.ItemType(a.Type).Depth(), hierarchy.ItemType(b.Type).Depth(); da != dbt {
			return da < dbt
		}
		if pa, pb := parent(a), parent(b); pa != pb {
			return pa < pb
		}
		if ka, kb := key(a), key(b); !ka.Equal(kb) {
			return ka.Before(kb)
		}
		return a.ID < b.ID
	})
}

var sprintStateOrder = map[string]int{
	models.SprintActive:   0,
	models.SprintPlanning: 1,
	models.SprintComplete: 2,
}

// sortSprints puts active sprints first, then planned, then complete; within
// a state by start date with undated sprints last.
func sortSprints(sprints []models.Sprint) {
	sort.SliceStable(sprints, func(i, j int) bool {
		a, b := sprints[i], sprints[j]
		if oa, ob := sprintStateOrder[a.State], sprintStateOrder[b.State]; oa != ob {
			return oa < ob
		}
		switch {
		case a.StartDate == nil && b.StartDate == nil:
		case a.StartDate == nil:
			return false
		case b.StartDate == nil:
			return true
		case *a.StartDate != *b.StartDate:
			return *a.StartDate < *b.StartDate
		}
		return a.ID < b.ID
	})
}
