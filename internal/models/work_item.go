package models

import "time"

// WorkItem is one node of the arc → episode → signal → relay tree.
type WorkItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MeridianID  uint      `gorm:"index;not null" json:"meridianId"`
	ParentID    *uint     `gorm:"index" json:"parentId"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	Title       string    `gorm:"size:500;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	StatusID    *uint     `gorm:"index" json:"statusId"`
	AssigneeID  *uint     `json:"assigneeId"`
	SprintID    *uint     `gorm:"index" json:"sprintId"`
	StartDate   *string   `gorm:"size:10" json:"startDate"`
	DueDate     *string   `gorm:"size:10" json:"dueDate"`
	Position    int       `gorm:"default:0" json:"position"`
	IsActive    bool      `gorm:"default:true;index" json:"-"`
	CreatedBy   uint      `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

func (WorkItem) TableName() string { return "work_items" }
