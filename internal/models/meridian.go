package models

import "time"

// Meridian is a team workspace. Soft-deleted meridians keep their rows but
// disappear from every read.
type Meridian struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Slug        string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Color       *string   `gorm:"size:20" json:"color"`
	Description *string   `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true;index" json:"isActive"`
	StartDate   *string   `gorm:"size:10" json:"startDate"` // YYYY-MM-DD
	EndDate     *string   `gorm:"size:10" json:"endDate"`
	CreatedBy   uint      `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Meridian) TableName() string { return "meridians" }
