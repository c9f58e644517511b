package models

import "time"

const (
	SprintPlanning = "planning"
	SprintActive   = "active"
	SprintComplete = "complete"
)

type Sprint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MeridianID uint      `gorm:"index;not null" json:"meridianId"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	Goal       *string   `gorm:"type:text" json:"goal"`
	State      string    `gorm:"size:20;not null;default:planning" json:"state"`
	StartDate  *string   `gorm:"size:10" json:"startDate"`
	EndDate    *string   `gorm:"size:10" json:"endDate"`
	CreatedBy  uint      `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

func (Sprint) TableName() string { return "sprints" }
