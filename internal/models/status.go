package models

// Status is one stage of a meridian's pipeline.
type Status struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	MeridianID uint   `gorm:"uniqueIndex:idx_status_meridian_name;not null" json:"meridianId"`
	Name       string `gorm:"size:100;uniqueIndex:idx_status_meridian_name;not null" json:"name"`
	Color      string `gorm:"size:20" json:"color"`
	Position   int    `gorm:"default:0" json:"position"`
	IsDefault  bool   `gorm:"default:false" json:"isDefault"`
	IsComplete bool   `gorm:"default:false" json:"isComplete"`
	IsBlocked  bool   `gorm:"default:false" json:"isBlocked"`
}

func (Status) TableName() string { return "statuses" }
