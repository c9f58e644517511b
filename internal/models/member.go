package models

import "time"

// MeridianMember represents a user's membership and role within a meridian.
type MeridianMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MeridianID uint      `gorm:"uniqueIndex:idx_meridian_user;not null" json:"meridianId"`
	UserID     uint      `gorm:"uniqueIndex:idx_meridian_user;index;not null" json:"userId"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role       string    `gorm:"size:20;not null;default:viewer" json:"role"` // owner, member, viewer
	JoinedAt   time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (MeridianMember) TableName() string { return "meridian_members" }
