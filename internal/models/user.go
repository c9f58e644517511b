package models

import "time"

// User is an identity forwarded by the authentication edge. The pair
// (IdentityProvider, ExternalID) is the stable key.
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	IdentityProvider  string     `gorm:"size:50;uniqueIndex:idx_user_identity;not null" json:"-"`
	ExternalID        string     `gorm:"size:255;uniqueIndex:idx_user_identity;not null" json:"-"`
	TenantID          *string    `gorm:"size:255" json:"-"`
	Email             string     `gorm:"size:255" json:"email"`
	DisplayName       string     `gorm:"size:200" json:"displayName"`
	DisplayNameLocked bool       `gorm:"default:false" json:"-"` // set once the user renames themselves
	AvatarURL         *string    `gorm:"size:500" json:"avatarUrl"`
	IsActive          bool       `gorm:"default:true" json:"-"`
	LastLogin         *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"-"`
}

func (User) TableName() string { return "users" }
