package models

import "time"

// InvitationState is derived from UsedAt and ExpiresAt at read time.
type InvitationState int

const (
	InvitationPending InvitationState = iota
	InvitationUsed
	InvitationExpired
)

func (s InvitationState) String() string {
	switch s {
	case InvitationPending:
		return "pending"
	case InvitationUsed:
		return "used"
	case InvitationExpired:
		return "expired"
	default:
		return "unknown"
	}
}

type Invitation struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	MeridianID uint       `gorm:"index;not null" json:"meridianId"`
	Token      string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	Email      *string    `gorm:"size:255" json:"email"`
	Role       string     `gorm:"size:20;not null" json:"role"`
	CreatedBy  uint       `gorm:"not null" json:"createdBy"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expiresAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
	UsedBy     *uint      `json:"usedBy,omitempty"`
}

func (Invitation) TableName() string { return "invitations" }

// State reports where the invitation is in its lifecycle. Revoked
// invitations have no state because their rows are gone.
func (i *Invitation) State(now time.Time) InvitationState {
	if i.UsedAt != nil {
		return InvitationUsed
	}
	if !i.ExpiresAt.After(now) {
		return InvitationExpired
	}
	return InvitationPending
}
