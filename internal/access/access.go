// Package access decides what a meridian role may do. It holds no state;
// role lookup lives with the store.
package access

import "strings"

type Role string

const (
	RoleNone   Role = ""
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleOwner  Role = "owner"
)

// ParseRole accepts the three stored roles, case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleOwner, RoleMember, RoleViewer:
		return r, true
	default:
		return RoleNone, false
	}
}

// CanRead reports whether the role belongs to any member.
func CanRead(role Role) bool {
	return Rank(role) > 0
}

// CanWrite covers items, sprints and comments.
func CanWrite(role Role) bool {
	return role == RoleOwner || role == RoleMember
}

// CanManage covers meridian settings, statuses, membership and invitations.
func CanManage(role Role) bool {
	return role == RoleOwner
}

// Rank orders roles so that owner > member > viewer > none.
func Rank(role Role) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Invitable reports whether an invitation may grant the role. Ownership is
// only ever handed over through an explicit role change.
func Invitable(role Role) bool {
	return role == RoleMember || role == RoleViewer
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}
