package model

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Actor is the authenticated caller as resolved at the HTTP edge.
type Actor struct {
	UserID         string
	OrganizationID string
	Role           Role
}

func (a Actor) IsOwner() bool { return a.Role == RoleOwner }

// IsAdmin is true for admins and owners.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin || a.Role == RoleOwner }
