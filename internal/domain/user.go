package domain

import "time"

// Role enumerates portal roles.
type Role string

const (
	RoleCommon     Role = "COMMON"
	RoleTechnician Role = "TECHNICIAN"
	RoleManager    Role = "MANAGER"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid checks if the role is one of the allowed values.
func (r Role) IsValid() bool {
	switch r {
	case RoleCommon, RoleTechnician, RoleManager, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// User is a portal account: requester, technician, manager or administrator.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	AreaID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the authorization subject of a lifecycle operation.
type Actor struct {
	ID     string
	Name   string
	Email  string
	Role   Role
	AreaID *string
}

// ActorFromUser builds the authorization subject for u.
func ActorFromUser(u *User) Actor {
	actor := Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	if u.AreaID != nil {
		area := *u.AreaID
		actor.AreaID = &area
	}
	return actor
}

// InArea reports whether the actor belongs to areaID.
func (a Actor) InArea(areaID string) bool {
	return a.AreaID != nil && *a.AreaID == areaID
}
