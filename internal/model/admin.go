package model

import "github.com/google/uuid"

type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin"
	RoleAdmin      AdminRole = "admin"
	RoleModerator  AdminRole = "moderator"
)

func (r AdminRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Actor is the authenticated admin performing an operation.
type Actor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      AdminRole `json:"role"`
	IPAddress string    `json:"-"`
	UserAgent string    `json:"-"`
}

// SystemActor is used for scheduled jobs and operator tooling.
var SystemActor = Actor{ID: uuid.Nil, Name: "system", Role: RoleSuperAdmin}
