package models

import "time"

// Role is the authorization level of an account.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleAdmin
}

// Account mirrors an identity-provider user replicated into the local store.
type Account struct {
	ID        string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Video is an uploaded video's metadata bound to its streaming platform asset.
type Video struct {
	ID              string
	Title           string
	Description     string
	CreatedAt       time.Time
	OwnerID         string
	ExternalMediaID string
}
