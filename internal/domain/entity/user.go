package entity

import "time"

// Roles for the HTTP surface.
const (
	RoleAdmin   = "admin"
	RoleMeister = "meister" // workshop lead: full business data
	RoleBuero   = "buero"   // back office: records and dunning
)

// User is a local account. Credentials live in the local store so login
// works offline; the issued JWT is what makes the remote store reachable.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Status       string // active | disabled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
