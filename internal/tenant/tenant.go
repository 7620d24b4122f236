package tenant

import (
	"time"
)

// Tenant represents an isolated site in the fleet. Each tenant keeps its
// own copy of the application's persisted data.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// MaxPageSize bounds List page sizes.
const MaxPageSize = 500
