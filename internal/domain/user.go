package domain

import "time"

// Role enumerates the access levels recognised by the API.
type Role string

const (
	// RoleCustomer is the default role for self-registered accounts.
	RoleCustomer Role = "customer"
	// RoleStaff marks workshop staff who manage orders.
	RoleStaff Role = "staff"
	// RoleAdmin marks operators with user management rights.
	RoleAdmin Role = "admin"
)

// KnownRole reports whether the value is one of the defined roles.
func KnownRole(role Role) bool {
	switch role {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User is an account that can authenticate against the API.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	Phone        string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Bike is a customer vehicle that service orders reference.
type Bike struct {
	ID           int64
	OwnerID      int64
	LicensePlate string
	Model        string
	CreatedAt    time.Time
}
