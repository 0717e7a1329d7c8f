package models

import "time"

// Role is the access level of a user account.
type Role string

const (
	RoleFleetAdmin      Role = "FLEET_ADMIN"
	RoleRegionCommander Role = "REGION_COMMANDER"
	RoleOperator        Role = "OPERATOR"
)

// UserStatus marks whether an account may be referenced by other entities.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User represents an operator or administrator account.
// It maps to the `users` table. RegionID must be non-null whenever
// Role is REGION_COMMANDER.
type User struct {
	ID                 string     `db:"id" json:"id"`
	Username           string     `db:"username" json:"username"`
	Email              string     `db:"email" json:"email"`
	FullName           string     `db:"full_name" json:"full_name"`
	Role               Role       `db:"role" json:"role"`
	RegionID           *string    `db:"region_id" json:"region_id"`
	Status             UserStatus `db:"status" json:"status"`
	ExternalIdentityID *string    `db:"external_identity_id" json:"external_identity_id"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
