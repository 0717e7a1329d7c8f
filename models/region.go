package models

import "time"

// RegionStatus marks whether a region may be referenced by users and drones.
type RegionStatus string

const (
	RegionStatusActive   RegionStatus = "ACTIVE"
	RegionStatusInactive RegionStatus = "INACTIVE"
)

// Region is an operational area. It owns zero or more Users and zero or
// more Drones; deleting a region cascades through both (see repository.CascadeEngine).
type Region struct {
	ID            string       `db:"id" json:"id"`
	Name          string       `db:"name" json:"name"`
	Area          string       `db:"area" json:"area"`
	CommanderName *string      `db:"commander_name" json:"commander_name"`
	Status        RegionStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}
