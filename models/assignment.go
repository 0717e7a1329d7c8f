package models

import "time"

// Assignment links a user to a drone beyond the drone's single primary
// operator. Unique on (UserID, DroneID); assigning the same pair twice
// is a no-op.
type Assignment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	DroneID    string    `db:"drone_id" json:"drone_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}
