package models

import "time"

// DroneModel is one of the airframes operated by the fleet.
type DroneModel string

const (
	// ModelHawkS is the base scout airframe and the fallback for
	// unrecognized legacy model names.
	ModelHawkS    DroneModel = "HAWK_S"
	ModelFalconX  DroneModel = "FALCON_X"
	ModelCondorHL DroneModel = "CONDOR_HL"
	ModelRavenR   DroneModel = "RAVEN_R"
)

// DroneStatus represents the operational state of a drone.
type DroneStatus string

const (
	DroneStatusActive      DroneStatus = "ACTIVE"
	DroneStatusStandby     DroneStatus = "STANDBY"
	DroneStatusMaintenance DroneStatus = "MAINTENANCE"
	DroneStatusOffline     DroneStatus = "OFFLINE"
)

// Drone represents a fleet vehicle. The ID is the caller-assigned tail
// number, never generated. RegionID and OperatorID are nullable; when both
// the drone and its operator carry a region, the two must match.
type Drone struct {
	ID         string      `db:"id" json:"id"`
	Model      DroneModel  `db:"model" json:"model"`
	Status     DroneStatus `db:"status" json:"status"`
	RegionID   *string     `db:"region_id" json:"region_id"`
	OperatorID *string     `db:"operator_id" json:"operator_id"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}
