package mirror

import (
	"strings"
	"time"

	"fleetadmin/internal/normalize"
	"fleetadmin/models"
)

// Mirror table names.
const (
	TableRegions     = "regions"
	TableUsers       = "users"
	TableDrones      = "drones"
	TableAssignments = "assignments"
)

// The wire records mirror the remote table rows. Enum-typed fields travel
// as plain strings because rows pulled during recovery may carry legacy
// spellings; the pull path routes them through the normalization layer
// before they reach the repository.

type RegionRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Area          string    `json:"area"`
	CommanderName *string   `json:"commander_name"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type UserRecord struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name"`
	Role               string    `json:"role"`
	RegionID           *string   `json:"region_id"`
	Status             string    `json:"status"`
	ExternalIdentityID *string   `json:"external_identity_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type DroneRecord struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Status     string    `json:"status"`
	RegionID   *string   `json:"region_id"`
	OperatorID *string   `json:"operator_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AssignmentRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DroneID    string    `json:"drone_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

func regionRecord(r *models.Region) RegionRecord {
	return RegionRecord{
		ID:            r.ID,
		Name:          r.Name,
		Area:          r.Area,
		CommanderName: r.CommanderName,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func userRecord(u *models.User) UserRecord {
	return UserRecord{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FullName:           u.FullName,
		Role:               string(u.Role),
		RegionID:           u.RegionID,
		Status:             string(u.Status),
		ExternalIdentityID: u.ExternalIdentityID,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func droneRecord(d *models.Drone) DroneRecord {
	return DroneRecord{
		ID:         d.ID,
		Model:      string(d.Model),
		Status:     string(d.Status),
		RegionID:   d.RegionID,
		OperatorID: d.OperatorID,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func assignmentRecord(a *models.Assignment) AssignmentRecord {
	return AssignmentRecord{
		ID:         a.ID,
		UserID:     a.UserID,
		DroneID:    a.DroneID,
		AssignedAt: a.AssignedAt,
	}
}

// binaryStatus folds arbitrary status spellings onto ACTIVE/INACTIVE.
// Anything that does not read as inactive is treated as active, so a
// legacy row never locks out the entity it describes.
func binaryStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inactive", "disabled", "suspended", "archived":
		return "INACTIVE"
	default:
		return "ACTIVE"
	}
}

func (rec RegionRecord) toModel() *models.Region {
	return &models.Region{
		ID:            rec.ID,
		Name:          rec.Name,
		Area:          rec.Area,
		CommanderName: rec.CommanderName,
		Status:        models.RegionStatus(binaryStatus(rec.Status)),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func (rec UserRecord) toModel(n *normalize.Normalizer) *models.User {
	return &models.User{
		ID:                 rec.ID,
		Username:           rec.Username,
		Email:              rec.Email,
		FullName:           rec.FullName,
		Role:               n.Role(rec.Role),
		RegionID:           rec.RegionID,
		Status:             models.UserStatus(binaryStatus(rec.Status)),
		ExternalIdentityID: rec.ExternalIdentityID,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

func (rec DroneRecord) toModel(n *normalize.Normalizer) *models.Drone {
	return &models.Drone{
		ID:         rec.ID,
		Model:      n.Model(rec.Model),
		Status:     n.Status(rec.Status),
		RegionID:   rec.RegionID,
		OperatorID: rec.OperatorID,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (rec AssignmentRecord) toModel() *models.Assignment {
	return &models.Assignment{
		ID:         rec.ID,
		UserID:     rec.UserID,
		DroneID:    rec.DroneID,
		AssignedAt: rec.AssignedAt,
	}
}
