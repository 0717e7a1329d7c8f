package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetadmin/models"
)

type DroneRepository struct {
	db *sql.DB
}

func NewDroneRepository(db *sql.DB) *DroneRepository {
	return &DroneRepository{db: db}
}

var _ DroneRepositoryI = (*DroneRepository)(nil)

// CreateDroneParams carries the validated payload for a new drone. The ID
// is the caller-assigned tail number and is required.
type CreateDroneParams struct {
	ID         string
	Model      models.DroneModel  // defaults to HAWK_S
	Status     models.DroneStatus // defaults to STANDBY
	RegionID   *string
	OperatorID *string
}

// UpdateDroneParams carries the changed fields of a drone update. Nil
// pointers leave the field untouched; the Clear flags null the
// corresponding foreign key.
type UpdateDroneParams struct {
	Model           *models.DroneModel
	Status          *models.DroneStatus
	RegionID        *string
	ClearRegionID   bool
	OperatorID      *string
	ClearOperatorID bool
}

// ListDronesParams filters and paginates drone listings.
type ListDronesParams struct {
	Model    *models.DroneModel
	Status   *models.DroneStatus
	RegionID *string
	Limit    int
	Offset   int
	Scope    *Scope
}

const droneCols = `id, model, status, region_id, operator_id, created_at, updated_at`

func scanDrone(row interface{ Scan(...any) error }) (*models.Drone, error) {
	var d models.Drone
	var model, status string
	var regionID, operatorID sql.NullString
	if err := row.Scan(&d.ID, &model, &status, &regionID, &operatorID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Model = models.DroneModel(model)
	d.Status = models.DroneStatus(status)
	if regionID.Valid {
		v := regionID.String
		d.RegionID = &v
	}
	if operatorID.Valid {
		v := operatorID.String
		d.OperatorID = &v
	}
	return &d, nil
}

// Create inserts a new drone after validating id uniqueness and the
// region/operator invariants.
func (r *DroneRepository) Create(ctx context.Context, p CreateDroneParams) (*models.Drone, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("drone id is required: %w", ErrInvalidState)
	}
	if p.Model == "" {
		p.Model = models.ModelHawkS
	}
	if p.Status == "" {
		p.Status = models.DroneStatusStandby
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now().UTC()
	d := &models.Drone{
		ID:         p.ID,
		Model:      p.Model,
		Status:     p.Status,
		RegionID:   p.RegionID,
		OperatorID: p.OperatorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM drones WHERE id = ?`, d.ID).Scan(&one)
		if err == nil {
			return fmt.Errorf("drone %q: %w", d.ID, ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := validateDroneRefs(ctx, tx, d.RegionID, d.OperatorID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO drones (id, model, status, region_id, operator_id, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
			d.ID, string(d.Model), string(d.Status), nullStr(d.RegionID), nullStr(d.OperatorID), d.CreatedAt, d.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// validateDroneRefs enforces the drone's referential invariants: a
// referenced region must exist and be ACTIVE, a referenced operator must
// exist and be ACTIVE, and when both sides carry a region the regions
// must match.
func validateDroneRefs(ctx context.Context, q queryer, regionID, operatorID *string) error {
	if regionID != nil {
		reg, err := getRegion(ctx, q, *regionID)
		if err != nil {
			return err
		}
		if reg.Status != models.RegionStatusActive {
			return fmt.Errorf("region %s is %s: %w", reg.ID, reg.Status, ErrInvalidState)
		}
	}
	if operatorID != nil {
		op, err := getUser(ctx, q, *operatorID)
		if err != nil {
			return err
		}
		if op.Status != models.UserStatusActive {
			return fmt.Errorf("operator %s is %s: %w", op.ID, op.Status, ErrInvalidState)
		}
		if regionID != nil && op.RegionID != nil && *op.RegionID != *regionID {
			return fmt.Errorf("operator %s belongs to region %s, drone to %s: %w", op.ID, *op.RegionID, *regionID, ErrInvalidState)
		}
	}
	return nil
}

// Update applies the changed fields and re-validates the referential
// invariants for the effective values.
func (r *DroneRepository) Update(ctx context.Context, id string, p UpdateDroneParams) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var out *models.Drone
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := getDrone(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Model != nil {
			cur.Model = *p.Model
		}
		if p.Status != nil {
			cur.Status = *p.Status
		}
		if p.ClearRegionID {
			cur.RegionID = nil
		} else if p.RegionID != nil {
			cur.RegionID = p.RegionID
		}
		if p.ClearOperatorID {
			cur.OperatorID = nil
		} else if p.OperatorID != nil {
			cur.OperatorID = p.OperatorID
		}
		if err := validateDroneRefs(ctx, tx, cur.RegionID, cur.OperatorID); err != nil {
			return err
		}
		cur.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `UPDATE drones SET model = ?, status = ?, region_id = ?, operator_id = ?, updated_at = ? WHERE id = ?`,
			string(cur.Model), string(cur.Status), nullStr(cur.RegionID), nullStr(cur.OperatorID), cur.UpdatedAt, id)
		out = cur
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DroneRepository) GetByID(ctx context.Context, id string) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return getDrone(ctx, r.db, id)
}

func getDrone(ctx context.Context, q queryer, id string) (*models.Drone, error) {
	d, err := scanDrone(q.QueryRowContext(ctx, `SELECT `+droneCols+` FROM drones WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("drone %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (r *DroneRepository) List(ctx context.Context, p ListDronesParams) ([]models.Drone, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if p.Model != nil {
		where = append(where, "model = ?")
		args = append(args, string(*p.Model))
	}
	if p.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.RegionID != nil {
		where = append(where, "region_id = ?")
		args = append(args, *p.RegionID)
	}
	if s := p.Scope; s != nil {
		switch s.Role {
		case models.RoleRegionCommander:
			if s.RegionID != nil {
				where = append(where, "region_id = ?")
				args = append(args, *s.RegionID)
			}
		case models.RoleOperator:
			where = append(where, "operator_id = ?")
			args = append(args, s.UserID)
		}
	}
	query := `SELECT ` + droneCols + ` FROM drones`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, p.Limit, p.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DroneRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drones`).Scan(&n)
	return n, err
}

// Upsert writes the full drone row keyed by id, for the mirror restore
// path.
func (r *DroneRepository) Upsert(ctx context.Context, d *models.Drone) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO drones (id, model, status, region_id, operator_id, created_at, updated_at) VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET model = excluded.model, status = excluded.status, region_id = excluded.region_id, operator_id = excluded.operator_id, updated_at = excluded.updated_at`,
		d.ID, string(d.Model), string(d.Status), nullStr(d.RegionID), nullStr(d.OperatorID), d.CreatedAt, d.UpdatedAt)
	return err
}
