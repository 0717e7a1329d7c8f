package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetadmin/models"
)

type RegionRepository struct {
	db *sql.DB
}

func NewRegionRepository(db *sql.DB) *RegionRepository {
	return &RegionRepository{db: db}
}

var _ RegionRepositoryI = (*RegionRepository)(nil)

// CreateRegionParams carries the validated payload for a new region.
type CreateRegionParams struct {
	Name          string
	Area          string
	CommanderName *string
	Status        models.RegionStatus // defaults to ACTIVE
}

// UpdateRegionParams carries the changed fields of a region update. Nil
// pointers leave the field untouched; ClearCommanderName sets the
// denormalized commander display field back to null.
type UpdateRegionParams struct {
	Name               *string
	Area               *string
	CommanderName      *string
	ClearCommanderName bool
	Status             *models.RegionStatus
}

// ListRegionsParams filters and paginates region listings.
type ListRegionsParams struct {
	Status *models.RegionStatus
	Limit  int
	Offset int
	Scope  *Scope
}

const regionCols = `id, name, area, commander_name, status, created_at, updated_at`

func scanRegion(row interface{ Scan(...any) error }) (*models.Region, error) {
	var r models.Region
	var commander sql.NullString
	var status string
	if err := row.Scan(&r.ID, &r.Name, &r.Area, &commander, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if commander.Valid {
		v := commander.String
		r.CommanderName = &v
	}
	r.Status = models.RegionStatus(status)
	return &r, nil
}

// Create inserts a new region after validating name uniqueness.
func (r *RegionRepository) Create(ctx context.Context, p CreateRegionParams) (*models.Region, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("region name is required: %w", ErrInvalidState)
	}
	if p.Status == "" {
		p.Status = models.RegionStatusActive
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now().UTC()
	reg := &models.Region{
		ID:            uuid.NewString(),
		Name:          p.Name,
		Area:          p.Area,
		CommanderName: p.CommanderName,
		Status:        p.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM regions WHERE name = ?`, p.Name).Scan(&one)
		if err == nil {
			return fmt.Errorf("region name %q: %w", p.Name, ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO regions (id, name, area, commander_name, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
			reg.ID, reg.Name, reg.Area, nullStr(reg.CommanderName), string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Update applies the changed fields and re-validates name uniqueness.
func (r *RegionRepository) Update(ctx context.Context, id string, p UpdateRegionParams) (*models.Region, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var out *models.Region
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := getRegion(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Name != nil && *p.Name != cur.Name {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM regions WHERE name = ? AND id != ?`, *p.Name, id).Scan(&one)
			if err == nil {
				return fmt.Errorf("region name %q: %w", *p.Name, ErrAlreadyExists)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			cur.Name = *p.Name
		}
		if p.Area != nil {
			cur.Area = *p.Area
		}
		if p.ClearCommanderName {
			cur.CommanderName = nil
		} else if p.CommanderName != nil {
			cur.CommanderName = p.CommanderName
		}
		if p.Status != nil {
			cur.Status = *p.Status
		}
		cur.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `UPDATE regions SET name = ?, area = ?, commander_name = ?, status = ?, updated_at = ? WHERE id = ?`,
			cur.Name, cur.Area, nullStr(cur.CommanderName), string(cur.Status), cur.UpdatedAt, id)
		out = cur
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RegionRepository) GetByID(ctx context.Context, id string) (*models.Region, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return getRegion(ctx, r.db, id)
}

func getRegion(ctx context.Context, q queryer, id string) (*models.Region, error) {
	reg, err := scanRegion(q.QueryRowContext(ctx, `SELECT `+regionCols+` FROM regions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("region %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return reg, nil
}

func (r *RegionRepository) List(ctx context.Context, p ListRegionsParams) ([]models.Region, error) {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if p.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*p.Status))
	}
	if s := p.Scope; s != nil && s.Role != models.RoleFleetAdmin && s.RegionID != nil {
		where = append(where, "id = ?")
		args = append(args, *s.RegionID)
	}
	query := `SELECT ` + regionCols + ` FROM regions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name LIMIT ? OFFSET ?"
	args = append(args, p.Limit, p.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Region
	for rows.Next() {
		reg, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

func (r *RegionRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM regions`).Scan(&n)
	return n, err
}

// Upsert writes the full region row keyed by id. Used by the mirror
// restore path and bootstrap seeding, where ids must stay stable and
// cross-entity validation has already happened on the way in.
func (r *RegionRepository) Upsert(ctx context.Context, reg *models.Region) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO regions (id, name, area, commander_name, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, area = excluded.area, commander_name = excluded.commander_name, status = excluded.status, updated_at = excluded.updated_at`,
		reg.ID, reg.Name, reg.Area, nullStr(reg.CommanderName), string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
	return err
}

// nullStr converts an optional string to a driver-friendly value.
func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
