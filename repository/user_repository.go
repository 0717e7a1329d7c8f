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

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ UserRepositoryI = (*UserRepository)(nil)

// CreateUserParams carries the validated payload for a new user account.
type CreateUserParams struct {
	Username           string
	Email              string
	FullName           string
	Role               models.Role // defaults to OPERATOR
	RegionID           *string
	Status             models.UserStatus // defaults to ACTIVE
	ExternalIdentityID *string
}

// UpdateUserParams carries the changed fields of a user update. Nil
// pointers leave the field untouched; ClearRegionID detaches the user
// from its region.
type UpdateUserParams struct {
	FullName           *string
	Role               *models.Role
	RegionID           *string
	ClearRegionID      bool
	Status             *models.UserStatus
	ExternalIdentityID *string
}

// ListUsersParams filters and paginates user listings.
type ListUsersParams struct {
	Role     *models.Role
	Status   *models.UserStatus
	RegionID *string
	Limit    int
	Offset   int
	Scope    *Scope
}

const userCols = `id, username, email, full_name, role, region_id, status, external_identity_id, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var role, status string
	var regionID, externalID sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &role, &regionID, &status, &externalID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.Status = models.UserStatus(status)
	if regionID.Valid {
		v := regionID.String
		u.RegionID = &v
	}
	if externalID.Valid {
		v := externalID.String
		u.ExternalIdentityID = &v
	}
	return &u, nil
}

// Create inserts a new user after validating uniqueness and the
// role/region invariants.
func (r *UserRepository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	if strings.TrimSpace(p.Username) == "" || strings.TrimSpace(p.Email) == "" {
		return nil, fmt.Errorf("username and email are required: %w", ErrInvalidState)
	}
	if p.Role == "" {
		p.Role = models.RoleOperator
	}
	if p.Status == "" {
		p.Status = models.UserStatusActive
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now().UTC()
	u := &models.User{
		ID:                 uuid.NewString(),
		Username:           p.Username,
		Email:              p.Email,
		FullName:           p.FullName,
		Role:               p.Role,
		RegionID:           p.RegionID,
		Status:             p.Status,
		ExternalIdentityID: p.ExternalIdentityID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := validateUserRegion(ctx, tx, u.Role, u.RegionID); err != nil {
			return err
		}
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, u.Username).Scan(&one)
		if err == nil {
			return fmt.Errorf("username %q: %w", u.Username, ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, u.Email).Scan(&one)
		if err == nil {
			return fmt.Errorf("email %q: %w", u.Email, ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO users (id, username, email, full_name, role, region_id, status, external_identity_id, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			u.ID, u.Username, u.Email, u.FullName, string(u.Role), nullStr(u.RegionID), string(u.Status), nullStr(u.ExternalIdentityID), u.CreatedAt, u.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// validateUserRegion enforces the role/region invariants: a commander
// must carry a region, and any referenced region must exist and be ACTIVE.
func validateUserRegion(ctx context.Context, q queryer, role models.Role, regionID *string) error {
	if role == models.RoleRegionCommander && regionID == nil {
		return fmt.Errorf("region commander requires a region: %w", ErrInvalidState)
	}
	if regionID == nil {
		return nil
	}
	reg, err := getRegion(ctx, q, *regionID)
	if err != nil {
		return err
	}
	if reg.Status != models.RegionStatusActive {
		return fmt.Errorf("region %s is %s: %w", reg.ID, reg.Status, ErrInvalidState)
	}
	return nil
}

// Update applies the changed fields and re-validates the role/region
// invariants for the effective values.
func (r *UserRepository) Update(ctx context.Context, id string, p UpdateUserParams) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var out *models.User
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := getUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.FullName != nil {
			cur.FullName = *p.FullName
		}
		if p.Role != nil {
			cur.Role = *p.Role
		}
		if p.ClearRegionID {
			cur.RegionID = nil
		} else if p.RegionID != nil {
			cur.RegionID = p.RegionID
		}
		if p.Status != nil {
			cur.Status = *p.Status
		}
		if p.ExternalIdentityID != nil {
			cur.ExternalIdentityID = p.ExternalIdentityID
		}
		if err := validateUserRegion(ctx, tx, cur.Role, cur.RegionID); err != nil {
			return err
		}
		cur.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `UPDATE users SET full_name = ?, role = ?, region_id = ?, status = ?, external_identity_id = ?, updated_at = ? WHERE id = ?`,
			cur.FullName, string(cur.Role), nullStr(cur.RegionID), string(cur.Status), nullStr(cur.ExternalIdentityID), cur.UpdatedAt, id)
		out = cur
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return getUser(ctx, r.db, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func getUser(ctx context.Context, q queryer, id string) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, p ListUsersParams) ([]models.User, error) {
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
	if p.Role != nil {
		where = append(where, "role = ?")
		args = append(args, string(*p.Role))
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
			where = append(where, "id = ?")
			args = append(args, s.UserID)
		}
	}
	query := `SELECT ` + userCols + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY username LIMIT ? OFFSET ?"
	args = append(args, p.Limit, p.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Upsert writes the full user row keyed by id, for the mirror restore
// path. Uniqueness constraints still hold; a conflicting username or
// email surfaces as a driver error the syncer logs and skips.
func (r *UserRepository) Upsert(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, email, full_name, role, region_id, status, external_identity_id, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, email = excluded.email, full_name = excluded.full_name, role = excluded.role, region_id = excluded.region_id, status = excluded.status, external_identity_id = excluded.external_identity_id, updated_at = excluded.updated_at`,
		u.ID, u.Username, u.Email, u.FullName, string(u.Role), nullStr(u.RegionID), string(u.Status), nullStr(u.ExternalIdentityID), u.CreatedAt, u.UpdatedAt)
	return err
}
