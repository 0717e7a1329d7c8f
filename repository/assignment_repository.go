package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetadmin/models"
)

type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

var _ AssignmentRepositoryI = (*AssignmentRepository)(nil)

const assignmentCols = `id, user_id, drone_id, assigned_at`

func scanAssignment(row interface{ Scan(...any) error }) (*models.Assignment, error) {
	var a models.Assignment
	if err := row.Scan(&a.ID, &a.UserID, &a.DroneID, &a.AssignedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Assign links a user to a drone. Assigning an already-linked pair is a
// no-op: the (user_id, drone_id) unique index plus ON CONFLICT DO NOTHING
// make the operation idempotent.
func (r *AssignmentRepository) Assign(ctx context.Context, userID, droneID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := getDrone(ctx, tx, droneID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO assignments (id, user_id, drone_id, assigned_at) VALUES (?,?,?,?)
			ON CONFLICT(user_id, drone_id) DO NOTHING`,
			uuid.NewString(), userID, droneID, time.Now().UTC())
		return err
	})
}

// Unassign removes the link between a user and a drone.
func (r *AssignmentRepository) Unassign(ctx context.Context, userID, droneID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE user_id = ? AND drone_id = ?`, userID, droneID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("assignment %s/%s: %w", userID, droneID, ErrNotFound)
	}
	return nil
}

func (r *AssignmentRepository) ListByUser(ctx context.Context, userID string) ([]models.Assignment, error) {
	return r.listWhere(ctx, `user_id = ?`, userID)
}

func (r *AssignmentRepository) ListByDrone(ctx context.Context, droneID string) ([]models.Assignment, error) {
	return r.listWhere(ctx, `drone_id = ?`, droneID)
}

func (r *AssignmentRepository) listWhere(ctx context.Context, cond string, arg any) ([]models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE `+cond+` ORDER BY assigned_at`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *AssignmentRepository) List(ctx context.Context, limit, offset int) ([]models.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+assignmentCols+` FROM assignments ORDER BY assigned_at LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func collectAssignments(rows *sql.Rows) ([]models.Assignment, error) {
	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments`).Scan(&n)
	return n, err
}

// Upsert writes the full assignment row for the mirror restore path. The
// composite unique index still applies; a duplicated (user, drone) pair
// under a different id is left as-is.
func (r *AssignmentRepository) Upsert(ctx context.Context, a *models.Assignment) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO assignments (id, user_id, drone_id, assigned_at) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, drone_id = excluded.drone_id, assigned_at = excluded.assigned_at
		ON CONFLICT(user_id, drone_id) DO NOTHING`,
		a.ID, a.UserID, a.DroneID, a.AssignedAt)
	return err
}
