package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// IdentityCleaner receives the external identity ids of deleted users for
// best-effort removal from the identity provider. Implementations must
// not block: cleanup runs strictly after the local transaction commits
// and its outcome never affects the cascade.
type IdentityCleaner interface {
	Enqueue(externalID string)
}

// CascadeEngine executes multi-entity deletions as single transactions so
// the foreign-key graph never holds a dangling reference, even
// transiently. It never talks to the mirror or the identity provider
// inside a transaction.
type CascadeEngine struct {
	db      *sql.DB
	cleaner IdentityCleaner
	logger  *zap.Logger
}

func NewCascadeEngine(db *sql.DB, cleaner IdentityCleaner, logger *zap.Logger) *CascadeEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CascadeEngine{db: db, cleaner: cleaner, logger: logger}
}

// RegionCascadeResult reports the effects of a region deletion.
type RegionCascadeResult struct {
	DeletedUsers     int
	UnassignedDrones int
}

// UserCascadeResult reports the effects of a user deletion.
type UserCascadeResult struct {
	RemovedAssignments int
	ReleasedDrones     int
}

// DeleteRegion removes a region and everything that depends on it, in one
// transaction: the region's users are deleted (their assignments removed
// and any drone pointing at them released first), the region's drones are
// detached but preserved, then the region row goes. Identity-provider
// records of the deleted users are scheduled for cleanup after commit.
func (e *CascadeEngine) DeleteRegion(ctx context.Context, id string) (RegionCascadeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var res RegionCascadeResult
	var externalIDs []string
	err := inTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := getRegion(ctx, tx, id); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `SELECT id, external_identity_id FROM users WHERE region_id = ?`, id)
		if err != nil {
			return err
		}
		var userIDs []string
		for rows.Next() {
			var uid string
			var ext sql.NullString
			if err := rows.Scan(&uid, &ext); err != nil {
				rows.Close()
				return err
			}
			userIDs = append(userIDs, uid)
			if ext.Valid {
				externalIDs = append(externalIDs, ext.String)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, uid := range userIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE user_id = ?`, uid); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE drones SET operator_id = NULL, updated_at = ? WHERE operator_id = ?`, time.Now().UTC(), uid); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, uid); err != nil {
				return err
			}
		}
		res.DeletedUsers = len(userIDs)

		// Drones are never deleted by a region cascade, only detached.
		dres, err := tx.ExecContext(ctx, `UPDATE drones SET region_id = NULL, operator_id = NULL, updated_at = ? WHERE region_id = ?`, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		n, err := dres.RowsAffected()
		if err != nil {
			return err
		}
		res.UnassignedDrones = int(n)

		_, err = tx.ExecContext(ctx, `DELETE FROM regions WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return RegionCascadeResult{}, err
	}

	e.scheduleIdentityCleanup(externalIDs)
	e.logger.Info("region cascade complete",
		zap.String("region_id", id),
		zap.Int("deleted_users", res.DeletedUsers),
		zap.Int("unassigned_drones", res.UnassignedDrones),
	)
	return res, nil
}

// DeleteUser removes a user, its assignments and any primary-operator
// reference to it, in one transaction. The caller layer is responsible
// for refusing self-deletion.
func (e *CascadeEngine) DeleteUser(ctx context.Context, id string) (UserCascadeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var res UserCascadeResult
	var externalIDs []string
	err := inTx(ctx, e.db, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if u.ExternalIdentityID != nil {
			externalIDs = append(externalIDs, *u.ExternalIdentityID)
		}

		ares, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE user_id = ?`, id)
		if err != nil {
			return err
		}
		an, err := ares.RowsAffected()
		if err != nil {
			return err
		}
		res.RemovedAssignments = int(an)

		dres, err := tx.ExecContext(ctx, `UPDATE drones SET operator_id = NULL, updated_at = ? WHERE operator_id = ?`, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		dn, err := dres.RowsAffected()
		if err != nil {
			return err
		}
		res.ReleasedDrones = int(dn)

		_, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return UserCascadeResult{}, err
	}

	e.scheduleIdentityCleanup(externalIDs)
	e.logger.Info("user cascade complete",
		zap.String("user_id", id),
		zap.Int("removed_assignments", res.RemovedAssignments),
		zap.Int("released_drones", res.ReleasedDrones),
	)
	return res, nil
}

// DeleteDrone removes a drone and its assignments in one transaction.
func (e *CascadeEngine) DeleteDrone(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := inTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := getDrone(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE drone_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM drones WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return err
	}
	e.logger.Info("drone cascade complete", zap.String("drone_id", id))
	return nil
}

func (e *CascadeEngine) scheduleIdentityCleanup(externalIDs []string) {
	if e.cleaner == nil {
		return
	}
	for _, ext := range externalIDs {
		e.cleaner.Enqueue(ext)
	}
}
