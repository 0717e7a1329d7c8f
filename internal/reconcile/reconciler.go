// Package reconcile decides, once at process start, which store is
// authoritative and brings the other one in line. It is the only
// component with global authority over "which store wins".
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"fleetadmin/internal/mirror"
	"fleetadmin/models"
	"fleetadmin/repository"
)

// Path names the branch the startup run took.
type Path string

const (
	PathBackup    Path = "BACKUP"
	PathRestore   Path = "RESTORE"
	PathBootstrap Path = "BOOTSTRAP"
)

// Counts is the local table population after reconciliation.
type Counts struct {
	Regions     int
	Users       int
	Drones      int
	Assignments int
}

// Result reports how startup reconciliation ended. Degraded is set when a
// cancelled or expired context forced local-only operation before the
// mirror could be consulted.
type Result struct {
	Path     Path
	Counts   Counts
	Degraded bool
}

// Reconciler runs the startup policy. It runs once, to completion, before
// the API surface accepts traffic; a second Initialize call is an error.
type Reconciler struct {
	regions     repository.RegionRepositoryI
	users       repository.UserRepositoryI
	drones      repository.DroneRepositoryI
	assignments repository.AssignmentRepositoryI
	syncer      *mirror.Syncer // nil when no mirror is configured
	logger      *zap.Logger
	ran         atomic.Bool
}

func NewReconciler(
	regions repository.RegionRepositoryI,
	users repository.UserRepositoryI,
	drones repository.DroneRepositoryI,
	assignments repository.AssignmentRepositoryI,
	syncer *mirror.Syncer,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		regions:     regions,
		users:       users,
		drones:      drones,
		assignments: assignments,
		syncer:      syncer,
		logger:      logger,
	}
}

// Initialize runs the reconciliation state machine:
//
//	local store populated  -> BACKUP: push everything to the mirror,
//	                          local data stays authoritative.
//	local store empty      -> RESTORE: pull regions, users, drones,
//	                          assignments in that order; real data from
//	                          the mirror always beats synthetic data.
//	mirror empty too       -> BOOTSTRAP: seed a minimal dataset locally,
//	                          then mirror it.
//
// Mirror trouble is never fatal: each tier degrades to the next so the
// process comes up in a usable, if minimal, state. Only a local store
// failure returns an error.
func (r *Reconciler) Initialize(ctx context.Context) (Result, error) {
	if !r.ran.CompareAndSwap(false, true) {
		return Result{}, errors.New("reconciliation already ran")
	}

	counts, err := r.localCounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count local tables: %w", err)
	}

	if counts.Regions+counts.Users+counts.Drones+counts.Assignments > 0 {
		return r.backup(ctx, counts)
	}
	return r.restoreOrBootstrap(ctx)
}

func (r *Reconciler) backup(ctx context.Context, counts Counts) (Result, error) {
	res := Result{Path: PathBackup, Counts: counts}
	if r.syncer == nil {
		r.logger.Info("local store populated, no mirror configured")
		return res, nil
	}
	r.logger.Info("local store populated, backing up to mirror",
		zap.Int("regions", counts.Regions),
		zap.Int("users", counts.Users),
		zap.Int("drones", counts.Drones),
		zap.Int("assignments", counts.Assignments),
	)
	stats, err := r.syncer.PushAll(ctx)
	if err != nil {
		// Local data is authoritative with or without a mirror copy.
		res.Degraded = contextDone(ctx, err)
		r.logger.Warn("backup push incomplete", zap.Error(err),
			zap.Int("pushed", stats.Pushed), zap.Int("failed", stats.Failed))
		return res, nil
	}
	r.logger.Info("backup complete", zap.Int("pushed", stats.Pushed), zap.Int("failed", stats.Failed))
	return res, nil
}

func (r *Reconciler) restoreOrBootstrap(ctx context.Context) (Result, error) {
	degraded := false
	if r.syncer != nil {
		r.logger.Info("local store empty, attempting restore from mirror")
		stats, err := r.syncer.PullAll(ctx)
		if err != nil {
			degraded = contextDone(ctx, err)
			r.logger.Warn("restore pull failed", zap.Error(err),
				zap.Int("restored", stats.Restored), zap.Int("skipped", stats.Skipped))
		}
		// Local-only fallback must not die with the deadline that killed
		// the mirror call.
		if degraded {
			ctx = context.Background()
		}
		counts, cerr := r.localCounts(ctx)
		if cerr != nil {
			return Result{}, fmt.Errorf("count local tables after restore: %w", cerr)
		}
		// An empty local store is ambiguous between first run and a
		// redeploy onto a fresh volume; any real region or user from the
		// mirror settles it in favor of restore.
		if counts.Regions > 0 || counts.Users > 0 {
			r.logger.Info("restore complete",
				zap.Int("restored", stats.Restored), zap.Int("skipped", stats.Skipped))
			return Result{Path: PathRestore, Counts: counts, Degraded: degraded}, nil
		}
	}
	return r.bootstrap(ctx, degraded)
}

func (r *Reconciler) bootstrap(ctx context.Context, degraded bool) (Result, error) {
	if degraded && ctx.Err() != nil {
		ctx = context.Background()
	}
	r.logger.Info("no data in either store, bootstrapping seed dataset")
	if err := r.seed(ctx); err != nil {
		r.logger.Warn("seed failed, falling back to minimal seed", zap.Error(err))
		if err := r.seedMinimal(ctx); err != nil {
			return Result{}, fmt.Errorf("minimal seed: %w", err)
		}
	}
	// In degraded mode the mirror already proved unreachable; don't stall
	// startup pushing the seed at it.
	if r.syncer != nil && !degraded {
		if stats, err := r.syncer.PushAll(ctx); err != nil {
			degraded = contextDone(ctx, err)
			r.logger.Warn("seed push to mirror incomplete", zap.Error(err),
				zap.Int("pushed", stats.Pushed), zap.Int("failed", stats.Failed))
		}
	}
	counts, err := r.localCounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count local tables after bootstrap: %w", err)
	}
	return Result{Path: PathBootstrap, Counts: counts, Degraded: degraded}, nil
}

// seed creates the standard bootstrap dataset: two regions and one drone
// of each model, split across them.
func (r *Reconciler) seed(ctx context.Context) error {
	north, err := r.regions.Create(ctx, repository.CreateRegionParams{
		Name: "Northern Sector",
		Area: "North operational perimeter",
	})
	if err != nil {
		return err
	}
	south, err := r.regions.Create(ctx, repository.CreateRegionParams{
		Name: "Southern Sector",
		Area: "South operational perimeter",
	})
	if err != nil {
		return err
	}
	seedDrones := []repository.CreateDroneParams{
		{ID: "HAWK-001", Model: models.ModelHawkS, RegionID: &north.ID},
		{ID: "FALCON-001", Model: models.ModelFalconX, RegionID: &north.ID},
		{ID: "CONDOR-001", Model: models.ModelCondorHL, RegionID: &south.ID},
		{ID: "RAVEN-001", Model: models.ModelRavenR, RegionID: &south.ID},
	}
	for _, p := range seedDrones {
		if _, err := r.drones.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// seedMinimal is the last-resort tier: one region, one drone.
func (r *Reconciler) seedMinimal(ctx context.Context) error {
	reg, err := r.regions.Create(ctx, repository.CreateRegionParams{Name: "Default Sector"})
	if err != nil {
		return err
	}
	_, err = r.drones.Create(ctx, repository.CreateDroneParams{ID: "HAWK-001", Model: models.ModelHawkS, RegionID: &reg.ID})
	return err
}

func (r *Reconciler) localCounts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	if c.Regions, err = r.regions.Count(ctx); err != nil {
		return c, err
	}
	if c.Users, err = r.users.Count(ctx); err != nil {
		return c, err
	}
	if c.Drones, err = r.drones.Count(ctx); err != nil {
		return c, err
	}
	if c.Assignments, err = r.assignments.Count(ctx); err != nil {
		return c, err
	}
	return c, nil
}

func contextDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
