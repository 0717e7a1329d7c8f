package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"fleetadmin/internal/config"
	"fleetadmin/internal/db"
	"fleetadmin/internal/logging"
	"fleetadmin/internal/mirror"
	"fleetadmin/internal/reconcile"
	"fleetadmin/repository"
)

func main() {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("close db", zap.Error(err))
		}
	}()

	regions := repository.NewRegionRepository(d)
	users := repository.NewUserRepository(d)
	drones := repository.NewDroneRepository(d)
	assignments := repository.NewAssignmentRepository(d)

	var syncer *mirror.Syncer
	if cfg.Mirror.Enabled() {
		client := mirror.NewClient(cfg.Mirror.URL, cfg.Mirror.APIKey, cfg.Mirror.JWTSecret, logger)
		syncer = mirror.NewSyncer(client, regions, users, drones, assignments, logger)
	}

	ctx := context.Background()
	if cfg.ReconcileTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ReconcileTimeoutSeconds)*time.Second)
		defer cancel()
	}

	rec := reconcile.NewReconciler(regions, users, drones, assignments, syncer, logger)
	res, err := rec.Initialize(ctx)
	if err != nil {
		logger.Fatal("reconciliation failed", zap.Error(err))
	}
	logger.Info("reconciliation complete",
		zap.String("path", string(res.Path)),
		zap.Bool("degraded", res.Degraded),
		zap.Int("regions", res.Counts.Regions),
		zap.Int("users", res.Counts.Users),
		zap.Int("drones", res.Counts.Drones),
		zap.Int("assignments", res.Counts.Assignments),
	)
}
