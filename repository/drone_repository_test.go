package repository

import (
	"context"
	"errors"
	"testing"

	"fleetadmin/internal/testutil"
	"fleetadmin/models"
)

func TestDroneRepository_CRUD(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "dronerepo")
	regions := NewRegionRepository(d)
	users := NewUserRepository(d)
	repo := NewDroneRepository(d)
	ctx := context.Background()

	reg := mustCreateRegion(t, regions, "Alpha")
	op, err := users.Create(ctx, CreateUserParams{Username: "op", Email: "op@x.com", RegionID: &reg.ID})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}

	dr, err := repo.Create(ctx, CreateDroneParams{
		ID:         "HAWK-007",
		Model:      models.ModelHawkS,
		RegionID:   &reg.ID,
		OperatorID: &op.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dr.Status != models.DroneStatusStandby {
		t.Fatalf("default status: %+v", dr)
	}

	// Caller-assigned id must be unique.
	if _, err := repo.Create(ctx, CreateDroneParams{ID: "HAWK-007"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := repo.GetByID(ctx, "HAWK-007")
	if err != nil || got.OperatorID == nil || *got.OperatorID != op.ID {
		t.Fatalf("get: %v %+v", err, got)
	}

	active := models.DroneStatusActive
	upd, err := repo.Update(ctx, dr.ID, UpdateDroneParams{Status: &active})
	if err != nil || upd.Status != active {
		t.Fatalf("update status: %v %+v", err, upd)
	}

	upd, err = repo.Update(ctx, dr.ID, UpdateDroneParams{ClearRegionID: true, ClearOperatorID: true})
	if err != nil || upd.RegionID != nil || upd.OperatorID != nil {
		t.Fatalf("clear refs: %v %+v", err, upd)
	}
}

func TestDroneRepository_RefInvariants(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "droneinv")
	regions := NewRegionRepository(d)
	users := NewUserRepository(d)
	repo := NewDroneRepository(d)
	ctx := context.Background()

	alpha := mustCreateRegion(t, regions, "Alpha")
	bravo := mustCreateRegion(t, regions, "Bravo")

	opBravo, err := users.Create(ctx, CreateUserParams{Username: "ob", Email: "ob@x.com", RegionID: &bravo.ID})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}

	// Region mismatch between drone and operator.
	_, err = repo.Create(ctx, CreateDroneParams{ID: "D-1", RegionID: &alpha.ID, OperatorID: &opBravo.ID})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for region mismatch, got %v", err)
	}

	// Missing region.
	missing := "nope"
	if _, err := repo.Create(ctx, CreateDroneParams{ID: "D-1", RegionID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing region, got %v", err)
	}

	// Inactive operator.
	opIdle, err := users.Create(ctx, CreateUserParams{Username: "oi", Email: "oi@x.com", Status: models.UserStatusInactive})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	if _, err := repo.Create(ctx, CreateDroneParams{ID: "D-1", OperatorID: &opIdle.ID}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for inactive operator, got %v", err)
	}

	// Operator without a region may serve a drone in any region.
	opFree, err := users.Create(ctx, CreateUserParams{Username: "of", Email: "of@x.com"})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	if _, err := repo.Create(ctx, CreateDroneParams{ID: "D-1", RegionID: &alpha.ID, OperatorID: &opFree.ID}); err != nil {
		t.Fatalf("regionless operator: %v", err)
	}

	// Update re-validates: moving the drone into bravo with an alpha-bound
	// operator must fail.
	opAlpha, err := users.Create(ctx, CreateUserParams{Username: "oa", Email: "oa@x.com", RegionID: &alpha.ID})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	if _, err := repo.Update(ctx, "D-1", UpdateDroneParams{OperatorID: &opAlpha.ID}); err != nil {
		t.Fatalf("assign alpha operator: %v", err)
	}
	if _, err := repo.Update(ctx, "D-1", UpdateDroneParams{RegionID: &bravo.ID}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on move, got %v", err)
	}
}

func TestDroneRepository_ListScoped(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "dronescope")
	regions := NewRegionRepository(d)
	users := NewUserRepository(d)
	repo := NewDroneRepository(d)
	ctx := context.Background()

	alpha := mustCreateRegion(t, regions, "Alpha")
	bravo := mustCreateRegion(t, regions, "Bravo")
	op, _ := users.Create(ctx, CreateUserParams{Username: "op", Email: "op@x.com", RegionID: &alpha.ID})

	if _, err := repo.Create(ctx, CreateDroneParams{ID: "A-1", RegionID: &alpha.ID, OperatorID: &op.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, CreateDroneParams{ID: "B-1", RegionID: &bravo.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}

	scoped, err := repo.List(ctx, ListDronesParams{Scope: &Scope{Role: models.RoleRegionCommander, RegionID: &alpha.ID}})
	if err != nil || len(scoped) != 1 || scoped[0].ID != "A-1" {
		t.Fatalf("commander scope: %v %+v", err, scoped)
	}

	scoped, err = repo.List(ctx, ListDronesParams{Scope: &Scope{Role: models.RoleOperator, UserID: op.ID}})
	if err != nil || len(scoped) != 1 || scoped[0].ID != "A-1" {
		t.Fatalf("operator scope: %v %+v", err, scoped)
	}

	model := models.ModelHawkS
	byModel, err := repo.List(ctx, ListDronesParams{Model: &model})
	if err != nil || len(byModel) != 2 {
		t.Fatalf("model filter: %v len=%d", err, len(byModel))
	}
}
