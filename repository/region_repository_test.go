package repository

import (
	"context"
	"errors"
	"testing"

	"fleetadmin/internal/testutil"
	"fleetadmin/models"
)

func TestRegionRepository_CRUD(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "regionrepo")
	repo := NewRegionRepository(d)
	ctx := context.Background()

	// Create
	reg, err := repo.Create(ctx, CreateRegionParams{Name: "Northern Sector", Area: "North perimeter"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if reg.ID == "" || reg.Status != models.RegionStatusActive {
		t.Fatalf("unexpected created region: %+v", reg)
	}

	// Duplicate name
	if _, err := repo.Create(ctx, CreateRegionParams{Name: "Northern Sector"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// GetByID
	got, err := repo.GetByID(ctx, reg.ID)
	if err != nil || got.Name != "Northern Sector" {
		t.Fatalf("get by id: %v %+v", err, got)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Update
	commander := "Col. Reyes"
	inactive := models.RegionStatusInactive
	upd, err := repo.Update(ctx, reg.ID, UpdateRegionParams{CommanderName: &commander, Status: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.CommanderName == nil || *upd.CommanderName != commander || upd.Status != inactive {
		t.Fatalf("update not applied: %+v", upd)
	}

	// ClearCommanderName
	upd, err = repo.Update(ctx, reg.ID, UpdateRegionParams{ClearCommanderName: true})
	if err != nil || upd.CommanderName != nil {
		t.Fatalf("clear commander: %v %+v", err, upd)
	}

	// List + Count
	list, err := repo.List(ctx, ListRegionsParams{})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count: %v n=%d", err, n)
	}
}

func TestRegionRepository_ListScoped(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "regionscope")
	repo := NewRegionRepository(d)
	ctx := context.Background()

	r1, err := repo.Create(ctx, CreateRegionParams{Name: "Alpha"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, CreateRegionParams{Name: "Bravo"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	scoped, err := repo.List(ctx, ListRegionsParams{Scope: &Scope{Role: models.RoleRegionCommander, RegionID: &r1.ID}})
	if err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != r1.ID {
		t.Fatalf("scope leak: %+v", scoped)
	}

	all, err := repo.List(ctx, ListRegionsParams{Scope: Unrestricted()})
	if err != nil || len(all) != 2 {
		t.Fatalf("unrestricted list: %v len=%d", err, len(all))
	}
}

func TestRegionRepository_Upsert(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "regionupsert")
	repo := NewRegionRepository(d)
	ctx := context.Background()

	reg := &models.Region{ID: "region-fixed-id", Name: "Restored", Status: models.RegionStatusActive}
	if err := repo.Upsert(ctx, reg); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}
	reg.Name = "Restored v2"
	if err := repo.Upsert(ctx, reg); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	got, err := repo.GetByID(ctx, "region-fixed-id")
	if err != nil || got.Name != "Restored v2" {
		t.Fatalf("upsert result: %v %+v", err, got)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("upsert duplicated row, count=%d", n)
	}
}
