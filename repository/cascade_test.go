package repository

import (
	"context"
	"errors"
	"testing"

	"fleetadmin/internal/testutil"
	"fleetadmin/models"
)

type recordingCleaner struct {
	ids []string
}

func (r *recordingCleaner) Enqueue(externalID string) {
	r.ids = append(r.ids, externalID)
}

// fixture builds: region R1 (ACTIVE); commander U1 in R1 with an external
// identity; drone D1 in R1 operated by U1; U1 assigned to D1.
func cascadeFixture(t *testing.T, name string) (ctx context.Context, eng *CascadeEngine, cleaner *recordingCleaner, repos struct {
	regions     *RegionRepository
	users       *UserRepository
	drones      *DroneRepository
	assignments *AssignmentRepository
}, regionID, userID string) {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	repos.regions = NewRegionRepository(d)
	repos.users = NewUserRepository(d)
	repos.drones = NewDroneRepository(d)
	repos.assignments = NewAssignmentRepository(d)
	cleaner = &recordingCleaner{}
	eng = NewCascadeEngine(d, cleaner, nil)
	ctx = context.Background()

	reg, err := repos.regions.Create(ctx, CreateRegionParams{Name: "R1"})
	if err != nil {
		t.Fatalf("create region: %v", err)
	}
	ext := "auth-u1"
	u, err := repos.users.Create(ctx, CreateUserParams{
		Username:           "u1",
		Email:              "u1@x.com",
		Role:               models.RoleRegionCommander,
		RegionID:           &reg.ID,
		ExternalIdentityID: &ext,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := repos.drones.Create(ctx, CreateDroneParams{ID: "D1", RegionID: &reg.ID, OperatorID: &u.ID}); err != nil {
		t.Fatalf("create drone: %v", err)
	}
	if err := repos.assignments.Assign(ctx, u.ID, "D1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	return ctx, eng, cleaner, repos, reg.ID, u.ID
}

func TestCascadeEngine_DeleteRegion(t *testing.T) {
	ctx, eng, cleaner, repos, regionID, _ := cascadeFixture(t, "cascregion")

	res, err := eng.DeleteRegion(ctx, regionID)
	if err != nil {
		t.Fatalf("delete region: %v", err)
	}
	if res.DeletedUsers != 1 || res.UnassignedDrones != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Region and its user are gone.
	if _, err := repos.regions.GetByID(ctx, regionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("region should be gone, got %v", err)
	}
	if n, _ := repos.users.Count(ctx); n != 0 {
		t.Fatalf("users left: %d", n)
	}

	// The drone is preserved but fully detached.
	dr, err := repos.drones.GetByID(ctx, "D1")
	if err != nil {
		t.Fatalf("drone should survive: %v", err)
	}
	if dr.RegionID != nil || dr.OperatorID != nil {
		t.Fatalf("drone not detached: %+v", dr)
	}

	// No dangling assignments.
	if n, _ := repos.assignments.Count(ctx); n != 0 {
		t.Fatalf("assignments left: %d", n)
	}

	// Identity cleanup scheduled after commit.
	if len(cleaner.ids) != 1 || cleaner.ids[0] != "auth-u1" {
		t.Fatalf("identity cleanup: %+v", cleaner.ids)
	}
}

func TestCascadeEngine_DeleteRegionSparesOtherRegions(t *testing.T) {
	ctx, eng, _, repos, regionID, _ := cascadeFixture(t, "cascspare")

	other, err := repos.regions.Create(ctx, CreateRegionParams{Name: "R2"})
	if err != nil {
		t.Fatalf("create region: %v", err)
	}
	u2, err := repos.users.Create(ctx, CreateUserParams{Username: "u2", Email: "u2@x.com", RegionID: &other.ID})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := repos.drones.Create(ctx, CreateDroneParams{ID: "D2", RegionID: &other.ID}); err != nil {
		t.Fatalf("create drone: %v", err)
	}

	if _, err := eng.DeleteRegion(ctx, regionID); err != nil {
		t.Fatalf("delete region: %v", err)
	}

	// Entities of the other region are untouched.
	if _, err := repos.users.GetByID(ctx, u2.ID); err != nil {
		t.Fatalf("other region's user deleted: %v", err)
	}
	d2, err := repos.drones.GetByID(ctx, "D2")
	if err != nil || d2.RegionID == nil || *d2.RegionID != other.ID {
		t.Fatalf("other region's drone touched: %v %+v", err, d2)
	}
}

func TestCascadeEngine_DeleteUser(t *testing.T) {
	ctx, eng, cleaner, repos, _, userID := cascadeFixture(t, "cascuser")

	res, err := eng.DeleteUser(ctx, userID)
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if res.RemovedAssignments != 1 || res.ReleasedDrones != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := repos.users.GetByID(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user should be gone, got %v", err)
	}
	dr, err := repos.drones.GetByID(ctx, "D1")
	if err != nil || dr.OperatorID != nil {
		t.Fatalf("operator not cleared: %v %+v", err, dr)
	}
	// The drone keeps its region on a user cascade.
	if dr.RegionID == nil {
		t.Fatalf("region cleared on user cascade: %+v", dr)
	}
	if len(cleaner.ids) != 1 {
		t.Fatalf("identity cleanup: %+v", cleaner.ids)
	}
}

func TestCascadeEngine_DeleteDrone(t *testing.T) {
	ctx, eng, _, repos, _, userID := cascadeFixture(t, "cascdrone")

	if err := eng.DeleteDrone(ctx, "D1"); err != nil {
		t.Fatalf("delete drone: %v", err)
	}
	if _, err := repos.drones.GetByID(ctx, "D1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("drone should be gone, got %v", err)
	}
	if n, _ := repos.assignments.Count(ctx); n != 0 {
		t.Fatalf("assignments left: %d", n)
	}
	// The user survives a drone cascade.
	if _, err := repos.users.GetByID(ctx, userID); err != nil {
		t.Fatalf("user deleted by drone cascade: %v", err)
	}
}

// A failure partway through a cascade rolls the whole transaction back;
// no intermediate state survives.
func TestCascadeEngine_FailureLeavesStateUntouched(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "cascrollback")
	regions := NewRegionRepository(d)
	users := NewUserRepository(d)
	drones := NewDroneRepository(d)
	assignments := NewAssignmentRepository(d)
	cleaner := &recordingCleaner{}
	eng := NewCascadeEngine(d, cleaner, nil)
	ctx := context.Background()

	reg, err := regions.Create(ctx, CreateRegionParams{Name: "R1"})
	if err != nil {
		t.Fatalf("create region: %v", err)
	}
	ext := "auth-u1"
	u, err := users.Create(ctx, CreateUserParams{
		Username:           "u1",
		Email:              "u1@x.com",
		RegionID:           &reg.ID,
		ExternalIdentityID: &ext,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := drones.Create(ctx, CreateDroneParams{ID: "D1", RegionID: &reg.ID, OperatorID: &u.ID}); err != nil {
		t.Fatalf("create drone: %v", err)
	}
	if err := assignments.Assign(ctx, u.ID, "D1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Fail the cascade at its last step, after the users are deleted and
	// the drones detached.
	if _, err := d.Exec(`CREATE TRIGGER block_region_delete BEFORE DELETE ON regions
		BEGIN SELECT RAISE(ABORT, 'blocked'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := eng.DeleteRegion(ctx, reg.ID); err == nil {
		t.Fatal("expected cascade to fail")
	}

	// Everything is exactly as it was before the call.
	if _, err := users.GetByID(ctx, u.ID); err != nil {
		t.Fatalf("user lost to a failed cascade: %v", err)
	}
	dr, err := drones.GetByID(ctx, "D1")
	if err != nil {
		t.Fatalf("drone lost to a failed cascade: %v", err)
	}
	if dr.RegionID == nil || dr.OperatorID == nil {
		t.Fatalf("drone references cleared by a failed cascade: %+v", dr)
	}
	if n, _ := assignments.Count(ctx); n != 1 {
		t.Fatalf("assignments after failed cascade: %d", n)
	}
	if len(cleaner.ids) != 0 {
		t.Fatalf("cleanup scheduled on failure: %+v", cleaner.ids)
	}
}

func TestCascadeEngine_NotFound(t *testing.T) {
	ctx, eng, cleaner, _, _, _ := cascadeFixture(t, "cascmissing")

	if _, err := eng.DeleteRegion(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := eng.DeleteUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := eng.DeleteDrone(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// A failed cascade never schedules identity cleanup.
	if len(cleaner.ids) != 0 {
		t.Fatalf("cleanup scheduled on failure: %+v", cleaner.ids)
	}
}
