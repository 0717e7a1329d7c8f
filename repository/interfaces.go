package repository

import (
	"context"

	"fleetadmin/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
	Update(ctx context.Context, id string, p UpdateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, p ListUsersParams) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, u *models.User) error
}

// RegionRepositoryI defines operations on Region entities.
type RegionRepositoryI interface {
	Create(ctx context.Context, p CreateRegionParams) (*models.Region, error)
	Update(ctx context.Context, id string, p UpdateRegionParams) (*models.Region, error)
	GetByID(ctx context.Context, id string) (*models.Region, error)
	List(ctx context.Context, p ListRegionsParams) ([]models.Region, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, r *models.Region) error
}

// DroneRepositoryI defines operations on Drone entities.
type DroneRepositoryI interface {
	Create(ctx context.Context, p CreateDroneParams) (*models.Drone, error)
	Update(ctx context.Context, id string, p UpdateDroneParams) (*models.Drone, error)
	GetByID(ctx context.Context, id string) (*models.Drone, error)
	List(ctx context.Context, p ListDronesParams) ([]models.Drone, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, d *models.Drone) error
}

// AssignmentRepositoryI defines operations on User<->Drone assignments.
type AssignmentRepositoryI interface {
	Assign(ctx context.Context, userID, droneID string) error
	Unassign(ctx context.Context, userID, droneID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Assignment, error)
	ListByDrone(ctx context.Context, droneID string) ([]models.Assignment, error)
	List(ctx context.Context, limit, offset int) ([]models.Assignment, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, a *models.Assignment) error
}
