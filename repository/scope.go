package repository

import "fleetadmin/models"

// Scope restricts list results to what the authenticated caller may see.
// It is derived from the caller's role/region context by the (external)
// API layer and passed into List operations.
//
// FLEET_ADMIN sees everything. REGION_COMMANDER sees entities whose
// region matches its own. OPERATOR sees only entities referencing its
// own account.
type Scope struct {
	Role     models.Role
	RegionID *string
	UserID   string
}

// Unrestricted is the scope of a fleet administrator.
func Unrestricted() *Scope {
	return &Scope{Role: models.RoleFleetAdmin}
}
