// Package normalize maps heterogeneous legacy field values onto the
// closed domain enumerations. Records crossing the store boundary during
// recovery may predate the current schema, so unrecognized input never
// fails: it maps to a documented conservative default instead.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"fleetadmin/models"
)

// canon lowercases the input and strips spaces, dashes and underscores so
// "Hawk-S", "hawk_s" and "HAWK S" all compare equal.
func canon(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "", "-", "", "_", "", ".", "").Replace(s)
	return s
}

var modelAliases = map[string]models.DroneModel{
	"hawks":          models.ModelHawkS,
	"hawk":           models.ModelHawkS,
	"hawkscout":      models.ModelHawkS,
	"scout":          models.ModelHawkS,
	"falconx":        models.ModelFalconX,
	"falcon":         models.ModelFalconX,
	"falconxpro":     models.ModelFalconX,
	"condorhl":       models.ModelCondorHL,
	"condor":         models.ModelCondorHL,
	"condorheavy":    models.ModelCondorHL,
	"heavylift":      models.ModelCondorHL,
	"ravenr":         models.ModelRavenR,
	"raven":          models.ModelRavenR,
	"ravenrecon":     models.ModelRavenR,
	"reconnaissance": models.ModelRavenR,
}

// Model maps raw onto the fleet model set. Unrecognized names fall back to
// the base airframe HAWK_S; the second return reports whether raw was
// recognized.
func Model(raw string) (models.DroneModel, bool) {
	if m, ok := modelAliases[canon(raw)]; ok {
		return m, true
	}
	return models.ModelHawkS, false
}

var statusAliases = map[string]models.DroneStatus{
	"active":         models.DroneStatusActive,
	"inservice":      models.DroneStatusActive,
	"flying":         models.DroneStatusActive,
	"online":         models.DroneStatusActive,
	"deployed":       models.DroneStatusActive,
	"standby":        models.DroneStatusStandby,
	"idle":           models.DroneStatusStandby,
	"ready":          models.DroneStatusStandby,
	"available":      models.DroneStatusStandby,
	"maintenance":    models.DroneStatusMaintenance,
	"repair":         models.DroneStatusMaintenance,
	"broken":         models.DroneStatusMaintenance,
	"servicing":      models.DroneStatusMaintenance,
	"offline":        models.DroneStatusOffline,
	"retired":        models.DroneStatusOffline,
	"decommissioned": models.DroneStatusOffline,
	"inactive":       models.DroneStatusOffline,
}

// Status maps raw onto the drone status set. Unrecognized values fall back
// to STANDBY, the most conservative operational state.
func Status(raw string) (models.DroneStatus, bool) {
	if s, ok := statusAliases[canon(raw)]; ok {
		return s, true
	}
	return models.DroneStatusStandby, false
}

var roleAliases = map[string]models.Role{
	"fleetadmin":      models.RoleFleetAdmin,
	"admin":           models.RoleFleetAdmin,
	"administrator":   models.RoleFleetAdmin,
	"superadmin":      models.RoleFleetAdmin,
	"regioncommander": models.RoleRegionCommander,
	"commander":       models.RoleRegionCommander,
	"regionadmin":     models.RoleRegionCommander,
	"zonecommander":   models.RoleRegionCommander,
	"operator":        models.RoleOperator,
	"pilot":           models.RoleOperator,
	"enduser":         models.RoleOperator,
	"user":            models.RoleOperator,
}

// Role maps raw onto the role set. Unrecognized values fall back to
// OPERATOR, the lowest-privilege role.
func Role(raw string) (models.Role, bool) {
	if r, ok := roleAliases[canon(raw)]; ok {
		return r, true
	}
	return models.RoleOperator, false
}

// Normalizer wraps the mapping functions and reports every fallback as a
// warn-level log event instead of an error.
type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

func (n *Normalizer) Model(raw string) models.DroneModel {
	m, ok := Model(raw)
	if !ok {
		n.logger.Warn("unrecognized drone model, using base model",
			zap.String("raw", raw),
			zap.String("fallback", string(m)),
		)
	}
	return m
}

func (n *Normalizer) Status(raw string) models.DroneStatus {
	s, ok := Status(raw)
	if !ok {
		n.logger.Warn("unrecognized drone status, using standby",
			zap.String("raw", raw),
			zap.String("fallback", string(s)),
		)
	}
	return s
}

func (n *Normalizer) Role(raw string) models.Role {
	r, ok := Role(raw)
	if !ok {
		n.logger.Warn("unrecognized role, using lowest privilege",
			zap.String("raw", raw),
			zap.String("fallback", string(r)),
		)
	}
	return r
}
