package mirror

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"fleetadmin/internal/normalize"
	"fleetadmin/models"
	"fleetadmin/repository"
)

const pageSize = 500

// Syncer moves entities between the local store and the mirror. Push is
// local -> mirror, pull is mirror -> local; both are idempotent upserts
// keyed by primary id. A single record's failure is logged and skipped,
// never fatal to the batch.
type Syncer struct {
	client      *Client
	regions     repository.RegionRepositoryI
	users       repository.UserRepositoryI
	drones      repository.DroneRepositoryI
	assignments repository.AssignmentRepositoryI
	norm        *normalize.Normalizer
	logger      *zap.Logger
}

func NewSyncer(
	client *Client,
	regions repository.RegionRepositoryI,
	users repository.UserRepositoryI,
	drones repository.DroneRepositoryI,
	assignments repository.AssignmentRepositoryI,
	logger *zap.Logger,
) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		client:      client,
		regions:     regions,
		users:       users,
		drones:      drones,
		assignments: assignments,
		norm:        normalize.NewNormalizer(logger),
		logger:      logger,
	}
}

// PushStats reports the outcome of a best-effort push batch.
type PushStats struct {
	Pushed int
	Failed int
}

func (s PushStats) add(o PushStats) PushStats {
	return PushStats{Pushed: s.Pushed + o.Pushed, Failed: s.Failed + o.Failed}
}

// PullStats reports the outcome of a restore pull.
type PullStats struct {
	Restored int
	Skipped  int
}

// PushRegion mirrors a single region. Used after a local commit; the
// caller treats failure as advisory.
func (s *Syncer) PushRegion(ctx context.Context, r *models.Region) error {
	return s.client.Upsert(ctx, TableRegions, []RegionRecord{regionRecord(r)})
}

func (s *Syncer) PushUser(ctx context.Context, u *models.User) error {
	return s.client.Upsert(ctx, TableUsers, []UserRecord{userRecord(u)})
}

func (s *Syncer) PushDrone(ctx context.Context, d *models.Drone) error {
	return s.client.Upsert(ctx, TableDrones, []DroneRecord{droneRecord(d)})
}

func (s *Syncer) PushAssignment(ctx context.Context, a *models.Assignment) error {
	return s.client.Upsert(ctx, TableAssignments, []AssignmentRecord{assignmentRecord(a)})
}

// DeleteMirrored removes a row from a mirror table after a local delete.
func (s *Syncer) DeleteMirrored(ctx context.Context, table, id string) {
	if err := s.client.DeleteByID(ctx, table, id); err != nil {
		s.logger.Warn("mirror delete failed", zap.String("table", table), zap.String("id", id), zap.Error(err))
	}
}

// PushRegions mirrors every local region, one upsert per record so one
// bad record cannot sink the rest.
func (s *Syncer) PushRegions(ctx context.Context) (PushStats, error) {
	var stats PushStats
	for offset := 0; ; offset += pageSize {
		page, err := s.regions.List(ctx, repository.ListRegionsParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return stats, err
		}
		for i := range page {
			if err := s.PushRegion(ctx, &page[i]); err != nil {
				stats.Failed++
				s.logger.Warn("push region failed", zap.String("id", page[i].ID), zap.Error(err))
				continue
			}
			stats.Pushed++
		}
		if len(page) < pageSize {
			return stats, nil
		}
	}
}

func (s *Syncer) PushUsers(ctx context.Context) (PushStats, error) {
	var stats PushStats
	for offset := 0; ; offset += pageSize {
		page, err := s.users.List(ctx, repository.ListUsersParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return stats, err
		}
		for i := range page {
			if err := s.PushUser(ctx, &page[i]); err != nil {
				stats.Failed++
				s.logger.Warn("push user failed", zap.String("id", page[i].ID), zap.Error(err))
				continue
			}
			stats.Pushed++
		}
		if len(page) < pageSize {
			return stats, nil
		}
	}
}

func (s *Syncer) PushDrones(ctx context.Context) (PushStats, error) {
	var stats PushStats
	for offset := 0; ; offset += pageSize {
		page, err := s.drones.List(ctx, repository.ListDronesParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return stats, err
		}
		for i := range page {
			if err := s.PushDrone(ctx, &page[i]); err != nil {
				stats.Failed++
				s.logger.Warn("push drone failed", zap.String("id", page[i].ID), zap.Error(err))
				continue
			}
			stats.Pushed++
		}
		if len(page) < pageSize {
			return stats, nil
		}
	}
}

func (s *Syncer) PushAssignments(ctx context.Context) (PushStats, error) {
	var stats PushStats
	for offset := 0; ; offset += pageSize {
		page, err := s.assignments.List(ctx, pageSize, offset)
		if err != nil {
			return stats, err
		}
		for i := range page {
			if err := s.PushAssignment(ctx, &page[i]); err != nil {
				stats.Failed++
				s.logger.Warn("push assignment failed", zap.String("id", page[i].ID), zap.Error(err))
				continue
			}
			stats.Pushed++
		}
		if len(page) < pageSize {
			return stats, nil
		}
	}
}

// PushAll mirrors the whole local dataset: regions first (users and
// drones reference them on the mirror side), then users and drones as
// concurrent streams, then assignments, which reference both.
func (s *Syncer) PushAll(ctx context.Context) (PushStats, error) {
	stats, err := s.PushRegions(ctx)
	if err != nil {
		return stats, err
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	for _, push := range []func(context.Context) (PushStats, error){s.PushUsers, s.PushDrones} {
		wg.Add(1)
		go func(push func(context.Context) (PushStats, error)) {
			defer wg.Done()
			st, err := push(ctx)
			mu.Lock()
			stats = stats.add(st)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}(push)
	}
	wg.Wait()
	if firstErr != nil {
		return stats, firstErr
	}

	ast, err := s.PushAssignments(ctx)
	stats = stats.add(ast)
	return stats, err
}

// PullRegions restores regions from the mirror into the local store.
func (s *Syncer) PullRegions(ctx context.Context) (PullStats, error) {
	var recs []RegionRecord
	if err := s.client.Select(ctx, TableRegions, &recs); err != nil {
		return PullStats{}, err
	}
	var stats PullStats
	for _, rec := range recs {
		if rec.ID == "" || strings.TrimSpace(rec.Name) == "" {
			stats.Skipped++
			s.logger.Warn("skipping region record missing required field", zap.String("id", rec.ID))
			continue
		}
		if err := s.regions.Upsert(ctx, rec.toModel()); err != nil {
			stats.Skipped++
			s.logger.Warn("restore region failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		stats.Restored++
	}
	return stats, nil
}

// PullUsers restores users. Records missing a field the local schema
// requires as non-null (username, email) are skipped with a logged
// reason; roles and statuses are normalized on the way in.
func (s *Syncer) PullUsers(ctx context.Context) (PullStats, error) {
	var recs []UserRecord
	if err := s.client.Select(ctx, TableUsers, &recs); err != nil {
		return PullStats{}, err
	}
	var stats PullStats
	for _, rec := range recs {
		if rec.ID == "" || strings.TrimSpace(rec.Username) == "" || strings.TrimSpace(rec.Email) == "" {
			stats.Skipped++
			s.logger.Warn("skipping user record missing required field",
				zap.String("id", rec.ID), zap.String("username", rec.Username))
			continue
		}
		if err := s.users.Upsert(ctx, rec.toModel(s.norm)); err != nil {
			stats.Skipped++
			s.logger.Warn("restore user failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		stats.Restored++
	}
	return stats, nil
}

// PullDrones restores drones, normalizing legacy model and status
// spellings onto the closed sets.
func (s *Syncer) PullDrones(ctx context.Context) (PullStats, error) {
	var recs []DroneRecord
	if err := s.client.Select(ctx, TableDrones, &recs); err != nil {
		return PullStats{}, err
	}
	var stats PullStats
	for _, rec := range recs {
		if rec.ID == "" {
			stats.Skipped++
			s.logger.Warn("skipping drone record without id")
			continue
		}
		if err := s.drones.Upsert(ctx, rec.toModel(s.norm)); err != nil {
			stats.Skipped++
			s.logger.Warn("restore drone failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		stats.Restored++
	}
	return stats, nil
}

// PullAssignments restores assignments. Rows referencing users or drones
// that did not survive the earlier pull stages fail their foreign keys
// and are skipped.
func (s *Syncer) PullAssignments(ctx context.Context) (PullStats, error) {
	var recs []AssignmentRecord
	if err := s.client.Select(ctx, TableAssignments, &recs); err != nil {
		return PullStats{}, err
	}
	var stats PullStats
	for _, rec := range recs {
		if rec.ID == "" || rec.UserID == "" || rec.DroneID == "" {
			stats.Skipped++
			s.logger.Warn("skipping assignment record missing required field", zap.String("id", rec.ID))
			continue
		}
		if err := s.assignments.Upsert(ctx, rec.toModel()); err != nil {
			stats.Skipped++
			s.logger.Warn("restore assignment failed", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		stats.Restored++
	}
	return stats, nil
}

// PullAll restores the four tables in strict dependency order: regions,
// then users, then drones, then assignments.
func (s *Syncer) PullAll(ctx context.Context) (PullStats, error) {
	var stats PullStats
	for _, pull := range []func(context.Context) (PullStats, error){
		s.PullRegions, s.PullUsers, s.PullDrones, s.PullAssignments,
	} {
		st, err := pull(ctx)
		stats.Restored += st.Restored
		stats.Skipped += st.Skipped
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}
