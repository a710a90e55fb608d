package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/syncrun"
)

type runRepository struct {
	db *runTable
}

var _ syncrun.Repository = (*runRepository)(nil) // interface compliance check

func NewRunRepository(db *DB) syncrun.Repository {
	return &runRepository{db: db.run}
}

func copyRun(run syncrun.SyncRun) syncrun.SyncRun {
	run.Errors = append([]syncrun.ErrorEntry{}, run.Errors...)
	return run
}

func (repo *runRepository) CreateRun(_ context.Context, run syncrun.SyncRun, _ ...core.DBExecutor) (syncrun.SyncRun, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if run.ID == "" {
		run.ID = core.NewID()
	}
	repo.db.table[run.ID] = copyRun(run)
	return run, nil
}

func (repo *runRepository) FinishRun(_ context.Context, run syncrun.SyncRun, _ ...core.DBExecutor) (syncrun.SyncRun, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[run.ID]
	if !ok {
		return syncrun.SyncRun{}, syncrun.ErrNotFound
	}
	if existing.IsFinalized() {
		return syncrun.SyncRun{}, syncrun.ErrRunFinalized
	}
	run.SyncType = existing.SyncType
	run.TriggeredBy = existing.TriggeredBy
	run.StartedAt = existing.StartedAt
	repo.db.table[run.ID] = copyRun(run)
	return run, nil
}

func (repo *runRepository) GetRun(_ context.Context, id string, _ ...core.DBExecutor) (syncrun.SyncRun, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if run, ok := repo.db.table[id]; ok {
		return copyRun(run), nil
	}
	return syncrun.SyncRun{}, syncrun.ErrNotFound
}

func (repo *runRepository) QueryRuns(_ context.Context, filter syncrun.QueryFilter, _ ...core.DBExecutor) ([]syncrun.SyncRun, error) {
	filter.Clean()

	repo.db.RLock()
	defer repo.db.RUnlock()

	runs := make([]syncrun.SyncRun, 0, len(repo.db.table))
	for _, run := range repo.db.table {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.SyncType != "" && run.SyncType != filter.SyncType {
			continue
		}
		runs = append(runs, copyRun(run))
	}
	// only the first ordering is honored in memory
	ord := filter.Ordering[0]
	sort.Slice(runs, func(i, j int) bool {
		if ord.Ascending {
			return lessRun(runs[i], runs[j], ord.Field)
		}
		return lessRun(runs[j], runs[i], ord.Field)
	})
	if len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func lessRun(a, b syncrun.SyncRun, field string) bool {
	switch field {
	case "completed_at":
		return a.CompletedAt.Before(b.CompletedAt)
	case "status":
		return a.Status < b.Status
	default:
		return a.StartedAt.Before(b.StartedAt)
	}
}
