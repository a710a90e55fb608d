package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/syncrun"
)

const runColumns = "id, sync_type, status, processed_count, created_count, updated_count, errors, triggered_by, started_at, completed_at"

type runRow struct {
	ID             string    `db:"id"`
	SyncType       string    `db:"sync_type"`
	Status         string    `db:"status"`
	ProcessedCount int       `db:"processed_count"`
	CreatedCount   int       `db:"created_count"`
	UpdatedCount   int       `db:"updated_count"`
	Errors         string    `db:"errors"`
	TriggeredBy    string    `db:"triggered_by"`
	StartedAt      time.Time `db:"started_at"`
	CompletedAt    null.Time `db:"completed_at"`
}

type runRepository struct {
	repository
}

var _ syncrun.Repository = (*runRepository)(nil) // interface compliance check

func NewRunRepository(exec core.DBExecutor) syncrun.Repository {
	return &runRepository{repository{exec: exec}}
}

func (repo runRepository) toRow(run syncrun.SyncRun) (runRow, error) {
	errs := run.Errors
	if errs == nil {
		errs = []syncrun.ErrorEntry{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return runRow{}, errors.Wrap(err, "encoding sync run errors")
	}
	return runRow{
		ID:             run.ID,
		SyncType:       run.SyncType,
		Status:         string(run.Status),
		ProcessedCount: run.ProcessedCount,
		CreatedCount:   run.CreatedCount,
		UpdatedCount:   run.UpdatedCount,
		Errors:         string(encoded),
		TriggeredBy:    run.TriggeredBy,
		StartedAt:      run.StartedAt.UTC(),
		CompletedAt:    null.NewTime(run.CompletedAt.UTC(), !run.CompletedAt.IsZero()),
	}, nil
}

func (repo runRepository) fromRow(row runRow) (syncrun.SyncRun, error) {
	var errs []syncrun.ErrorEntry
	if err := json.Unmarshal([]byte(row.Errors), &errs); err != nil {
		return syncrun.SyncRun{}, errors.Wrap(err, "decoding sync run errors")
	}
	if errs == nil {
		errs = []syncrun.ErrorEntry{}
	}
	run := syncrun.SyncRun{
		ID:             row.ID,
		SyncType:       row.SyncType,
		Status:         syncrun.Status(row.Status),
		ProcessedCount: row.ProcessedCount,
		CreatedCount:   row.CreatedCount,
		UpdatedCount:   row.UpdatedCount,
		Errors:         errs,
		TriggeredBy:    row.TriggeredBy,
		StartedAt:      row.StartedAt.UTC(),
	}
	if row.CompletedAt.Valid {
		run.CompletedAt = row.CompletedAt.Time.UTC()
	}
	return run, nil
}

func (repo runRepository) CreateRun(ctx context.Context, run syncrun.SyncRun, exec ...core.DBExecutor) (syncrun.SyncRun, error) {
	if run.ID == "" {
		run.ID = core.NewID()
	}
	row, err := repo.toRow(run)
	if err != nil {
		return syncrun.SyncRun{}, err
	}
	q := "INSERT INTO sync_runs (" + runColumns + ") VALUES (:id, :sync_type, :status, :processed_count, :created_count, " +
		":updated_count, :errors, :triggered_by, :started_at, :completed_at)"
	if _, err = sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return syncrun.SyncRun{}, errors.Wrap(err, "inserting sync run")
	}
	return run, nil
}

func (repo runRepository) FinishRun(ctx context.Context, run syncrun.SyncRun, exec ...core.DBExecutor) (syncrun.SyncRun, error) {
	e := repo.getExec(exec)
	row, err := repo.toRow(run)
	if err != nil {
		return syncrun.SyncRun{}, err
	}

	// a finalized run is never written again
	q := "UPDATE sync_runs SET status = :status, processed_count = :processed_count, created_count = :created_count, " +
		"updated_count = :updated_count, errors = :errors, completed_at = :completed_at " +
		"WHERE id = :id AND completed_at IS NULL"
	res, err := sqlx.NamedExecContext(ctx, e, q, row)
	if err != nil {
		return syncrun.SyncRun{}, errors.Wrap(err, "updating sync run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return syncrun.SyncRun{}, errors.Wrap(err, "updating sync run")
	}
	if n == 0 {
		if _, err = repo.GetRun(ctx, run.ID, e); err != nil {
			return syncrun.SyncRun{}, err
		}
		return syncrun.SyncRun{}, syncrun.ErrRunFinalized
	}
	return repo.GetRun(ctx, run.ID, e)
}

func (repo runRepository) GetRun(ctx context.Context, id string, exec ...core.DBExecutor) (syncrun.SyncRun, error) {
	var row runRow
	q := "SELECT " + runColumns + " FROM sync_runs WHERE id = ?"
	if err := repo.get(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return syncrun.SyncRun{}, trapNoRowsErr(err, syncrun.ErrNotFound, "selecting sync run")
	}
	return repo.fromRow(row)
}

func (repo runRepository) QueryRuns(ctx context.Context, filter syncrun.QueryFilter, exec ...core.DBExecutor) ([]syncrun.SyncRun, error) {
	filter.Clean()

	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.SyncType != "" {
		where = append(where, "sync_type = ?")
		args = append(args, filter.SyncType)
	}

	q := "SELECT " + runColumns + " FROM sync_runs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	orderBy := make([]string, 0, len(filter.Ordering)+1)
	for _, ord := range filter.Ordering {
		orderBy = append(orderBy, ord.String()) // fields are whitelisted by core.ParseOrdering
	}
	orderBy = append(orderBy, "id")
	q += " ORDER BY " + strings.Join(orderBy, ", ") + " LIMIT " + strconv.Itoa(filter.Limit)

	var rows []runRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting sync runs")
	}
	runs := make([]syncrun.SyncRun, 0, len(rows))
	for _, row := range rows {
		run, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
