package syncrun

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
)

var (
	ErrNotFound     = errors.New("sync run not found")
	ErrRunFinalized = errors.New("sync run already finalized")
)

type Status string

const (
	StatusInProgress          Status = "in_progress"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// IsTerminal reports whether a run in this status is finalized.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithErrors || s == StatusFailed
}

// ErrorEntry is one error captured during a run.
type ErrorEntry struct {
	EntityType string `json:"entityType"`
	ExternalID string `json:"externalId,omitempty"`
	Message    string `json:"message"`
}

// SyncRun is the audit record of one synchronization. It is immutable once CompletedAt is set.
type SyncRun struct {
	ID             string       `json:"id"`
	SyncType       string       `json:"syncType"`
	Status         Status       `json:"status"`
	ProcessedCount int          `json:"processedCount"`
	CreatedCount   int          `json:"createdCount"`
	UpdatedCount   int          `json:"updatedCount"`
	Errors         []ErrorEntry `json:"errors"`
	TriggeredBy    string       `json:"triggeredBy,omitempty"`
	StartedAt      time.Time    `json:"startedAt"`
	CompletedAt    time.Time    `json:"completedAt"` // zero while in progress
}

// IsFinalized reports whether the run reached a terminal status.
func (r SyncRun) IsFinalized() bool {
	return !r.CompletedAt.IsZero()
}

// Finalize sets the terminal status: Failed when `fatal`, else CompletedWithErrors when errors were captured,
// else Completed.
func (r *SyncRun) Finalize(fatal bool, completedAt time.Time) {
	switch {
	case fatal:
		r.Status = StatusFailed
	case len(r.Errors) > 0:
		r.Status = StatusCompletedWithErrors
	default:
		r.Status = StatusCompleted
	}
	r.CompletedAt = completedAt
}

type QueryFilter struct {
	Status   Status
	SyncType string
	Limit    int
	Ordering []core.DBOrdering // defaults to "-started_at"
}

// OrderingFields are the fields QueryFilter.Ordering accepts.
var OrderingFields = []string{"started_at", "completed_at", "status"}

const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 100
)

// Clean bounds the limit & defaults the ordering.
func (f *QueryFilter) Clean() {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if len(f.Ordering) == 0 {
		f.Ordering = []core.DBOrdering{{Field: "started_at"}}
	}
}

// Repository is the Run Ledger: runs are created in progress, finalized once, never deleted.
type Repository interface {
	CreateRun(ctx context.Context, run SyncRun, exec ...core.DBExecutor) (SyncRun, error)
	// FinishRun persists the terminal state of `run`. It fails with ErrRunFinalized when the run was already finalized.
	FinishRun(ctx context.Context, run SyncRun, exec ...core.DBExecutor) (SyncRun, error)
	GetRun(ctx context.Context, id string, exec ...core.DBExecutor) (SyncRun, error)
	QueryRuns(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]SyncRun, error)
}
