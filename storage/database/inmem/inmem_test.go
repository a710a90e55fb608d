package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/syncrun"
)

func Test_rosterRepository_UpsertDepartment(t *testing.T) {
	repo := NewRosterRepository(Open())
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	dept := roster.Department{ExternalID: "d1", Name: "CSE", Status: roster.StatusActive, CreatedAt: t0, UpdatedAt: t0}
	moved := dept
	moved.InstitutionRef = "inst1"
	moved.CreatedAt = t0.Add(time.Hour)
	moved.UpdatedAt = t0.Add(time.Hour)

	tests := []struct {
		name string
		dept roster.Department
		want roster.Outcome
	}{
		{name: "new record", dept: dept, want: roster.OutcomeCreated},
		{name: "same values", dept: dept, want: roster.OutcomeUnchanged},
		{name: "changed values", dept: moved, want: roster.OutcomeUpdated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := repo.UpsertDepartment(ctx, tt.dept); err != nil || got != tt.want {
				t.Errorf("UpsertDepartment() = (%v, %v), want %v", got, err, tt.want)
			}
		})
	}

	got, err := repo.GetDepartment(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDepartment() failed: %v", err)
	}
	if got.InstitutionRef != "inst1" || !got.CreatedAt.Equal(t0) || !got.UpdatedAt.Equal(moved.UpdatedAt) {
		t.Errorf("GetDepartment() = %+v", got)
	}
	if _, err = repo.GetDepartment(ctx, "lol"); err != roster.ErrNotFound {
		t.Errorf("GetDepartment() error = %v, want %v", err, roster.ErrNotFound)
	}
}

func Test_runRepository_FinishRun(t *testing.T) {
	repo := NewRunRepository(Open())
	ctx := context.Background()
	t0 := time.Now().UTC()

	run, _ := repo.CreateRun(ctx, syncrun.SyncRun{SyncType: "sync_all", Status: syncrun.StatusInProgress, TriggeredBy: "admin-cli", StartedAt: t0})

	run.Status = syncrun.StatusCompletedWithErrors
	run.Errors = []syncrun.ErrorEntry{{EntityType: "staff", ExternalID: "S1", Message: "missing email"}}
	run.CompletedAt = t0.Add(time.Second)
	run.TriggeredBy = "someone else"
	finished, err := repo.FinishRun(ctx, run)
	if err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}
	if finished.TriggeredBy != "admin-cli" {
		t.Errorf("FinishRun() TriggeredBy = %q, want it kept", finished.TriggeredBy)
	}

	// stored runs are copies
	run.Errors[0].Message = "changed"
	got, _ := repo.GetRun(ctx, run.ID)
	if got.Errors[0].Message != "missing email" {
		t.Errorf("GetRun() errors = %+v, want the stored copy", got.Errors)
	}

	if _, err = repo.FinishRun(ctx, run); err != syncrun.ErrRunFinalized {
		t.Errorf("FinishRun() error = %v, want %v", err, syncrun.ErrRunFinalized)
	}
	if _, err = repo.FinishRun(ctx, syncrun.SyncRun{ID: "lol"}); err != syncrun.ErrNotFound {
		t.Errorf("FinishRun() error = %v, want %v", err, syncrun.ErrNotFound)
	}
}
