package sqlxrepos

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/syncrun"
	"github.com/trezcool/ushauri/core/user"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func Test_trapNoRowsErr(t *testing.T) {
	errDB := errors.New("connection reset")
	tests := []struct {
		name      string
		err       error
		wantCause error
	}{
		{name: "no rows", err: sql.ErrNoRows, wantCause: syncrun.ErrNotFound},
		{name: "wrapped no rows", err: errors.Wrap(sql.ErrNoRows, "scanning"), wantCause: syncrun.ErrNotFound},
		{name: "other error", err: errDB, wantCause: errDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trapNoRowsErr(tt.err, syncrun.ErrNotFound, "selecting"); errors.Cause(got) != tt.wantCause {
				t.Errorf("trapNoRowsErr() = %v, want cause %v", got, tt.wantCause)
			}
		})
	}
}

func Test_userRepository_dbErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	errDB := errors.New("connection reset")

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").WillReturnError(errDB)
	if _, err := repo.GetUser(ctx, user.GetFilter{Email: "jane@jkkn.ac.in"}); errors.Cause(err) != errDB {
		t.Errorf("GetUser() error = %v, want cause %v", err, errDB)
	}

	// a concurrent insert won the race past the email check
	mock.ExpectQuery("SELECT COUNT(.+) FROM users").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: pgUniqueViolation})
	usr := user.User{Email: "jane@jkkn.ac.in", Role: user.RoleAdmin, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if _, err := repo.CreateUser(ctx, usr); err != user.ErrEmailExists {
		t.Errorf("CreateUser() error = %v, want %v", err, user.ErrEmailExists)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func Test_rosterRepository_dbErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRosterRepository(db)
	ctx := context.Background()
	errDB := errors.New("disk full")

	mock.ExpectQuery("SELECT (.+) FROM departments").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO departments").WillReturnError(errDB)
	_, err := repo.UpsertDepartment(ctx, roster.Department{ExternalID: "d1", Name: "CSE", Status: roster.StatusActive})
	if errors.Cause(err) != errDB {
		t.Errorf("UpsertDepartment() error = %v, want cause %v", err, errDB)
	}

	mock.ExpectQuery("SELECT (.+) FROM institutions").WillReturnError(errDB)
	if _, err = repo.UpsertInstitution(ctx, roster.Institution{ExternalID: "inst1"}); errors.Cause(err) != errDB {
		t.Errorf("UpsertInstitution() error = %v, want cause %v", err, errDB)
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func Test_runRepository_dbErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()
	errDB := errors.New("connection reset")

	mock.ExpectExec("INSERT INTO sync_runs").WillReturnError(errDB)
	if _, err := repo.CreateRun(ctx, syncrun.SyncRun{SyncType: "sync_all", StartedAt: time.Now()}); errors.Cause(err) != errDB {
		t.Errorf("CreateRun() error = %v, want cause %v", err, errDB)
	}

	mock.ExpectQuery("SELECT (.+) FROM sync_runs").WillReturnError(errDB)
	if _, err := repo.QueryRuns(ctx, syncrun.QueryFilter{}); errors.Cause(err) != errDB {
		t.Errorf("QueryRuns() error = %v, want cause %v", err, errDB)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
