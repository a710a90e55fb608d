package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/syncrun"
	"github.com/trezcool/ushauri/core/user"
	sqlxrepos "github.com/trezcool/ushauri/storage/database/sqlx"
	"github.com/trezcool/ushauri/testutil"
)

type testEnv struct {
	cli     *commandLine
	out     *bytes.Buffer
	usrRepo user.Repository
	runRepo syncrun.Repository
	src     *testutil.RosterSource
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	env := &testEnv{
		out:     new(bytes.Buffer),
		usrRepo: sqlxrepos.NewUserRepository(db),
		runRepo: sqlxrepos.NewRunRepository(db),
		src:     testutil.NewRosterSource(),
	}

	validate := validator.New()
	translator, _ := ut.New(en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	env.cli = &commandLine{
		db:     db,
		usrSvc: user.NewService(env.usrRepo, core.RealClock{}),
		syncSvc: rostersync.NewService(rostersync.Deps{
			Secrets: testutil.Secrets{rostersync.DefaultSecretName: "s3cr3t"},
			Connect: env.src.Connect,
			Roster:  sqlxrepos.NewRosterRepository(db),
			Users:   env.usrRepo,
			Runs:    env.runRepo,
			Mailer:  new(testutil.Mailer),
			Logger:  new(testutil.Logger),
			Policy:  rostersync.RetryPolicy{MaxAttempts: 1},
		}),
		validate:   validate,
		translator: translator,
		out:        env.out,
	}
	return env
}

// mockPasswords makes the password prompts return `pwds`, in order.
func mockPasswords(pwds ...string) {
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string // prompted passwords
	wantErr    error
	wantErrStr string
}

func (env *testEnv) runCLITests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(tt.pwds...)
			err := env.cli.run(args)
			switch {
			case tt.wantErr != nil:
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || env.cli.formatError(err) != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)
	env.runCLITests(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	if !strings.Contains(env.out.String(), "Usage:") {
		t.Errorf("usage not printed: %q", env.out.String())
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		return nil
	}

	env.runCLITests(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.usrRepo, "Ravi Kumar", "ravi@jkkn.ac.in", "", user.RoleMentor, true)
	pwd := "Kx9#mVq2Lp!z"

	env.runCLITests(t, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-email", "jane@jkkn.ac.in"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "jane@jkkn.ac.in", "-name", "Jane Doe"}, wantErr: errHelp},
		{
			name: "passwords mismatch", args: []string{"adduser", "-email", "jane@jkkn.ac.in", "-name", "Jane Doe"},
			pwds: []string{pwd, "lol"}, wantErr: errPwdMismatch,
		},
		{
			name: "invalid role", args: []string{"adduser", "-email", "jane@jkkn.ac.in", "-name", "Jane Doe", "-role", "lol"},
			pwds: []string{pwd, pwd}, wantErrStr: "role: invalid role",
		},
		{
			name: "weak password", args: []string{"adduser", "-email", "jane@jkkn.ac.in", "-name", "Jane Doe"},
			pwds: []string{"password", "password"},
			wantErrStr: "password: password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		},
		{
			name: "email taken", args: []string{"adduser", "-email", "RAVI@jkkn.ac.in", "-name", "Ravi Kumar"},
			pwds: []string{pwd, pwd}, wantErr: user.ErrEmailExists,
		},
		{
			name: "ok", args: []string{"adduser", "-email", " Jane@JKKN.ac.in", "-name", "Jane Doe", "-role", user.RoleDeptLead},
			pwds: []string{pwd, pwd},
		},
	})

	usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "jane@jkkn.ac.in"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if usr.Name != "Jane Doe" || usr.Role != user.RoleDeptLead || !usr.IsActive || usr.CheckPassword(pwd) != nil {
		t.Errorf("adduser created %+v", usr)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "Jane Doe", "jane@jkkn.ac.in", "mdr", user.RoleMentor, true)

	env.runCLITests(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@jkkn.ac.in"}, pwds: []string{"lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " JANE@jkkn.ac.in"}, pwds: []string{"lmao"}},
	})

	refreshedUsr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if refreshedUsr.CheckPassword("lmao") != nil {
		t.Error("failed to update new password")
	}
	if !refreshedUsr.MustChangePassword {
		t.Error("reset password must be changed on next login")
	}
}

func Test_commandLine_sync(t *testing.T) {
	env := setup(t)
	env.src.
		AddPage(roster.KindStaff, roster.RawRecord{
			"staff_id": "S1", "first_name": "Jane", "last_name": "Doe", "email": "jane@jkkn.ac.in",
			"department": "CSE", "designation": "Professor", "status": "active",
		}).
		AddPage(roster.KindStudent, roster.RawRecord{"student_id": "ST1", "first_name": "Anu", "status": "active"})

	env.runCLITests(t, []cliTest{
		{name: "invalid action", args: []string{"sync", "-action", "sync_courses"}, wantErrStr: "action: must be one of: sync_all, sync_students, sync_staff"},
		{name: "staff only", args: []string{"sync", "-students=false"}},
	})
	if calls := env.src.CallsFor(roster.KindStudent); len(calls) != 0 {
		t.Errorf("students fetched %v, want none", calls)
	}
	if out := env.out.String(); !strings.Contains(out, "1 users processed, 1 created, 0 updated") {
		t.Errorf("sync output = %q", out)
	}

	env.out.Reset()
	env.runCLITests(t, []cliTest{
		{name: "record errors", args: []string{"sync", "-action", "sync_students"}},
	})
	if out := env.out.String(); !strings.Contains(out, "student ST1:") {
		t.Errorf("sync output = %q, want the ST1 error", out)
	}

	runs, err := env.runRepo.QueryRuns(context.Background(), syncrun.QueryFilter{})
	if err != nil {
		t.Fatalf("QueryRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("QueryRuns() got %d runs, want 2", len(runs))
	}
	statuses := map[syncrun.Status]bool{}
	for _, run := range runs {
		if run.TriggeredBy != cliTriggeredBy {
			t.Errorf("run %s triggered by %q, want %q", run.ID, run.TriggeredBy, cliTriggeredBy)
		}
		statuses[run.Status] = true
	}
	if !statuses[syncrun.StatusCompleted] || !statuses[syncrun.StatusCompletedWithErrors] {
		t.Errorf("QueryRuns() statuses = %v", statuses)
	}

	env.src.FailWith(roster.KindInstitution, roster.NewAPIError(roster.ClassAuthorization, roster.KindInstitution, 401, errors.New("invalid key")))
	env.runCLITests(t, []cliTest{
		{name: "failed run", args: []string{"sync"}, wantErr: errSyncFailed},
	})
}
