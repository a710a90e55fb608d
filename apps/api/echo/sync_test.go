package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/syncrun"
	"github.com/trezcool/ushauri/core/user"
	"github.com/trezcool/ushauri/testutil"
)

func Test_syncApi_trigger(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.users, "Admin", "admin@jkkn.ac.in", "", user.RoleAdmin, true)
	mentor := testutil.CreateUser(t, app.users, "Ravi Kumar", "ravi@jkkn.ac.in", "", user.RoleMentor, true)
	adminToken := app.getToken(t, admin)

	app.src.
		AddPage(roster.KindStaff, roster.RawRecord{
			"staff_id": "S1", "first_name": "Jane", "last_name": "Doe", "email": "jane@jkkn.ac.in",
			"department": "CSE", "designation": "Assistant Professor", "status": "active",
		}).
		AddPage(roster.KindStudent,
			roster.RawRecord{"student_id": "ST1", "first_name": "Anu", "student_email": "anu@jkkn.ac.in", "status": "active"},
			roster.RawRecord{"student_id": "ST2", "first_name": "Bala", "status": "active"},
		)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/sync", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "admin required", method: http.MethodPost, path: "/v1/sync", body: []byte(`{"action": "sync_all"}`),
			token: app.getToken(t, mentor), wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "missing action", method: http.MethodPost, path: "/v1/sync", body: []byte(`{}`), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"action": "this field is required"}),
		},
		{
			name: "unknown action", method: http.MethodPost, path: "/v1/sync", body: []byte(`{"action": "sync_courses"}`), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"action": "must be one of: sync_all, sync_students, sync_staff"}),
		},
	})
	if len(app.src.Calls) != 0 {
		t.Fatalf("invalid requests fetched %d pages, want 0", len(app.src.Calls))
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/sync", adminToken, []byte(`{"action": "sync_all", "syncStaff": true}`))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/sync code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp rostersync.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if !resp.Success || resp.UsersProcessed != 3 || resp.UsersCreated != 2 || resp.UsersUpdated != 0 {
		t.Errorf("POST /v1/sync = %+v, want success with 3 processed & 2 created", resp)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].ExternalID != "ST2" || resp.Errors[0].EntityType != string(roster.KindStudent) {
		t.Errorf("POST /v1/sync errors = %+v, want 1 error for ST2", resp.Errors)
	}

	run, err := app.runs.GetRun(context.Background(), resp.SyncLogID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != syncrun.StatusCompletedWithErrors || run.TriggeredBy != admin.Email || run.SyncType != rostersync.ActionSyncAll {
		t.Errorf("GetRun() = %+v", run)
	}

	runHTTPTests(t, app, []httpTest{
		{name: "run details", path: "/v1/sync/runs/" + run.ID, token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, run)},
	})
}

func Test_syncApi_runs(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.users, "Admin", "admin@jkkn.ac.in", "", user.RoleAdmin, true)
	mentor := testutil.CreateUser(t, app.users, "Ravi Kumar", "ravi@jkkn.ac.in", "", user.RoleMentor, true)
	token := app.getToken(t, admin)

	t0 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	completed := mustCreateRun(t, app.runs, syncrun.StatusCompleted, t0)
	failed := mustCreateRun(t, app.runs, syncrun.StatusFailed, t0.Add(time.Hour))
	running := mustCreateRun(t, app.runs, syncrun.StatusInProgress, t0.Add(2*time.Hour))

	list := func(runs ...syncrun.SyncRun) []byte { return marshallObj(t, runs) }

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/sync/runs", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/sync/runs", token: app.getToken(t, mentor), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "latest first", path: "/v1/sync/runs", token: token, wantCode: http.StatusOK, wantData: list(running, failed, completed)},
		{name: "limit", path: "/v1/sync/runs?limit=2", token: token, wantCode: http.StatusOK, wantData: list(running, failed)},
		{name: "invalid limit", path: "/v1/sync/runs?limit=lol", token: token, wantCode: http.StatusOK, wantData: list(running, failed, completed)},
		{name: "status", path: "/v1/sync/runs?status=failed", token: token, wantCode: http.StatusOK, wantData: list(failed)},
		{name: "unknown status", path: "/v1/sync/runs?status=lol", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "oldest first", path: "/v1/sync/runs?ordering=started_at", token: token, wantCode: http.StatusOK, wantData: list(completed, failed, running)},
		{name: "unknown ordering", path: "/v1/sync/runs?ordering=-password", token: token, wantCode: http.StatusOK, wantData: list(running, failed, completed)},
		{name: "details", path: "/v1/sync/runs/" + failed.ID, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, failed)},
		{name: "unknown run", path: "/v1/sync/runs/lol", token: token, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})},
	})
}

func Test_syncApi_trigger_clientGone(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.users, "Admin", "admin@jkkn.ac.in", "", user.RoleAdmin, true)
	app.src.
		AddPage(roster.KindInstitution, roster.RawRecord{"id": "inst1", "name": "JKKN", "status": "active"}).
		AddPage(roster.KindStaff, roster.RawRecord{
			"staff_id": "S1", "first_name": "Jane", "last_name": "Doe", "email": "jane@jkkn.ac.in",
			"department": "CSE", "designation": "Assistant Professor", "status": "active",
		})

	// the client disconnected before the run started
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req, rec := newAuthRequest(http.MethodPost, "/v1/sync", app.getToken(t, admin), []byte(`{"action": "sync_all"}`))
	app.ServeHTTP(rec, req.WithContext(reqCtx))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/sync code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp rostersync.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if !resp.Success || resp.UsersCreated != 1 || len(resp.Errors) != 0 {
		t.Errorf("POST /v1/sync = %+v, want a completed run", resp)
	}
	run, err := app.runs.GetRun(context.Background(), resp.SyncLogID)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != syncrun.StatusCompleted {
		t.Errorf("run status = %s, want %s", run.Status, syncrun.StatusCompleted)
	}
	if len(app.src.CallsFor(roster.KindStudent)) == 0 {
		t.Error("students were never fetched, want the whole run to go through")
	}
}
