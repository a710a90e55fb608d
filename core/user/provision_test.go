package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/ushauri/core/user"
	inmemdb "github.com/trezcool/ushauri/storage/database/inmem"
	"github.com/trezcool/ushauri/testutil"
)

func TestProvisioner_EnsurePrincipal(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	existing := testutil.CreateUser(t, repo, "Jane Doe", "jane@jkkn.ac.in", "Str0ng!Pass#", user.RoleMentor, true)
	mailer := new(testutil.Mailer)
	clock := testutil.NewClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))

	prov, err := user.NewProvisioner(ctx, repo, mailer, clock)
	if err != nil {
		t.Fatalf("NewProvisioner() error = %v", err)
	}

	// registered after the directory was loaded, eg. by a concurrent run
	late := testutil.CreateUser(t, repo, "Late Comer", "late@jkkn.ac.in", "", user.RoleMentee, true)

	tests := []struct {
		name        string
		email       string
		wantID      string
		wantCreated bool
		wantErr     error
	}{
		{name: "missing email", email: "  ", wantErr: user.ErrMissingEmail},
		{name: "existing principal", email: " JANE@jkkn.ac.in", wantID: existing.ID},
		{name: "concurrently created principal", email: "late@jkkn.ac.in", wantID: late.ID},
		{name: "new principal", email: "anu@jkkn.ac.in", wantCreated: true},
		{name: "principal created by this run", email: "Anu@jkkn.ac.in"},
	}
	var anuID string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prov.EnsurePrincipal(ctx, tt.email, "Anu", user.RoleMentee, user.Metadata{"student_id": "ST1"})
			if err != tt.wantErr {
				t.Fatalf("EnsurePrincipal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Created != tt.wantCreated {
				t.Errorf("EnsurePrincipal() created = %v, want %v", got.Created, tt.wantCreated)
			}
			switch {
			case tt.wantID != "" && got.ID != tt.wantID:
				t.Errorf("EnsurePrincipal() id = %s, want %s", got.ID, tt.wantID)
			case got.Created:
				anuID = got.ID
			case tt.wantErr == nil && tt.wantID == "" && got.ID != anuID:
				t.Errorf("EnsurePrincipal() id = %s, want %s", got.ID, anuID)
			}
		})
	}

	anu, err := repo.GetUser(ctx, user.GetFilter{Email: "anu@jkkn.ac.in"})
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if anu.Role != user.RoleMentee || !anu.IsActive || !anu.MustChangePassword || len(anu.PasswordHash) == 0 {
		t.Errorf("provisioned user = %+v, want an active mentee with a temporary password", anu)
	}
	if anu.Metadata["student_id"] != "ST1" || !anu.CreatedAt.Equal(clock.Now()) {
		t.Errorf("provisioned user = %+v, want student_id metadata & created now", anu)
	}

	sent := mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("welcome emails sent = %d, want 1", len(sent))
	}
	if msg := sent[0]; msg.TemplateName != "welcome" || len(msg.To) != 1 || msg.To[0].Address != "anu@jkkn.ac.in" {
		t.Errorf("welcome email = %+v, want the welcome template sent to anu@jkkn.ac.in", msg)
	}
}

func TestLoadDirectory(t *testing.T) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	testutil.CreateUser(t, repo, "Jane Doe", "jane@jkkn.ac.in", "", user.RoleMentor, true)
	testutil.CreateUser(t, repo, "Ravi Kumar", "ravi@jkkn.ac.in", "", user.RoleMentor, false)

	dir, err := user.LoadDirectory(context.Background(), repo)
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if dir.Len() != 2 {
		t.Errorf("LoadDirectory() len = %d, want 2", dir.Len())
	}
	if _, ok := dir.Lookup("RAVI@jkkn.ac.in "); !ok {
		t.Error("Lookup() = false, want an inactive principal to be found")
	}
	if _, ok := dir.Lookup("anu@jkkn.ac.in"); ok {
		t.Error("Lookup() = true, want false")
	}
}
