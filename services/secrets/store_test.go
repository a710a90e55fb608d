package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestStore_Secret_dir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "MYJKKN_API_KEY"), []byte("s3cr3t\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "EMPTY"), []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewStore(dir)

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr error
	}{
		{name: "found", secret: "MYJKKN_API_KEY", want: "s3cr3t"},
		{name: "missing", secret: "NOPE", wantErr: ErrSecretNotFound},
		{name: "empty", secret: "EMPTY", wantErr: ErrSecretNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Secret(context.Background(), tt.secret)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("Secret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Secret() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := store.Secret(context.Background(), "../etc/passwd"); err == nil {
		t.Error("Secret() error = nil, want an invalid name error")
	}
}

func TestStore_Secret_env(t *testing.T) {
	t.Setenv("USHAURI_TEST_ROSTER_KEY", "from-env")
	store := NewStore("")

	got, err := store.Secret(context.Background(), "USHAURI_TEST_ROSTER_KEY")
	if err != nil || got != "from-env" {
		t.Errorf("Secret() = (%q, %v), want %q", got, err, "from-env")
	}

	// no caching: rotated values are read on the next call
	t.Setenv("USHAURI_TEST_ROSTER_KEY", "rotated")
	if got, _ = store.Secret(context.Background(), "USHAURI_TEST_ROSTER_KEY"); got != "rotated" {
		t.Errorf("Secret() = %q, want %q", got, "rotated")
	}

	if _, err = store.Secret(context.Background(), "USHAURI_TEST_UNSET"); errors.Cause(err) != ErrSecretNotFound {
		t.Errorf("Secret() error = %v, want %v", err, ErrSecretNotFound)
	}
}
