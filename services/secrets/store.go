// Package secrets reads the secrets the app needs at runtime, like the roster API key.
package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var ErrSecretNotFound = errors.New("secret not found")

// Store reads secrets from files named after them in dir (eg. mounted k8s/docker secrets) or,
// without dir, from the environment. Secrets are read on every call: a rotated secret is picked up
// by the next sync run.
type Store struct {
	dir string
	env *viper.Viper
}

func NewStore(dir string) *Store {
	env := viper.New()
	env.AutomaticEnv()
	return &Store{dir: dir, env: env}
}

func (s *Store) Secret(_ context.Context, name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "" || name == "." || name == ".." {
		return "", errors.Errorf("invalid secret name %q", name)
	}

	var val string
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return "", errors.Wrap(ErrSecretNotFound, name)
			}
			return "", errors.Wrapf(err, "reading secret %s", name)
		}
		val = string(data)
	} else {
		val = s.env.GetString(name)
	}

	if val = strings.TrimSpace(val); val == "" {
		return "", errors.Wrap(ErrSecretNotFound, name)
	}
	return val, nil
}
