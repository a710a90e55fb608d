package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) byEmail(email string) (user.User, bool) {
	for _, u := range repo.db.table {
		if u.Email == email {
			return u, true
		}
	}
	return user.User{}, false
}

func copyMetadata(md user.Metadata) user.Metadata {
	if md == nil {
		return nil
	}
	cp := make(user.Metadata, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return cp
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, exists := repo.byEmail(usr.Email); exists {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = core.NewID()
	usr.Metadata = copyMetadata(usr.Metadata)
	repo.db.table[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()
	if filter == nil {
		return users, nil
	}

	search := strings.ToLower(filter.Search)
	filtered := users[:0]
	for _, usr := range users {
		if search != "" && !strings.Contains(strings.ToLower(usr.Name), search) && !strings.Contains(usr.Email, search) {
			continue
		}
		if len(filter.Roles) > 0 && !hasRole(usr, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		filtered = append(filtered, usr)
	}
	return filtered, nil
}

func hasRole(usr user.User, roles []string) bool {
	for _, role := range roles {
		if usr.Role == role {
			return true
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.table[filter.ID]; ok && (filter.Email == "" || usr.Email == filter.Email) {
			return usr, nil
		}
	case filter.Email != "":
		if usr, ok := repo.byEmail(filter.Email); ok {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if other, exists := repo.byEmail(usr.Email); exists && other.ID != usr.ID {
		return user.User{}, user.ErrEmailExists
	}
	usr.Metadata = copyMetadata(usr.Metadata)
	repo.db.table[usr.ID] = usr
	return usr, nil
}

// UpdateOrCreateUser matches users by email.
func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	existing, exists := repo.byEmail(usr.Email)
	repo.db.Unlock()

	if !exists {
		return repo.CreateUser(ctx, usr)
	}
	usr.ID = existing.ID
	usr.CreatedAt = existing.CreatedAt
	return repo.UpdateUser(ctx, usr)
}
