package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
)

const userColumns = "id, name, email, role, is_active, password_hash, must_change_password, metadata, created_at, updated_at, last_login"

type userRow struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	Email              string     `db:"email"`
	Role               string     `db:"role"`
	IsActive           bool       `db:"is_active"`
	PasswordHash       null.Bytes `db:"password_hash"`
	MustChangePassword bool       `db:"must_change_password"`
	Metadata           string     `db:"metadata"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	LastLogin          null.Time  `db:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) (userRow, error) {
	md := []byte("{}")
	if len(usr.Metadata) > 0 {
		var err error
		if md, err = json.Marshal(usr.Metadata); err != nil {
			return userRow{}, errors.Wrap(err, "encoding user metadata")
		}
	}
	return userRow{
		ID:                 usr.ID,
		Name:               usr.Name,
		Email:              usr.Email,
		Role:               usr.Role,
		IsActive:           usr.IsActive,
		PasswordHash:       null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		MustChangePassword: usr.MustChangePassword,
		Metadata:           string(md),
		CreatedAt:          usr.CreatedAt.UTC(),
		UpdatedAt:          usr.UpdatedAt.UTC(),
		LastLogin:          null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}, nil
}

func (repo userRepository) fromRow(row userRow) (user.User, error) {
	var md user.Metadata
	if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil {
		return user.User{}, errors.Wrap(err, "decoding user metadata")
	}
	if len(md) == 0 {
		md = nil
	}
	return user.User{
		ID:                 row.ID,
		Name:               row.Name,
		Email:              row.Email,
		Role:               row.Role,
		IsActive:           row.IsActive,
		MustChangePassword: row.MustChangePassword,
		Metadata:           md,
		PasswordHash:       row.PasswordHash.Bytes,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
		LastLogin:          row.LastLogin.Time.UTC(),
	}, nil
}

func (repo userRepository) fromRows(rows []userRow) ([]user.User, error) {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo userRepository) emailTaken(ctx context.Context, exec core.DBExecutor, email, excludedID string) (bool, error) {
	var count int
	err := repo.get(ctx, exec, &count, "SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?", email, excludedID)
	return count > 0, errors.Wrap(err, "checking email uniqueness")
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	e := repo.getExec(exec)
	taken, err := repo.emailTaken(ctx, e, usr.Email, "")
	if err != nil {
		return user.User{}, err
	}
	if taken {
		return user.User{}, user.ErrEmailExists
	}

	usr.ID = core.NewID()
	row, err := repo.toRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := "INSERT INTO users (" + userColumns + ") VALUES (:id, :name, :email, :role, :is_active, :password_hash, " +
		":must_change_password, :metadata, :created_at, :updated_at, :last_login)"
	if _, err = sqlx.NamedExecContext(ctx, e, q, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)")
			args = append(args, val, val)
		}
		if len(filter.Roles) > 0 {
			cond, roleArgs, err := sqlx.In("role IN (?)", filter.Roles)
			if err != nil {
				return nil, errors.Wrap(err, "filtering users by role")
			}
			where = append(where, cond)
			args = append(args, roleArgs...)
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, email"

	var rows []userRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return repo.fromRows(rows)
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ID != "" {
		where = append(where, "id = ?")
		args = append(args, filter.ID)
	}
	if filter.Email != "" {
		where = append(where, "email = ?")
		args = append(args, filter.Email)
	}
	if len(where) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := "SELECT " + userColumns + " FROM users WHERE " + strings.Join(where, " AND ")
	if err := repo.get(ctx, repo.getExec(exec), &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return repo.fromRow(row)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	e := repo.getExec(exec)
	taken, err := repo.emailTaken(ctx, e, usr.Email, usr.ID)
	if err != nil {
		return user.User{}, err
	}
	if taken {
		return user.User{}, user.ErrEmailExists
	}

	row, err := repo.toRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := "UPDATE users SET name = :name, email = :email, role = :role, is_active = :is_active, " +
		"password_hash = :password_hash, must_change_password = :must_change_password, metadata = :metadata, " +
		"updated_at = :updated_at, last_login = :last_login WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, e, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// UpdateOrCreateUser matches users by email.
func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	existing, err := repo.GetUser(ctx, user.GetFilter{Email: usr.Email}, exec...)
	switch {
	case err == user.ErrNotFound:
		return repo.CreateUser(ctx, usr, exec...)
	case err != nil:
		return user.User{}, err
	}
	usr.ID = existing.ID
	usr.CreatedAt = existing.CreatedAt
	return repo.UpdateUser(ctx, usr, exec...)
}
