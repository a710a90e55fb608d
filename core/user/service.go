package user

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrInvalidPassword = errors.New("invalid password")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		ResetPassword(ctx context.Context, email, pwd string) error
	}

	service struct {
		repo  Repository
		clock core.Clock
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, clock core.Clock) Service {
	return &service{repo: repo, clock: clock}
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.clock.Now()
	usr := User{
		Name:      nu.Name,
		Email:     core.CleanString(nu.Email, true /* lower */),
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.clock.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword replaces the password of `usr`, clearing the forced rotation flag set on provisioning.
func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return User{}, core.NewValidationError(ErrInvalidPassword, core.FieldError{Field: "current_password", Error: ErrInvalidPassword.Error()})
	}
	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = svc.clock.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResetPassword is the admin override: the principal must change it again on next login.
func (svc *service) ResetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.MustChangePassword = true
	usr.UpdatedAt = svc.clock.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
