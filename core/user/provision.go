package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
)

var ErrMissingEmail = errors.New("principal email is required")

// Principal is the outcome of EnsurePrincipal.
type Principal struct {
	ID      string
	Created bool
}

// Directory is an in-memory email index of all principals. It is loaded once per sync run
// so that the lookup-before-create check does not hit the store for every record.
type Directory struct {
	byEmail map[string]User
}

func LoadDirectory(ctx context.Context, repo Repository) (*Directory, error) {
	users, err := repo.QueryUsers(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "loading principals")
	}
	dir := &Directory{byEmail: make(map[string]User, len(users))}
	for _, usr := range users {
		dir.add(usr)
	}
	return dir, nil
}

func (dir *Directory) Lookup(email string) (User, bool) {
	usr, ok := dir.byEmail[core.CleanString(email, true /* lower */)]
	return usr, ok
}

func (dir *Directory) Len() int { return len(dir.byEmail) }

func (dir *Directory) add(usr User) {
	dir.byEmail[core.CleanString(usr.Email, true /* lower */)] = usr
}

// Provisioner creates the principals of roster people on demand. Not safe for concurrent use:
// a sync run drives it from a single goroutine.
type Provisioner struct {
	repo    Repository
	dir     *Directory
	mailSvc core.EmailService
	clock   core.Clock

	newPassword func() (string, error) // mockable
}

// NewProvisioner loads the principals Directory. mailSvc may be nil, no welcome emails are sent then.
func NewProvisioner(ctx context.Context, repo Repository, mailSvc core.EmailService, clock core.Clock) (*Provisioner, error) {
	dir, err := LoadDirectory(ctx, repo)
	if err != nil {
		return nil, err
	}
	return &Provisioner{
		repo:        repo,
		dir:         dir,
		mailSvc:     mailSvc,
		clock:       clock,
		newPassword: GenerateTemporaryPassword,
	}, nil
}

// EnsurePrincipal returns the principal registered under `email`, creating it with `role` & a random
// temporary password when there is none. New principals must change their password on first login.
func (p *Provisioner) EnsurePrincipal(ctx context.Context, email, displayName, role string, metadata Metadata) (Principal, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return Principal{}, ErrMissingEmail
	}
	if usr, ok := p.dir.Lookup(email); ok {
		return Principal{ID: usr.ID}, nil
	}

	pwd, err := p.newPassword()
	if err != nil {
		return Principal{}, errors.Wrap(err, "generating temporary password")
	}
	now := p.clock.Now()
	usr := User{
		Name:               core.CleanString(displayName),
		Email:              email,
		Role:               role,
		IsActive:           true,
		MustChangePassword: true,
		Metadata:           metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err = usr.SetPassword(pwd); err != nil {
		return Principal{}, errors.Wrap(err, "hashing temporary password")
	}

	usr, err = p.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) != ErrEmailExists {
			return Principal{}, errors.Wrap(err, "creating principal")
		}
		// created by a concurrent run since the directory was loaded
		existing, gErr := p.repo.GetUser(ctx, GetFilter{Email: email})
		if gErr != nil {
			return Principal{}, errors.Wrap(gErr, "finding principal by email")
		}
		p.dir.add(existing)
		return Principal{ID: existing.ID}, nil
	}
	p.dir.add(usr)
	p.sendWelcomeMail(usr, pwd)
	return Principal{ID: usr.ID, Created: true}, nil
}

type welcomeData struct {
	Name     string
	Email    string
	Role     string
	Password string
}

func (p *Provisioner) sendWelcomeMail(usr User, pwd string) {
	if p.mailSvc == nil {
		return
	}
	p.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your account",
		TemplateName: "welcome",
		TemplateData: welcomeData{Name: usr.Name, Email: usr.Email, Role: usr.Role, Password: pwd},
	})
}
