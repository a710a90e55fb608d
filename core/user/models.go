package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ushauri/core"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleDeptLead = "dept_lead"
	RoleMentor   = "mentor"
	RoleMentee   = "mentee"
)

var (
	AllRoles = []string{RoleAdmin, RoleDeptLead, RoleMentor, RoleMentee}

	rolePriorities = map[string]int{
		RoleAdmin:    40,
		RoleDeptLead: 30,
		RoleMentor:   20,
		RoleMentee:   10,
	}

	Roles = []Role{
		{Name: "Mentee", Value: RoleMentee},
		{Name: "Mentor", Value: RoleMentor},
		{Name: "Department Lead", Value: RoleDeptLead},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Metadata is free-form data attached to a principal, eg. the roster IDs it was provisioned from.
type Metadata map[string]string

// User is an authentication principal. Business profiles (staff, students) link to it by ID.
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	IsActive           bool      `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`
	Metadata           Metadata  `json:"metadata,omitempty"`
	PasswordHash       []byte    `json:"-"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
	LastLogin          time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// ChangePassword is used by a principal to replace its (temporary) password.
type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User // for the attributes similarity check
}

func (cp *ChangePassword) Validate(validate *validator.Validate, usr User) error {
	cp.usr = usr
	return validate.Struct(cp)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
