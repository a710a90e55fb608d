package roster

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
)

var ErrNotFound = errors.New("roster record not found")

// Kind is one of the roster entity kinds.
type Kind string

const (
	KindInstitution Kind = "institution"
	KindDepartment  Kind = "department"
	KindStaff       Kind = "staff"
	KindStudent     Kind = "student"
)

// SyncOrder is the dependency order of the entity kinds: departments reference institutions,
// profiles carry department names.
var SyncOrder = []Kind{KindInstitution, KindDepartment, KindStaff, KindStudent}

// IsPerson reports whether records of this kind are linked to an auth principal.
func (k Kind) IsPerson() bool {
	return k == KindStaff || k == KindStudent
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Sentinels used when the upstream record does not carry a value.
const (
	UnknownInstitution = "Unknown Institution"
	UnknownDepartment  = "Unknown Department"
	UnknownProgram     = "Unknown Program"
	UnknownDesignation = "Unknown Designation"
	UnknownName        = "Unknown"
)

// Record is a normalized roster record, ready to be upserted.
type Record interface {
	Kind() Kind
	Key() string // external ID
}

type Institution struct {
	ExternalID  string
	Name        string
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Department struct {
	ExternalID     string
	Name           string
	Description    string
	InstitutionRef string // weak reference to Institution.ExternalID
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type StaffProfile struct {
	ExternalID       string // staff ID
	Name             string
	Email            string // join key to the auth principal
	Department       string // denormalized department name
	Designation      string
	Status           Status
	Mobile           string
	AuthPrincipalRef string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type StudentProfile struct {
	ExternalID       string // student ID
	RollNo           string
	Name             string
	Email            string // join key to the auth principal
	Program          string // denormalized program name
	Department       string // denormalized department name
	SemesterYear     string
	Status           Status
	Mobile           string
	AuthPrincipalRef string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r Institution) Kind() Kind { return KindInstitution }
func (r Institution) Key() string { return r.ExternalID }

func (r Department) Kind() Kind { return KindDepartment }
func (r Department) Key() string { return r.ExternalID }

func (r StaffProfile) Kind() Kind { return KindStaff }
func (r StaffProfile) Key() string { return r.ExternalID }

func (r StudentProfile) Kind() Kind { return KindStudent }
func (r StudentProfile) Key() string { return r.ExternalID }

// SameAs reports whether both records hold the same synced values (timestamps aside).
func (r Institution) SameAs(o Institution) bool {
	return r.ExternalID == o.ExternalID && r.Name == o.Name && r.Description == o.Description && r.Status == o.Status
}

func (r Department) SameAs(o Department) bool {
	return r.ExternalID == o.ExternalID && r.Name == o.Name && r.Description == o.Description &&
		r.InstitutionRef == o.InstitutionRef && r.Status == o.Status
}

func (r StaffProfile) SameAs(o StaffProfile) bool {
	return r.ExternalID == o.ExternalID && r.Name == o.Name && r.Email == o.Email && r.Department == o.Department &&
		r.Designation == o.Designation && r.Status == o.Status && r.Mobile == o.Mobile && r.AuthPrincipalRef == o.AuthPrincipalRef
}

func (r StudentProfile) SameAs(o StudentProfile) bool {
	return r.ExternalID == o.ExternalID && r.RollNo == o.RollNo && r.Name == o.Name && r.Email == o.Email &&
		r.Program == o.Program && r.Department == o.Department && r.SemesterYear == o.SemesterYear &&
		r.Status == o.Status && r.Mobile == o.Mobile && r.AuthPrincipalRef == o.AuthPrincipalRef
}

// Outcome of an upsert.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Repository upserts roster records keyed by their external ID. Each call is atomic per record.
type Repository interface {
	UpsertInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Outcome, error)
	UpsertDepartment(ctx context.Context, dept Department, exec ...core.DBExecutor) (Outcome, error)
	UpsertStaff(ctx context.Context, staff StaffProfile, exec ...core.DBExecutor) (Outcome, error)
	UpsertStudent(ctx context.Context, student StudentProfile, exec ...core.DBExecutor) (Outcome, error)

	GetInstitution(ctx context.Context, externalID string, exec ...core.DBExecutor) (Institution, error)
	GetDepartment(ctx context.Context, externalID string, exec ...core.DBExecutor) (Department, error)
	GetStaff(ctx context.Context, externalID string, exec ...core.DBExecutor) (StaffProfile, error)
	GetStudent(ctx context.Context, externalID string, exec ...core.DBExecutor) (StudentProfile, error)
}

// Page is one page of raw upstream records.
type Page struct {
	Records      []RawRecord
	Page         int
	TotalPages   int
	HasMorePages bool
}

// Source produces raw roster records, one page at a time. Pages start at 1.
type Source interface {
	FetchPage(ctx context.Context, kind Kind, page, pageSize int) (Page, error)
}
