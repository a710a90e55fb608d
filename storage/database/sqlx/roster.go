package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
)

// Every upsert is one atomic statement keyed by external_id: concurrent runs cannot duplicate rows.
// The outcome is decided against the row read beforehand.
const (
	institutionColumns = "external_id, name, description, status, created_at, updated_at"
	upsertInstitution  = "INSERT INTO institutions (" + institutionColumns + ") " +
		"VALUES (:external_id, :name, :description, :status, :created_at, :updated_at) " +
		"ON CONFLICT (external_id) DO UPDATE SET name = excluded.name, description = excluded.description, " +
		"status = excluded.status, updated_at = excluded.updated_at"

	departmentColumns = "external_id, name, description, institution_ref, status, created_at, updated_at"
	upsertDepartment  = "INSERT INTO departments (" + departmentColumns + ") " +
		"VALUES (:external_id, :name, :description, :institution_ref, :status, :created_at, :updated_at) " +
		"ON CONFLICT (external_id) DO UPDATE SET name = excluded.name, description = excluded.description, " +
		"institution_ref = excluded.institution_ref, status = excluded.status, updated_at = excluded.updated_at"

	staffColumns = "external_id, name, email, department, designation, status, mobile, auth_principal_ref, created_at, updated_at"
	upsertStaff  = "INSERT INTO staff_profiles (" + staffColumns + ") " +
		"VALUES (:external_id, :name, :email, :department, :designation, :status, :mobile, :auth_principal_ref, " +
		":created_at, :updated_at) " +
		"ON CONFLICT (external_id) DO UPDATE SET name = excluded.name, email = excluded.email, " +
		"department = excluded.department, designation = excluded.designation, status = excluded.status, " +
		"mobile = excluded.mobile, auth_principal_ref = excluded.auth_principal_ref, updated_at = excluded.updated_at"

	studentColumns = "external_id, roll_no, name, email, program, department, semester_year, status, mobile, " +
		"auth_principal_ref, created_at, updated_at"
	upsertStudent = "INSERT INTO student_profiles (" + studentColumns + ") " +
		"VALUES (:external_id, :roll_no, :name, :email, :program, :department, :semester_year, :status, :mobile, " +
		":auth_principal_ref, :created_at, :updated_at) " +
		"ON CONFLICT (external_id) DO UPDATE SET roll_no = excluded.roll_no, name = excluded.name, " +
		"email = excluded.email, program = excluded.program, department = excluded.department, " +
		"semester_year = excluded.semester_year, status = excluded.status, mobile = excluded.mobile, " +
		"auth_principal_ref = excluded.auth_principal_ref, updated_at = excluded.updated_at"
)

type (
	institutionRow struct {
		ExternalID  string    `db:"external_id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		Status      string    `db:"status"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	departmentRow struct {
		ExternalID     string    `db:"external_id"`
		Name           string    `db:"name"`
		Description    string    `db:"description"`
		InstitutionRef string    `db:"institution_ref"`
		Status         string    `db:"status"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	staffRow struct {
		ExternalID       string      `db:"external_id"`
		Name             string      `db:"name"`
		Email            string      `db:"email"`
		Department       string      `db:"department"`
		Designation      string      `db:"designation"`
		Status           string      `db:"status"`
		Mobile           null.String `db:"mobile"`
		AuthPrincipalRef null.String `db:"auth_principal_ref"`
		CreatedAt        time.Time   `db:"created_at"`
		UpdatedAt        time.Time   `db:"updated_at"`
	}

	studentRow struct {
		ExternalID       string      `db:"external_id"`
		RollNo           string      `db:"roll_no"`
		Name             string      `db:"name"`
		Email            string      `db:"email"`
		Program          string      `db:"program"`
		Department       string      `db:"department"`
		SemesterYear     string      `db:"semester_year"`
		Status           string      `db:"status"`
		Mobile           null.String `db:"mobile"`
		AuthPrincipalRef null.String `db:"auth_principal_ref"`
		CreatedAt        time.Time   `db:"created_at"`
		UpdatedAt        time.Time   `db:"updated_at"`
	}
)

type rosterRepository struct {
	repository
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(exec core.DBExecutor) roster.Repository {
	return &rosterRepository{repository{exec: exec}}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// upsert writes `row` unless the record was found unchanged.
func (repo rosterRepository) upsert(ctx context.Context, e core.DBExecutor, query string, row interface{}, found, same bool) (roster.Outcome, error) {
	if found && same {
		return roster.OutcomeUnchanged, nil
	}
	if _, err := sqlx.NamedExecContext(ctx, e, query, row); err != nil {
		return 0, err
	}
	if found {
		return roster.OutcomeUpdated, nil
	}
	return roster.OutcomeCreated, nil
}

// lookup tells whether the record was found, trapping roster.ErrNotFound.
func lookup(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case err == roster.ErrNotFound:
		return false, nil
	default:
		return false, err
	}
}

func (repo rosterRepository) UpsertInstitution(ctx context.Context, inst roster.Institution, exec ...core.DBExecutor) (roster.Outcome, error) {
	e := repo.getExec(exec)
	existing, err := repo.GetInstitution(ctx, inst.ExternalID, e)
	found, err := lookup(err)
	if err != nil {
		return 0, err
	}
	row := institutionRow{
		ExternalID:  inst.ExternalID,
		Name:        inst.Name,
		Description: inst.Description,
		Status:      string(inst.Status),
		CreatedAt:   inst.CreatedAt.UTC(),
		UpdatedAt:   inst.UpdatedAt.UTC(),
	}
	outcome, err := repo.upsert(ctx, e, upsertInstitution, row, found, existing.SameAs(inst))
	return outcome, errors.Wrap(err, "upserting institution")
}

func (repo rosterRepository) UpsertDepartment(ctx context.Context, dept roster.Department, exec ...core.DBExecutor) (roster.Outcome, error) {
	e := repo.getExec(exec)
	existing, err := repo.GetDepartment(ctx, dept.ExternalID, e)
	found, err := lookup(err)
	if err != nil {
		return 0, err
	}
	row := departmentRow{
		ExternalID:     dept.ExternalID,
		Name:           dept.Name,
		Description:    dept.Description,
		InstitutionRef: dept.InstitutionRef,
		Status:         string(dept.Status),
		CreatedAt:      dept.CreatedAt.UTC(),
		UpdatedAt:      dept.UpdatedAt.UTC(),
	}
	outcome, err := repo.upsert(ctx, e, upsertDepartment, row, found, existing.SameAs(dept))
	return outcome, errors.Wrap(err, "upserting department")
}

func (repo rosterRepository) UpsertStaff(ctx context.Context, staff roster.StaffProfile, exec ...core.DBExecutor) (roster.Outcome, error) {
	e := repo.getExec(exec)
	existing, err := repo.GetStaff(ctx, staff.ExternalID, e)
	found, err := lookup(err)
	if err != nil {
		return 0, err
	}
	row := staffRow{
		ExternalID:       staff.ExternalID,
		Name:             staff.Name,
		Email:            staff.Email,
		Department:       staff.Department,
		Designation:      staff.Designation,
		Status:           string(staff.Status),
		Mobile:           nullString(staff.Mobile),
		AuthPrincipalRef: nullString(staff.AuthPrincipalRef),
		CreatedAt:        staff.CreatedAt.UTC(),
		UpdatedAt:        staff.UpdatedAt.UTC(),
	}
	outcome, err := repo.upsert(ctx, e, upsertStaff, row, found, existing.SameAs(staff))
	return outcome, errors.Wrap(err, "upserting staff profile")
}

func (repo rosterRepository) UpsertStudent(ctx context.Context, student roster.StudentProfile, exec ...core.DBExecutor) (roster.Outcome, error) {
	e := repo.getExec(exec)
	existing, err := repo.GetStudent(ctx, student.ExternalID, e)
	found, err := lookup(err)
	if err != nil {
		return 0, err
	}
	row := studentRow{
		ExternalID:       student.ExternalID,
		RollNo:           student.RollNo,
		Name:             student.Name,
		Email:            student.Email,
		Program:          student.Program,
		Department:       student.Department,
		SemesterYear:     student.SemesterYear,
		Status:           string(student.Status),
		Mobile:           nullString(student.Mobile),
		AuthPrincipalRef: nullString(student.AuthPrincipalRef),
		CreatedAt:        student.CreatedAt.UTC(),
		UpdatedAt:        student.UpdatedAt.UTC(),
	}
	outcome, err := repo.upsert(ctx, e, upsertStudent, row, found, existing.SameAs(student))
	return outcome, errors.Wrap(err, "upserting student profile")
}

func (repo rosterRepository) GetInstitution(ctx context.Context, externalID string, exec ...core.DBExecutor) (roster.Institution, error) {
	var row institutionRow
	q := "SELECT " + institutionColumns + " FROM institutions WHERE external_id = ?"
	if err := repo.get(ctx, repo.getExec(exec), &row, q, externalID); err != nil {
		return roster.Institution{}, trapNoRowsErr(err, roster.ErrNotFound, "selecting institution")
	}
	return roster.Institution{
		ExternalID:  row.ExternalID,
		Name:        row.Name,
		Description: row.Description,
		Status:      roster.Status(row.Status),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}, nil
}

func (repo rosterRepository) GetDepartment(ctx context.Context, externalID string, exec ...core.DBExecutor) (roster.Department, error) {
	var row departmentRow
	q := "SELECT " + departmentColumns + " FROM departments WHERE external_id = ?"
	if err := repo.get(ctx, repo.getExec(exec), &row, q, externalID); err != nil {
		return roster.Department{}, trapNoRowsErr(err, roster.ErrNotFound, "selecting department")
	}
	return roster.Department{
		ExternalID:     row.ExternalID,
		Name:           row.Name,
		Description:    row.Description,
		InstitutionRef: row.InstitutionRef,
		Status:         roster.Status(row.Status),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}, nil
}

func (repo rosterRepository) GetStaff(ctx context.Context, externalID string, exec ...core.DBExecutor) (roster.StaffProfile, error) {
	var row staffRow
	q := "SELECT " + staffColumns + " FROM staff_profiles WHERE external_id = ?"
	if err := repo.get(ctx, repo.getExec(exec), &row, q, externalID); err != nil {
		return roster.StaffProfile{}, trapNoRowsErr(err, roster.ErrNotFound, "selecting staff profile")
	}
	return roster.StaffProfile{
		ExternalID:       row.ExternalID,
		Name:             row.Name,
		Email:            row.Email,
		Department:       row.Department,
		Designation:      row.Designation,
		Status:           roster.Status(row.Status),
		Mobile:           row.Mobile.String,
		AuthPrincipalRef: row.AuthPrincipalRef.String,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

func (repo rosterRepository) GetStudent(ctx context.Context, externalID string, exec ...core.DBExecutor) (roster.StudentProfile, error) {
	var row studentRow
	q := "SELECT " + studentColumns + " FROM student_profiles WHERE external_id = ?"
	if err := repo.get(ctx, repo.getExec(exec), &row, q, externalID); err != nil {
		return roster.StudentProfile{}, trapNoRowsErr(err, roster.ErrNotFound, "selecting student profile")
	}
	return roster.StudentProfile{
		ExternalID:       row.ExternalID,
		RollNo:           row.RollNo,
		Name:             row.Name,
		Email:            row.Email,
		Program:          row.Program,
		Department:       row.Department,
		SemesterYear:     row.SemesterYear,
		Status:           roster.Status(row.Status),
		Mobile:           row.Mobile.String,
		AuthPrincipalRef: row.AuthPrincipalRef.String,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}
