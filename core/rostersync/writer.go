package rostersync

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/user"
)

var (
	errMissingExternalID = errors.New("external id is required")
	errMissingEmail      = errors.New("email is required")
)

// Provisioner ensures a roster person has an auth principal.
type Provisioner interface {
	EnsurePrincipal(ctx context.Context, email, displayName, role string, metadata user.Metadata) (user.Principal, error)
}

type RecordFailure struct {
	Record roster.Record
	Err    error // *roster.RecordError
}

// BatchResult is the complete tally of a batch, failures included.
type BatchResult struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    []RecordFailure
}

func (r BatchResult) Processed() int {
	return r.Created + r.Updated + r.Unchanged + len(r.Failed)
}

func (r *BatchResult) add(o BatchResult) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Failed = append(r.Failed, o.Failed...)
}

func (r *BatchResult) count(outcome roster.Outcome) {
	switch outcome {
	case roster.OutcomeCreated:
		r.Created++
	case roster.OutcomeUpdated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

// Writer applies normalized records to the store, one record at a time:
// a record failure is captured & the batch goes on.
type Writer struct {
	repo  roster.Repository
	prov  Provisioner // required for person kinds
	clock core.Clock
}

func NewWriter(repo roster.Repository, prov Provisioner, clock core.Clock) *Writer {
	return &Writer{repo: repo, prov: prov, clock: clock}
}

// Upsert writes `records`, all of `kind`.
func (w *Writer) Upsert(ctx context.Context, kind roster.Kind, records []roster.Record) BatchResult {
	var res BatchResult
	for _, rec := range records {
		if rec.Kind() != kind {
			err := errors.Errorf("%s record in a %s batch", rec.Kind(), kind)
			res.Failed = append(res.Failed, RecordFailure{Record: rec, Err: roster.NewRecordError(roster.ClassProfileWrite, rec, err)})
			continue
		}
		outcome, err := w.upsertOne(ctx, rec)
		if err != nil {
			res.Failed = append(res.Failed, RecordFailure{Record: rec, Err: err})
			continue
		}
		res.count(outcome)
	}
	return res
}

func (w *Writer) upsertOne(ctx context.Context, rec roster.Record) (roster.Outcome, error) {
	if rec.Key() == "" {
		return 0, roster.NewRecordError(roster.ClassMissingRequiredField, rec, errMissingExternalID)
	}
	now := w.clock.Now()

	switch r := rec.(type) {
	case roster.Institution:
		r.CreatedAt, r.UpdatedAt = now, now
		return w.writeResult(rec)(w.repo.UpsertInstitution(ctx, r))
	case roster.Department:
		r.CreatedAt, r.UpdatedAt = now, now
		return w.writeResult(rec)(w.repo.UpsertDepartment(ctx, r))
	case roster.StaffProfile:
		principal, err := w.ensurePrincipal(ctx, rec, r.Email, r.Name, user.StaffRole(r.Designation), user.Metadata{
			"staff_id":    r.ExternalID,
			"department":  r.Department,
			"designation": r.Designation,
		})
		if err != nil {
			return 0, err
		}
		r.AuthPrincipalRef = principal.ID
		r.CreatedAt, r.UpdatedAt = now, now
		outcome, err := w.writeResult(rec)(w.repo.UpsertStaff(ctx, r))
		return personOutcome(principal, outcome), err
	case roster.StudentProfile:
		principal, err := w.ensurePrincipal(ctx, rec, r.Email, r.Name, user.StudentRole(), user.Metadata{
			"student_id": r.ExternalID,
			"roll_no":    r.RollNo,
			"program":    r.Program,
			"department": r.Department,
		})
		if err != nil {
			return 0, err
		}
		r.AuthPrincipalRef = principal.ID
		r.CreatedAt, r.UpdatedAt = now, now
		outcome, err := w.writeResult(rec)(w.repo.UpsertStudent(ctx, r))
		return personOutcome(principal, outcome), err
	}
	return 0, roster.NewRecordError(roster.ClassProfileWrite, rec, errors.Errorf("unsupported record kind %q", rec.Kind()))
}

func (w *Writer) ensurePrincipal(ctx context.Context, rec roster.Record, email, name, role string, md user.Metadata) (user.Principal, error) {
	if email == "" {
		return user.Principal{}, roster.NewRecordError(roster.ClassMissingRequiredField, rec, errMissingEmail)
	}
	principal, err := w.prov.EnsurePrincipal(ctx, email, name, role, md)
	if err != nil {
		class := roster.ClassProfileWrite
		if errors.Cause(err) == user.ErrMissingEmail {
			class = roster.ClassMissingRequiredField
		}
		return user.Principal{}, roster.NewRecordError(class, rec, errors.Wrap(err, "provisioning principal"))
	}
	return principal, nil
}

// writeResult turns store errors into ProfileWrite record errors.
func (w *Writer) writeResult(rec roster.Record) func(roster.Outcome, error) (roster.Outcome, error) {
	return func(outcome roster.Outcome, err error) (roster.Outcome, error) {
		if err != nil {
			return 0, roster.NewRecordError(roster.ClassProfileWrite, rec, errors.Wrapf(err, "writing %s", rec.Kind()))
		}
		return outcome, nil
	}
}

// personOutcome: a person is created when its principal is, a first profile of an existing principal is an update.
func personOutcome(principal user.Principal, profile roster.Outcome) roster.Outcome {
	switch {
	case principal.Created:
		return roster.OutcomeCreated
	case profile == roster.OutcomeCreated:
		return roster.OutcomeUpdated
	default:
		return profile
	}
}
