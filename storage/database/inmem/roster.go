package inmemdb

import (
	"context"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
)

type rosterRepository struct {
	db *rosterTables
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db.roster}
}

func (repo *rosterRepository) UpsertInstitution(_ context.Context, inst roster.Institution, _ ...core.DBExecutor) (roster.Outcome, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.institutions[inst.ExternalID]
	switch {
	case !ok:
		repo.db.institutions[inst.ExternalID] = inst
		return roster.OutcomeCreated, nil
	case existing.SameAs(inst):
		return roster.OutcomeUnchanged, nil
	}
	inst.CreatedAt = existing.CreatedAt
	repo.db.institutions[inst.ExternalID] = inst
	return roster.OutcomeUpdated, nil
}

func (repo *rosterRepository) UpsertDepartment(_ context.Context, dept roster.Department, _ ...core.DBExecutor) (roster.Outcome, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.departments[dept.ExternalID]
	switch {
	case !ok:
		repo.db.departments[dept.ExternalID] = dept
		return roster.OutcomeCreated, nil
	case existing.SameAs(dept):
		return roster.OutcomeUnchanged, nil
	}
	dept.CreatedAt = existing.CreatedAt
	repo.db.departments[dept.ExternalID] = dept
	return roster.OutcomeUpdated, nil
}

func (repo *rosterRepository) UpsertStaff(_ context.Context, staff roster.StaffProfile, _ ...core.DBExecutor) (roster.Outcome, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.staff[staff.ExternalID]
	switch {
	case !ok:
		repo.db.staff[staff.ExternalID] = staff
		return roster.OutcomeCreated, nil
	case existing.SameAs(staff):
		return roster.OutcomeUnchanged, nil
	}
	staff.CreatedAt = existing.CreatedAt
	repo.db.staff[staff.ExternalID] = staff
	return roster.OutcomeUpdated, nil
}

func (repo *rosterRepository) UpsertStudent(_ context.Context, student roster.StudentProfile, _ ...core.DBExecutor) (roster.Outcome, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.students[student.ExternalID]
	switch {
	case !ok:
		repo.db.students[student.ExternalID] = student
		return roster.OutcomeCreated, nil
	case existing.SameAs(student):
		return roster.OutcomeUnchanged, nil
	}
	student.CreatedAt = existing.CreatedAt
	repo.db.students[student.ExternalID] = student
	return roster.OutcomeUpdated, nil
}

func (repo *rosterRepository) GetInstitution(_ context.Context, externalID string, _ ...core.DBExecutor) (roster.Institution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if inst, ok := repo.db.institutions[externalID]; ok {
		return inst, nil
	}
	return roster.Institution{}, roster.ErrNotFound
}

func (repo *rosterRepository) GetDepartment(_ context.Context, externalID string, _ ...core.DBExecutor) (roster.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if dept, ok := repo.db.departments[externalID]; ok {
		return dept, nil
	}
	return roster.Department{}, roster.ErrNotFound
}

func (repo *rosterRepository) GetStaff(_ context.Context, externalID string, _ ...core.DBExecutor) (roster.StaffProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if staff, ok := repo.db.staff[externalID]; ok {
		return staff, nil
	}
	return roster.StaffProfile{}, roster.ErrNotFound
}

func (repo *rosterRepository) GetStudent(_ context.Context, externalID string, _ ...core.DBExecutor) (roster.StudentProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if student, ok := repo.db.students[externalID]; ok {
		return student, nil
	}
	return roster.StudentProfile{}, roster.ErrNotFound
}
