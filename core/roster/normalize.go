package roster

import (
	"strings"

	"github.com/trezcool/ushauri/core"
)

// aliases lists the upstream names of each normalized field, in lookup order.
type aliases map[string][]string

var (
	commonAliases = aliases{
		"status":   {"status"},
		"isActive": {"is_active", "isActive"},
	}

	institutionAliases = aliases{
		"externalID":  {"id", "institution_id", "institutionId"},
		"name":        {"name", "institution_name", "institutionName"},
		"description": {"description"},
	}

	departmentAliases = aliases{
		"externalID":     {"id", "department_id", "departmentId"},
		"name":           {"department_name", "departmentName", "name"},
		"description":    {"description"},
		"institutionRef": {"institution_id", "institutionId", "institution"},
	}

	staffAliases = aliases{
		"externalID":  {"staff_id", "staffId", "id"},
		"firstName":   {"first_name", "firstName"},
		"lastName":    {"last_name", "lastName"},
		"fullName":    {"name", "full_name", "fullName"},
		"email":       {"email", "staff_email", "official_email"},
		"department":  {"department", "department_name", "departmentName"},
		"designation": {"designation", "designation_name"},
		"mobile":      {"mobile", "phone", "staff_mobile"},
	}

	studentAliases = aliases{
		"externalID":   {"student_id", "studentId", "id"},
		"rollNo":       {"roll_number", "rollNumber", "roll_no"},
		"firstName":    {"first_name", "firstName", "student_name"},
		"lastName":     {"last_name", "lastName"},
		"fullName":     {"name", "full_name", "fullName"},
		"email":        {"student_email", "email", "college_email"},
		"program":      {"program", "program_name", "programName"},
		"department":   {"department", "department_name", "departmentName"},
		"semesterYear": {"semester_year", "semesterYear", "year"},
		"mobile":       {"student_mobile", "mobile", "phone"},
	}
)

func (r RawRecord) aliased(table aliases, field, fallback string) string {
	return r.Text(fallback, table[field]...)
}

// Normalize maps a raw upstream record to the normalized record of `kind`.
// It never fails: missing values default to their sentinel. The returned bool reports whether
// the record is active, only active records are meant to be written.
func Normalize(kind Kind, raw RawRecord) (Record, bool) {
	active := raw.isActive()
	status := StatusInactive
	if active {
		status = StatusActive
	}

	switch kind {
	case KindInstitution:
		return Institution{
			ExternalID:  raw.aliased(institutionAliases, "externalID", ""),
			Name:        raw.aliased(institutionAliases, "name", UnknownInstitution),
			Description: raw.aliased(institutionAliases, "description", ""),
			Status:      status,
		}, active
	case KindDepartment:
		return Department{
			ExternalID:     raw.aliased(departmentAliases, "externalID", ""),
			Name:           raw.aliased(departmentAliases, "name", UnknownDepartment),
			Description:    raw.aliased(departmentAliases, "description", ""),
			InstitutionRef: raw.aliased(departmentAliases, "institutionRef", ""),
			Status:         status,
		}, active
	case KindStaff:
		return StaffProfile{
			ExternalID:  raw.aliased(staffAliases, "externalID", ""),
			Name:        raw.personName(staffAliases),
			Email:       core.CleanString(raw.aliased(staffAliases, "email", ""), true /* lower */),
			Department:  raw.aliased(staffAliases, "department", UnknownDepartment),
			Designation: raw.aliased(staffAliases, "designation", UnknownDesignation),
			Status:      status,
			Mobile:      raw.aliased(staffAliases, "mobile", ""),
		}, active
	case KindStudent:
		return StudentProfile{
			ExternalID:   raw.aliased(studentAliases, "externalID", ""),
			RollNo:       raw.aliased(studentAliases, "rollNo", ""),
			Name:         raw.personName(studentAliases),
			Email:        core.CleanString(raw.aliased(studentAliases, "email", ""), true /* lower */),
			Program:      raw.aliased(studentAliases, "program", UnknownProgram),
			Department:   raw.aliased(studentAliases, "department", UnknownDepartment),
			SemesterYear: raw.aliased(studentAliases, "semesterYear", ""),
			Status:       status,
			Mobile:       raw.aliased(studentAliases, "mobile", ""),
		}, active
	}
	return nil, false
}

// personName joins first & last names with a single space, dropping it when there is no last name.
func (r RawRecord) personName(table aliases) string {
	first := r.aliased(table, "firstName", "")
	if first == "" {
		return r.aliased(table, "fullName", UnknownName)
	}
	if last := r.aliased(table, "lastName", ""); last != "" {
		return first + " " + last
	}
	return first
}

// isActive holds when either `status` or `is_active` says so. A record carrying neither is inactive.
func (r RawRecord) isActive() bool {
	return r.Field(commonAliases["status"]...).IsActive() || r.Field(commonAliases["isActive"]...).IsActive()
}

// KindFromString parses a kind name, case-insensitively.
func KindFromString(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range SyncOrder {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}
