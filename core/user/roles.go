package user

import "strings"

// RoleRule maps designation keywords to a role.
type RoleRule struct {
	Keywords []string
	Role     string
}

// StaffRoleRules are evaluated top to bottom: the first rule with a keyword contained in the designation wins.
var StaffRoleRules = []RoleRule{
	{Keywords: []string{"professor", "faculty", "lecturer"}, Role: RoleMentor},
	{Keywords: []string{"admin", "director", "principal"}, Role: RoleAdmin},
	{Keywords: []string{"head", "lead"}, Role: RoleDeptLead},
}

// DeriveRole matches `designation` case-insensitively against `rules`, returning `fallback` when none matches.
func DeriveRole(designation string, rules []RoleRule, fallback string) string {
	d := strings.ToLower(designation)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(d, kw) {
				return rule.Role
			}
		}
	}
	return fallback
}

func StaffRole(designation string) string {
	return DeriveRole(designation, StaffRoleRules, RoleMentee)
}

// StudentRole: students are always mentees.
func StudentRole() string { return RoleMentee }
