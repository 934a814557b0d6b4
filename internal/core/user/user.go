package user

import "strings"

// Role is fixed at registration and never changes afterwards.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleHOD     Role = "hod"
)

var roles = []Role{RoleStudent, RoleFaculty, RoleHOD}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) IsStudent() bool {
	return r == RoleStudent
}

// IsResponder reports whether the role sees department requests.
func (r Role) IsResponder() bool {
	return r == RoleFaculty || r == RoleHOD
}

// CanDecide reports whether the role may approve or reject.
func (r Role) CanDecide() bool {
	return r == RoleHOD
}

func (r Role) String() string {
	return string(r)
}
