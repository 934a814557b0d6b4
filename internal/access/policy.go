// Package access decides who may reach which part of the portal. The
// decisions are pure functions so the HTTP gate and the request services
// apply the same rules.
package access

import (
	"strings"

	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
)

const (
	PathLogin            = "/login"
	PathRegister         = "/register"
	PathStudentDashboard = "/student/dashboard"
	PathFacultyDashboard = "/faculty/dashboard"
)

// Area is the part of the route surface a path belongs to.
type Area int

const (
	AreaPublic Area = iota
	AreaAuthForms
	AreaStudent
	AreaFaculty
)

func (a Area) String() string {
	switch a {
	case AreaAuthForms:
		return "auth"
	case AreaStudent:
		return "student"
	case AreaFaculty:
		return "faculty"
	default:
		return "public"
	}
}

// Subject is what the gate knows about the caller.
type Subject int

const (
	SubjectAnonymous Subject = iota
	SubjectStudent
	SubjectResponder
)

func (s Subject) String() string {
	switch s {
	case SubjectStudent:
		return "student"
	case SubjectResponder:
		return "responder"
	default:
		return "anonymous"
	}
}

// Decision is either allow (empty RedirectTo) or a redirect.
type Decision struct {
	RedirectTo string
}

func (d Decision) Allowed() bool {
	return d.RedirectTo == ""
}

var (
	allow         = Decision{}
	toLogin       = Decision{RedirectTo: PathLogin}
	toStudentHome = Decision{RedirectTo: PathStudentDashboard}
	toFacultyHome = Decision{RedirectTo: PathFacultyDashboard}
)

var rules = map[Area]map[Subject]Decision{
	AreaAuthForms: {
		SubjectAnonymous: allow,
		SubjectStudent:   toStudentHome,
		SubjectResponder: toFacultyHome,
	},
	AreaStudent: {
		SubjectAnonymous: toLogin,
		SubjectStudent:   allow,
		SubjectResponder: toFacultyHome,
	},
	AreaFaculty: {
		SubjectAnonymous: toLogin,
		SubjectStudent:   toStudentHome,
		SubjectResponder: allow,
	},
}

// Classify maps a request path onto an area. Prefixes match whole path
// segments, so /students is public while /student/x is not.
func Classify(path string) Area {
	switch {
	case path == PathLogin || path == PathRegister:
		return AreaAuthForms
	case underSegment(path, "/student"):
		return AreaStudent
	case underSegment(path, "/faculty"):
		return AreaFaculty
	default:
		return AreaPublic
	}
}

func underSegment(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// SubjectFor turns a resolved session into a subject. A failed role lookup
// or an unknown role is treated as no session at all.
func SubjectFor(authenticated bool, role coreuser.Role, roleErr error) Subject {
	if !authenticated || roleErr != nil {
		return SubjectAnonymous
	}
	switch {
	case role.IsStudent():
		return SubjectStudent
	case role.IsResponder():
		return SubjectResponder
	default:
		return SubjectAnonymous
	}
}

// Decide looks the pair up in the rule table. Public areas and unlisted
// combinations are allowed.
func Decide(area Area, subject Subject) Decision {
	byArea, ok := rules[area]
	if !ok {
		return allow
	}
	if d, ok := byArea[subject]; ok {
		return d
	}
	return allow
}

// HomeFor is the dashboard a role lands on after sign-in.
func HomeFor(role coreuser.Role) string {
	if role.IsStudent() {
		return PathStudentDashboard
	}
	return PathFacultyDashboard
}
