package access

import (
	"github.com/frahmantamala/event-permission/internal"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
)

// Responder is a faculty member or HOD acting on department requests.
type Responder struct {
	UserID     string
	Role       coreuser.Role
	Department string
}

// CanView allows responders to see requests addressed to their own
// department only.
func CanView(r Responder, department string) error {
	if !r.Role.IsResponder() {
		return internal.ErrNotResponder
	}
	if r.Department == "" || r.Department != department {
		return internal.ErrDepartmentMismatch
	}
	return nil
}

// CanDecide additionally requires the HOD role.
func CanDecide(r Responder, department string) error {
	if err := CanView(r, department); err != nil {
		return err
	}
	if !r.Role.CanDecide() {
		return internal.ErrNotDecider
	}
	return nil
}
