package auth

import (
	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/core/common/validation"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
)

const minPasswordLength = 6

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterDTO carries the sign-up form. RollNumber applies to students,
// Department to faculty and HODs.
type RegisterDTO struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	RollNumber string `json:"roll_number,omitempty"`
	Department string `json:"department,omitempty"`
}

func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

// Validate covers the credential fields. The role-dependent profile rules
// are enforced by user.User.Validate.
func (d RegisterDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required().MinLength(minPasswordLength).MaxLength(72)
	v.Field("name", d.Name).Required().MaxLength(255)
	role, _ := coreuser.ParseRole(d.Role)
	v.Field("role", string(role)).OneOf(internal.ErrCodeInvalidRole,
		string(coreuser.RoleStudent), string(coreuser.RoleFaculty), string(coreuser.RoleHOD))
	return v.Validate()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
