package user

import (
	"database/sql"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/core/common/validation"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	userDatamodel "github.com/frahmantamala/event-permission/internal/core/datamodel/user"
)

type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Role         coreuser.Role `json:"role"`
	RollNumber   *string       `json:"roll_number,omitempty"`
	Department   *string       `json:"department,omitempty"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

var (
	ErrNotFound   = internal.ErrUserNotFound
	ErrEmailTaken = internal.ErrEmailTaken
)

// Validate enforces the role-dependent profile: students carry a roll
// number and no department, faculty and HODs the reverse.
func (u *User) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", u.Email).Required().Email().MaxLength(255)
	v.Field("name", u.Name).Required().MaxLength(255)
	v.Field("role", string(u.Role)).OneOf(internal.ErrCodeInvalidRole,
		string(coreuser.RoleStudent), string(coreuser.RoleFaculty), string(coreuser.RoleHOD))

	switch {
	case u.Role.IsStudent():
		v.Field("roll_number", u.RollNumber).Required()
		v.Field("department", u.Department).Custom(mustBeEmpty("department", "students do not belong to a department"))
	case u.Role.IsResponder():
		v.Field("department", u.Department).Required()
		v.Field("roll_number", u.RollNumber).Custom(mustBeEmpty("roll_number", "only students have a roll number"))
	}

	return v.Validate()
}

func mustBeEmpty(field, message string) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		if s, ok := value.(*string); ok && s != nil && *s != "" {
			return internal.NewValidationFieldError(field, message, internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

// DepartmentID is empty for students.
func (u *User) DepartmentID() string {
	if u.Department == nil {
		return ""
	}
	return *u.Department
}

func (u *User) RollNumberValue() string {
	if u.RollNumber == nil {
		return ""
	}
	return *u.RollNumber
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Name:         u.Name,
		RollNumber:   toNullString(u.RollNumber),
		Department:   toNullString(u.Department),
		CreatedAt:    u.CreatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         coreuser.Role(u.Role),
		RollNumber:   fromNullString(u.RollNumber),
		Department:   fromNullString(u.Department),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func toNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
