package internal

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidRole      ErrorCode = "INVALID_ROLE"
	ErrCodeMissingDocument  ErrorCode = "MISSING_DOCUMENT"
	ErrCodeDocumentTooLarge ErrorCode = "DOCUMENT_TOO_LARGE"

	ErrCodeRequestNotFound      ErrorCode = "REQUEST_NOT_FOUND"
	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrCodeDepartmentMismatch   ErrorCode = "DEPARTMENT_MISMATCH"
	ErrCodeNotDecider           ErrorCode = "NOT_DECIDER"
	ErrCodeNotStudent           ErrorCode = "NOT_STUDENT"
	ErrCodeNotResponder         ErrorCode = "NOT_RESPONDER"
	ErrCodeRequestAlreadyClosed ErrorCode = "REQUEST_ALREADY_RESPONDED"
	ErrCodeEmailTaken           ErrorCode = "EMAIL_TAKEN"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeSessionRequired    ErrorCode = "SESSION_REQUIRED"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"

	ErrCodeUploadFailed     ErrorCode = "UPLOAD_FAILED"
	ErrCodeMalformedRequest ErrorCode = "MALFORMED_REQUEST"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) fieldMessages() []string {
	details, ok := e.Details.(ValidationErrors)
	if !ok {
		return nil
	}
	messages := make([]string, 0, len(details.Errors))
	for _, fe := range details.Errors {
		messages = append(messages, fe.Message)
	}
	return messages
}

// Error prefers the first field message so that log lines and test
// matchers see what actually failed.
func (e *AppError) Error() string {
	if messages := e.fieldMessages(); len(messages) > 0 {
		return messages[0]
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// GetDetailedMessage joins every field message.
func (e *AppError) GetDetailedMessage() string {
	if messages := e.fieldMessages(); len(messages) > 0 {
		return strings.Join(messages, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeForbidden:    http.StatusForbidden,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeInternal:     http.StatusInternalServerError,
	ErrorTypeExternal:     http.StatusBadGateway,
}

func newAppError(t ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message, StatusCode: statusByType[t]}
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, code, message)
}

// NewValidationFieldError reports a single failed field under the generic
// VALIDATION_FAILED code.
func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, ErrCodeValidationFailed, "Validation failed").
		WithDetails(ValidationErrors{Errors: []ValidationError{{Field: field, Message: message, Code: string(code)}}})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeNotFound, code, message)
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeUnauthorized, code, message)
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeForbidden, code, message)
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeConflict, code, message)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, ErrCodeInternal, message).WithCause(cause)
}

// NewUploadError reports a blob store failure.
func NewUploadError(message string, cause error) *AppError {
	return newAppError(ErrorTypeExternal, ErrCodeUploadFailed, message).WithCause(cause)
}

// NewHTTPError builds an AppError for failures detected by the transport
// layer itself, such as an unreadable body.
func NewHTTPError(status int, message string) *AppError {
	switch {
	case status == http.StatusUnauthorized:
		return NewUnauthorizedError(message, ErrCodeSessionRequired)
	case status == http.StatusForbidden:
		return NewForbiddenError(message, ErrCodeForbidden)
	case status == http.StatusNotFound:
		return NewNotFoundError(message, ErrCodeNotFound)
	case status >= http.StatusInternalServerError:
		return &AppError{Type: ErrorTypeInternal, Code: ErrCodeInternal, Message: message, StatusCode: status}
	default:
		return &AppError{Type: ErrorTypeValidation, Code: ErrCodeMalformedRequest, Message: message, StatusCode: status}
	}
}

var (
	ErrRequestNotFound         = NewNotFoundError("Permission request not found", ErrCodeRequestNotFound)
	ErrUserNotFound            = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrDepartmentMismatch      = NewForbiddenError("You do not have permission to view this request", ErrCodeDepartmentMismatch)
	ErrNotDecider              = NewForbiddenError("Only HODs can approve or reject requests", ErrCodeNotDecider)
	ErrNotStudent              = NewForbiddenError("Only students can submit permission requests", ErrCodeNotStudent)
	ErrNotResponder            = NewForbiddenError("Only faculty members can view department requests", ErrCodeNotResponder)
	ErrRequestAlreadyResponded = NewConflictError("This request has already been responded to", ErrCodeRequestAlreadyClosed)
	ErrEmailTaken              = NewConflictError("An account with this email already exists", ErrCodeEmailTaken)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrSessionRequired    = NewUnauthorizedError("You must be signed in", ErrCodeSessionRequired)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

// IsAppError unwraps err looking for an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is matches AppErrors by code so that wrapped sentinels compare equal.
// A target that names a failed field also requires the same field.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if e.Code != t.Code || e.Type != t.Type {
		return false
	}
	want, ok := t.firstField()
	if !ok {
		return true
	}
	got, ok := e.firstField()
	return ok && got.Field == want.Field && got.Code == want.Code
}

func (e *AppError) firstField() (ValidationError, bool) {
	details, ok := e.Details.(ValidationErrors)
	if !ok || len(details.Errors) == 0 {
		return ValidationError{}, false
	}
	return details.Errors[0], true
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
