package permissionrequest

import (
	"io"
	"strings"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/core/common/validation"
)

// CreateRequestDTO holds the text fields of the new-request form. Student
// name and roll number are never taken from the client.
type CreateRequestDTO struct {
	EventName     string `json:"event_name"`
	EventDate     string `json:"event_date"`
	EventLocation string `json:"event_location"`
	Reason        string `json:"reason"`
	Description   string `json:"description"`
	DepartmentID  string `json:"department_id"`
}

// Document is one uploaded file.
type Document struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type RespondDTO struct {
	Status          string `json:"status"`
	ResponseMessage string `json:"response_message"`
}

func (d *CreateRequestDTO) Normalize() {
	d.EventName = strings.TrimSpace(d.EventName)
	d.EventDate = strings.TrimSpace(d.EventDate)
	d.EventLocation = strings.TrimSpace(d.EventLocation)
	d.Reason = strings.TrimSpace(d.Reason)
	d.Description = strings.TrimSpace(d.Description)
	d.DepartmentID = strings.TrimSpace(d.DepartmentID)
}

func (d CreateRequestDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("event_name", d.EventName).Required().MaxLength(200)
	v.Field("event_date", d.EventDate).Required().Date(EventDateLayout)
	v.Field("event_location", d.EventLocation).Required().MaxLength(200)
	v.Field("reason", d.Reason).Required().MaxLength(1000)
	v.Field("description", d.Description).Required().MaxLength(5000)
	v.Field("department_id", d.DepartmentID).Required().MaxLength(64)
	return v.Validate()
}

func (d RespondDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("status", d.Status).OneOf(internal.ErrCodeInvalidStatus, string(StatusApproved), string(StatusRejected))
	v.Field("response_message", d.ResponseMessage).MaxLength(2000)
	return v.Validate()
}

// ValidateDocuments checks presence and the configured size cap.
func ValidateDocuments(proof, letter *Document, maxBytes int64) *internal.AppError {
	if proof == nil || proof.Body == nil {
		return ErrMissingProof
	}
	if letter == nil || letter.Body == nil {
		return ErrMissingLetter
	}
	if maxBytes <= 0 {
		return nil
	}
	v := validation.NewValidator()
	v.Field("proof_file", proof.Size).MaxInt(maxBytes, internal.ErrCodeDocumentTooLarge)
	v.Field("letter_file", letter.Size).MaxInt(maxBytes, internal.ErrCodeDocumentTooLarge)
	return v.Validate()
}
