package permissionrequest

import (
	"time"

	"github.com/frahmantamala/event-permission/internal"
	prDatamodel "github.com/frahmantamala/event-permission/internal/core/datamodel/permissionrequest"
)

const EventDateLayout = "2006-01-02"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal statuses are final.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo allows exactly pending→approved and pending→rejected.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.Terminal()
}

type PermissionRequest struct {
	ID                string     `json:"id"`
	StudentID         string     `json:"student_id"`
	StudentName       string     `json:"student_name"`
	StudentRollNumber string     `json:"student_roll_number"`
	EventName         string     `json:"event_name"`
	EventDate         string     `json:"event_date"`
	EventLocation     string     `json:"event_location"`
	Reason            string     `json:"reason"`
	Description       string     `json:"description"`
	ProofURL          string     `json:"proof_url"`
	LetterURL         string     `json:"letter_url"`
	DepartmentID      string     `json:"department_id"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	ResponseMessage   *string    `json:"response_message,omitempty"`
	RespondedAt       *time.Time `json:"responded_at,omitempty"`
	RespondedBy       *string    `json:"responded_by,omitempty"`
}

// Response is the set of fields written by the single transition out of
// pending. They are always written together.
type Response struct {
	Status      Status
	Message     string
	RespondedBy string
	RespondedAt time.Time
}

var (
	ErrRequestNotFound         = internal.ErrRequestNotFound
	ErrRequestAlreadyResponded = internal.ErrRequestAlreadyResponded
	ErrMissingProof            = internal.NewValidationFieldError("proof_file", "proof document is required", internal.ErrCodeMissingDocument)
	ErrMissingLetter           = internal.NewValidationFieldError("letter_file", "permission letter is required", internal.ErrCodeMissingDocument)
	ErrInvalidTargetStatus     = internal.NewValidationFieldError("status", "status must be approved or rejected", internal.ErrCodeInvalidStatus)
)

func (p *PermissionRequest) IsPending() bool {
	return p.Status == StatusPending
}

// Apply performs the transition on the in-memory value.
func (p *PermissionRequest) Apply(resp Response) error {
	if !resp.Status.Terminal() {
		return ErrInvalidTargetStatus
	}
	if !p.Status.CanTransitionTo(resp.Status) {
		return ErrRequestAlreadyResponded
	}
	msg := resp.Message
	by := resp.RespondedBy
	at := resp.RespondedAt
	p.Status = resp.Status
	p.ResponseMessage = &msg
	p.RespondedBy = &by
	p.RespondedAt = &at
	return nil
}

func ToDataModel(p *PermissionRequest) *prDatamodel.PermissionRequest {
	eventDate, _ := time.Parse(EventDateLayout, p.EventDate)
	return &prDatamodel.PermissionRequest{
		ID:                p.ID,
		StudentID:         p.StudentID,
		StudentName:       p.StudentName,
		StudentRollNumber: p.StudentRollNumber,
		EventName:         p.EventName,
		EventDate:         eventDate,
		EventLocation:     p.EventLocation,
		Reason:            p.Reason,
		Description:       p.Description,
		ProofURL:          p.ProofURL,
		LetterURL:         p.LetterURL,
		DepartmentID:      p.DepartmentID,
		Status:            string(p.Status),
		CreatedAt:         p.CreatedAt,
		ResponseMessage:   p.ResponseMessage,
		RespondedAt:       p.RespondedAt,
		RespondedBy:       p.RespondedBy,
	}
}

func FromDataModel(p *prDatamodel.PermissionRequest) *PermissionRequest {
	return &PermissionRequest{
		ID:                p.ID,
		StudentID:         p.StudentID,
		StudentName:       p.StudentName,
		StudentRollNumber: p.StudentRollNumber,
		EventName:         p.EventName,
		EventDate:         p.EventDate.Format(EventDateLayout),
		EventLocation:     p.EventLocation,
		Reason:            p.Reason,
		Description:       p.Description,
		ProofURL:          p.ProofURL,
		LetterURL:         p.LetterURL,
		DepartmentID:      p.DepartmentID,
		Status:            Status(p.Status),
		CreatedAt:         p.CreatedAt,
		ResponseMessage:   p.ResponseMessage,
		RespondedAt:       p.RespondedAt,
		RespondedBy:       p.RespondedBy,
	}
}

func FromDataModelSlice(rows []*prDatamodel.PermissionRequest) []*PermissionRequest {
	result := make([]*PermissionRequest, len(rows))
	for i, r := range rows {
		result[i] = FromDataModel(r)
	}
	return result
}
