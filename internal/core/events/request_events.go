package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestSubmitted = "request.submitted"
	EventTypeRequestResponded = "request.responded"
)

type RequestSubmittedEvent struct {
	BaseEvent
	RequestID    string `json:"request_id"`
	StudentID    string `json:"student_id"`
	DepartmentID string `json:"department_id"`
}

func NewRequestSubmittedEvent(requestID, studentID, departmentID string) *RequestSubmittedEvent {
	return &RequestSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRequestSubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":    requestID,
				"student_id":    studentID,
				"department_id": departmentID,
			},
		},
		RequestID:    requestID,
		StudentID:    studentID,
		DepartmentID: departmentID,
	}
}

type RequestRespondedEvent struct {
	BaseEvent
	RequestID    string `json:"request_id"`
	StudentID    string `json:"student_id"`
	DepartmentID string `json:"department_id"`
	Status       string `json:"status"`
	RespondedBy  string `json:"responded_by"`
}

func NewRequestRespondedEvent(requestID, studentID, departmentID, status, respondedBy string) *RequestRespondedEvent {
	return &RequestRespondedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRequestResponded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":    requestID,
				"student_id":    studentID,
				"department_id": departmentID,
				"status":        status,
				"responded_by":  respondedBy,
			},
		},
		RequestID:    requestID,
		StudentID:    studentID,
		DepartmentID: departmentID,
		Status:       status,
		RespondedBy:  respondedBy,
	}
}
