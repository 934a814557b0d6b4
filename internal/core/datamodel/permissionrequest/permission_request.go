package permissionrequest

import "time"

// PermissionRequest is the row shape of the permission_requests table.
type PermissionRequest struct {
	ID                string     `gorm:"primaryKey;type:uuid"`
	StudentID         string     `gorm:"column:student_id;type:uuid;not null;index"`
	StudentName       string     `gorm:"column:student_name;not null"`
	StudentRollNumber string     `gorm:"column:student_roll_number;not null"`
	EventName         string     `gorm:"column:event_name;not null"`
	EventDate         time.Time  `gorm:"column:event_date;type:date;not null"`
	EventLocation     string     `gorm:"column:event_location;not null"`
	Reason            string     `gorm:"column:reason;not null"`
	Description       string     `gorm:"column:description;not null"`
	ProofURL          string     `gorm:"column:proof_url;not null"`
	LetterURL         string     `gorm:"column:letter_url;not null"`
	DepartmentID      string     `gorm:"column:department_id;not null;index"`
	Status            string     `gorm:"column:status;not null;default:pending"`
	CreatedAt         time.Time  `gorm:"column:created_at;not null"`
	ResponseMessage   *string    `gorm:"column:response_message"`
	RespondedAt       *time.Time `gorm:"column:responded_at"`
	RespondedBy       *string    `gorm:"column:responded_by;type:uuid"`
}

func (PermissionRequest) TableName() string {
	return "permission_requests"
}

// StatusCount is one row of a GROUP BY status aggregate.
type StatusCount struct {
	Status string
	Total  int64
}
