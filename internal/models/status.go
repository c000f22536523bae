package models

import "time"

// StudentStatus tags a status interval.
type StudentStatus string

// Possible student statuses. StatusUnknown is never stored; it is reported
// when a student has no open interval.
const (
	StatusActive    StudentStatus = "ACTIVE"
	StatusSuspended StudentStatus = "SUSPENDED"
	StatusWithdrawn StudentStatus = "WITHDRAWN"
	StatusGraduated StudentStatus = "GRADUATED"
	StatusUnknown   StudentStatus = "UNKNOWN"
)

// ValidStudentStatus reports whether s may be written to the timeline.
func ValidStudentStatus(s StudentStatus) bool {
	switch s {
	case StatusActive, StatusSuspended, StatusWithdrawn, StatusGraduated:
		return true
	}
	return false
}

// StatusInterval is an entry in the append-only status timeline. An interval
// with a nil EndDate is open; the open interval's status is the student's
// current status, and at most one open interval may exist per student.
type StatusInterval struct {
	ID        string        `db:"id" json:"id"`
	StudentID string        `db:"student_id" json:"student_id"`
	Status    StudentStatus `db:"status" json:"status"`
	StartDate time.Time     `db:"start_date" json:"start_date"`
	EndDate   *time.Time    `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
