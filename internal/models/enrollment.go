package models

import "time"

// EnrollmentStatus represents the lifecycle of a yearly placement record.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusGraduated   EnrollmentStatus = "GRADUATED"
)

// EnrollmentRecord is one yearly placement in the append-only ledger.
// At most one record exists per (student, fiscal year); the record with the
// highest fiscal year is the student's current placement. Records are never
// updated or deleted, a later year's record supersedes them.
type EnrollmentRecord struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	FiscalYear       int              `db:"fiscal_year" json:"fiscal_year"`
	Grade            int              `db:"grade" json:"grade"`
	ClassLabel       string           `db:"class_label" json:"class_label"`
	AttendanceNumber int              `db:"attendance_number" json:"attendance_number"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// FiscalYearAt returns the school fiscal year containing t for a calendar
// whose year starts on the given month (April for Japanese schools).
func FiscalYearAt(t time.Time, startMonth time.Month) int {
	if t.Month() < startMonth {
		return t.Year() - 1
	}
	return t.Year()
}
