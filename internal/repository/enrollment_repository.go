package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

// EnrollmentRepository is the append-only ledger of yearly placement records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, student_id, fiscal_year, grade, class_label, attendance_number, status, created_at"

// CurrentPlacement returns the record with the highest fiscal year at or
// before asOfFiscalYear for the student. sql.ErrNoRows when none exists.
func (r *EnrollmentRepository) CurrentPlacement(ctx context.Context, studentID string, asOfFiscalYear int) (*models.EnrollmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_records
        WHERE student_id = $1 AND fiscal_year <= $2
        ORDER BY fiscal_year DESC LIMIT 1`, enrollmentColumns)
	var record models.EnrollmentRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, asOfFiscalYear); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByStudent returns all placement records for a student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_records WHERE student_id = $1 ORDER BY fiscal_year DESC`, enrollmentColumns)
	var records []models.EnrollmentRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return records, nil
}

// ListCurrentPlacements returns the latest placement per student whose open
// status interval is ACTIVE, ordered for roster review.
func (r *EnrollmentRepository) ListCurrentPlacements(ctx context.Context) ([]models.CurrentPlacement, error) {
	const query = `SELECT s.id AS student_id, s.s_number, s.legal_name,
        e.fiscal_year, e.grade, e.class_label, e.attendance_number
        FROM students s
        JOIN enrollment_records e ON e.student_id = s.id
        JOIN (
            SELECT student_id, MAX(fiscal_year) AS fiscal_year
            FROM enrollment_records GROUP BY student_id
        ) latest ON latest.student_id = e.student_id AND latest.fiscal_year = e.fiscal_year
        JOIN status_intervals si ON si.student_id = s.id AND si.end_date IS NULL AND si.status = $1
        ORDER BY e.grade, e.class_label, e.attendance_number`
	var placements []models.CurrentPlacement
	if err := r.db.SelectContext(ctx, &placements, query, models.StatusActive); err != nil {
		return nil, fmt.Errorf("list current placements: %w", err)
	}
	return placements, nil
}

// Append inserts one placement record. A (student, fiscal year) conflict
// yields a duplicate-key error.
func (r *EnrollmentRepository) Append(ctx context.Context, record *models.EnrollmentRecord) error {
	if err := r.insert(ctx, r.db, record); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status,
				fmt.Sprintf("enrollment for fiscal year %d already exists", record.FiscalYear))
		}
		return fmt.Errorf("append enrollment: %w", err)
	}
	return nil
}

// BulkAppend inserts the whole batch inside one transaction. Any failure,
// including a duplicate (student, fiscal year) pair, rolls everything back.
func (r *EnrollmentRepository) BulkAppend(ctx context.Context, records []models.EnrollmentRecord) (count int, err error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range records {
		if err = r.insert(ctx, tx, &records[i]); err != nil {
			if isUniqueViolation(err) {
				err = appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status,
					fmt.Sprintf("enrollment for student %s in fiscal year %d already exists", records[i].StudentID, records[i].FiscalYear))
				return 0, err
			}
			err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "bulk enrollment append failed")
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "bulk enrollment commit failed")
		return 0, err
	}
	return len(records), nil
}

func (r *EnrollmentRepository) insert(ctx context.Context, exec sqlx.ExtContext, record *models.EnrollmentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollment_records (id, student_id, fiscal_year, grade, class_label, attendance_number, status, created_at)
        VALUES (:id, :student_id, :fiscal_year, :grade, :class_label, :attendance_number, :status, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, exec, query, record)
	return err
}
