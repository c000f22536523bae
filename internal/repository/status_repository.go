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

// StatusRepository owns the append-only status interval timeline.
type StatusRepository struct {
	db *sqlx.DB
}

// NewStatusRepository constructs the repository.
func NewStatusRepository(db *sqlx.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

const statusColumns = "id, student_id, status, start_date, end_date, created_at"

// FindOpen returns every open interval for the student. Callers decide how
// to treat zero or, on corrupted data, more than one.
func (r *StatusRepository) FindOpen(ctx context.Context, studentID string) ([]models.StatusInterval, error) {
	query := fmt.Sprintf(`SELECT %s FROM status_intervals WHERE student_id = $1 AND end_date IS NULL`, statusColumns)
	var intervals []models.StatusInterval
	if err := r.db.SelectContext(ctx, &intervals, query, studentID); err != nil {
		return nil, fmt.Errorf("find open intervals: %w", err)
	}
	return intervals, nil
}

// ListByStudent returns a student's status timeline, newest first.
func (r *StatusRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StatusInterval, error) {
	query := fmt.Sprintf(`SELECT %s FROM status_intervals WHERE student_id = $1 ORDER BY start_date DESC, created_at DESC`, statusColumns)
	var intervals []models.StatusInterval
	if err := r.db.SelectContext(ctx, &intervals, query, studentID); err != nil {
		return nil, fmt.Errorf("list status intervals: %w", err)
	}
	return intervals, nil
}

// OpenInterval closes any currently open interval at startDate and opens the
// new one, as a single transaction, preserving the at-most-one-open invariant.
func (r *StatusRepository) OpenInterval(ctx context.Context, studentID string, status models.StudentStatus, startDate time.Time) (interval *models.StatusInterval, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const closeOpen = `UPDATE status_intervals SET end_date = $2 WHERE student_id = $1 AND end_date IS NULL`
	if _, err = tx.ExecContext(ctx, closeOpen, studentID, startDate); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "close open interval failed")
		return nil, err
	}

	interval = &models.StatusInterval{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Status:    status,
		StartDate: startDate,
		CreatedAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO status_intervals (id, student_id, status, start_date, end_date, created_at)
        VALUES (:id, :student_id, :status, :start_date, :end_date, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insert, interval); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "open interval failed")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "commit status transition failed")
		return nil, err
	}
	return interval, nil
}
