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

// HistoryRepository owns the append-only field-change log and the promotion
// of accepted changes into the live student attributes.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = "id, student_id, field_name, old_value, new_value, effective_date, reason, applied, applied_at, created_at"

// Append writes the history entry and, when entry.Applied is set, updates the
// live student column to liveValue in the same transaction. liveColumn must
// come from the field schema whitelist; it is the only identifier ever
// interpolated into the statement.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.FieldHistoryEntry, liveColumn string, liveValue interface{}) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin field update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = now
	if entry.Applied {
		entry.AppliedAt = &now
	}

	const insertEntry = `INSERT INTO field_history (id, student_id, field_name, old_value, new_value, effective_date, reason, applied, applied_at, created_at)
        VALUES (:id, :student_id, :field_name, :old_value, :new_value, :effective_date, :reason, :applied, :applied_at, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertEntry, entry); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "append field history failed")
		return err
	}

	if entry.Applied {
		update := fmt.Sprintf("UPDATE students SET %s = $1, updated_at = $2 WHERE id = $3", liveColumn)
		if _, err = tx.ExecContext(ctx, update, liveValue, now, entry.StudentID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "apply live field update failed")
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrTxAborted.Code, appErrors.ErrTxAborted.Status, "commit field update failed")
		return err
	}
	return nil
}

// ListByStudent returns a student's field history, newest effective date first.
func (r *HistoryRepository) ListByStudent(ctx context.Context, studentID string) ([]models.FieldHistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM field_history WHERE student_id = $1 ORDER BY effective_date DESC, created_at DESC`, historyColumns)
	var entries []models.FieldHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list field history: %w", err)
	}
	return entries, nil
}

// PendingStudentIDs lists students that have unapplied entries whose
// effective date has arrived.
func (r *HistoryRepository) PendingStudentIDs(ctx context.Context, now time.Time) ([]string, error) {
	const query = `SELECT DISTINCT student_id FROM field_history WHERE applied = false AND effective_date <= $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, fmt.Errorf("list pending students: %w", err)
	}
	return ids, nil
}

// ApplyPendingForStudent applies all of one student's due entries in
// effective-date order inside a single transaction, so the live attribute
// lands on the newest due value and every applied entry is marked.
func (r *HistoryRepository) ApplyPendingForStudent(ctx context.Context, studentID string, now time.Time) (applied int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin pending apply: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`SELECT %s FROM field_history
        WHERE student_id = $1 AND applied = false AND effective_date <= $2
        ORDER BY effective_date ASC, created_at ASC FOR UPDATE`, historyColumns)
	var entries []models.FieldHistoryEntry
	if err = tx.SelectContext(ctx, &entries, query, studentID, now); err != nil {
		return 0, fmt.Errorf("lock pending entries: %w", err)
	}

	for _, entry := range entries {
		def, ok := models.LookupField(entry.FieldName)
		if !ok {
			err = appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("history entry %s references unknown field %q", entry.ID, entry.FieldName))
			return 0, err
		}
		value, decodeErr := models.DecodeFieldValue(entry.FieldName, entry.NewValue)
		if decodeErr != nil {
			err = appErrors.Wrap(decodeErr, appErrors.ErrDataIntegrity.Code, appErrors.ErrDataIntegrity.Status,
				fmt.Sprintf("history entry %s holds an undecodable value", entry.ID))
			return 0, err
		}
		update := fmt.Sprintf("UPDATE students SET %s = $1, updated_at = $2 WHERE id = $3", def.Column)
		if _, err = tx.ExecContext(ctx, update, value, now, studentID); err != nil {
			return 0, fmt.Errorf("apply pending entry %s: %w", entry.ID, err)
		}
		if _, err = tx.ExecContext(ctx, "UPDATE field_history SET applied = true, applied_at = $1 WHERE id = $2", now, entry.ID); err != nil {
			return 0, fmt.Errorf("mark entry %s applied: %w", entry.ID, err)
		}
		applied++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit pending apply: %w", err)
	}
	return applied, nil
}
