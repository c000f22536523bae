package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

type historyRepository interface {
	Append(ctx context.Context, entry *models.FieldHistoryEntry, liveColumn string, liveValue interface{}) error
	PendingStudentIDs(ctx context.Context, now time.Time) ([]string, error)
	ApplyPendingForStudent(ctx context.Context, studentID string, now time.Time) (int, error)
}

// ProposeChangeRequest describes one field-change proposal. Values travel as
// text whatever the field's native type; the schema validates them.
type ProposeChangeRequest struct {
	FieldName     string    `json:"field_name" validate:"required"`
	OldValue      string    `json:"old_value"`
	NewValue      string    `json:"new_value" validate:"required"`
	EffectiveDate time.Time `json:"effective_date" validate:"required"`
	Reason        string    `json:"reason"`
}

// FieldUpdateService accepts field-change proposals: every accepted proposal
// is logged, and changes already effective are promoted into the live student
// attribute within the same transaction. Future-dated changes stay staged
// until the activation sweep picks them up.
type FieldUpdateService struct {
	history   historyRepository
	students  studentChecker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	txTimeout time.Duration
}

// NewFieldUpdateService constructs FieldUpdateService.
func NewFieldUpdateService(history historyRepository, students studentChecker, cache *CacheService, metrics *MetricsService,
	validate *validator.Validate, logger *zap.Logger, txTimeout time.Duration) *FieldUpdateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if txTimeout <= 0 {
		txTimeout = 10 * time.Second
	}
	return &FieldUpdateService{history: history, students: students, cache: cache, metrics: metrics,
		validator: validate, logger: logger, txTimeout: txTimeout}
}

// ProposeChange records the change and, when already effective, mutates the
// live attribute atomically with the log append.
func (s *FieldUpdateService) ProposeChange(ctx context.Context, studentID string, req ProposeChangeRequest) (*models.FieldHistoryEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field change payload")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	def, ok := models.LookupField(req.FieldName)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %q is not tracked", req.FieldName))
	}
	if err := models.ValidateFieldValue(req.FieldName, req.NewValue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field value")
	}

	now := time.Now().UTC()
	applied := !req.EffectiveDate.After(now)

	var liveValue interface{}
	if applied {
		value, err := models.DecodeFieldValue(req.FieldName, req.NewValue)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field value")
		}
		liveValue = value
	}

	entry := &models.FieldHistoryEntry{
		StudentID:     studentID,
		FieldName:     req.FieldName,
		OldValue:      req.OldValue,
		NewValue:      req.NewValue,
		EffectiveDate: req.EffectiveDate,
		Reason:        req.Reason,
		Applied:       applied,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	if err := s.history.Append(txCtx, entry, def.Column, liveValue); err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrTxAborted.Code {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record field change")
	}

	s.metrics.RecordFieldChange(!applied)
	if applied {
		s.cache.Invalidate(ctx, "students:list:*")
	}
	return entry, nil
}

// ActivatePending applies staged changes whose effective date has arrived.
// Each student is processed in its own transaction so one bad record cannot
// block the rest of the sweep. Returns the number of entries applied.
func (s *FieldUpdateService) ActivatePending(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	ids, err := s.history.PendingStudentIDs(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending changes")
	}

	total := 0
	for _, id := range ids {
		txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
		applied, err := s.history.ApplyPendingForStudent(txCtx, id, now)
		cancel()
		if err != nil {
			s.logger.Error("pending field activation failed",
				zap.String("student_id", id),
				zap.Error(err))
			continue
		}
		total += applied
	}

	if total > 0 {
		s.metrics.RecordFieldActivations(total)
		s.cache.Invalidate(ctx, "students:list:*")
		s.logger.Info("field activation sweep applied changes", zap.Int("count", total))
	}
	return total, nil
}
