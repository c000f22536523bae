package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
)

type statusRepository interface {
	FindOpen(ctx context.Context, studentID string) ([]models.StatusInterval, error)
	OpenInterval(ctx context.Context, studentID string, status models.StudentStatus, startDate time.Time) (*models.StatusInterval, error)
}

// ChangeStatusRequest opens a new status interval at StartDate.
type ChangeStatusRequest struct {
	Status    models.StudentStatus `json:"status" validate:"required"`
	StartDate time.Time            `json:"start_date"`
}

// StatusService maintains the status timeline.
type StatusService struct {
	repo      statusRepository
	students  studentChecker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStatusService constructs StatusService.
func NewStatusService(repo statusRepository, students studentChecker, cache *CacheService, metrics *MetricsService,
	validate *validator.Validate, logger *zap.Logger) *StatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{repo: repo, students: students, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// CurrentStatus returns the status of the open interval, UNKNOWN when the
// student has none. Two or more open intervals is corrupted data and is
// reported as such, never resolved by picking one.
func (s *StatusService) CurrentStatus(ctx context.Context, studentID string) (models.StudentStatus, error) {
	intervals, err := s.repo.FindOpen(ctx, studentID)
	if err != nil {
		return models.StatusUnknown, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status")
	}
	switch len(intervals) {
	case 0:
		return models.StatusUnknown, nil
	case 1:
		return intervals[0].Status, nil
	default:
		return models.StatusUnknown, appErrors.Clone(appErrors.ErrDataIntegrity, "multiple open status intervals for student")
	}
}

// ChangeStatus closes the open interval and opens a new one atomically.
func (s *StatusService) ChangeStatus(ctx context.Context, studentID string, req ChangeStatusRequest) (*models.StatusInterval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidStudentStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	// Surface corruption before the transition would paper over it.
	if _, err := s.CurrentStatus(ctx, studentID); err != nil {
		return nil, err
	}

	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}

	interval, err := s.repo.OpenInterval(ctx, studentID, req.Status, startDate)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrTxAborted.Code {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change status")
	}

	s.metrics.RecordStatusTransition()
	s.cache.Invalidate(ctx, "students:list:*")
	return interval, nil
}
