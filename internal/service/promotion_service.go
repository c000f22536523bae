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

type promotionLedger interface {
	ListCurrentPlacements(ctx context.Context) ([]models.CurrentPlacement, error)
	BulkAppend(ctx context.Context, records []models.EnrollmentRecord) (int, error)
}

type studentChecker interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// PromoteRequest is a bulk promotion batch: one target fiscal year shared by
// every directive.
type PromoteRequest struct {
	TargetFiscalYear int                         `json:"target_fiscal_year" validate:"required,gt=0"`
	Directives       []models.PromotionDirective `json:"directives" validate:"required,min=1,dive"`
}

// PromotionService turns current placements into next-year enrollment
// records, committed all-or-nothing.
type PromotionService struct {
	ledger    promotionLedger
	students  studentChecker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	txTimeout time.Duration
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(ledger promotionLedger, students studentChecker, cache *CacheService, metrics *MetricsService,
	validate *validator.Validate, logger *zap.Logger, txTimeout time.Duration) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if txTimeout <= 0 {
		txTimeout = 10 * time.Second
	}
	return &PromotionService{ledger: ledger, students: students, cache: cache, metrics: metrics,
		validator: validate, logger: logger, txTimeout: txTimeout}
}

// BuildPlan derives the default promotion draft from current placements:
// grade advances by one, class and attendance number carry over.
func BuildPlan(placements []models.CurrentPlacement) []models.PromotionPlanEntry {
	entries := make([]models.PromotionPlanEntry, 0, len(placements))
	for _, p := range placements {
		entries = append(entries, models.PromotionPlanEntry{
			StudentID:     p.StudentID,
			SNumber:       p.SNumber,
			LegalName:     p.LegalName,
			CurrentGrade:  p.Grade,
			CurrentClass:  p.ClassLabel,
			CurrentNumber: p.AttendanceNumber,
			NextGrade:     p.Grade + 1,
			NextClass:     p.ClassLabel,
			NextNumber:    p.AttendanceNumber,
			IsRetained:    false,
		})
	}
	return entries
}

// ApplyOverrides folds per-student edits into a draft. Retention pins the
// next grade to the current one; class and attendance number may be replaced.
// The input slice is not modified.
func ApplyOverrides(entries []models.PromotionPlanEntry, overrides []models.PromotionOverride) []models.PromotionPlanEntry {
	byStudent := make(map[string]models.PromotionOverride, len(overrides))
	for _, o := range overrides {
		byStudent[o.StudentID] = o
	}
	out := make([]models.PromotionPlanEntry, len(entries))
	copy(out, entries)
	for i := range out {
		o, ok := byStudent[out[i].StudentID]
		if !ok {
			continue
		}
		if o.IsRetained != nil {
			out[i].IsRetained = *o.IsRetained
			if *o.IsRetained {
				out[i].NextGrade = out[i].CurrentGrade
			} else {
				out[i].NextGrade = out[i].CurrentGrade + 1
			}
		}
		if o.NextClass != nil {
			out[i].NextClass = *o.NextClass
		}
		if o.NextNumber != nil {
			out[i].NextNumber = *o.NextNumber
		}
	}
	return out
}

// Plan returns the editable promotion draft for all active students.
func (s *PromotionService) Plan(ctx context.Context) ([]models.PromotionPlanEntry, error) {
	placements, err := s.ledger.ListCurrentPlacements(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current placements")
	}
	return BuildPlan(placements), nil
}

// Promote commits the batch. If any directive names an unknown student or
// collides with an existing (student, fiscal year) record, nothing persists.
func (s *PromotionService) Promote(ctx context.Context, req PromoteRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordPromotionBatch(0, false)
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promotion payload")
	}

	seen := make(map[string]struct{}, len(req.Directives))
	for _, d := range req.Directives {
		if _, dup := seen[d.StudentID]; dup {
			s.metrics.RecordPromotionBatch(0, false)
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate directive for student %s", d.StudentID))
		}
		seen[d.StudentID] = struct{}{}
		if _, err := s.students.FindByID(ctx, d.StudentID); err != nil {
			s.metrics.RecordPromotionBatch(0, false)
			if err == sql.ErrNoRows {
				return 0, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("promotion aborted: unknown student %s", d.StudentID))
			}
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate directive")
		}
	}

	records := make([]models.EnrollmentRecord, 0, len(req.Directives))
	for _, d := range req.Directives {
		records = append(records, models.EnrollmentRecord{
			StudentID:        d.StudentID,
			FiscalYear:       req.TargetFiscalYear,
			Grade:            d.Grade,
			ClassLabel:       d.ClassLabel,
			AttendanceNumber: d.AttendanceNumber,
			Status:           models.EnrollmentStatusActive,
		})
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	count, err := s.ledger.BulkAppend(txCtx, records)
	if err != nil {
		s.metrics.RecordPromotionBatch(0, false)
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrDuplicateKey.Code || appErr.Code == appErrors.ErrTxAborted.Code {
			return 0, appErr
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "promotion batch failed")
	}

	s.metrics.RecordPromotionBatch(count, true)
	s.cache.Invalidate(ctx, "students:list:*")
	s.logger.Info("promotion batch committed",
		zap.Int("target_fiscal_year", req.TargetFiscalYear),
		zap.Int("count", count))
	return count, nil
}
