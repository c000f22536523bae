package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gakuseki-api/internal/models"
	appErrors "github.com/noah-isme/gakuseki-api/pkg/errors"
	"github.com/noah-isme/gakuseki-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter, fiscalYear int) ([]models.StudentSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsBySNumber(ctx context.Context, sNumber string) (bool, error)
	CreateWithInitialRecords(ctx context.Context, student *models.Student, enrollment *models.EnrollmentRecord, interval *models.StatusInterval) error
	Delete(ctx context.Context, id string) error
}

type enrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRecord, error)
	ListCurrentPlacements(ctx context.Context) ([]models.CurrentPlacement, error)
}

type historyReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.FieldHistoryEntry, error)
}

type statusReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StatusInterval, error)
}

// CreateStudentRequest carries identity fields plus the initial placement.
// The fiscal year is fixed to the present academic year by the service.
type CreateStudentRequest struct {
	SNumber          string    `json:"s_number" validate:"required"`
	LegalName        string    `json:"legal_name" validate:"required"`
	AliasName        *string   `json:"alias_name"`
	UseAliasFlag     bool      `json:"use_alias_flag"`
	BirthDate        time.Time `json:"birth_date" validate:"required"`
	Gender           string    `json:"gender" validate:"required"`
	Address          string    `json:"address"`
	Grade            int       `json:"grade" validate:"required,gt=0"`
	ClassLabel       string    `json:"class_label" validate:"required"`
	AttendanceNumber int       `json:"attendance_number" validate:"required,gt=0"`
}

// StudentService handles directory and intake use-cases.
type StudentService struct {
	repo        studentRepository
	enrollments enrollmentReader
	history     historyReader
	statuses    statusReader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	startMonth  time.Month
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, enrollments enrollmentReader, history historyReader, statuses statusReader,
	cache *CacheService, validate *validator.Validate, logger *zap.Logger, startMonth time.Month) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.April
	}
	return &StudentService{
		repo:        repo,
		enrollments: enrollments,
		history:     history,
		statuses:    statuses,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		startMonth:  startMonth,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

// CurrentFiscalYear returns the academic year containing the present moment.
func (s *StudentService) CurrentFiscalYear() int {
	return models.FiscalYearAt(time.Now().UTC(), s.startMonth)
}

type cachedStudentList struct {
	Students   []models.StudentSummary `json:"students"`
	Pagination *models.Pagination      `json:"pagination"`
}

// List returns directory rows and pagination metadata, served from cache
// when possible.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, *models.Pagination, error) {
	fiscalYear := s.CurrentFiscalYear()
	key := fmt.Sprintf("students:list:%s:%d:%d:%s:%s:%d",
		filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder, fiscalYear)

	var cached cachedStudentList
	if s.cache.Get(ctx, key, &cached) {
		return cached.Students, cached.Pagination, nil
	}

	students, total, err := s.repo.List(ctx, filter, fiscalYear)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	s.cache.Set(ctx, key, cachedStudentList{Students: students, Pagination: pagination})
	return students, pagination, nil
}

// Get returns the full temporal record for one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentRecord, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	entries, err := s.history.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load field history")
	}
	intervals, err := s.statuses.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status intervals")
	}

	return &models.StudentRecord{
		Student:         *student,
		Enrollments:     enrollments,
		FieldHistory:    entries,
		StatusIntervals: intervals,
	}, nil
}

// Create registers a new student with the first-year enrollment and an
// initial ACTIVE status interval, in one transaction.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsBySNumber(ctx, req.SNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate registration number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "registration number already used")
	}

	now := time.Now().UTC()
	student := &models.Student{
		SNumber:      req.SNumber,
		LegalName:    req.LegalName,
		AliasName:    req.AliasName,
		UseAliasFlag: req.UseAliasFlag,
		BirthDate:    req.BirthDate,
		Gender:       req.Gender,
		Address:      req.Address,
	}
	enrollment := &models.EnrollmentRecord{
		FiscalYear:       models.FiscalYearAt(now, s.startMonth),
		Grade:            req.Grade,
		ClassLabel:       req.ClassLabel,
		AttendanceNumber: req.AttendanceNumber,
		Status:           models.EnrollmentStatusActive,
	}
	interval := &models.StatusInterval{
		Status:    models.StatusActive,
		StartDate: now,
	}

	if err := s.repo.CreateWithInitialRecords(ctx, student, enrollment, interval); err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrDuplicateKey.Code {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.cache.Invalidate(ctx, "students:list:*")

	return &models.StudentRecord{
		Student:         *student,
		Enrollments:     []models.EnrollmentRecord{*enrollment},
		FieldHistory:    []models.FieldHistoryEntry{},
		StatusIntervals: []models.StatusInterval{*interval},
	}, nil
}

// Delete removes a student together with all owned temporal records.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.cache.Invalidate(ctx, "students:list:*")
	return nil
}

// Export renders the current-year roster of active students as CSV or PDF.
func (s *StudentService) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	placements, err := s.enrollments.ListCurrentPlacements(ctx)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	headers := []string{"S-Number", "Name", "Fiscal Year", "Grade", "Class", "No."}
	rows := make([]map[string]string, 0, len(placements))
	for _, p := range placements {
		rows = append(rows, map[string]string{
			"S-Number":    p.SNumber,
			"Name":        p.LegalName,
			"Fiscal Year": strconv.Itoa(p.FiscalYear),
			"Grade":       strconv.Itoa(p.Grade),
			"Class":       p.ClassLabel,
			"No.":         strconv.Itoa(p.AttendanceNumber),
		})
	}
	dataset := export.Dataset{Headers: headers, Rows: rows}

	fiscalYear := s.CurrentFiscalYear()
	switch format {
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Student Roster", fmt.Sprintf("Fiscal Year %d", fiscalYear))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", fmt.Sprintf("roster_%d.pdf", fiscalYear), nil
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", fmt.Sprintf("roster_%d.csv", fiscalYear), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
