package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gakuseki-api/internal/service"
	"github.com/noah-isme/gakuseki-api/pkg/jobs"
)

const jobActivateFields = "activate_pending_fields"

// Sweeper periodically applies staged field changes whose effective date
// has arrived.
type Sweeper struct {
	fields   *service.FieldUpdateService
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper builds a sweeper backed by a single-purpose job queue.
func NewSweeper(fields *service.FieldUpdateService, interval time.Duration, workers int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		fields:   fields,
		interval: interval,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("field-activation", s.handle, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return s
}

// Start launches the queue and its periodic trigger.
func (s *Sweeper) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.queue.Periodic(s.interval, jobActivateFields)
}

// Stop drains the queue.
func (s *Sweeper) Stop() {
	s.queue.Stop()
}

func (s *Sweeper) handle(ctx context.Context, job jobs.Job) error {
	applied, err := s.fields.ActivatePending(ctx)
	if err != nil {
		return err
	}
	if applied > 0 {
		s.logger.Sugar().Infow("applied staged field changes", "count", applied)
	}
	return nil
}
