package dividends

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/interfaces"
)

// Scheduler refreshes the dataset on a cron schedule
type Scheduler struct {
	service interfaces.DividendsService
	cron    *cron.Cron
	timeout time.Duration
	logger  arbor.ILogger
}

// NewScheduler creates a scheduler; timeout bounds each run
func NewScheduler(service interfaces.DividendsService, timeout time.Duration, logger arbor.ILogger) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Scheduler{
		service: service,
		cron:    cron.New(cron.WithSeconds()),
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the schedule and starts the cron runner
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = "0 0 6 * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runRefresh); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Dividend refresh scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Dividend refresh scheduler stopped")
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info().Msg("Starting scheduled refresh")

	dataset, err := s.service.Refresh(ctx)
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Info().Msg("Skipping scheduled refresh, a run is in progress")
		return
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("Scheduled refresh failed")
		return
	}

	s.logger.Info().
		Str("run_id", dataset.Report.RunID).
		Int("records", dataset.Report.Records).
		Dur("duration", dataset.Report.Duration).
		Msg("Scheduled refresh completed")
}
