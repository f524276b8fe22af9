// Package dividends owns the pipeline run lifecycle: crawl, assemble, export
// and persist, plus freshness checks for the web front end.
package dividends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
)

const latestKey = "dividends:latest"

var (
	// ErrRunInProgress is returned when a refresh is requested while another is running
	ErrRunInProgress = errors.New("a refresh is already in progress")
	// ErrNoData is returned when no run has completed yet
	ErrNoData = errors.New("no dividend data available")
)

// Assembler turns a corpus into sorted records
type Assembler interface {
	Run(ctx context.Context, corpus models.Corpus) ([]models.DividendRecord, *models.RunReport, error)
}

// Exporter writes the records table
type Exporter interface {
	Write(records []models.DividendRecord) error
}

// RunCache is a lookup cache scoped to one refresh
type RunCache interface {
	Purge()
}

// Service implements interfaces.DividendsService
type Service struct {
	source       interfaces.ArticleSource
	assembler    Assembler
	exporter     Exporter
	kv           interfaces.KeyValueStorage
	runs         interfaces.RunStorage
	staleAfter   time.Duration
	historyLimit int
	caches       []RunCache
	now          func() time.Time
	running      sync.Mutex
	logger       arbor.ILogger
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now for staleness checks
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRunCaches registers caches that are purged at the start of every refresh
func WithRunCaches(caches ...RunCache) Option {
	return func(s *Service) {
		s.caches = append(s.caches, caches...)
	}
}

func NewService(
	source interfaces.ArticleSource,
	assembler Assembler,
	exporter Exporter,
	storage interfaces.StorageManager,
	config common.OutputConfig,
	logger arbor.ILogger,
	opts ...Option,
) *Service {
	s := &Service{
		source:       source,
		assembler:    assembler,
		exporter:     exporter,
		kv:           storage.KeyValueStorage(),
		runs:         storage.RunStorage(),
		staleAfter:   config.StalenessAfter,
		historyLimit: config.HistoryLimit,
		now:          time.Now,
		logger:       logger,
	}
	if s.staleAfter <= 0 {
		s.staleAfter = time.Hour
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh runs the whole pipeline once. Only one run executes at a time; a
// concurrent caller gets ErrRunInProgress. The previous dataset is kept when
// the run fails.
func (s *Service) Refresh(ctx context.Context) (*models.Dataset, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	s.logger.Info().Int("caches_purged", len(s.caches)).Msg("Dividend refresh started")

	for _, c := range s.caches {
		c.Purge()
	}

	articles, err := s.source.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect articles: %w", err)
	}

	records, report, err := s.assembler.Run(ctx, models.NewCorpus(articles))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble records: %w", err)
	}

	if err := s.exporter.Write(records); err != nil {
		return nil, fmt.Errorf("failed to export records: %w", err)
	}

	dataset := &models.Dataset{Records: records, Report: *report}
	data, err := json.Marshal(dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := s.kv.Set(ctx, latestKey, string(data), "Latest dividend dataset"); err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	s.recordRun(ctx, report)

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("records", len(records)).
		Msg("Dividend refresh completed")

	return dataset, nil
}

// recordRun appends to the run history. Failures only cost history, so they are logged.
func (s *Service) recordRun(ctx context.Context, report *models.RunReport) {
	if err := s.runs.SaveRun(ctx, report); err != nil {
		s.logger.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to save run report")
		return
	}
	if s.historyLimit <= 0 {
		return
	}
	if _, err := s.runs.PruneRuns(ctx, s.historyLimit); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to prune run history")
	}
}

// Latest returns the dataset of the last successful run, or ErrNoData.
func (s *Service) Latest(ctx context.Context) (*models.Dataset, error) {
	value, err := s.kv.Get(ctx, latestKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	var dataset models.Dataset
	if err := json.Unmarshal([]byte(value), &dataset); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &dataset, nil
}

// IsStale reports whether there is no dataset or it is older than the staleness window.
func (s *Service) IsStale(ctx context.Context) bool {
	pair, err := s.kv.GetPair(ctx, latestKey)
	if err != nil {
		return true
	}
	return s.now().Sub(pair.UpdatedAt) >= s.staleAfter
}

// EnsureFresh refreshes a stale dataset and returns the current one. If a run
// is already in progress the existing dataset is returned as is.
func (s *Service) EnsureFresh(ctx context.Context) (*models.Dataset, error) {
	if !s.IsStale(ctx) {
		return s.Latest(ctx)
	}

	dataset, err := s.Refresh(ctx)
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Info().Msg("Refresh already running, serving existing data")
		return s.Latest(ctx)
	}
	return dataset, err
}

// History lists recent run reports, newest first.
func (s *Service) History(ctx context.Context) ([]models.RunReport, error) {
	return s.runs.ListRuns(ctx, s.historyLimit)
}
