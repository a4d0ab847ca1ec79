package reports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	filesPerMonth = 30
	// A single facility accounts for a tenth of a month's reports.
	facilityShare = 10
)

// ExpectedFiles is the file count at which the simulator completes rec.
func ExpectedFiles(rec DownloadRecord) int {
	months := len(Months)
	if rec.Month != nil && *rec.Month != "" {
		months = 1
	}
	perMonth := filesPerMonth
	if rec.FacilityID != nil && *rec.FacilityID != "" {
		perMonth = filesPerMonth / facilityShare
		if perMonth < 1 {
			perMonth = 1
		}
	}
	return months * perMonth
}

// Simulator advances pending and in-progress downloads in place of a real
// scraper until they reach their expected file count.
type Simulator struct {
	cfg      SimulatorConfig
	debug    bool
	store    *Store
	notifier Notifier
	metrics  *Metrics
	logger   *log.Logger

	ticks map[uint]int
}

func NewSimulator(cfg SimulatorConfig, store *Store, notifier Notifier, metrics *Metrics, logger *log.Logger, debug bool) (*Simulator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.FilesPerTick <= 0 {
		return nil, fmt.Errorf("FilesPerTick must be positive")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Simulator{
		cfg:      cfg,
		debug:    debug,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		ticks:    map[uint]int{},
	}, nil
}

func (s *Simulator) debugf(format string, args ...any) {
	if s == nil || !s.debug {
		return
	}
	s.logger.Printf(format, args...)
}

// Run calls RunOnce every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Printf("simulator run once error: %v", err)
			}
		}
	}
}

// RunOnce advances every active download by one tick.
func (s *Simulator) RunOnce(ctx context.Context) error {
	recs, err := s.store.ListActiveDownloads(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, rec := range recs {
		if err := s.advance(ctx, rec); err != nil {
			if errors.Is(err, ErrTerminal) {
				delete(s.ticks, rec.ID)
				continue
			}
			s.debugf("simulator advance id=%d err=%v", rec.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Simulator) advance(ctx context.Context, rec DownloadRecord) error {
	s.ticks[rec.ID]++
	tick := s.ticks[rec.ID]

	expected := ExpectedFiles(rec)
	add := s.cfg.FilesPerTick
	if rec.FileCount+add > expected {
		add = expected - rec.FileCount
	}
	if add < 0 {
		add = 0
	}
	addErrors := 0
	if s.cfg.ErrorEvery > 0 && tick%s.cfg.ErrorEvery == 0 {
		addErrors = 1
	}
	finish := rec.FileCount+add >= expected

	updated, err := s.store.AdvanceDownload(ctx, rec.ID, add, addErrors, finish)
	if err != nil {
		return err
	}
	s.debugf("simulator id=%d files=%d/%d errors=%d status=%s", updated.ID, updated.FileCount, expected, updated.ErrorCount, updated.Status)
	if !updated.Status.IsTerminal() {
		return nil
	}

	delete(s.ticks, rec.ID)
	s.metrics.DownloadFinished(updated.Status)
	if s.notifier != nil {
		kv, err := s.store.LoadSettings(ctx)
		if err != nil {
			s.logger.Printf("load email settings: %v", err)
			return nil
		}
		s.notifier.DownloadFinished(*updated, emailSettingsFromRows(kv))
	}
	return nil
}
