// Package scheduler refreshes the reference datasets and prunes stored uploads
// on a fixed schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/go-co-op/gocron"
)

// RefreshTimes are the daily reference data refresh times
const RefreshTimes = "06:00;18:00"

// staleAfter is how old reference data may get before the hourly check warns
const staleAfter = 25 * time.Hour

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler runs the reference data refresh and upload cleanup jobs
type Scheduler struct {
	refs            interfaces.ReferenceStore
	loader          interfaces.ReferenceLoader
	uploads         interfaces.UploadCleaner
	uploadRetention time.Duration
	loadTimeout     time.Duration
	scheduler       *gocron.Scheduler
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithUploadCleanup enables the hourly removal of uploads older than retention
func WithUploadCleanup(uploads interfaces.UploadCleaner, retention time.Duration) Option {
	return func(s *Scheduler) {
		s.uploads = uploads
		s.uploadRetention = retention
	}
}

// WithLoadTimeout bounds one refresh of the reference datasets
func WithLoadTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		s.loadTimeout = timeout
	}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(refs interfaces.ReferenceStore, loader interfaces.ReferenceLoader, opts ...Option) *Scheduler {
	s := &Scheduler{
		refs:        refs,
		loader:      loader,
		loadTimeout: 2 * time.Minute,
		scheduler:   gocron.NewScheduler(time.Local),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scheduler.SingletonModeAll()
	return s
}

// Start performs the initial refresh and schedules the recurring jobs. A
// failed initial refresh is logged and leaves the lookups unloaded; only
// scheduling errors are returned.
func (s *Scheduler) Start() error {
	if err := s.Refresh(); err != nil {
		logging.Error("Failed to perform initial reference data load", "error", err)
	}

	_, err := s.scheduler.Every(1).Days().At(RefreshTimes).Do(func() {
		if err := s.Refresh(); err != nil {
			logging.Error("Failed to refresh reference data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	if s.uploads != nil && s.uploadRetention > 0 {
		_, err = s.scheduler.Every(1).Hour().Do(s.cleanupUploads)
		if err != nil {
			return fmt.Errorf("failed to schedule upload cleanup: %w", err)
		}
	}

	_, err = s.scheduler.Every(1).Hour().WaitForSchedule().Do(s.checkStaleness)
	if err != nil {
		return fmt.Errorf("failed to schedule health monitoring: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Refresh reloads both datasets. Each dataset is swapped only when it loaded
// successfully, so a failing source keeps its previous data.
func (s *Scheduler) Refresh() error {
	// Prevent concurrent updates
	if !s.refs.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.refs.EndUpdate()

	ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
	defer cancel()

	logging.Info("Starting reference data update", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	var errs []error

	formulary, err := s.loader.LoadFormulary(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("formulary: %w", err))
	} else {
		s.refs.UpdateFormulary(formulary)
	}

	register, err := s.loader.LoadRegister(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("ema register: %w", err))
	} else {
		s.refs.UpdateRegister(register)
	}

	logging.Info("Reference data update completed",
		"duration", time.Since(start).String(),
		"formulary_count", s.refs.FormularySize(),
		"register_count", s.refs.RegisterSize(),
		"failed_sources", len(errs),
	)

	return errors.Join(errs...)
}

func (s *Scheduler) cleanupUploads() {
	removed, err := s.uploads.Cleanup(s.uploadRetention)
	if err != nil {
		logging.Warn("Upload cleanup failed", "error", err)
	}
	if removed > 0 {
		logging.Info("Removed expired uploads", "count", removed)
	}
}

func (s *Scheduler) checkStaleness() {
	lastUpdate := s.refs.GetLastUpdated()
	if time.Since(lastUpdate) > staleAfter {
		logging.Warn("Reference data hasn't been updated in over 25 hours")
	}
}
