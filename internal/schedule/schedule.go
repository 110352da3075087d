// Package schedule triggers ingestion runs on a cron spec.
package schedule

import (
	"fmt"
	"sync"

	"github.com/robfig/cron"

	"igarchive/internal/ingest"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
)

// Starter launches runs and waits for the active one to finish
type Starter interface {
	Start(accountID string, src ingest.RawSource) (string, error)
	Wait()
}

// Scheduler runs each configured account in turn whenever its cron spec fires.
// Specs use six fields with seconds first, or descriptors like "@every 1h".
type Scheduler struct {
	spec     string
	accounts []string
	starter  Starter
	source   func() ingest.RawSource
	log      logger.Logger

	cron *cron.Cron
	mu   sync.Mutex
	busy bool
}

// New creates a scheduler. An empty accounts list means the default account.
func New(spec string, accounts []string, starter Starter, source func() ingest.RawSource, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if len(accounts) == 0 {
		accounts = []string{""}
	}
	s := &Scheduler{
		spec:     spec,
		accounts: accounts,
		starter:  starter,
		source:   source,
		log:      log.WithField("component", "schedule"),
		cron:     cron.New(),
	}
	if err := s.cron.AddFunc(spec, s.Tick); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInput, err, fmt.Sprintf("invalid schedule %q", spec))
	}
	return s, nil
}

// Start begins firing in the background
func (s *Scheduler) Start() {
	logger.LogComponentStart("schedule", map[string]interface{}{
		"spec":     s.spec,
		"accounts": len(s.accounts),
	})
	s.cron.Start()
}

// Stop halts future firings. A tick already in progress keeps going.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.LogComponentStop("schedule", "stopped")
}

// Tick runs every account once, one after another. Overlapping ticks are
// dropped, and an account is skipped when some other run holds the runner.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.log.Warn("Previous scheduled pass still running, skipping")
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	for _, account := range s.accounts {
		runID, err := s.starter.Start(account, s.source())
		if err != nil {
			if errs.Is(err, errs.ErrorTypeConflict) {
				s.log.InfoWithFields("Runner busy, skipping scheduled run", map[string]interface{}{
					"account": account,
				})
				continue
			}
			s.log.WithError(err).ErrorWithFields("Scheduled run failed to start", map[string]interface{}{
				"account": account,
			})
			return
		}
		s.log.DebugWithFields("Scheduled run started", map[string]interface{}{
			"account": account,
			"run_id":  runID,
		})
		s.starter.Wait()
	}
}
