// Package runner executes ingestion runs in the background, one at a time,
// and exposes a snapshot of what is happening.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"igarchive/internal/ingest"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
)

// Ingester performs one run
type Ingester interface {
	Run(ctx context.Context, accountID string, src ingest.RawSource, opts ...ingest.RunOption) models.RunOutcome
}

// Journal persists finished runs
type Journal interface {
	Record(models.RunOutcome) error
	Latest() (models.RunOutcome, bool)
}

// Locker is an exclusive lock shared by every process writing the same
// archive.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// LockFile returns a file lock at path, creating its directory
func LockFile(path string) (Locker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errs.Storage(err, "create run lock directory")
	}
	return flock.New(path), nil
}

// ErrShuttingDown is returned by Start once Shutdown has been called
var ErrShuttingDown = errs.New(errs.ErrorTypeConflict, "runner is shutting down")

// Option configures a Runner
type Option func(*Runner)

// WithJournal records every finished run in j and seeds the last outcome
// from it.
func WithJournal(j Journal) Option {
	return func(r *Runner) { r.journal = j }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithLock holds l for the duration of every run, so runners in other
// processes sharing l's file reject starts with ErrRunInProgress.
func WithLock(l Locker) Option {
	return func(r *Runner) { r.lock = l }
}

// OnProgress registers an additional progress observer
func OnProgress(fn ingest.ProgressFunc) Option {
	return func(r *Runner) { r.observers = append(r.observers, fn) }
}

// OnFinish registers a callback invoked after each run is recorded
func OnFinish(fn func(models.RunOutcome)) Option {
	return func(r *Runner) { r.finishers = append(r.finishers, fn) }
}

// Runner guards the single in-flight ingestion run
type Runner struct {
	ingester  Ingester
	journal   Journal
	lock      Locker
	log       logger.Logger
	observers []ingest.ProgressFunc
	finishers []func(models.RunOutcome)

	mu       sync.Mutex
	status   models.RunStatus
	done     chan struct{}
	closed   bool
	inflight sync.WaitGroup
}

// New creates an idle runner
func New(ing Ingester, opts ...Option) *Runner {
	r := &Runner{
		ingester: ing,
		status:   models.RunStatus{State: models.StateIdle, Message: "Idle"},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.NewNopLogger()
	}
	r.log = r.log.WithField("component", "runner")

	if r.journal != nil {
		if last, ok := r.journal.Latest(); ok {
			r.status.Last = &last
			r.status.Message = last.Message()
		}
	}
	return r
}

// Start launches a run for accountID reading from src. It returns
// errors.ErrRunInProgress when another run has not finished yet.
func (r *Runner) Start(accountID string, src ingest.RawSource) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrShuttingDown
	}
	if r.status.Running {
		runID := r.status.RunID
		r.mu.Unlock()
		r.log.DebugWithFields("Rejected run start, another run is active", map[string]interface{}{
			"account":    accountID,
			"active_run": runID,
		})
		return "", errs.ErrRunInProgress
	}
	if r.lock != nil {
		locked, err := r.lock.TryLock()
		if err != nil {
			r.mu.Unlock()
			return "", errs.Storage(err, "acquire run lock")
		}
		if !locked {
			r.mu.Unlock()
			r.log.DebugWithFields("Rejected run start, another process holds the run lock", map[string]interface{}{
				"account": accountID,
			})
			return "", errs.ErrRunInProgress
		}
	}

	runID := uuid.NewString()
	now := time.Now()
	done := make(chan struct{})
	r.status = models.RunStatus{
		Running:   true,
		RunID:     runID,
		Account:   accountID,
		State:     models.StateFetchingRaw,
		Message:   "Starting",
		StartedAt: &now,
		Last:      r.status.Last,
	}
	r.done = done
	r.inflight.Add(1)
	r.mu.Unlock()

	r.log.InfoWithFields("Run scheduled", map[string]interface{}{
		"run_id":  runID,
		"account": accountID,
	})

	go r.execute(runID, accountID, src, done)
	return runID, nil
}

func (r *Runner) execute(runID, accountID string, src ingest.RawSource, done chan struct{}) {
	defer r.inflight.Done()
	defer close(done)
	defer r.releaseLock(runID)

	outcome := r.ingester.Run(context.Background(), accountID, src,
		ingest.WithRunID(runID),
		ingest.WithProgress(r.progress),
	)

	if r.journal != nil {
		if err := r.journal.Record(outcome); err != nil {
			r.log.WithError(err).WarnWithFields("Failed to record run", map[string]interface{}{
				"run_id": runID,
			})
		}
	}

	r.mu.Lock()
	finished := outcome.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.status.Running = false
	r.status.State = models.StateIdle
	r.status.Progress = 100
	r.status.Message = outcome.Message()
	r.status.Added = outcome.Added
	r.status.Skipped = outcome.Skipped
	r.status.FinishedAt = &finished
	r.status.Last = &outcome
	r.mu.Unlock()

	for _, fn := range r.finishers {
		fn(outcome)
	}
}

func (r *Runner) releaseLock(runID string) {
	if r.lock == nil {
		return
	}
	if err := r.lock.Unlock(); err != nil {
		r.log.WithError(err).WarnWithFields("Failed to release run lock", map[string]interface{}{
			"run_id": runID,
		})
	}
}

func (r *Runner) progress(p models.RunProgress) {
	r.mu.Lock()
	changed := r.status.State != p.State
	r.status.State = p.State
	r.status.Progress = p.Percent
	r.status.Message = p.Message
	r.status.Added = p.Added
	r.status.Skipped = p.Skipped
	r.mu.Unlock()

	if changed {
		logger.LogRunProgress(r.log, p.Account, string(p.State), p.Percent, p.Message)
	}
	for _, fn := range r.observers {
		fn(p)
	}
}

// Status returns a snapshot of the runner's state
func (r *Runner) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.status
	if s.StartedAt != nil {
		t := *s.StartedAt
		s.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

// Wait blocks until the in-flight run, if any, has finished
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Shutdown stops accepting runs and waits for the in-flight one until ctx
// ends. Runs are not interrupted.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.log.Info("Stopping runner...")
	idle := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		r.log.Info("Runner stopped")
		return nil
	case <-ctx.Done():
		r.log.Warn("Runner shutdown timed out with a run still active")
		return ctx.Err()
	}
}
