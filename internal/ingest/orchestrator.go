// Package ingest runs one ingestion pass for an account: collect raw
// snapshots, extract candidates per category, persist them and tally the
// outcome.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"igarchive/pkg/accounts"
	"igarchive/pkg/extractor"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/store"
)

// RecordStore is the part of the record store a run writes through
type RecordStore interface {
	Upsert(ctx context.Context, p accounts.Partition, c models.Candidate, media store.MediaResolver) (models.UpsertResult, error)
}

// StoreOpener returns the record store of a partition
type StoreOpener func(p accounts.Partition) (RecordStore, error)

// SetOpener adapts a store.Set to a StoreOpener
func SetOpener(set *store.Set) StoreOpener {
	return func(p accounts.Partition) (RecordStore, error) {
		return set.Open(p)
	}
}

// ProgressFunc observes a run as it moves through its states
type ProgressFunc func(models.RunProgress)

// Config wires an Orchestrator
type Config struct {
	Registry  *accounts.Registry
	Stores    StoreOpener
	Extractor *extractor.Extractor
	Media     store.MediaResolver
	Collector Collector
	Logger    logger.Logger
}

// Orchestrator executes ingestion runs. It holds no per-run state, but runs
// must be serialised by the caller since duplicate detection assumes a
// single writer per partition.
type Orchestrator struct {
	registry  *accounts.Registry
	stores    StoreOpener
	extractor *extractor.Extractor
	media     store.MediaResolver
	collector Collector
	log       logger.Logger
	now       func() time.Time
}

// New creates an orchestrator
func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	collector := cfg.Collector
	if collector == nil {
		collector = NopCollector{}
	}
	ext := cfg.Extractor
	if ext == nil {
		ext = extractor.New(extractor.DefaultRules(), log)
	}
	return &Orchestrator{
		registry:  cfg.Registry,
		stores:    cfg.Stores,
		extractor: ext,
		media:     cfg.Media,
		collector: collector,
		log:       log.WithField("component", "ingest"),
		now:       time.Now,
	}
}

// RunOption customises a single run
type RunOption func(*RunOptions)

// RunOptions is the resolved form of a set of RunOption values
type RunOptions struct {
	RunID    string
	Progress ProgressFunc
}

// ResolveOptions applies opts over the zero value
func ResolveOptions(opts ...RunOption) RunOptions {
	var ro RunOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

// WithRunID sets the run identifier instead of generating one
func WithRunID(id string) RunOption {
	return func(o *RunOptions) { o.RunID = id }
}

// WithProgress registers an observer for the run
func WithProgress(fn ProgressFunc) RunOption {
	return func(o *RunOptions) { o.Progress = fn }
}

// run carries the state of one invocation
type run struct {
	*Orchestrator
	ctx       context.Context
	partition accounts.Partition
	src       RawSource
	outcome   models.RunOutcome
	progress  ProgressFunc
	log       logger.Logger

	store     RecordStore
	storeErr  error
	storeOpen bool
}

// Run ingests every category for accountID. Unknown accounts land in the
// default partition. Problems are recorded in the outcome, never returned.
func (o *Orchestrator) Run(ctx context.Context, accountID string, src RawSource, opts ...RunOption) (outcome models.RunOutcome) {
	ro := ResolveOptions(opts...)
	if ro.RunID == "" {
		ro.RunID = uuid.NewString()
	}

	p := o.registry.Resolve(accountID)
	r := &run{
		Orchestrator: o,
		ctx:          ctx,
		partition:    p,
		src:          src,
		progress:     ro.Progress,
		outcome: models.RunOutcome{
			RunID:     ro.RunID,
			Account:   accountID,
			Partition: p.ID,
			StartedAt: o.now(),
		},
		log: o.log.WithFields(map[string]interface{}{
			"run_id":    ro.RunID,
			"account":   accountID,
			"partition": p.ID,
		}),
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorWithFields("Run aborted", map[string]interface{}{"panic": fmt.Sprint(rec)})
			r.outcome.Failures = append(r.outcome.Failures, fmt.Sprintf("internal error: %v", rec))
			outcome = r.finish()
		}
	}()

	r.log.Info("Run started")
	r.report(models.StateFetchingRaw, 0, "Collecting raw input")
	if err := o.collector.Collect(ctx, p); err != nil {
		r.log.WithError(err).Warn("Collector failed, continuing with existing input")
	}

	n := len(models.Categories)
	for i, cat := range models.Categories {
		r.category(cat, 5+i*90/n, 5+(i+1)*90/n)
	}

	return r.finish()
}

func (r *run) finish() models.RunOutcome {
	r.report(models.StateReporting, 100, r.outcome.Message())
	r.outcome.FinishedAt = r.now()
	r.log.InfoWithFields("Run finished", map[string]interface{}{
		"added":    r.outcome.Added,
		"skipped":  r.outcome.Skipped,
		"failures": len(r.outcome.Failures),
		"duration": r.outcome.Duration().String(),
	})
	r.report(models.StateIdle, 100, r.outcome.Message())
	return r.outcome
}

// category processes one category, reporting progress between lo and hi
func (r *run) category(cat models.Category, lo, hi int) {
	co := models.CategoryOutcome{Category: cat}
	defer func() {
		r.outcome.Categories = append(r.outcome.Categories, co)
		r.outcome.Added += co.Added
		r.outcome.Skipped += co.Skipped
		if co.Failed {
			r.outcome.Failures = append(r.outcome.Failures, fmt.Sprintf("%s: %s", cat, co.Error))
		}
	}()
	log := r.log.WithField("category", string(cat))

	r.report(models.StateFetchingRaw, lo, fmt.Sprintf("Reading %s input", cat))
	html, ok, err := r.src.Read(cat)
	if err != nil {
		log.WithError(err).Warn("Failed to read raw input")
		co.Failed, co.Error = true, err.Error()
		return
	}
	if !ok {
		log.Info("No raw input, skipping category")
		return
	}
	co.Present = true

	r.report(models.StateExtracting, lo+(hi-lo)/4, fmt.Sprintf("Extracting %s", cat))
	candidates := r.extractor.Extract(html, cat)
	co.Candidates = len(candidates)
	log.InfoWithFields("Candidates extracted", map[string]interface{}{"count": len(candidates)})

	if len(candidates) > 0 {
		st, err := r.openStore()
		if err != nil {
			log.WithError(err).Error("Record store unavailable")
			co.Failed, co.Error = true, err.Error()
			return
		}
		r.persist(st, candidates, &co, log, lo+(hi-lo)/2, hi)

		// Kept input is safe to re-ingest: stored candidates come back as
		// duplicates.
		if co.Errors > 0 {
			co.Failed = true
			co.Error = fmt.Sprintf("%d of %d candidates failed to persist", co.Errors, len(candidates))
			log.ErrorWithFields("Candidates failed to persist, keeping raw input", map[string]interface{}{
				"errors":     co.Errors,
				"candidates": len(candidates),
			})
			return
		}
	}

	if err := r.src.Discard(cat); err != nil {
		log.WithError(err).Warn("Failed to discard raw input")
	}
}

func (r *run) persist(st RecordStore, candidates []models.Candidate, co *models.CategoryOutcome, log logger.Logger, lo, hi int) {
	total := len(candidates)
	for i, c := range candidates {
		res, err := st.Upsert(r.ctx, r.partition, c, r.media)
		if err != nil {
			co.Errors++
			log.WithError(err).WarnWithFields("Failed to store candidate", map[string]interface{}{
				"url": logger.URLPrefix(c.MediaURL),
			})
			continue
		}
		switch res.Outcome {
		case models.OutcomeAdded:
			co.Added++
		case models.OutcomeSkippedDuplicate:
			co.Skipped++
		}
		if res.Backfilled {
			co.Backfilled++
		}

		pct := lo + (hi-lo)*(i+1)/total
		r.reportCounts(models.StatePersisting, pct,
			fmt.Sprintf("Persisting %s %d/%d", co.Category, i+1, total), co)
	}
}

func (r *run) openStore() (RecordStore, error) {
	if !r.storeOpen {
		r.store, r.storeErr = r.stores(r.partition)
		r.storeOpen = true
	}
	return r.store, r.storeErr
}

func (r *run) report(state models.RunState, pct int, msg string) {
	r.reportCounts(state, pct, msg, nil)
}

// reportCounts includes the in-flight category's counts when co is set
func (r *run) reportCounts(state models.RunState, pct int, msg string, co *models.CategoryOutcome) {
	if r.progress == nil {
		return
	}
	p := models.RunProgress{
		Account: r.partition.ID,
		State:   state,
		Percent: pct,
		Message: msg,
		Added:   r.outcome.Added,
		Skipped: r.outcome.Skipped,
	}
	if co != nil {
		p.Added += co.Added
		p.Skipped += co.Skipped
	}
	r.progress(p)
}
