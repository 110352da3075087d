package main

import (
	"path/filepath"

	"igarchive/internal/ingest"
	"igarchive/internal/runner"
	"igarchive/pkg/accounts"
	"igarchive/pkg/config"
	"igarchive/pkg/extractor"
	"igarchive/pkg/fetcher"
	"igarchive/pkg/logger"
	"igarchive/pkg/mediacache"
	"igarchive/pkg/ratelimit"
	"igarchive/pkg/retry"
	"igarchive/pkg/runlog"
	"igarchive/pkg/store"
)

// app holds the components shared by the commands
type app struct {
	cfg      *config.Config
	log      logger.Logger
	registry *accounts.Registry
	stores   *store.Set
	journal  *runlog.Journal
	lock     runner.Locker
	orch     *ingest.Orchestrator
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.GetLogger()

	registry := accounts.NewRegistry(cfg.Accounts, log)
	stores := store.NewSet(log)

	client := fetcher.NewClient(cfg.Media.Timeout, cfg.Media.UserAgent, log)
	cache := mediacache.New(client, mediacache.Options{
		Limiter:       ratelimit.NewTokenBucket(cfg.Media.RequestsPerMinute, cfg.Media.BurstSize),
		Retry:         retry.ForMedia(cfg.Media, log),
		VerifyContent: cfg.Media.VerifyContent,
	}, log)

	journal, err := runlog.Open(journalPath(cfg), log)
	if err != nil {
		stores.Close()
		return nil, err
	}

	lock, err := runner.LockFile(dataPath(cfg, lockFileName))
	if err != nil {
		stores.Close()
		return nil, err
	}

	var collector ingest.Collector = ingest.NopCollector{}
	if len(cfg.Input.CollectorCommand) > 0 {
		collector = &ingest.CommandCollector{
			Command:  cfg.Input.CollectorCommand,
			InputDir: cfg.Input.Dir,
			Timeout:  cfg.Input.CollectorTimeout,
			Logger:   log,
		}
	}

	orch := ingest.New(ingest.Config{
		Registry:  registry,
		Stores:    ingest.SetOpener(stores),
		Extractor: extractor.New(extractor.RulesFromConfig(cfg.Extractor), log),
		Media:     cache,
		Collector: collector,
		Logger:    log,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		stores:   stores,
		journal:  journal,
		lock:     lock,
		orch:     orch,
	}, nil
}

// newRunner creates the single-run executor over the app's orchestrator.
// Runners in other processes over the same base directory share its lock.
func (a *app) newRunner(opts ...runner.Option) *runner.Runner {
	opts = append([]runner.Option{
		runner.WithJournal(a.journal),
		runner.WithLock(a.lock),
		runner.WithLogger(a.log),
	}, opts...)
	return runner.New(a.orch, opts...)
}

// source returns the configured snapshot directory source
func (a *app) source() ingest.RawSource {
	return ingest.FileSourceFromConfig(a.cfg.Input)
}

func (a *app) Close() error {
	return a.stores.Close()
}

const lockFileName = ".igarchive.lock"

func journalPath(cfg *config.Config) string {
	return dataPath(cfg, runlog.FileName)
}

// dataPath places name in the accounts base directory, or the user data
// directory when none is configured
func dataPath(cfg *config.Config, name string) string {
	if cfg.Accounts.BaseDir != "" {
		return filepath.Join(cfg.Accounts.BaseDir, name)
	}
	if dir, err := runlog.DataDir(); err == nil {
		return filepath.Join(dir, name)
	}
	return name
}
