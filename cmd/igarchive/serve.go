package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"igarchive/internal/ingest"
	"igarchive/internal/schedule"
	"igarchive/internal/server"
	"igarchive/internal/watch"
	"igarchive/pkg/auth"
	"igarchive/pkg/ui"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, optionally with scheduled and watched ingestion",
	Long: `Serve the HTTP API for triggering runs, reading run status and browsing
or exporting each account's archive.

When an API token is configured (server.token, IGARCHIVE_API_TOKEN or the
OS keyring via "igarchive token set"), every endpoint except /healthz
requires "Authorization: Bearer <token>".

Examples:
  igarchive serve
  igarchive serve --addr :9000 --schedule "@every 6h"
  igarchive serve --watch --input ~/Downloads`,
	Run: runServe,
}

var (
	serveAddr     string
	serveSchedule string
	serveWatch    bool
	serveInput    string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default 127.0.0.1:8080)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", `cron spec for periodic runs, e.g. "@every 6h" or "0 30 * * * *"`)
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "start a run whenever new snapshots land in the input directory")
	serveCmd.Flags().StringVarP(&serveInput, "input", "i", "", "directory holding the snapshot files")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(map[string]interface{}{
		"addr":     serveAddr,
		"schedule": serveSchedule,
		"input":    serveInput,
	})

	a, err := newApp(cfg)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer a.Close()

	token := cfg.Server.Token
	if token == "" {
		if t, err := auth.NewManager().Token(auth.DefaultTokenName); err == nil {
			token = t
		}
	}

	r := a.newRunner()
	source := func() ingest.RawSource { return a.source() }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.Spec != "" {
		accountIDs := cfg.Schedule.Accounts
		if len(accountIDs) == 0 {
			accountIDs = []string{a.registry.DefaultID()}
		}
		sched, err := schedule.New(cfg.Schedule.Spec, accountIDs, r, source, a.log)
		if err != nil {
			fail("Invalid schedule", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewHandler(server.Deps{
			Registry: a.registry,
			Stores:   a.stores,
			Runner:   r,
			Source:   source,
			Token:    token,
			Logger:   a.log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ui.PrintLogo()
	ui.PrintInfo("Listening", "http://"+cfg.Server.Addr)
	if token == "" {
		ui.PrintWarning("No API token configured, the API is open to anyone who can reach it")
	}
	if cfg.Schedule.Spec != "" {
		ui.PrintInfo("Schedule", cfg.Schedule.Spec)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if serveWatch {
		ui.PrintInfo("Watching", cfg.Input.Dir)
		w := watch.New(cfg.Input.Dir, []string{cfg.Input.PostsFile, cfg.Input.ReelsFile}, watch.DefaultDebounce, func() error {
			_, err := r.Start(a.registry.DefaultID(), source())
			return err
		}, a.log)
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("HTTP server shutdown incomplete")
		}
		if err := r.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("Active run did not finish before shutdown timeout")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Close()
		fail("Server failed", err)
	}
	ui.PrintSuccess("Server stopped")
}
