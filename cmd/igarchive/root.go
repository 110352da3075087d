package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igarchive/pkg/config"
	"igarchive/pkg/logger"
	"igarchive/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	baseDir    string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igarchive",
	Short: "Archive social media page snapshots into per-account stores",
	Long: `igarchive turns saved HTML snapshots of profile pages into a deduplicated,
per-account archive of posts and reels with locally cached media.

Features:
  - One SQLite store and media directory per configured account
  - Duplicate detection by media URL with automatic media backfill
  - Rate limited, retried media downloads with content checks
  - HTTP API to trigger runs, watch status, browse and export
  - Scheduled runs and snapshot directory watching`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.igarchive.yaml or ~/.config/igarchive/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "directory holding account stores and media")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show log output alongside progress")

	rootCmd.SetVersionTemplate(`igarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	logger.Version = version
}

// loadConfig merges the global flags with extra command flags and sets up
// the global logger.
func loadConfig(extra map[string]interface{}) *config.Config {
	flags := map[string]interface{}{}
	if baseDir != "" {
		flags["base-dir"] = baseDir
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fail("Failed to load configuration", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fail("Failed to initialize logger", err)
	}
	return cfg
}

// fail prints an error and exits
func fail(msg string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	ui.PrintError(msg, detail)
	os.Exit(1)
}
