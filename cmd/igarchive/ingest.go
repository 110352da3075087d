package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igarchive/internal/runner"
	"igarchive/pkg/models"
	"igarchive/pkg/ui"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the saved snapshots for one account",
	Long: `Read the posts and reels snapshots from the input directory, store every
new item in the account's archive and cache its media.

Snapshots that were processed successfully are removed afterwards, so the
same files are never ingested twice.

Examples:
  igarchive ingest
  igarchive ingest --account brand --input ~/Downloads
  igarchive ingest --account brand --notify`,
	Run: runIngest,
}

var (
	ingestAccount string
	ingestInput   string
	ingestNotify  bool
	ingestVerify  bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVarP(&ingestAccount, "account", "a", "", "account to ingest into (default is the configured default account)")
	ingestCmd.Flags().StringVarP(&ingestInput, "input", "i", "", "directory holding the snapshot files")
	ingestCmd.Flags().BoolVar(&ingestNotify, "notify", false, "send a desktop notification when the run finishes")
	ingestCmd.Flags().BoolVar(&ingestVerify, "verify-content", false, "reject downloaded media that is not an image or video")
}

func runIngest(cmd *cobra.Command, args []string) {
	cfg := loadConfig(map[string]interface{}{
		"input":          ingestInput,
		"verify-content": ingestVerify,
	})

	a, err := newApp(cfg)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer a.Close()

	account := ingestAccount
	if account == "" {
		account = a.registry.DefaultID()
	}
	if !a.registry.IsKnown(account) {
		ui.PrintWarning(fmt.Sprintf("Account %q is not configured, using %q", account, a.registry.DefaultID()))
	}

	display := ui.NewProgressDisplay(os.Stdout, account, verbose)
	var outcome models.RunOutcome
	r := a.newRunner(
		runner.OnProgress(display.Update),
		runner.OnFinish(func(o models.RunOutcome) { outcome = o }),
	)

	if _, err := r.Start(account, a.source()); err != nil {
		fail("Failed to start run", err)
	}
	r.Wait()

	display.Complete(outcome)

	notifier := ui.NewNotifier(ingestNotify)
	notifier.NotifyOutcome(outcome)

	if !outcome.Succeeded() {
		a.Close()
		os.Exit(1)
	}
}
