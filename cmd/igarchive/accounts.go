package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"igarchive/pkg/export"
	"igarchive/pkg/ui"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the configured accounts",
	Run:   runAccounts,
}

var statsCmd = &cobra.Command{
	Use:   "stats [account]",
	Short: "Show archive statistics for an account",
	Args:  cobra.MaximumNArgs(1),
	Run:   runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an account's archive as JSON or CSV",
	Long: `Write every record of an account's archive as a JSON array or a CSV file
with a header row.

Examples:
  igarchive export --account brand
  igarchive export --account brand --format csv --output brand.csv`,
	Run: runExport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("igarchive %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
	},
}

var (
	exportAccount string
	exportFormat  string
	exportOutput  string
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)

	exportCmd.Flags().StringVarP(&exportAccount, "account", "a", "", "account to export (default is the configured default account)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default is stdout)")
}

func runAccounts(cmd *cobra.Command, args []string) {
	cfg := loadConfig(nil)
	a, err := newApp(cfg)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer a.Close()

	fmt.Println(ui.RenderAccounts(a.registry.List(), a.registry.DefaultID()))
}

// knownAccount resolves id, or the default when empty, and exits on an
// unknown id rather than reading some other partition.
func (a *app) knownAccount(id string) string {
	if id == "" {
		return a.registry.DefaultID()
	}
	if !a.registry.IsKnown(id) {
		a.Close()
		fail("Unknown account", fmt.Errorf("%q is not configured", id))
	}
	return id
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig(nil)
	a, err := newApp(cfg)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer a.Close()

	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	p := a.registry.Resolve(a.knownAccount(id))

	st, err := a.stores.Open(p)
	if err != nil {
		a.Close()
		fail("Failed to open store", err)
	}
	stats, err := st.Stats(context.Background(), p.ID)
	if err != nil {
		a.Close()
		fail("Failed to read stats", err)
	}
	fmt.Println(ui.RenderStats(stats))

	if last, ok := a.journal.Last(p.ID); ok {
		fmt.Println()
		fmt.Println(ui.RenderOutcome(last))
	}
}

func runExport(cmd *cobra.Command, args []string) {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		fail("Invalid format", err)
	}

	cfg := loadConfig(nil)
	a, err := newApp(cfg)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer a.Close()

	p := a.registry.Resolve(a.knownAccount(exportAccount))
	st, err := a.stores.Open(p)
	if err != nil {
		a.Close()
		fail("Failed to open store", err)
	}
	records, err := st.All(context.Background(), p.ID)
	if err != nil {
		a.Close()
		fail("Failed to load records", err)
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			a.Close()
			fail("Failed to create output file", err)
		}
		defer f.Close()
		w = f
	}

	if err := export.Write(w, format, records); err != nil {
		a.Close()
		fail("Export failed", err)
	}
	if exportOutput != "" {
		ui.PrintSuccess(fmt.Sprintf("Exported %d records to %s", len(records), exportOutput))
	}
}
