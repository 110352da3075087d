package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igarchive/pkg/auth"
	"igarchive/pkg/config"
	"igarchive/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igarchive configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGARCHIVE_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to .igarchive.yaml in the current directory unless a
different path is given with --config.`,
	Run: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The API token is
masked.`,
	Run: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration and check:
  - YAML syntax
  - Account entries (unique ids, store and media paths)
  - Value ranges
  - Directory accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# igarchive configuration
#
# Every option can also be set with an IGARCHIVE_* environment variable,
# e.g. IGARCHIVE_BASE_DIR, IGARCHIVE_INPUT_DIR, IGARCHIVE_API_TOKEN.

accounts:
  # Relative store and media paths are resolved against this directory
  base_dir: "."

  # Account used when a run names none or an unknown one
  default: "default"

  list:
    - id: "default"
      display_name: "Main"
      store: "instagram_posts.db"
      media_dir: "images"
    # - id: "brand"
    #   display_name: "Brand account"
    #   store: "brand/instagram_posts.db"
    #   media_dir: "brand/images"

input:
  # Directory the page snapshots are saved into
  dir: "."
  posts_file: "instagram_posts.html"
  reels_file: "instagram_reels.html"

  # Optional command that refreshes the snapshots before each run.
  # The account id is appended as the last argument.
  # collector_command: ["./collect.sh"]
  collector_timeout: 5m

media:
  timeout: 10s
  user_agent: ""
  requests_per_minute: 120
  burst_size: 5
  max_retries: 2
  retry_delay: 1s

  # Reject downloads that are not recognisable images or videos
  verify_content: false

server:
  addr: "127.0.0.1:8080"
  # Prefer "igarchive token set" over storing the token here
  token: ""

schedule:
  # Six-field cron spec (seconds first) or a descriptor such as "@every 6h"
  spec: ""
  # Accounts to ingest on each firing (default account when empty)
  accounts: []

logging:
  # debug, info, warn, error
  level: "info"
  # Optional log file, in addition to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".igarchive.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		fail("Failed to create configuration file", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add your accounts and point input.dir at your snapshots")
	fmt.Println("2. Run 'igarchive config validate' to check the configuration")
	fmt.Println("3. Ingest with 'igarchive ingest --account <id>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig(nil)

	display := *cfg
	if display.Server.Token != "" {
		display.Server.Token = auth.Mask(display.Server.Token)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		fail("Failed to format configuration", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (IGARCHIVE_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Printf("3. Configuration file: (searched, default %s)\n", config.DefaultPath())
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fail("Configuration validation failed", err)
	}

	var warnings, problems []string

	if len(cfg.Accounts.List) == 0 {
		warnings = append(warnings, fmt.Sprintf("no accounts configured, everything goes to %q", cfg.Accounts.Default))
	}
	if cfg.Accounts.BaseDir != "" {
		if err := os.MkdirAll(cfg.Accounts.BaseDir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create base directory: %v", err))
		}
	}
	if info, err := os.Stat(cfg.Input.Dir); err != nil || !info.IsDir() {
		warnings = append(warnings, fmt.Sprintf("input directory %s does not exist", cfg.Input.Dir))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Server.Token == "" {
		warnings = append(warnings, "no API token in config (the keyring or IGARCHIVE_API_TOKEN may still provide one)")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Base directory: %s\n", cfg.Accounts.BaseDir)
	fmt.Printf("  Accounts: %d (default %s)\n", len(cfg.Accounts.List), cfg.Accounts.Default)
	fmt.Printf("  Input directory: %s\n", cfg.Input.Dir)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.Media.RequestsPerMinute)
	fmt.Printf("  Max retries: %d\n", cfg.Media.MaxRetries)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
