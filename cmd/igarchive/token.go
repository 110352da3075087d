package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"igarchive/pkg/auth"
	"igarchive/pkg/ui"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API bearer token",
	Long: `Manage the bearer token required by "igarchive serve".

The token is kept in the OS keychain. IGARCHIVE_API_TOKEN and server.token
in the configuration file take effect when no keychain entry exists.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a token in the OS keychain",
	Long: `Store a token in the OS keychain. The token is read from the terminal
without echo, or from standard input when piped.

Examples:
  igarchive token set
  echo "$TOKEN" | igarchive token set
  igarchive token set --generate`,
	Run: runTokenSet,
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the token from the OS keychain",
	Run:   runTokenClear,
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the masked token currently in effect",
	Run:   runTokenShow,
}

var tokenGenerate bool

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	tokenCmd.AddCommand(tokenShowCmd)

	tokenSetCmd.Flags().BoolVar(&tokenGenerate, "generate", false, "generate a random token and print it once")
}

func runTokenSet(cmd *cobra.Command, args []string) {
	var token string
	if tokenGenerate {
		token = uuid.NewString()
	} else {
		t, err := auth.ReadToken(os.Stdin, os.Stderr)
		if err != nil {
			fail("Failed to read token", err)
		}
		token = t
	}

	if err := auth.NewManager().SetToken(auth.DefaultTokenName, token); err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			ui.PrintError("No writable keychain available", "set IGARCHIVE_API_TOKEN or server.token instead")
			os.Exit(1)
		}
		fail("Failed to store token", err)
	}

	ui.PrintSuccess("Token stored in keychain")
	if tokenGenerate {
		fmt.Println(token)
	}
}

func runTokenClear(cmd *cobra.Command, args []string) {
	err := auth.NewManager().DeleteToken(auth.DefaultTokenName)
	if errors.Is(err, auth.ErrTokenNotFound) {
		ui.PrintWarning("No token stored")
		return
	}
	if err != nil {
		fail("Failed to remove token", err)
	}
	ui.PrintSuccess("Token removed from keychain")
}

func runTokenShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig(nil)
	if cfg.Server.Token != "" {
		ui.PrintInfo("Token (config)", auth.Mask(cfg.Server.Token))
		return
	}
	token, err := auth.NewManager().Token(auth.DefaultTokenName)
	if err != nil {
		ui.PrintWarning("No token configured, the API is unauthenticated")
		return
	}
	ui.PrintInfo("Token", auth.Mask(token))
}
