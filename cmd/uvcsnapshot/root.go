package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uvcsnapshot",
	Short: "Save snapshots from UniFi Video cameras",
	Long: `uvcsnapshot talks to UniFi Video cameras directly over HTTPS and saves
JPEG snapshots into a dated directory tree.

Features:
  - Session login with automatic re-authentication when the camera
    expires a session
  - Works with both camera firmware generations (session cookie and
    credentials-per-request), detected automatically
  - Timestamped file names under <output>/YYYY/MM/DD
  - Periodic polling with an optional daily or hourly archive copy
  - Snapshot files are written atomically and never left half-written`,
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
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .uvcsnapshot.yaml, then ~/.config/uvcsnapshot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`uvcsnapshot {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
