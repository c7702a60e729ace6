package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/appleguru/UniFi-Timelapse/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage uvcsnapshot configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (UVCSNAPSHOT_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as 'uvcsnapshot.yaml'
unless a different path is given with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration assembled from the configuration file,
environment variables and defaults.

The camera password is masked.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration for missing fields and invalid values,
and check that the output and log directories can be created.`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = "uvcsnapshot.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(os.Stderr, "Error: configuration file already exists:", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# uvcsnapshot configuration file
#
# Every option can also be set through environment variables prefixed
# with UVCSNAPSHOT_, for example UVCSNAPSHOT_CAMERA and
# UVCSNAPSHOT_PASSWORD.

# Camera connection
camera:
  # Camera address, host or host:port (required)
  address: "10.0.1.20"

  # Camera account. The factory account is ubnt.
  username: "ubnt"

  # Camera password. Leave empty to be prompted, or set
  # UVCSNAPSHOT_PASSWORD instead of keeping it in this file.
  password: ""

  # Protocol: auto, session or direct
  #   session - login endpoint plus authId cookie (current firmware)
  #   direct  - credentials sent with every snapshot request (old firmware)
  #   auto    - try session, fall back to direct when the camera has
  #             no login endpoint
  protocol: "auto"

# HTTP behavior
http:
  # Timeout for each camera request
  timeout: 30s

  # Cameras ship self-signed certificates, so verification is off by
  # default. Set to false only when the camera certificate is trusted.
  tls_skip_verify: true

# Snapshot output
output:
  # Snapshots are stored as <directory>/YYYY/MM/DD/YYYYMMDDHHMMSS.jpg
  directory: "./snapshots"

# Archive copies (used by the watch command)
archive:
  # Keep the first snapshot of each period in a flat directory
  enabled: false

  # Default: <output directory>/archive
  directory: ""

  # daily or hourly
  period: "daily"

# Polling (used by the watch command)
poll:
  # Time between snapshots
  interval: 60s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to the console only
  file: ""
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to create configuration file:", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created:", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file and set the camera address")
	fmt.Println("2. Run 'uvcsnapshot config validate' to check the configuration")
	fmt.Println("3. Take a snapshot with 'uvcsnapshot snap'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Assemble the configuration without validating it, so a partial
	// setup can still be inspected
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Mask the password
	displayCfg := *cfg
	if displayCfg.Camera.Password != "" {
		displayCfg.Camera.Password = "***"
	}

	// Convert to YAML for display
	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to format configuration:", err)
		os.Exit(1)
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (UVCSNAPSHOT_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Load runs the full validation
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Perform additional checks
	var warnings []string
	var problems []string

	if cfg.Camera.Password == "" {
		warnings = append(warnings, "camera password not configured, commands will prompt for it")
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}

	if cfg.Archive.Enabled {
		if err := os.MkdirAll(cfg.Archive.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create archive directory: %v", err))
		}
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	// Display results
	if len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	fmt.Println("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Camera: %s@%s (protocol %s)\n", cfg.Camera.Username, cfg.Camera.Address, cfg.Camera.Protocol)
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	if cfg.Archive.Enabled {
		fmt.Printf("  Archive: %s every %s\n", cfg.Archive.Directory, cfg.Archive.Period)
	}
	fmt.Printf("  Poll interval: %s\n", cfg.Poll.Interval)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
