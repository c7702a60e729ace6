package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Protocol names accepted by camera.protocol.
const (
	ProtocolAuto    = "auto"
	ProtocolSession = "session"
	ProtocolDirect  = "direct"
)

// Archive periods accepted by archive.period.
const (
	PeriodDaily  = "daily"
	PeriodHourly = "hourly"
)

// Duration wraps time.Duration so config files can carry values like
// "30s" or "5m". A bare integer is read as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func parseDuration(s string) (Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if v, err := time.ParseDuration(s); err == nil {
		return Duration(v), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Duration(time.Duration(n) * time.Second), nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// Config holds all configuration options for uvcsnapshot
type Config struct {
	// Camera connection and credentials
	Camera CameraConfig `yaml:"camera" json:"camera"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Snapshot output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Archive copy settings
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Polling loop settings
	Poll PollConfig `yaml:"poll" json:"poll"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CameraConfig holds the camera address and credentials
type CameraConfig struct {
	Address  string `yaml:"address" json:"address"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Protocol string `yaml:"protocol" json:"protocol"`
}

// HTTPConfig holds HTTP transport settings
type HTTPConfig struct {
	Timeout Duration `yaml:"timeout" json:"timeout"`
	// Cameras ship self-signed certificates, so verification is off by default.
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
}

// OutputConfig holds the snapshot output tree settings
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// ArchiveConfig holds the archive copy settings
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
	Period    string `yaml:"period" json:"period"`
}

// PollConfig holds the polling loop settings
type PollConfig struct {
	Interval Duration `yaml:"interval" json:"interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Username: "ubnt",
			Protocol: ProtocolAuto,
		},
		HTTP: HTTPConfig{
			Timeout:       Duration(30 * time.Second),
			TLSSkipVerify: true,
		},
		Output: OutputConfig{
			Directory: "./snapshots",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Period:  PeriodDaily,
		},
		Poll: PollConfig{
			Interval: Duration(60 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("UVCSNAPSHOT_CAMERA"); addr != "" {
		c.Camera.Address = addr
	}
	if username := os.Getenv("UVCSNAPSHOT_USERNAME"); username != "" {
		c.Camera.Username = username
	}
	if password := os.Getenv("UVCSNAPSHOT_PASSWORD"); password != "" {
		c.Camera.Password = password
	}
	if protocol := os.Getenv("UVCSNAPSHOT_PROTOCOL"); protocol != "" {
		c.Camera.Protocol = protocol
	}

	if timeout := os.Getenv("UVCSNAPSHOT_HTTP_TIMEOUT"); timeout != "" {
		if val, err := time.ParseDuration(timeout); err == nil && val > 0 {
			c.HTTP.Timeout = Duration(val)
		}
	}
	if skip := os.Getenv("UVCSNAPSHOT_TLS_SKIP_VERIFY"); skip != "" {
		c.HTTP.TLSSkipVerify = strings.ToLower(skip) == "true"
	}

	if outputDir := os.Getenv("UVCSNAPSHOT_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	if archive := os.Getenv("UVCSNAPSHOT_ARCHIVE"); archive != "" {
		c.Archive.Enabled = strings.ToLower(archive) == "true"
	}
	if archiveDir := os.Getenv("UVCSNAPSHOT_ARCHIVE_DIR"); archiveDir != "" {
		c.Archive.Directory = archiveDir
	}
	if period := os.Getenv("UVCSNAPSHOT_ARCHIVE_PERIOD"); period != "" {
		c.Archive.Period = period
	}

	if interval := os.Getenv("UVCSNAPSHOT_POLL_INTERVAL"); interval != "" {
		if val, err := time.ParseDuration(interval); err == nil && val > 0 {
			c.Poll.Interval = Duration(val)
		}
	}

	if logLevel := os.Getenv("UVCSNAPSHOT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("UVCSNAPSHOT_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".uvcsnapshot.yaml",
		".uvcsnapshot.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "uvcsnapshot", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "uvcsnapshot", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".uvcsnapshot.yaml"),
		filepath.Join(os.Getenv("HOME"), ".uvcsnapshot.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The camera password is
// deliberately not required here: commands prompt for it interactively
// when it is absent.
func (c *Config) Validate() error {
	var errs []error

	if c.Camera.Address == "" {
		errs = append(errs, errors.New("camera address is required"))
	}
	if c.Camera.Username == "" {
		errs = append(errs, errors.New("camera username is required"))
	}

	validProtocols := map[string]bool{
		ProtocolAuto: true, ProtocolSession: true, ProtocolDirect: true,
	}
	if !validProtocols[strings.ToLower(c.Camera.Protocol)] {
		errs = append(errs, fmt.Errorf("invalid protocol %q (must be auto, session or direct)", c.Camera.Protocol))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Archive.Enabled {
		validPeriods := map[string]bool{PeriodDaily: true, PeriodHourly: true}
		if !validPeriods[strings.ToLower(c.Archive.Period)] {
			errs = append(errs, fmt.Errorf("invalid archive period %q (must be daily or hourly)", c.Archive.Period))
		}
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied, so callers insert entries for
// flags the user actually set.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["camera"].(string); ok && addr != "" {
		c.Camera.Address = addr
	}
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Camera.Username = username
	}
	if password, ok := flags["password"].(string); ok && password != "" {
		c.Camera.Password = password
	}
	if protocol, ok := flags["protocol"].(string); ok && protocol != "" {
		c.Camera.Protocol = protocol
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.HTTP.Timeout = Duration(timeout)
	}
	if verify, ok := flags["tls-verify"].(bool); ok {
		c.HTTP.TLSSkipVerify = !verify
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if archive, ok := flags["archive"].(bool); ok {
		c.Archive.Enabled = archive
	}
	if archiveDir, ok := flags["archive-dir"].(string); ok && archiveDir != "" {
		c.Archive.Directory = archiveDir
	}
	if period, ok := flags["archive-period"].(string); ok && period != "" {
		c.Archive.Period = period
	}
	if interval, ok := flags["interval"].(time.Duration); ok && interval > 0 {
		c.Poll.Interval = Duration(interval)
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".uvcsnapshot.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// The archive directory defaults to a subdirectory of the output tree
	if config.Archive.Enabled && config.Archive.Directory == "" {
		config.Archive.Directory = filepath.Join(config.Output.Directory, "archive")
	}

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
