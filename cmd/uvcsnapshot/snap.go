package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/appleguru/UniFi-Timelapse/pkg/config"
	"github.com/appleguru/UniFi-Timelapse/pkg/logger"
	"github.com/appleguru/UniFi-Timelapse/pkg/poller"
	"github.com/appleguru/UniFi-Timelapse/pkg/storage"
	"github.com/appleguru/UniFi-Timelapse/pkg/uvc"
)

var (
	// Camera flags shared by snap and watch
	cameraAddress  string
	cameraUsername string
	cameraPassword string
	outputDir      string
	protocolName   string
	httpTimeout    time.Duration
	tlsVerify      bool
)

// snapCmd represents the snap command
var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Fetch one snapshot and save it",
	Long: `Fetch a single snapshot from the camera and save it into the dated
output tree as <output>/YYYY/MM/DD/YYYYMMDDHHMMSS.jpg.

The camera password can come from the --password flag, the
UVCSNAPSHOT_PASSWORD environment variable, a configuration file, or an
interactive prompt when none of those are set.

On success the path of the written file is printed to stdout.`,
	Example: `  # One snapshot into ./snapshots
  uvcsnapshot snap -c 10.0.1.20 -p pass1234

  # Different account and output tree
  uvcsnapshot snap -c camera.local -u viewer -o /var/lib/timelapse

  # Camera running firmware without the session login endpoint
  uvcsnapshot snap -c 10.0.1.20 --protocol direct`,
	Run: runSnap,
}

func init() {
	rootCmd.AddCommand(snapCmd)
	addCameraFlags(snapCmd)
}

// addCameraFlags registers the flags shared by snap and watch
func addCameraFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cameraAddress, "camera", "c", "", "camera address (host or host:port)")
	cmd.Flags().StringVarP(&cameraUsername, "username", "u", "ubnt", "camera username")
	cmd.Flags().StringVarP(&cameraPassword, "password", "p", "", "camera password (prompted for when omitted)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for snapshots (default: ./snapshots)")
	cmd.Flags().StringVar(&protocolName, "protocol", "", "camera protocol: auto, session or direct")
	cmd.Flags().DurationVar(&httpTimeout, "timeout", 0, "HTTP timeout for camera requests (default: 30s)")
	cmd.Flags().BoolVar(&tlsVerify, "tls-verify", false, "verify the camera TLS certificate (fails on the self-signed default)")
}

// cameraFlagValues collects the camera flags the user actually set
func cameraFlagValues() map[string]interface{} {
	flags := make(map[string]interface{})
	if cameraAddress != "" {
		flags["camera"] = cameraAddress
	}
	if cameraUsername != "ubnt" {
		flags["username"] = cameraUsername
	}
	if cameraPassword != "" {
		flags["password"] = cameraPassword
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if protocolName != "" {
		flags["protocol"] = protocolName
	}
	if httpTimeout > 0 {
		flags["timeout"] = httpTimeout
	}
	if tlsVerify {
		flags["tls-verify"] = true
	}
	// Pass log level to config
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// newCameraClient builds the camera client, prompting for the password
// when no other source supplied one
func newCameraClient(cfg *config.Config) (*uvc.Client, error) {
	if cfg.Camera.Password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s@%s: ", cfg.Camera.Username, cfg.Camera.Address)
		password, err := readPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Camera.Password = password
	}

	protocol, err := uvc.ParseProtocol(cfg.Camera.Protocol)
	if err != nil {
		return nil, err
	}

	return uvc.NewClient(uvc.Options{
		Address:       cfg.Camera.Address,
		Username:      cfg.Camera.Username,
		Password:      cfg.Camera.Password,
		Protocol:      protocol,
		Timeout:       cfg.HTTP.Timeout.Std(),
		TLSSkipVerify: cfg.HTTP.TLSSkipVerify,
		Logger:        logger.GetLogger(),
	}), nil
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr) // New line after password
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runSnap(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, cameraFlagValues())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to initialize logging:", err)
		os.Exit(1)
	}
	logger.WithField("version", version).Info("uvcsnapshot starting")

	client, err := newCameraClient(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	p := poller.New(client, store, nil, cfg.Poll.Interval.Std(), logger.GetLogger())

	path, err := p.RunOnce(context.Background())
	if err != nil {
		logger.WithError(err).Error("snapshot failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	fmt.Println(path)
}
