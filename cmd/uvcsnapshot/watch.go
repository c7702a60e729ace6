package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/appleguru/UniFi-Timelapse/pkg/config"
	"github.com/appleguru/UniFi-Timelapse/pkg/logger"
	"github.com/appleguru/UniFi-Timelapse/pkg/poller"
	"github.com/appleguru/UniFi-Timelapse/pkg/storage"
)

var (
	// Watch command flags
	pollInterval  time.Duration
	archiveOn     bool
	archiveDir    string
	archivePeriod string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the camera and save a snapshot every interval",
	Long: `Poll the camera on a fixed interval, saving each snapshot into the
dated output tree. The first snapshot is taken immediately.

A failed cycle is logged and the loop keeps running, so a camera reboot
or a network blip does not end a long capture. With --archive the first
snapshot of every day (or hour) is also copied into a flat archive
directory, which gives a thinned series for timelapse assembly.

SIGINT or SIGTERM stops the loop cleanly.`,
	Example: `  # A snapshot every minute into ./snapshots
  uvcsnapshot watch -c 10.0.1.20 -p pass1234

  # Every 10 seconds, keeping one frame per hour in the archive
  uvcsnapshot watch -c 10.0.1.20 -i 10s --archive --archive-period hourly`,
	Run: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addCameraFlags(watchCmd)

	// Local flags for watch command
	watchCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "time between snapshots (default: 1m)")
	watchCmd.Flags().BoolVar(&archiveOn, "archive", false, "keep the first snapshot of each period in the archive directory")
	watchCmd.Flags().StringVar(&archiveDir, "archive-dir", "", "archive directory (default: <output>/archive)")
	watchCmd.Flags().StringVar(&archivePeriod, "archive-period", "", "archive period: daily or hourly")
}

func runWatch(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := cameraFlagValues()
	if pollInterval > 0 {
		flags["interval"] = pollInterval
	}
	if archiveOn {
		flags["archive"] = true
	}
	if archiveDir != "" {
		flags["archive-dir"] = archiveDir
	}
	if archivePeriod != "" {
		flags["archive-period"] = archivePeriod
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
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

	var archiver *storage.Archiver
	if cfg.Archive.Enabled {
		period, perr := storage.ParsePeriod(cfg.Archive.Period)
		if perr != nil {
			fmt.Fprintln(os.Stderr, "Error:", perr)
			os.Exit(1)
		}
		archiver, err = storage.NewArchiver(cfg.Archive.Directory, period)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}

	p := poller.New(client, store, archiver, cfg.Poll.Interval.Std(), logger.GetLogger())

	// SIGINT or SIGTERM cancels the context; the loop finishes the cycle
	// in flight and returns
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		logger.WithError(err).Error("snapshot loop failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
