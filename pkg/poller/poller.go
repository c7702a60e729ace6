package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/appleguru/UniFi-Timelapse/pkg/logger"
	"github.com/appleguru/UniFi-Timelapse/pkg/storage"
)

// Poller fetches snapshots on a fixed interval and persists them into the
// dated tree, with an optional archive copy per period. Cycles run strictly
// one at a time; a new tick never overlaps a cycle still in flight.
type Poller struct {
	client   SnapshotClient
	store    *storage.Manager
	archiver *storage.Archiver
	interval time.Duration
	logger   logger.Logger

	// now stands in for time.Now so tests control timestamps
	now func() time.Time
}

// New creates a poller. archiver may be nil when archiving is disabled.
func New(client SnapshotClient, store *storage.Manager, archiver *storage.Archiver, interval time.Duration, log logger.Logger) *Poller {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Poller{
		client:   client,
		store:    store,
		archiver: archiver,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
}

// RunOnce performs a single fetch-and-save cycle and returns the path written
func (p *Poller) RunOnce(ctx context.Context) (string, error) {
	data, err := p.client.FetchSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	taken := p.now()
	path, err := p.store.Save(data, taken)
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	p.logger.InfoWithFields("snapshot saved", map[string]interface{}{
		"path": path,
		"size": len(data),
	})

	if p.archiver != nil {
		archived, err := p.archiver.Archive(data, taken)
		if err != nil {
			// A missed archive copy is not worth failing the cycle over
			p.logger.WithError(err).Warn("failed to archive snapshot")
		} else if archived != "" {
			p.logger.InfoWithFields("archive copy written", map[string]interface{}{
				"path": archived,
			})
		}
	}

	return path, nil
}

// Run fetches one snapshot immediately, then one per interval until ctx is
// cancelled. A failed cycle is logged and the loop keeps going; only
// cancellation stops it.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoWithFields("starting snapshot loop", map[string]interface{}{
		"interval": p.interval,
	})

	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.WithError(err).Error("snapshot cycle failed")
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("snapshot loop stopped")
			return nil
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.WithError(err).Error("snapshot cycle failed")
			}
		}
	}
}
