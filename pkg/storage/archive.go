package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Period selects how often the archiver keeps a snapshot
type Period string

const (
	// PeriodDaily keeps the first snapshot of each day
	PeriodDaily Period = "daily"

	// PeriodHourly keeps the first snapshot of each hour
	PeriodHourly Period = "hourly"
)

// ParsePeriod converts a configuration string into a Period
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(s)) {
	case PeriodDaily, "":
		return PeriodDaily, nil
	case PeriodHourly:
		return PeriodHourly, nil
	}
	return "", fmt.Errorf("unknown archive period %q", s)
}

// Archiver keeps the first snapshot of each period as a long-term copy,
// flat in a single directory. Whether a period already has its copy is
// decided by file existence, so the archiver carries no state between runs.
type Archiver struct {
	dir    string
	period Period
}

// NewArchiver creates an archiver writing into dir
func NewArchiver(dir string, period Period) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archiver{dir: dir, period: period}, nil
}

// ArchivePath returns the archive file name for the period containing t
func (a *Archiver) ArchivePath(t time.Time) string {
	switch a.period {
	case PeriodHourly:
		return filepath.Join(a.dir, t.Format("2006010215")+".jpg")
	default:
		return filepath.Join(a.dir, t.Format("20060102")+".jpg")
	}
}

// Archive stores data as the archive copy for the period containing t,
// unless that period already has one. It returns the path written, or ""
// when the period was already covered.
func (a *Archiver) Archive(data []byte, t time.Time) (string, error) {
	path := a.ArchivePath(t)

	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check archive file: %w", err)
	}

	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}

	return path, nil
}
