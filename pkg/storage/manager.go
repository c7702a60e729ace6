package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager lays snapshots out in a dated directory tree rooted at baseDir:
// <base>/YYYY/MM/DD/YYYYMMDDHHMMSS.jpg, timestamps in local time.
type Manager struct {
	baseDir string
}

// NewManager creates a storage manager rooted at baseDir
func NewManager(baseDir string) (*Manager, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{baseDir: baseDir}, nil
}

// SnapshotPath returns the dated path for a snapshot taken at t
func (m *Manager) SnapshotPath(t time.Time) string {
	return filepath.Join(
		m.baseDir,
		t.Format("2006"),
		t.Format("01"),
		t.Format("02"),
		t.Format("20060102150405")+".jpg",
	)
}

// Save writes snapshot bytes taken at t into the dated tree and returns
// the path written
func (m *Manager) Save(data []byte, t time.Time) (string, error) {
	path := m.SnapshotPath(t)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}

	return path, nil
}

// BaseDir returns the root of the snapshot tree
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory. The destination either keeps its previous content or carries
// the complete new content, never a partial write.
func WriteFileAtomic(path string, data []byte) error {
	// Create temporary file first
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	// Write data
	_, err = out.Write(data)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile) // Clean up temp file
		return fmt.Errorf("failed to write snapshot data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile) // Clean up temp file
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile) // Clean up temp file
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
