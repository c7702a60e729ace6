// Package storage persists camera snapshots on disk.
//
// Manager owns the dated snapshot tree (<base>/YYYY/MM/DD/ with timestamped
// file names), Archiver keeps one long-term copy per day or hour, and
// WriteFileAtomic is the shared write primitive: every file appears in full
// or not at all.
package storage
