// Package logger provides structured logging for uvcsnapshot, backed by
// zerolog.
//
// The package exposes a Logger interface so that components can be tested
// with the in-memory TestLogger, plus a configured global instance for
// command-level code:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger()
//	log.InfoWithFields("snapshot saved", map[string]interface{}{
//		"camera": cfg.Camera.Address,
//		"path":   path,
//	})
//
// Output goes to the console in a human-readable format, and additionally
// to a file when logging.file is set in the configuration.
package logger
