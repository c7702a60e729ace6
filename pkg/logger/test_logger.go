package logger

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger is a Logger implementation for tests that records every
// message instead of writing it anywhere. Derived loggers returned by
// WithField/WithFields/WithError share the same recording, so a test can
// hand out contexts freely and still assert on one message list.
type TestLogger struct {
	core   *testCore
	fields map[string]interface{}
	err    error
}

// LogMessage is a single captured log entry.
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

type testCore struct {
	mu       sync.Mutex
	messages []LogMessage
	buffer   bytes.Buffer
	nop      zerolog.Logger
}

// NewTestLogger creates a test logger with an empty recording.
func NewTestLogger() *TestLogger {
	return &TestLogger{core: &testCore{nop: zerolog.Nop()}}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}) {
	merged := l.mergeFields(fields)

	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	l.core.messages = append(l.core.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  merged,
		Error:   l.err,
	})

	fmt.Fprintf(&l.core.buffer, "[%s] %s", level, msg)
	if len(merged) > 0 {
		fmt.Fprintf(&l.core.buffer, " fields=%v", merged)
	}
	if l.err != nil {
		fmt.Fprintf(&l.core.buffer, " error=%v", l.err)
	}
	fmt.Fprintln(&l.core.buffer)
}

func (l *TestLogger) mergeFields(additional map[string]interface{}) map[string]interface{} {
	if len(l.fields) == 0 {
		return additional
	}
	merged := make(map[string]interface{}, len(l.fields)+len(additional))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range additional {
		merged[k] = v
	}
	return merged
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.record("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.record("FATAL", msg, fields)
}

// WithField returns a derived logger recording into the same message list.
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger recording into the same message list.
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return &TestLogger{core: l.core, fields: l.mergeFields(fields), err: l.err}
}

// WithError returns a derived logger that stamps err on every entry.
func (l *TestLogger) WithError(err error) Logger {
	return &TestLogger{core: l.core, fields: l.fields, err: err}
}

// WithContext is a no-op for tests.
func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

// GetZerolog returns a no-op zerolog instance.
func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return &l.core.nop
}

// GetMessages returns a copy of every captured message.
func (l *TestLogger) GetMessages() []LogMessage {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	messages := make([]LogMessage, len(l.core.messages))
	copy(messages, l.core.messages)
	return messages
}

// GetMessagesByLevel returns captured messages of the given level.
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	var filtered []LogMessage
	for _, msg := range l.core.messages {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage reports whether a message with the given text was logged.
func (l *TestLogger) HasMessage(text string) bool {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	for _, msg := range l.core.messages {
		if msg.Message == text {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at ERROR level.
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("ERROR")) > 0
}

// Clear discards all captured messages.
func (l *TestLogger) Clear() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	l.core.messages = l.core.messages[:0]
	l.core.buffer.Reset()
}

// String renders the captured messages, one per line.
func (l *TestLogger) String() string {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	return l.core.buffer.String()
}
