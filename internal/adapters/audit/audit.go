// Package audit implements the append-only audit trail: an append-mode file
// plus an in-memory ring buffer served to administrators over VIEW_LOGS.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// maxBufferSize caps the in-memory ring of recent entries.
const maxBufferSize = 1000

// Logger records audit entries. All methods are safe for concurrent use and
// best-effort: a missing or failing file never blocks or fails a request.
type Logger struct {
	mu      sync.Mutex
	entries []string
	file    *os.File
	logger  zerolog.Logger
}

type LoggerParams struct {
	FilePath string // empty disables the file, memory-only
	Logger   zerolog.Logger
}

// NewLogger opens the audit file in append mode, creating parent directories
// as needed. File errors degrade to memory-only operation.
func NewLogger(params LoggerParams) *Logger {
	l := &Logger{
		logger: params.Logger.With().Str("component", "audit").Logger(),
	}

	if params.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(params.FilePath), 0o755); err != nil {
			l.logger.Error().Err(err).Str("path", params.FilePath).Msg("Failed to create audit log directory")
		} else if f, err := os.OpenFile(params.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			l.logger.Error().Err(err).Str("path", params.FilePath).Msg("Failed to open audit log file")
		} else {
			l.file = f
		}
	}

	l.Log("SYSTEM", "SYSTEM", "localhost", "audit logger started")
	return l
}

// Log appends one record to the ring buffer and, when available, the file.
func (l *Logger) Log(action, user, sourceAddr, details string) {
	if action == "" {
		action = "UNKNOWN"
	}
	if user == "" {
		user = "ANONYMOUS"
	}
	if sourceAddr == "" {
		sourceAddr = "UNKNOWN"
	}

	entry := fmt.Sprintf("[%s] [%s] [%s] [%s] %s",
		time.Now().Format("2006-01-02 15:04:05.000"), action, user, sourceAddr, details)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if len(l.entries) > maxBufferSize {
		l.entries = l.entries[len(l.entries)-maxBufferSize:]
	}

	if l.file != nil {
		if _, err := fmt.Fprintln(l.file, entry); err != nil {
			l.logger.Error().Err(err).Msg("Failed to write audit entry")
		}
	}
}

// Recent returns up to count most recent entries, oldest first.
func (l *Logger) Recent(count int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count <= 0 || count > len(l.entries) {
		count = len(l.entries)
	}
	out := make([]string, count)
	copy(out, l.entries[len(l.entries)-count:])
	return out
}

// Close releases the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
