package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Logger wraps charm/log for structured logging
type Logger struct {
	*log.Logger
}

// New creates a new logger with the given output
func New(w io.Writer) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	return &Logger{Logger: l}
}

// NewWithLevel creates a logger with a specific level
func NewWithLevel(w io.Writer, level log.Level) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
	})
	return &Logger{Logger: l}
}

// NewFileLogger creates a logger that writes to a file
func NewFileLogger(path string) (*Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	l := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})

	cleanup := func() {
		f.Close()
	}

	return &Logger{Logger: l}, cleanup, nil
}

// NewMultiLogger creates a logger that writes to multiple outputs
func NewMultiLogger(writers ...io.Writer) *Logger {
	w := io.MultiWriter(writers...)
	return New(w)
}

// Discard returns a logger that discards all output
func Discard() *Logger {
	return New(io.Discard)
}

// SyncStarted logs the start of a sync run
func (l *Logger) SyncStarted(runID, mode, docsDir string, documents int) {
	l.Info("sync started",
		"run_id", runID,
		"mode", mode,
		"docs_dir", docsDir,
		"documents", documents)
}

// SyncCompleted logs the completion of a sync run
func (l *Logger) SyncCompleted(runID string, processed, failed int, duration time.Duration) {
	l.Info("sync completed",
		"run_id", runID,
		"processed", processed,
		"failed", failed,
		"duration", duration.Round(time.Millisecond))
}

// PagePushed logs a successful page push
func (l *Logger) PagePushed(path, pageID string, version int, created bool) {
	action := "updated"
	if created {
		action = "created"
	}
	l.Info("page "+action,
		"path", path,
		"page_id", pageID,
		"version", version)
}

// PagePulled logs a successful page pull
func (l *Logger) PagePulled(path, pageID string, version int) {
	l.Info("page pulled",
		"path", path,
		"page_id", pageID,
		"version", version)
}

// DocumentFailed logs a per-document sync failure
func (l *Logger) DocumentFailed(path string, err error) {
	l.Error("document failed",
		"path", path,
		"error", err)
}

// TransformWarning logs a degrade-and-continue conversion warning
func (l *Logger) TransformWarning(path, warning string) {
	l.Warn("transform warning",
		"path", path,
		"warning", warning)
}

// ContainerResolved logs a container page lookup or creation
func (l *Logger) ContainerResolved(category, pageID string) {
	l.Debug("container resolved",
		"category", category,
		"page_id", pageID)
}

// OrphanFound logs a sync record whose local document no longer exists
func (l *Logger) OrphanFound(path, pageID string) {
	l.Warn("orphan record",
		"path", path,
		"page_id", pageID)
}

// StateError logs a state-related error
func (l *Logger) StateError(operation string, err error) {
	l.Error("state error",
		"operation", operation,
		"error", err)
}

// ConfigLoaded logs successful config loading
func (l *Logger) ConfigLoaded(docsDir, baseURL, spaceKey string) {
	l.Debug("config loaded",
		"docs_dir", docsDir,
		"base_url", baseURL,
		"space", spaceKey)
}

// Skipped logs when a document is skipped
func (l *Logger) Skipped(path, reason string) {
	l.Debug("document skipped",
		"path", path,
		"reason", reason)
}
