// Package hostlog provides structured, per-component debug logging for
// fabric instances. All logs for one instance are written to a single
// session-specific file in ~/.ctxbridge/logs/, named after that instance's
// own id rather than a freestanding session UUID, so a log file is always
// trivial to correlate with the instance's /health response.
package hostlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped, leveled lines tagged with a component name.
// All log methods write unconditionally; there is no level filtering.
type Logger struct {
	instanceID string
	component  string
	file       *os.File
	logger     *log.Logger
	mu         sync.Mutex
	logPath    string
	closeOnce  sync.Once
}

// New creates a logger for component, writing to
// ~/.ctxbridge/logs/<instanceID>-ctxbridge.log. Multiple components for the
// same instance share one file.
//
// If the log directory can't be created or the log file can't be opened,
// New returns a logger that falls back to stderr along with the error that
// caused the fallback. Callers can check the error to detect fallback mode.
func New(instanceID, component string) (*Logger, error) {
	dir, err := logDirectory()
	if err != nil {
		return newFallbackLogger(instanceID, component, err), err
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return newFallbackLogger(instanceID, component, fmt.Errorf("create log directory: %w", err)), err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-ctxbridge.log", instanceID))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(instanceID, component, fmt.Errorf("open log file: %w", err)), err
	}

	return &Logger{
		instanceID: instanceID,
		component:  component,
		file:       file,
		logger:     log.New(file, "", 0),
		logPath:    logPath,
	}, nil
}

func logDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ctxbridge", "logs"), nil
}

func newFallbackLogger(instanceID, component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags|log.Lshortfile)
	logger.Printf("WARNING: failed to initialize file logging: %v", err)
	logger.Printf("falling back to stderr logging")

	return &Logger{
		instanceID: instanceID,
		component:  component,
		logger:     logger,
	}
}

func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

// Printf logs a formatted message at INFO level.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.log("INFO", format, v...)
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.log("DEBUG", format, v...)
}

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.log("INFO", format, v...)
}

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.log("WARN", format, v...)
}

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log("ERROR", format, v...)
}

func (l *Logger) log(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(format, v...)
	l.logger.Println(l.formatLogEntry(level, message))
}

// Writer returns an io.Writer that writes to this logger's destination.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// InstanceID returns the instance id this logger's file is named after.
func (l *Logger) InstanceID() string { return l.instanceID }

// LogPath returns the path to the log file, or "" if logging fell back to
// stderr.
func (l *Logger) LogPath() string { return l.logPath }

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
