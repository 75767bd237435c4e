// Package diag provides opt-in diagnostic logging for the visualisation
// engine. It stays silent unless enabled, since the engine runs inline on
// the debugger's UI thread and must not spam stdio by default.
package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug can be overridden at build time:
// go build -ldflags "-X github.com/standardbeagle/natvis-engine/internal/diag.EnableDebug=true"
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
	file   *os.File
)

// SetOutput sets a custom writer for diagnostic output. Pass nil to
// disable diagnostics entirely.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// InitLogFile initializes diagnostic logging to a timestamped file under
// the OS temp directory and returns its path.
func InitLogFile() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	logDir := filepath.Join(os.TempDir(), "natvis-engine-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create diagnostic log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("natvis-%s.log", timestamp))

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create diagnostic log file: %w", err)
	}

	file = f
	output = f
	return logPath, nil
}

// Close closes the diagnostic log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		err := file.Close()
		file = nil
		output = nil
		return err
	}
	return nil
}

// Enabled reports whether diagnostics should be emitted.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	if v := os.Getenv("NATVIS_DEBUG"); v == "1" || v == "true" {
		return true
	}
	return false
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Printf writes a diagnostic line tagged with component, when enabled.
func Printf(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[natvis:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// DispatchLog logs a dispatch-engine diagnostic (candidate rejection,
// recursion cap hit, fallback to built-in visualiser).
func DispatchLog(format string, args ...interface{}) {
	Printf("dispatch", format, args...)
}

// StorageLog logs a visualiser-storage diagnostic (lookup miss, sort).
func StorageLog(format string, args ...interface{}) {
	Printf("storage", format, args...)
}

// IntrinsicsLog logs an intrinsic prolog cache diagnostic.
func IntrinsicsLog(format string, args ...interface{}) {
	Printf("intrinsics", format, args...)
}
