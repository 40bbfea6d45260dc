package logging

import (
	"fmt"
	"os"
	"sync"
)

// DebugLogName is the debug log written to the working directory
const DebugLogName = "headroom-debug.log"

// DebugLog is a line-oriented diagnostic log shared by worker goroutines.
// A nil *DebugLog discards everything.
type DebugLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenDebugLog creates the log at path. It returns nil when the file cannot
// be created, which disables debug logging.
func OpenDebugLog(path string) *DebugLog {
	f, err := os.Create(path)
	if err != nil {
		return nil
	}
	return &DebugLog{f: f}
}

// Logf writes one formatted line
func (l *DebugLog) Logf(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.f, format+"\n", args...)
}

// Close closes the underlying file
func (l *DebugLog) Close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}
