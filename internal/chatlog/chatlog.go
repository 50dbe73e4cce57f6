// Package chatlog keeps the per-run append-only record of everything the
// server broadcast, one timestamped line per entry.
package chatlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log appends timestamped lines to a file created for this server run.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates a fresh log file under dir, creating dir when missing.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	name := fmt.Sprintf("server_log_%s.log", time.Now().Format("20060102_150405"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Log{file: file}, nil
}

// Append writes one line with a timestamp prefix. The error is for the
// caller to report; a failed append must never fail the broadcast it
// records.
func (l *Log) Append(line string) error {
	ts := time.Now().Format("15:04")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.file, "[%s] %s\n", ts, line); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

// Path returns the location of the underlying file.
func (l *Log) Path() string {
	return l.file.Name()
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
