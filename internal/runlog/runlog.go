// Package runlog keeps the most recent run reports in memory for the status
// endpoints. Nothing here survives a restart; the storefront and feed are
// re-read on every run, so there is no state worth persisting.
package runlog

import (
	gosync "sync"

	"github.com/tovald/stocksync/internal/sync"
)

// Log is a bounded, newest-first record of completed runs.
type Log struct {
	mu   gosync.RWMutex
	max  int
	runs []sync.RunReport
}

// New creates a Log retaining at most max reports.
func New(max int) *Log {
	if max <= 0 {
		max = 30
	}
	return &Log{max: max}
}

// Add records a finished run, evicting the oldest once full.
func (l *Log) Add(rep sync.RunReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append([]sync.RunReport{rep}, l.runs...)
	if len(l.runs) > l.max {
		l.runs = l.runs[:l.max]
	}
}

// Last returns the most recent run, if any.
func (l *Log) Last() (sync.RunReport, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.runs) == 0 {
		return sync.RunReport{}, false
	}
	return l.runs[0], true
}

// Recent returns up to n reports, newest first.
func (l *Log) Recent(n int) []sync.RunReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.runs) {
		n = len(l.runs)
	}
	out := make([]sync.RunReport, n)
	copy(out, l.runs[:n])
	return out
}

// Len returns the number of retained reports.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.runs)
}
