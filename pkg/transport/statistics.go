// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Statistics tracks traffic on one connection. Counters are atomic so a
// monitor may read them while the owner is using the connection.
type Statistics struct {
	StartTime time.Time

	LinesWritten atomic.Uint64
	LinesRead    atomic.Uint64
	BytesWritten atomic.Uint64
	BytesRead    atomic.Uint64
	Timeouts     atomic.Uint64
	Errors       atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

func (s *Statistics) incLinesWritten()      { s.LinesWritten.Add(1) }
func (s *Statistics) incLinesRead()         { s.LinesRead.Add(1) }
func (s *Statistics) addBytesWritten(n int) { s.BytesWritten.Add(uint64(n)) }
func (s *Statistics) addBytesRead(n int)    { s.BytesRead.Add(uint64(n)) }
func (s *Statistics) incTimeouts()          { s.Timeouts.Add(1) }
func (s *Statistics) incErrors()            { s.Errors.Add(1) }

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	elapsed := time.Since(s.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Lines Written:   %8d\n", s.LinesWritten.Load())
	fmt.Fprintf(&b, "Lines Read:      %8d\n", s.LinesRead.Load())
	fmt.Fprintf(&b, "Bytes Written:   %8d\n", s.BytesWritten.Load())
	fmt.Fprintf(&b, "Bytes Read:      %8d\n", s.BytesRead.Load())
	if v := s.Timeouts.Load(); v > 0 {
		fmt.Fprintf(&b, "Timeouts:        %8d\n", v)
	}
	if v := s.Errors.Load(); v > 0 {
		fmt.Fprintf(&b, "Errors:          %8d\n", v)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(&b, "Read Rate:       %8.1f bytes/sec\n", float64(s.BytesRead.Load())/secs)
	}
	b.WriteString("================================\n")
	return b.String()
}

// Registry holds the statistics of every connection opened with
// WithRegistry, keyed by address. Instruments driven from separate
// goroutines register concurrently.
type Registry struct {
	stats *xsync.MapOf[string, *Statistics]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stats: xsync.NewMapOf[string, *Statistics]()}
}

// For returns the statistics for address, creating them on first use.
func (r *Registry) For(address string) *Statistics {
	s, _ := r.stats.LoadOrCompute(address, NewStatistics)
	return s
}

// Range calls fn for every registered address until fn returns false.
func (r *Registry) Range(fn func(address string, s *Statistics) bool) {
	r.stats.Range(fn)
}
