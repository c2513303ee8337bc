// Package stats provides lightweight, lock-free counters for tracking
// lifetime tarpit activity.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package stats

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks process-wide tarpit statistics. Counters only ever
// grow; the sole exception is the live-client gauge, which follows
// registry membership exactly. A nil Collector is safe to use; all
// methods become no-ops.
type Collector struct {
	accepted  atomic.Int64
	evicted   atomic.Int64
	rejected  atomic.Int64
	bytesSent atomic.Int64
	clients   atomic.Int64
	connTime  atomic.Int64 // nanoseconds of completed connection lifetimes

	mu           sync.RWMutex
	startTime    time.Time
	lastAccept   time.Time
	lastEviction time.Time
}

// New creates a collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Admission metrics ────────────────────────────────────────────────

// RecordAccept counts an admitted connection and grows the live gauge.
func (c *Collector) RecordAccept() {
	if c == nil {
		return
	}
	c.accepted.Add(1)
	c.clients.Add(1)
	c.mu.Lock()
	c.lastAccept = time.Now()
	c.mu.Unlock()
}

// RecordEviction counts a connection sacrificed to make room. The gauge
// is untouched here; the evicted worker still reports its own close.
func (c *Collector) RecordEviction() {
	if c == nil {
		return
	}
	c.evicted.Add(1)
	c.mu.Lock()
	c.lastEviction = time.Now()
	c.mu.Unlock()
}

// RecordRejection counts a connection closed at the door without ever
// entering the registry.
func (c *Collector) RecordRejection() {
	if c == nil {
		return
	}
	c.rejected.Add(1)
}

// ── Worker metrics ───────────────────────────────────────────────────

// RecordBytes records n banner bytes written to a client.
func (c *Collector) RecordBytes(n int64) {
	if c == nil {
		return
	}
	c.bytesSent.Add(n)
}

// RecordClose shrinks the live gauge and banks the connection's full
// lifetime. Workers call it exactly once, whatever ended them.
func (c *Collector) RecordClose(lifetime time.Duration) {
	if c == nil {
		return
	}
	c.clients.Add(-1)
	c.connTime.Add(int64(lifetime))
}

// ── Accessors ────────────────────────────────────────────────────────

// CurrentClients returns the number of connections currently held.
func (c *Collector) CurrentClients() int64 {
	if c == nil {
		return 0
	}
	return c.clients.Load()
}

// TotalAccepted returns the lifetime admitted-connection count.
func (c *Collector) TotalAccepted() int64 {
	if c == nil {
		return 0
	}
	return c.accepted.Load()
}

// TotalEvicted returns the lifetime eviction count.
func (c *Collector) TotalEvicted() int64 {
	if c == nil {
		return 0
	}
	return c.evicted.Load()
}

// TotalRejected returns the lifetime rejection count.
func (c *Collector) TotalRejected() int64 {
	if c == nil {
		return 0
	}
	return c.rejected.Load()
}

// TotalBytesSent returns the lifetime banner byte count.
func (c *Collector) TotalBytesSent() int64 {
	if c == nil {
		return 0
	}
	return c.bytesSent.Load()
}

// TotalConnectionTime returns the summed lifetimes of all closed
// connections. Time still accruing on open connections is not included.
func (c *Collector) TotalConnectionTime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.connTime.Load())
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all statistics.
type Snapshot struct {
	Uptime                 string  `json:"uptime"`
	CurrentClients         int64   `json:"current_clients"`
	TotalAccepted          int64   `json:"total_accepted"`
	TotalEvicted           int64   `json:"total_evicted"`
	TotalRejected          int64   `json:"total_rejected"`
	TotalBytesSent         int64   `json:"total_bytes_sent"`
	TotalConnectionSeconds float64 `json:"total_connection_seconds"`
	LastAccept             string  `json:"last_accept,omitempty"`
	LastEviction           string  `json:"last_eviction,omitempty"`
}

// Snapshot returns a copy of all current statistics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:                 time.Since(c.startTime).Truncate(time.Second).String(),
		CurrentClients:         c.clients.Load(),
		TotalAccepted:          c.accepted.Load(),
		TotalEvicted:           c.evicted.Load(),
		TotalRejected:          c.rejected.Load(),
		TotalBytesSent:         c.bytesSent.Load(),
		TotalConnectionSeconds: time.Duration(c.connTime.Load()).Seconds(),
	}
	if !c.lastAccept.IsZero() {
		s.LastAccept = c.lastAccept.Format(time.RFC3339)
	}
	if !c.lastEviction.IsZero() {
		s.LastEviction = c.lastEviction.Format(time.RFC3339)
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
