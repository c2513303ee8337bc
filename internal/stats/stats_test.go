package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCollector_Admissions(t *testing.T) {
	c := New()

	c.RecordAccept()
	c.RecordAccept()
	if c.CurrentClients() != 2 {
		t.Errorf("clients = %d, want 2", c.CurrentClients())
	}
	if c.TotalAccepted() != 2 {
		t.Errorf("accepted = %d, want 2", c.TotalAccepted())
	}

	c.RecordClose(3 * time.Second)
	if c.CurrentClients() != 1 {
		t.Errorf("clients = %d, want 1", c.CurrentClients())
	}
	if c.TotalAccepted() != 2 {
		t.Errorf("accepted should remain 2, got %d", c.TotalAccepted())
	}
}

func TestCollector_EvictionKeepsGauge(t *testing.T) {
	c := New()

	c.RecordAccept()
	c.RecordAccept()
	c.RecordEviction()

	// The evicted connection's worker has not closed yet.
	if c.CurrentClients() != 2 {
		t.Errorf("clients = %d, want 2 before the evicted worker exits", c.CurrentClients())
	}
	if c.TotalEvicted() != 1 {
		t.Errorf("evicted = %d, want 1", c.TotalEvicted())
	}

	c.RecordClose(time.Second)
	if c.CurrentClients() != 1 {
		t.Errorf("clients = %d, want 1 after close", c.CurrentClients())
	}
}

func TestCollector_Rejections(t *testing.T) {
	c := New()

	c.RecordRejection()
	c.RecordRejection()
	c.RecordRejection()

	if c.TotalRejected() != 3 {
		t.Errorf("rejected = %d, want 3", c.TotalRejected())
	}
	if c.CurrentClients() != 0 {
		t.Errorf("rejections must not touch the gauge, got %d", c.CurrentClients())
	}
	if c.TotalAccepted() != 0 {
		t.Errorf("rejections must not count as accepts, got %d", c.TotalAccepted())
	}
}

func TestCollector_BytesAndTime(t *testing.T) {
	c := New()

	c.RecordBytes(24)
	c.RecordBytes(8)
	if c.TotalBytesSent() != 32 {
		t.Errorf("bytes = %d, want 32", c.TotalBytesSent())
	}

	c.RecordAccept()
	c.RecordAccept()
	c.RecordClose(1500 * time.Millisecond)
	c.RecordClose(500 * time.Millisecond)
	if got := c.TotalConnectionTime(); got != 2*time.Second {
		t.Errorf("connection time = %v, want 2s", got)
	}
}

// TestCollector_MonotonicUnderConcurrency hammers every counter from
// many goroutines and checks that cumulative totals only grow and the
// gauge balances out.
func TestCollector_MonotonicUnderConcurrency(t *testing.T) {
	c := New()

	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				c.RecordAccept()
				c.RecordBytes(10)
				c.RecordClose(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := c.TotalAccepted(); got != workers*rounds {
		t.Errorf("accepted = %d, want %d", got, workers*rounds)
	}
	if got := c.TotalBytesSent(); got != workers*rounds*10 {
		t.Errorf("bytes = %d, want %d", got, workers*rounds*10)
	}
	if got := c.CurrentClients(); got != 0 {
		t.Errorf("gauge = %d, want 0 after balanced open/close", got)
	}
	if got := c.TotalConnectionTime(); got != workers*rounds*time.Millisecond {
		t.Errorf("connection time = %v, want %v", got, workers*rounds*time.Millisecond)
	}
}

func TestCollector_Snapshot(t *testing.T) {
	c := New()
	c.RecordAccept()
	c.RecordEviction()
	c.RecordBytes(100)
	c.RecordClose(4 * time.Second)

	snap := c.Snapshot()
	if snap.CurrentClients != 0 {
		t.Errorf("snap clients = %d", snap.CurrentClients)
	}
	if snap.TotalAccepted != 1 {
		t.Errorf("snap accepted = %d", snap.TotalAccepted)
	}
	if snap.TotalEvicted != 1 {
		t.Errorf("snap evicted = %d", snap.TotalEvicted)
	}
	if snap.TotalBytesSent != 100 {
		t.Errorf("snap bytes = %d", snap.TotalBytesSent)
	}
	if snap.TotalConnectionSeconds != 4 {
		t.Errorf("snap seconds = %v, want 4", snap.TotalConnectionSeconds)
	}
	if snap.LastAccept == "" {
		t.Error("expected non-empty last accept timestamp")
	}
	if snap.LastEviction == "" {
		t.Error("expected non-empty last eviction timestamp")
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.RecordAccept()
	c.RecordBytes(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.CurrentClients != 1 {
		t.Errorf("JSON clients = %d", snap.CurrentClients)
	}
	if snap.TotalBytesSent != 42 {
		t.Errorf("JSON bytes = %d", snap.TotalBytesSent)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.RecordAccept()
	c.RecordEviction()
	c.RecordRejection()
	c.RecordBytes(100)
	c.RecordClose(time.Second)

	if c.CurrentClients() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.TotalBytesSent() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.TotalConnectionTime() != 0 {
		t.Error("nil collector should return 0")
	}

	snap := c.Snapshot()
	if snap.TotalAccepted != 0 {
		t.Error("nil snapshot should be zero")
	}

	j := c.JSON()
	if j == "" {
		t.Error("nil JSON should return valid JSON")
	}
}

// ── Reporter ─────────────────────────────────────────────────────────

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestReporter_DumpTotals(t *testing.T) {
	c := New()
	c.RecordAccept()
	c.RecordBytes(64)
	c.RecordClose(2 * time.Second)

	var buf bytes.Buffer
	r := NewReporter(c, testLogger(&buf), 0, nil)
	r.DumpTotals()

	out := buf.String()
	if !strings.Contains(out, "TOTALS") {
		t.Fatalf("log output missing TOTALS line: %q", out)
	}
	if !strings.Contains(out, "connects=1") {
		t.Errorf("log output missing connects: %q", out)
	}
	if !strings.Contains(out, "bytes=64") {
		t.Errorf("log output missing bytes: %q", out)
	}
	if !strings.Contains(out, "seconds=2") {
		t.Errorf("log output missing seconds: %q", out)
	}
}

func TestReporter_IncludesLiveTime(t *testing.T) {
	c := New()
	c.RecordAccept()
	c.RecordClose(time.Second)

	var buf bytes.Buffer
	r := NewReporter(c, testLogger(&buf), 0, func() time.Duration {
		return 3 * time.Second
	})
	r.DumpTotals()

	if out := buf.String(); !strings.Contains(out, "seconds=4") {
		t.Errorf("totals should add live time to closed time: %q", out)
	}
}

func TestReporter_RunPeriodic(t *testing.T) {
	c := New()
	var mu sync.Mutex
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(lockedWriter{&mu, &buf}, nil))
	r := NewReporter(c, logger, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := strings.Count(buf.String(), "TOTALS")
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reporter never produced two TOTALS lines")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop on context cancel")
	}
}

func TestReporter_DisabledInterval(t *testing.T) {
	r := NewReporter(New(), slog.Default(), 0, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with interval 0 should return immediately")
	}
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
