package stats

import (
	"testing"
	"time"
)

// BenchmarkCollector_RecordAccept measures the admission hot path
// (two atomic adds plus a timestamp under lock).
func BenchmarkCollector_RecordAccept(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RecordAccept()
	}
}

// BenchmarkCollector_RecordBytes measures the per-write counter the
// workers hit on every banner send.
func BenchmarkCollector_RecordBytes(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RecordBytes(32)
	}
}

// BenchmarkCollector_Snapshot measures the cost of taking a snapshot.
func BenchmarkCollector_Snapshot(b *testing.B) {
	c := New()
	c.RecordAccept()
	c.RecordBytes(1024)
	c.RecordClose(time.Second)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Snapshot()
	}
}

// BenchmarkNilCollector verifies nil-safe no-ops have zero overhead.
func BenchmarkNilCollector(b *testing.B) {
	var c *Collector
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RecordAccept()
		c.RecordBytes(32)
		c.RecordClose(time.Second)
	}
}
