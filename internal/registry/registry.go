// Package registry tracks every live tarpitted connection and owns the
// admission and eviction policy. It never owns sockets: each entry is a
// lightweight reference whose halt closure tells the owning worker to
// shut its own connection down.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"gotarpit/internal/events"
	"gotarpit/internal/stats"
)

// Ref is the registry's handle on one live connection.
type Ref struct {
	ID         uint64
	RemoteAddr string
	AcceptedAt time.Time

	// Halt cancels the connection's worker and force-closes its socket.
	// Must not block; it may be invoked with the registry lock held.
	Halt func()
}

// Decision classifies the outcome of an admission attempt.
type Decision int

const (
	// Admitted means the connection got a free slot.
	Admitted Decision = iota
	// AdmittedWithEviction means the oldest connection was sacrificed
	// to make room.
	AdmittedWithEviction
	// Rejected means the connection must be closed immediately: the
	// tarpit is disabled or has zero capacity.
	Rejected
)

// Admission is the result of TryAdmit.
type Admission struct {
	Decision  Decision
	EvictedID uint64 // set when Decision == AdmittedWithEviction
}

// Registry is a bounded, insertion-ordered collection of connection
// references. All mutations run under one mutex, so the size bound
// holds at every instant, never just eventually.
type Registry struct {
	mu       sync.Mutex
	conns    map[uint64]Ref
	capacity int
	enabled  bool
	nextID   uint64

	collector *stats.Collector
	bus       *events.Broadcaster
	logger    *slog.Logger
}

// New creates a registry bounded at capacity. collector and bus may be
// nil; logger nil falls back to slog.Default.
func New(capacity int, enabled bool, collector *stats.Collector, bus *events.Broadcaster, logger *slog.Logger) *Registry {
	if capacity < 0 {
		capacity = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:     make(map[uint64]Ref),
		capacity:  capacity,
		enabled:   enabled,
		collector: collector,
		bus:       bus,
		logger:    logger.With("component", "registry"),
	}
}

// TryAdmit decides the fate of a freshly accepted connection. On
// Admitted and AdmittedWithEviction the returned Ref carries the new
// connection's identity (monotonic ID, admission timestamp) and has
// been inserted at the ordering tail. On Rejected the Ref is zero and
// the caller closes the socket itself; halt is never invoked.
func (r *Registry) TryAdmit(remoteAddr string, halt func()) (Admission, Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled || r.capacity == 0 {
		r.collector.RecordRejection()
		r.bus.Publish(events.Event{
			Type:       events.TypeRejected,
			RemoteAddr: remoteAddr,
			Time:       time.Now(),
		})
		r.logger.Debug("REJECT", "remote", remoteAddr, "enabled", r.enabled, "max", r.capacity)
		return Admission{Decision: Rejected}, Ref{}
	}

	adm := Admission{Decision: Admitted}
	if len(r.conns) >= r.capacity {
		victim := r.oldestLocked()
		r.evictLocked(victim)
		adm = Admission{Decision: AdmittedWithEviction, EvictedID: victim.ID}
	}

	r.nextID++
	ref := Ref{
		ID:         r.nextID,
		RemoteAddr: remoteAddr,
		AcceptedAt: time.Now(),
		Halt:       halt,
	}
	r.conns[ref.ID] = ref

	r.collector.RecordAccept()
	r.bus.Publish(events.Event{
		Type:       events.TypeAccepted,
		ID:         ref.ID,
		RemoteAddr: ref.RemoteAddr,
		Time:       ref.AcceptedAt,
	})
	r.logger.Info("ACCEPT", "id", ref.ID, "remote", ref.RemoteAddr, "n", len(r.conns), "max", r.capacity)

	return adm, ref
}

// Remove takes id out of the registry. It reports whether the entry was
// still present, and is idempotent: a worker closing naturally may race
// an eviction for the same id without double-accounting.
func (r *Registry) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Resize changes the capacity, evicting oldest-first until the live set
// fits. Growing never touches existing connections. Returns the number
// of evictions performed.
func (r *Registry) Resize(capacity int) int {
	if capacity < 0 {
		capacity = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.capacity = capacity
	evicted := 0
	for len(r.conns) > r.capacity {
		victim := r.oldestLocked()
		r.evictLocked(victim)
		evicted++
	}
	if evicted > 0 {
		r.logger.Info("resize evicted connections", "evicted", evicted, "max", r.capacity)
	}
	return evicted
}

// SetEnabled flips the admission switch. Disabling does not touch live
// connections; it only makes future admissions reject.
func (r *Registry) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Capacity returns the current bound.
func (r *Registry) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capacity
}

// HaltAll signals every live worker to terminate. Entries are not
// removed here: each worker's own Remove call stays the single exit
// path, keeping the live gauge exact.
func (r *Registry) HaltAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range r.conns {
		ref.Halt()
	}
}

// Snapshot returns the live connections ordered oldest-first.
func (r *Registry) Snapshot() []Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Ref, 0, len(r.conns))
	for _, ref := range r.conns {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AcceptedAt.Equal(out[j].AcceptedAt) {
			return out[i].AcceptedAt.Before(out[j].AcceptedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LiveDuration sums the time every live connection has been held so
// far. The stats reporter adds it to the closed-connection total.
func (r *Registry) LiveDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var total time.Duration
	for _, ref := range r.conns {
		total += now.Sub(ref.AcceptedAt)
	}
	return total
}

// oldestLocked picks the eviction victim: smallest AcceptedAt, ties
// broken by smallest ID. Caller holds r.mu and guarantees the registry
// is non-empty.
func (r *Registry) oldestLocked() Ref {
	var victim Ref
	found := false
	for _, ref := range r.conns {
		if !found ||
			ref.AcceptedAt.Before(victim.AcceptedAt) ||
			(ref.AcceptedAt.Equal(victim.AcceptedAt) && ref.ID < victim.ID) {
			victim = ref
			found = true
		}
	}
	return victim
}

// evictLocked removes victim and tells its worker to die. Caller holds
// r.mu.
func (r *Registry) evictLocked(victim Ref) {
	delete(r.conns, victim.ID)
	if victim.Halt != nil {
		victim.Halt()
	}
	r.collector.RecordEviction()
	r.bus.Publish(events.Event{
		Type:       events.TypeEvicted,
		ID:         victim.ID,
		RemoteAddr: victim.RemoteAddr,
		Time:       time.Now(),
	})
	r.logger.Info("EVICT", "id", victim.ID, "remote", victim.RemoteAddr, "held", time.Since(victim.AcceptedAt).Truncate(time.Millisecond))
}
