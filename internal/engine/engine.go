// Package engine runs the tarpit itself: it binds the listener, pushes
// every accepted connection through the registry's admission policy,
// and supervises one trickle worker per admitted connection.
package engine

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gotarpit/config"
	tperr "gotarpit/internal/errors"
	"gotarpit/internal/events"
	"gotarpit/internal/registry"
	"gotarpit/internal/retry"
	"gotarpit/internal/stats"
	"gotarpit/util"
)

// State describes where the engine is in its lifecycle.
type State int32

const (
	// StateStarting is the state before Run binds the listener.
	StateStarting State = iota
	// StateListening means the accept loop is live.
	StateListening
	// StateDraining means the listener is closed and workers are being
	// waited out.
	StateDraining
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Engine owns the accept loop and the worker pool. Construct with New,
// drive with Run, stop with Shutdown.
type Engine struct {
	store     *config.Store
	registry  *registry.Registry
	collector *stats.Collector
	bus       *events.Broadcaster
	logger    *slog.Logger

	state atomic.Int32

	mu       sync.Mutex
	listener net.Listener

	acceptDone chan struct{}
	workers    sync.WaitGroup
	stopOnce   sync.Once
}

// New wires an engine together. collector and bus may be nil; logger
// nil falls back to slog.Default.
func New(store *config.Store, reg *registry.Registry, collector *stats.Collector, bus *events.Broadcaster, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		registry:   reg,
		collector:  collector,
		bus:        bus,
		logger:     logger.With("component", "engine"),
		acceptDone: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Addr returns the bound listener address, or nil before Run binds.
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Run binds the listener and serves the accept loop until the context
// is cancelled, Shutdown is called, or the listener becomes unusable.
// A bind failure is fatal and returned immediately. Run returns nil on
// a clean stop.
func (e *Engine) Run(ctx context.Context) error {
	switch e.State() {
	case StateListening, StateDraining:
		return tperr.ErrAlreadyRunning
	case StateStopped:
		return tperr.ErrEngineClosed
	}

	cfg := e.store.Load()
	ln, err := util.Listen(cfg.Family, cfg.Addr())
	if err != nil {
		return tperr.Wrap("listen", cfg.Addr(), err)
	}

	e.mu.Lock()
	e.listener = ln
	e.mu.Unlock()

	if !e.state.CompareAndSwap(int32(StateStarting), int32(StateListening)) {
		// Shutdown won the race before the bind completed.
		ln.Close()
		return tperr.ErrEngineClosed
	}

	e.logger.Info("listening",
		"addr", ln.Addr().String(),
		"max_clients", cfg.MaxClients,
		"delay", cfg.DelayMin,
		"max_line_length", cfg.MaxLineLength,
		"enabled", cfg.Enabled)

	// Translate context cancellation into a full shutdown. The second
	// arm releases the goroutine when the loop dies on its own.
	go func() {
		select {
		case <-ctx.Done():
			e.Shutdown()
		case <-e.acceptDone:
		}
	}()

	err = e.acceptLoop(ctx, ln)
	close(e.acceptDone)
	if err != nil {
		e.logger.Error("accept loop failed", "error", err)
		e.Shutdown()
		return err
	}
	return nil
}

// acceptLoop accepts until the listener closes or breaks. Transient
// failures (fd exhaustion, aborted handshakes) pace the loop with
// exponential backoff; anything else ends it.
func (e *Engine) acceptLoop(ctx context.Context, ln net.Listener) error {
	bo := retry.DefaultBackoff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if e.State() != StateListening {
				return nil
			}
			if tperr.IsRetryable(err) {
				delay := bo.Next()
				e.logger.Warn("transient accept failure", "error", err, "retry_in", delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				continue
			}
			return tperr.Wrap("accept", ln.Addr().String(), err)
		}
		bo.Reset()
		e.dispatch(conn)
	}
}

// dispatch tunes a fresh socket, runs it through admission, and spawns
// its worker. Rejected connections are closed on the spot.
func (e *Engine) dispatch(conn net.Conn) {
	if err := util.ShrinkReadBuffer(conn); err != nil {
		e.logger.Debug("could not shrink receive buffer", "remote", conn.RemoteAddr(), "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	halt := func() {
		cancel()
		conn.Close()
	}

	adm, ref := e.registry.TryAdmit(conn.RemoteAddr().String(), halt)
	if adm.Decision == registry.Rejected {
		cancel()
		conn.Close()
		return
	}

	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		e.serveConn(ctx, conn, ref)
	}()
}

// Reload validates cfg and, if sound, publishes it and applies the
// registry-facing knobs. An invalid cfg is rejected whole and the
// running configuration stays in force. The listener address cannot
// change without a restart.
func (e *Engine) Reload(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	old := e.store.Load()
	e.store.Swap(cfg)
	e.registry.SetEnabled(cfg.Enabled)
	if evicted := e.registry.Resize(cfg.MaxClients); evicted > 0 {
		e.logger.Info("reload shrank capacity", "evicted", evicted)
	}

	if cfg.Addr() != old.Addr() || cfg.Family != old.Family {
		e.logger.Warn("listener address change ignored until restart",
			"running", old.Addr(), "requested", cfg.Addr())
	}
	e.logger.Info("configuration reloaded",
		"max_clients", cfg.MaxClients,
		"delay", cfg.DelayMin,
		"max_line_length", cfg.MaxLineLength,
		"enabled", cfg.Enabled)
	return nil
}

// Shutdown stops accepting, halts every worker, and blocks until all
// of them have exited. Safe to call more than once and from multiple
// goroutines; later callers block until the drain completes.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		// Never ran: nothing to drain.
		if e.state.CompareAndSwap(int32(StateStarting), int32(StateStopped)) {
			return
		}

		e.state.Store(int32(StateDraining))
		e.logger.Info("draining", "live", e.registry.Len())

		e.mu.Lock()
		ln := e.listener
		e.mu.Unlock()
		if ln != nil {
			ln.Close()
		}
		<-e.acceptDone

		e.registry.HaltAll()
		e.workers.Wait()

		e.state.Store(int32(StateStopped))
		e.logger.Info("engine stopped")
	})
}
