package engine

import (
	"context"
	"math/rand/v2"
	"net"
	"time"

	"gotarpit/config"
	"gotarpit/internal/banner"
	"gotarpit/internal/events"
	"gotarpit/internal/registry"
	"gotarpit/util"
)

// serveConn is the per-connection worker: wait a beat, write one banner
// line, repeat until the peer gives up or the engine halts it. The
// socket is never read. A line is only ever written after a full delay,
// including the first one.
func (e *Engine) serveConn(ctx context.Context, conn net.Conn, ref registry.Ref) {
	defer conn.Close()

	var (
		line []byte
		sent int64
	)

	timer := time.NewTimer(pacingDelay(e.store.Load()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.finishConn(ref, sent)
			return
		case <-timer.C:
		}

		cfg := e.store.Load()
		line = banner.AppendLine(line[:0], cfg.MaxLineLength)
		n, err := conn.Write(line)
		if n > 0 {
			sent += int64(n)
			e.collector.RecordBytes(int64(n))
		}
		if err != nil {
			if ctx.Err() != nil || util.IsClosed(err) {
				e.logger.Debug("client gone", "id", ref.ID, "remote", ref.RemoteAddr)
			} else {
				e.logger.Warn("write failed", "id", ref.ID, "remote", ref.RemoteAddr, "error", err)
			}
			e.finishConn(ref, sent)
			return
		}

		timer.Reset(pacingDelay(cfg))
	}
}

// finishConn settles a connection's books exactly once, on the worker's
// way out: registry entry, close accounting, closed event, CLOSE log.
func (e *Engine) finishConn(ref registry.Ref, sent int64) {
	e.registry.Remove(ref.ID)
	held := time.Since(ref.AcceptedAt)
	e.collector.RecordClose(held)
	e.bus.Publish(events.Event{
		Type:            events.TypeClosed,
		ID:              ref.ID,
		RemoteAddr:      ref.RemoteAddr,
		Time:            time.Now(),
		BytesSent:       sent,
		DurationSeconds: held.Seconds(),
	})
	e.logger.Info("CLOSE", "id", ref.ID, "remote", ref.RemoteAddr, "bytes", sent, "held", held.Truncate(time.Millisecond))
}

// pacingDelay draws the next wait uniformly from the configured window.
func pacingDelay(cfg *config.Config) time.Duration {
	min, max := cfg.DelayWindow()
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}
