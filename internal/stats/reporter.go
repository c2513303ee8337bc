package stats

import (
	"context"
	"log/slog"
	"time"
)

// Reporter writes a cumulative TOTALS line to the log, either on a
// fixed cadence via Run or on demand via DumpTotals (the engine wires
// the latter to SIGUSR1).
type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	interval  time.Duration

	// live reports the connection time already accrued by still-open
	// clients, so the totals line matches what their eventual closes
	// will bank. Optional.
	live func() time.Duration
}

// NewReporter wires a reporter to a collector. interval <= 0 disables
// the periodic dump; DumpTotals stays usable either way.
func NewReporter(c *Collector, logger *slog.Logger, interval time.Duration, live func() time.Duration) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		collector: c,
		logger:    logger.With("component", "stats"),
		interval:  interval,
		live:      live,
	}
}

// Run emits a TOTALS line every interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	if r == nil || r.interval <= 0 {
		return
	}
	tick := time.NewTicker(r.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.DumpTotals()
		}
	}
}

// DumpTotals logs lifetime connects, connection seconds, and bytes
// sent, including time accrued by connections still open.
func (r *Reporter) DumpTotals() {
	if r == nil {
		return
	}
	total := r.collector.TotalConnectionTime()
	if r.live != nil {
		total += r.live()
	}
	r.logger.Info("TOTALS",
		"connects", r.collector.TotalAccepted(),
		"seconds", total.Truncate(time.Millisecond).Seconds(),
		"bytes", r.collector.TotalBytesSent(),
	)
}
