package config

import (
	"time"

	"gotarpit/util"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, .env parsing, and environment variable loading.

const (
	// DefaultPort is the conventional decoy SSH port.
	DefaultPort = 2222

	// DefaultMaxClients bounds concurrently held connections.
	DefaultMaxClients = 4096

	// DefaultMaxLineLength is the banner line budget in bytes,
	// terminator included.
	DefaultMaxLineLength = 32

	// DefaultDelay is the pause between banner writes on a connection.
	DefaultDelay = 10 * time.Second

	// DefaultStatsInterval is the cadence of the periodic TOTALS log.
	DefaultStatsInterval = 10 * time.Minute

	// DefaultLogLevel is the slog level the daemon starts with.
	DefaultLogLevel = "info"

	// DefaultLogFormat selects text on a terminal and JSON elsewhere.
	DefaultLogFormat = util.LogFormatAuto
)

// Default returns a fully populated configuration. Callers overlay env
// vars and CLI flags on top of it.
func Default() *Config {
	return &Config{
		Port:          DefaultPort,
		Family:        util.FamilyAny,
		MaxClients:    DefaultMaxClients,
		MaxLineLength: DefaultMaxLineLength,
		DelayMin:      DefaultDelay,
		DelayMax:      DefaultDelay,
		Enabled:       true,
		StatsInterval: DefaultStatsInterval,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}
}
