// Package config defines the runtime configuration for gotarpit and
// provides loading from environment variables and .env files.
package config

import (
	"net"
	"time"

	"gotarpit/internal/banner"
	tperr "gotarpit/internal/errors"
	"gotarpit/util"
)

// Config holds every tuneable of the daemon. Values are built once at
// startup, validated, and treated as immutable afterwards; a reload
// builds and publishes a fresh Config instead of mutating this one.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	BindAddress string // empty = wildcard for the chosen family
	Port        int
	Family      string // util.FamilyAny, FamilyIPv4, or FamilyIPv6

	// ── Tarpit behaviour ─────────────────────────────────────────────
	MaxClients    int // capacity; 0 rejects every connection
	MaxLineLength int // banner line bytes, terminator included
	DelayMin      time.Duration
	DelayMax      time.Duration
	Enabled       bool // false: keep listening but close new connections

	// ── Observability ────────────────────────────────────────────────
	HTTPAddress   string        // "host:port" for the HTTP API, empty = off
	StatsInterval time.Duration // TOTALS log cadence, 0 = off
	LogLevel      string
	LogFormat     string
}

// Addr returns the listener's "host:port".
func (c *Config) Addr() string {
	return util.FormatAddr(c.BindAddress, c.Port)
}

// DelayWindow returns the pacing bounds as a pair.
func (c *Config) DelayWindow() (min, max time.Duration) {
	return c.DelayMin, c.DelayMax
}

// Validate checks that the configuration is internally consistent.
// It returns a *errors.ConfigError naming the offending field.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &tperr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
		}
	}
	if c.BindAddress != "" && net.ParseIP(c.BindAddress) == nil {
		return &tperr.ConfigError{
			Field:   "bind",
			Value:   c.BindAddress,
			Message: "not an IP address",
			Hint:    "bind takes a literal address such as 0.0.0.0 or ::1",
		}
	}
	switch c.Family {
	case util.FamilyAny, util.FamilyIPv4, util.FamilyIPv6:
	default:
		return &tperr.ConfigError{
			Field:   "family",
			Value:   c.Family,
			Message: "must be one of any, ipv4, ipv6",
		}
	}
	if c.MaxClients < 0 {
		return &tperr.ConfigError{
			Field:   "max-clients",
			Value:   c.MaxClients,
			Message: "must not be negative",
		}
	}
	if c.MaxLineLength < banner.MinLength || c.MaxLineLength > banner.MaxLength {
		return &tperr.ConfigError{
			Field:   "max-line-length",
			Value:   c.MaxLineLength,
			Message: "must be between 3 and 255",
			Hint:    "255 is the protocol's ceiling for one identification line",
		}
	}
	if c.DelayMin < time.Millisecond {
		return &tperr.ConfigError{
			Field:   "delay",
			Value:   c.DelayMin.String(),
			Message: "must be at least 1ms",
		}
	}
	if c.DelayMax < c.DelayMin {
		return &tperr.ConfigError{
			Field:   "delay-max",
			Value:   c.DelayMax.String(),
			Message: "must not be less than --delay",
		}
	}
	if c.HTTPAddress != "" {
		if _, _, err := net.SplitHostPort(c.HTTPAddress); err != nil {
			return &tperr.ConfigError{
				Field:   "http",
				Value:   c.HTTPAddress,
				Message: "not a host:port address",
				Hint:    "example: --http 127.0.0.1:3000",
			}
		}
	}
	if c.StatsInterval < 0 {
		return &tperr.ConfigError{
			Field:   "stats-interval",
			Value:   c.StatsInterval.String(),
			Message: "must not be negative",
		}
	}
	return nil
}

// Clone returns a copy safe to modify before re-validating, the path a
// reload takes.
func (c *Config) Clone() *Config {
	dup := *c
	return &dup
}
