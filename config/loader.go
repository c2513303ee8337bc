package config

// loader.go - configuration loading from .env files and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. .env file  (loaded into the environment, never overriding it)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv reads .env (or the named files) into the process
// environment. Variables already set in the environment win, and a
// missing file is not an error. Called again on reload so edits to the
// file take effect without a restart.
func LoadDotenv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GOTARPIT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  The pacing knobs are
// integer milliseconds, matching their CLI flags; the observability
// knobs take Go duration strings.

// LoadFromEnv overlays environment variables onto cfg.  Only variables
// that are present override the existing value.  This should be called
// BEFORE CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v, ok := os.LookupEnv("GOTARPIT_BIND"); ok {
		cfg.BindAddress = v
	}
	if v, ok := envInt("GOTARPIT_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := os.LookupEnv("GOTARPIT_FAMILY"); ok {
		cfg.Family = strings.ToLower(v)
	}
	if v, ok := envInt("GOTARPIT_MAX_CLIENTS"); ok {
		cfg.MaxClients = v
	}
	if v, ok := envInt("GOTARPIT_MAX_LINE_LENGTH"); ok {
		cfg.MaxLineLength = v
	}
	if v, ok := envInt("GOTARPIT_DELAY"); ok {
		cfg.DelayMin = millisDuration(v)
		cfg.DelayMax = cfg.DelayMin
	}
	if v, ok := envInt("GOTARPIT_DELAY_MAX"); ok {
		cfg.DelayMax = millisDuration(v)
	}
	if envBool("GOTARPIT_DISABLED") {
		cfg.Enabled = false
	}

	// Observability
	if v, ok := os.LookupEnv("GOTARPIT_HTTP"); ok {
		cfg.HTTPAddress = v
	}
	if v, ok := envDuration("GOTARPIT_STATS_INTERVAL"); ok {
		cfg.StatsInterval = v
	}
	if v, ok := os.LookupEnv("GOTARPIT_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("GOTARPIT_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func millisDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
