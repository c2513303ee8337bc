// Package cmd wires up the CLI flags and runs the tarpit daemon.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"

	"gotarpit/config"
	"gotarpit/internal/engine"
	"gotarpit/internal/events"
	"gotarpit/internal/registry"
	"gotarpit/internal/stats"
	"gotarpit/internal/web"
	"gotarpit/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gotarpit/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// cliOptions are the flags that steer Execute itself rather than the
// daemon's configuration.
type cliOptions struct {
	dryRun      bool
	showVersion bool
	showHelp    bool
	fs          *flag.FlagSet
}

// Execute parses args, builds the configuration, and runs the daemon
// until ctx is cancelled or a fatal error occurs.
func Execute(ctx context.Context, args []string) error {
	cfg, opts, err := buildConfig(args)
	if err != nil {
		return err
	}

	if opts.showHelp {
		printUsage(opts.fs)
		return nil
	}
	if opts.showVersion {
		fmt.Printf("gotarpit %s\n", version)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.dryRun {
		fmt.Printf("configuration ok: tarpit on %s, max %d clients, %v pacing\n",
			cfg.Addr(), cfg.MaxClients, cfg.DelayMin)
		return nil
	}

	logger := util.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return runDaemon(ctx, cfg, args, logger)
}

// buildConfig resolves the full precedence chain: defaults, then .env,
// then environment variables, then CLI flags. Reload runs it again so
// every layer is re-read.
func buildConfig(args []string) (*config.Config, *cliOptions, error) {
	cfg := config.Default()
	if err := config.LoadDotenv(); err != nil {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}
	config.LoadFromEnv(cfg)

	opts := &cliOptions{}
	fs := flag.NewFlagSet("gotarpit", flag.ContinueOnError)

	// ── listener ─────────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on")
	fs.StringVar(&cfg.BindAddress, "bind", cfg.BindAddress, "Address to bind (default: wildcard)")
	var use4, use6 bool
	fs.BoolVarP(&use4, "ipv4", "4", false, "Listen on IPv4 only")
	fs.BoolVarP(&use6, "ipv6", "6", false, "Listen on IPv6 only")

	// ── tarpit ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.MaxClients, "max-clients", "m", cfg.MaxClients, "Maximum concurrently trapped clients")
	var delayMS, delayMaxMS int
	fs.IntVarP(&delayMS, "delay", "d", int(cfg.DelayMin/time.Millisecond), "Milliseconds between banner lines")
	fs.IntVar(&delayMaxMS, "delay-max", int(cfg.DelayMax/time.Millisecond), "Upper pacing bound in ms (0: same as --delay)")
	fs.IntVarP(&cfg.MaxLineLength, "max-line-length", "l", cfg.MaxLineLength, "Maximum banner line length (3-255)")
	disabled := !cfg.Enabled
	fs.BoolVar(&disabled, "disabled", disabled, "Keep listening but turn every client away")

	// ── observability ────────────────────────────────────────────
	fs.StringVar(&cfg.HTTPAddress, "http", cfg.HTTPAddress, "Serve the HTTP API on host:port (empty: off)")
	fs.DurationVar(&cfg.StatsInterval, "stats-interval", cfg.StatsInterval, "Cadence of the TOTALS log (0: off)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json, or auto")

	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")
	fs.Usage = func() { printUsage(fs) }
	opts.fs = fs

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if use4 && use6 {
		return nil, nil, fmt.Errorf("-4 and -6 are mutually exclusive")
	}
	if use4 {
		cfg.Family = util.FamilyIPv4
	}
	if use6 {
		cfg.Family = util.FamilyIPv6
	}

	// A bare --delay narrows the window to a fixed beat; --delay-max
	// widens it again, with 0 meaning "same as --delay".
	if fs.Changed("delay") {
		cfg.DelayMin = time.Duration(delayMS) * time.Millisecond
		if !fs.Changed("delay-max") {
			cfg.DelayMax = cfg.DelayMin
		}
	}
	if fs.Changed("delay-max") {
		if delayMaxMS > 0 {
			cfg.DelayMax = time.Duration(delayMaxMS) * time.Millisecond
		} else {
			cfg.DelayMax = cfg.DelayMin
		}
	}
	cfg.Enabled = !disabled

	return cfg, opts, nil
}

// runDaemon builds the component graph and supervises it until ctx is
// cancelled or a component fails.
func runDaemon(ctx context.Context, cfg *config.Config, args []string, logger *slog.Logger) error {
	collector := stats.New()
	bus := events.NewBroadcaster(events.DefaultBuffer)
	defer bus.Close()

	store := config.NewStore(cfg)
	reg := registry.New(cfg.MaxClients, cfg.Enabled, collector, bus, logger)
	eng := engine.New(store, reg, collector, bus, logger)
	reporter := stats.NewReporter(collector, logger, cfg.StatsInterval, reg.LiveDuration)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Control signals: reload and on-demand totals. Termination is the
	// caller's NotifyContext.
	if len(runtimeSignals) > 0 {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, runtimeSignals...)
		defer signal.Stop(sigCh)
		go func() {
			for sig := range sigCh {
				switch {
				case isReload(sig):
					logger.Info("reload requested", "signal", sig.String())
					next, _, err := buildConfig(args)
					if err != nil {
						logger.Error("reload failed, keeping previous configuration", "error", err)
						continue
					}
					if err := eng.Reload(next); err != nil {
						logger.Error("reload rejected, keeping previous configuration", "error", err)
					}
				case isDump(sig):
					reporter.DumpTotals()
				}
			}
		}()
	}

	engErr := make(chan error, 1)
	go func() { engErr <- eng.Run(runCtx) }()

	repDone := make(chan struct{})
	go func() {
		defer close(repDone)
		reporter.Run(runCtx)
	}()

	var webSrv *web.Server
	webErr := make(chan error, 1)
	if cfg.HTTPAddress != "" {
		webSrv = web.NewServer(cfg.HTTPAddress, store, reg, collector, bus, logger)
		go func() { webErr <- webSrv.Run(runCtx) }()
	}

	var runErr error
	var engExited, webExited bool
	select {
	case runErr = <-engErr:
		engExited = true
	case runErr = <-webErr:
		webExited = true
	case <-runCtx.Done():
	}
	cancel()

	eng.Shutdown()
	if !engExited {
		if err := <-engErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	if webSrv != nil && !webExited {
		if err := <-webErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	<-repDone

	reporter.DumpTotals()
	logger.Info("goodbye")
	return runErr
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `gotarpit – an SSH tarpit v%s

Accepts connections on an SSH port and, instead of speaking SSH, holds
every client captive by trickling an endless stream of banner garbage.

Usage:
  gotarpit [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  GOTARPIT_PORT, GOTARPIT_BIND, GOTARPIT_MAX_CLIENTS, GOTARPIT_DELAY,
  GOTARPIT_HTTP, ... mirror the flags; a .env file is read if present.
  Precedence: flags, then environment, then .env, then defaults.

Signals:
  SIGHUP   reload configuration     SIGUSR1  log totals now

Examples:
  gotarpit                                    Tarpit on port 2222
  gotarpit -p 22 -d 10000                     Classic setup on port 22
  gotarpit -m 128 --http 127.0.0.1:3000       Small pit with the HTTP API
  GOTARPIT_LOG_FORMAT=json gotarpit -4        IPv4 only, JSON logs
`)
}
