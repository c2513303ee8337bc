//go:build unix

package cmd

import (
	"os"
	"syscall"
)

// runtimeSignals are the control signals the daemon listens for while
// running. Termination (SIGINT/SIGTERM) is handled by main's
// NotifyContext, not here.
var runtimeSignals = []os.Signal{syscall.SIGHUP, syscall.SIGUSR1} //nolint:gochecknoglobals

// isReload reports whether sig asks for a configuration reload.
func isReload(sig os.Signal) bool { return sig == syscall.SIGHUP }

// isDump reports whether sig asks for an immediate TOTALS log.
func isDump(sig os.Signal) bool { return sig == syscall.SIGUSR1 }
