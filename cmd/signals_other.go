//go:build !unix

package cmd

import "os"

// Reload and totals-on-demand are POSIX signal conveniences; on other
// platforms the daemon only reacts to interruption.
var runtimeSignals []os.Signal //nolint:gochecknoglobals

func isReload(os.Signal) bool { return false }

func isDump(os.Signal) bool { return false }
