// gotarpit - an SSH tarpit that wastes scanners' time with an endless
// trickle of banner garbage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gotarpit/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gotarpit: %v\n", err)
		os.Exit(1)
	}
}
