// Command cid periodically discovers and downloads the newest cloud-image
// files published by a configured set of upstream distribution sites.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(ctx)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
