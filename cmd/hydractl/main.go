// hydractl provisions projects and jobsets on a Hydra CI server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hydractl/internal/apperrors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}
