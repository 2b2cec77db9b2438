package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"squash/internal/console"
	"squash/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil && !services.IsCancelled(err) {
		printer := console.NewPrinter(os.Stdout, os.Stderr, console.ShouldColorize(os.Stderr))
		printer.Writeln(console.SeverityError, err.Error())
	}
	os.Exit(services.ExitCode(err))
}
