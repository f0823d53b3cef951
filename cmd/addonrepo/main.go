package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pirakansa/addonrepo/internal/cli/commands"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, Version)
	stop()
	os.Exit(code)
}
