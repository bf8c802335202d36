package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/lucaspere/picktracker/app/tracker"
	"github.com/lucaspere/picktracker/pkg/utils"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := tracker.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Immediate pass before cron, opt-in
	if utils.Env("RECONCILE_ON_BOOT", "false") == "true" {
		app.ReconcileOnce(ctx)
	}

	// Start the event listener and cron scheduler
	app.StartListener(ctx)
	app.StartCron()

	// Setup server
	app.SetupServer()

	// Start server
	app.Start(ctx)
}
