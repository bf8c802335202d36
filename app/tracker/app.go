package tracker

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/events"
	"github.com/lucaspere/picktracker/pkg/leaderboard"
	"github.com/lucaspere/picktracker/pkg/logging"
	"github.com/lucaspere/picktracker/pkg/notify"
	"github.com/lucaspere/picktracker/pkg/pricefeed"
	"github.com/lucaspere/picktracker/pkg/reconcile"
	"github.com/lucaspere/picktracker/pkg/redis"
	"github.com/lucaspere/picktracker/pkg/retry"
	"github.com/lucaspere/picktracker/pkg/store"
	"github.com/lucaspere/picktracker/pkg/telegram"
	"github.com/lucaspere/picktracker/pkg/utils"
)

// App owns the three long-running pieces of the tracker: the cron-driven
// reconciliation job, the pick.created listener with its follower fan-out,
// and the health endpoint server.
type App struct {
	Redis *redis.Client
	Store *store.Store
	Feed  *pricefeed.Client
	Board *leaderboard.Board

	Job      *reconcile.Job
	Fanout   *notify.Fanout
	Listener *events.Listener

	// Cron triggers reconciliation runs at CronSpec intervals.
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger

	// Server is the HTTP server that serves the health probes.
	Server *http.Server
}

// Initialize wires every dependency from the environment.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to redis", zap.Error(err))
	}

	pickStore, err := store.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to postgres", zap.Error(err))
	}

	messenger, err := telegram.NewFromEnv(logger)
	if err != nil {
		logger.Fatal("Unable to configure telegram", zap.Error(err))
	}

	feed := pricefeed.NewFromEnv(logger)
	lock := redis.NewLock(redisClient, logger)
	board := leaderboard.New(redisClient, pickStore, logger)
	fanout := notify.NewFanout(lock, pickStore, feed, messenger, logger)

	registry := events.NewRegistry()
	events.RegisterJSON(registry, events.ChannelPickCreated, fanout.HandlePickCreated)
	listener := events.NewListener(events.PostgresDialer(pickStore.Pool(), logger), registry, logger)

	job := reconcile.NewJob(reconcile.DefaultConfig(), pickStore, feed, lock, board, logger)

	app := &App{
		Redis:    redisClient,
		Store:    pickStore,
		Feed:     feed,
		Board:    board,
		Job:      job,
		Fanout:   fanout,
		Listener: listener,
		CronSpec: "@every " + utils.Env("RECONCILE_INTERVAL", "10m"),
		Logger:   logger,
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger, app.CronSpec); err != nil {
		return nil, err
	}

	return app, nil
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	timeout := utils.EnvDuration("RECONCILE_TIMEOUT", 150*time.Second)
	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded below the job lock TTL
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := a.Job.Run(rctx); err != nil {
			logger.Info("[tracker] reconcile error", "error", err)
		}
	})
	return err
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3004")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.Ready(req.Context()) {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// Ready reports whether both backing stores answer within the probe budget.
func (a *App) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Redis.Health(ctx); err != nil {
		return false
	}
	return a.Store.Health(ctx) == nil
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[tracker] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler and waits for in-flight runs.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// StartListener keeps the event listener alive until shutdown, redialing
// with backoff after transport loss.
func (a *App) StartListener(ctx context.Context) {
	go func() {
		for ctx.Err() == nil {
			err := retry.WithBackoff(ctx, retry.DefaultConfig(), a.Logger, "event listener", func() error {
				return a.Listener.Run(ctx)
			})
			if ctx.Err() != nil {
				return
			}
			a.Logger.Error("Event listener exhausted retries, restarting cycle", zap.Error(err))
		}
	}()
}

// ReconcileOnce is a convenience wrapper for a single job run.
func (a *App) ReconcileOnce(ctx context.Context) {
	_ = a.Job.Run(ctx)
}

// Start starts the application and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("[tracker] shutting down")
	a.StopCron()
	a.Store.Close()
	_ = a.Redis.Close()
	time.Sleep(200 * time.Millisecond)
}
