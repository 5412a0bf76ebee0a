package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"botfeed/internal/bot"
	"botfeed/internal/config"
	"botfeed/internal/console"
	"botfeed/internal/database"
	"botfeed/internal/fx"
	"botfeed/internal/ledger"
	"botfeed/internal/sched"
	"botfeed/internal/venue"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("botfeed exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	venues, err := venue.NewRegistry(cfg.Venues)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	logger.Info("Venues loaded", "venues", venues.Names())

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	clock := sched.New(time.Now())
	pools := ledger.NewGenerator(logger.With("component", "ledger"), cfg.Ledger, clock.Now)

	bots := bot.NewEngine(logger.With("component", "bot"), bot.Options{
		Clock:      clock,
		Venues:     venues,
		Rand:       rand.New(rand.NewSource(rng.Int63())),
		CapitalUSD: cfg.Bots.CapitalUSD,
	})
	desks := fx.NewEngine(logger.With("component", "fx"), fx.Options{
		Clock:  clock,
		Venues: venues,
		Rand:   rand.New(rand.NewSource(rng.Int63())),
		Ledger: pools,
	})

	srv := console.NewServer(logger.With("component", "console"), cfg.Server, bots, desks, pools)
	bots.OnLog(srv.PublishLog)
	desks.OnLog(srv.PublishLog)
	desks.OnPoolTransaction(srv.PublishPoolTransaction)

	var wg sync.WaitGroup
	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			return err
		}

		journal := database.NewJournal(logger.With("component", "journal"), repo, cfg.Database.BufferSize)
		bots.OnLog(journal.RecordEntry)
		desks.OnLog(journal.RecordEntry)
		desks.OnPoolTransaction(journal.RecordTransaction)

		wg.Add(1)
		go func() {
			defer wg.Done()
			journal.Run(ctx)
		}()
		logger.Info("Journal enabled", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	}

	if cfg.Simulation.BootOnStart {
		bots.EmitBootSequence()
		desks.EmitBootSequence()
	}
	bots.Start(bot.StartOptions{
		IDs:         cfg.Bots.Enabled,
		Instruments: cfg.Bots.Instruments,
		Venues:      cfg.Bots.Venues,
	})
	desks.Start(fx.StartOptions{
		IDs:         cfg.FX.Enabled,
		Instruments: cfg.FX.Pairs,
		Venues:      cfg.FX.Venues,
	})
	logger.Info("Simulation started", "seed", seed, "tick", cfg.Simulation.Tick())

	wg.Add(1)
	go func() {
		defer wg.Done()
		clock.Run(ctx, cfg.Simulation.Tick())
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Console listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("console server: %w", err)
	}

	bots.Stop()
	desks.Stop()
	if dropped := clock.CancelAll(); dropped > 0 {
		logger.Warn("Dropped pending timers", "count", dropped)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Console shutdown failed", "error", err)
	}

	cancel()
	wg.Wait()
	return runErr
}
