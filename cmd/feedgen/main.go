package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"botfeed/internal/bot"
	"botfeed/internal/config"
	"botfeed/internal/fx"
	"botfeed/internal/ledger"
	"botfeed/internal/model"
	"botfeed/internal/sched"
	"botfeed/internal/venue"
)

type record struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml")
	seed := flag.Int64("seed", 1, "seed for the simulation random source")
	duration := flag.Duration("duration", 10*time.Minute, "virtual time to simulate")
	start := flag.String("start", "2024-01-01T00:00:00Z", "virtual start time (RFC 3339)")
	out := flag.String("out", "", "output file, stdout when empty")
	boot := flag.Bool("boot", true, "include the boot sequence")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	logger := cfg.Logging.NewLogger(os.Stderr)

	if err := run(logger, cfg, *seed, *duration, *start, *out, *boot); err != nil {
		logger.Error("feedgen failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg config.Config, seed int64, duration time.Duration, start, out string, boot bool) error {
	startAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return fmt.Errorf("parse start time: %w", err)
	}
	venues, err := venue.NewRegistry(cfg.Venues)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)

	var writeErr error
	write := func(kind string, data any) {
		if writeErr != nil {
			return
		}
		writeErr = enc.Encode(record{Kind: kind, Data: data})
	}

	rng := rand.New(rand.NewSource(seed))
	clock := sched.New(startAt)
	pools := ledger.NewGenerator(logger, cfg.Ledger, clock.Now)
	bots := bot.NewEngine(logger, bot.Options{
		Clock:      clock,
		Venues:     venues,
		Rand:       rand.New(rand.NewSource(rng.Int63())),
		CapitalUSD: cfg.Bots.CapitalUSD,
	})
	desks := fx.NewEngine(logger, fx.Options{
		Clock:  clock,
		Venues: venues,
		Rand:   rand.New(rand.NewSource(rng.Int63())),
		Ledger: pools,
	})
	bots.OnLog(func(entry model.LogEntry) { write("log", entry) })
	desks.OnLog(func(entry model.LogEntry) { write("log", entry) })
	desks.OnPoolTransaction(func(tx model.PoolTransaction) { write("pool", tx) })

	if boot {
		bots.EmitBootSequence()
		desks.EmitBootSequence()
	}
	bots.Start(bot.StartOptions{IDs: cfg.Bots.Enabled, Instruments: cfg.Bots.Instruments, Venues: cfg.Bots.Venues})
	desks.Start(fx.StartOptions{IDs: cfg.FX.Enabled, Instruments: cfg.FX.Pairs, Venues: cfg.FX.Venues})

	fired := clock.Advance(duration)
	bots.Stop()
	desks.Stop()
	if dropped := clock.CancelAll(); dropped > 0 {
		logger.Warn("Dropped pending timers", "count", dropped)
	}

	if writeErr != nil {
		return fmt.Errorf("write record: %w", writeErr)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	logger.Info("Feed generated", "events", fired, "duration", duration, "seed", seed)
	return nil
}
