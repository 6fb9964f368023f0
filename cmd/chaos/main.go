// cmd/chaos/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eternalflame/internal/chaos"
	"eternalflame/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	duration := flag.Duration("duration", 10*time.Second, "observation window per experiment")
	interval := flag.Duration("interval", time.Second, "sampling interval")
	pause := flag.Duration("pause", 2*time.Second, "pause between experiments")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 2
	}
	logger := config.SetupLogger(cfg)

	dir, err := os.MkdirTemp("", "eternalflame-chaos-")
	if err != nil {
		logger.Error().Err(err).Msg("create drill directory")
		return 2
	}
	defer os.RemoveAll(dir)

	drill, err := chaos.NewDrill(dir, logger)
	if err != nil {
		logger.Error().Err(err).Msg("build drill environment")
		return 2
	}
	defer drill.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := chaos.NewEngine(logger)
	if !engine.GameDay(ctx, "resilience drill", drill.Experiments(*duration, *interval), *pause) {
		logger.Error().Msg("at least one hypothesis was violated")
		return 1
	}
	return 0
}
