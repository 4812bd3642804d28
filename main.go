package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/codetesla51/redis-cleanup/config"
	"github.com/codetesla51/redis-cleanup/logger"
	"github.com/codetesla51/redis-cleanup/maintenance"
	"github.com/codetesla51/redis-cleanup/metrics"
	"github.com/codetesla51/redis-cleanup/store"
)

const pushTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := config.Parse(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrUsage) {
			return 2
		}
		return 1
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Writer:     stderr,
	}); err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize logger: %v\n", err)
		return 1
	}

	log := logger.WithComponent(cfg.Command)
	log.Info().Msg("starting redis cleanup")

	st, err := store.Open(ctx, cfg.RedisURL, store.WithScanCount(cfg.Cleanup.ScanCount))
	if err != nil {
		fail(log, cfg, stderr, err)
		return 1
	}
	defer st.Close()
	log.Info().Msg("acquired connection")

	recorder := metrics.NewRecorder()
	err = execute(ctx, cfg, st, maintenance.NewLogReporter(log), recorder)
	pushMetrics(log, cfg, recorder)

	if err != nil {
		fail(log, cfg, stderr, err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, cfg *config.Config, s store.Store, rep maintenance.Reporter, rec maintenance.Recorder) error {
	var throttle maintenance.Throttle
	if cfg.Throttle.Rate > 0 {
		throttle = maintenance.NewTokenBucket(cfg.Throttle.Rate, cfg.Throttle.Burst)
	}

	switch cfg.Command {
	case config.CommandCleanup:
		_, err := maintenance.NewCleaner(s, rep, rec).WithThrottle(throttle).Run(ctx, maintenance.CleanupOptions{
			Pattern: cfg.Cleanup.Pattern,
			MaxTTL:  cfg.Cleanup.MaxTTL,
			Commit:  cfg.Cleanup.Commit,
			Exclude: maintenance.ManagedNamespace(cfg.Cleanup.ManagedPrefixes...),
		})
		return err
	case config.CommandSeed:
		_, err := maintenance.NewSeeder(s, rep, rec).WithThrottle(throttle).Run(ctx, maintenance.SeedOptions{
			Prefix:    cfg.Seed.Prefix,
			NumKeys:   int(cfg.Seed.NumKeys),
			Threshold: cfg.Seed.Threshold,
			TTL:       cfg.Seed.TTL(),
		})
		return err
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

// pushMetrics is best effort: a failed push never changes the exit code.
func pushMetrics(log zerolog.Logger, cfg *config.Config, rec *metrics.Recorder) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := rec.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		log.Warn().Err(err).Msg("metrics push failed")
		return
	}
	log.Debug().Str("job", cfg.Metrics.Job).Msg("metrics pushed")
}

// fail logs err and, when logs go to a file, also prints it so the
// operator sees why the run stopped.
func fail(log zerolog.Logger, cfg *config.Config, stderr io.Writer, err error) {
	log.Error().Err(err).Msgf("%s failed", cfg.Command)
	if cfg.Logging.Output != "" {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
}
