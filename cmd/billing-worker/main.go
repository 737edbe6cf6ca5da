// Command billing-worker materializes due instances of recurring bills on a
// cron schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbook/loan-engine/internal/config"
	"github.com/finbook/loan-engine/internal/store"
	"github.com/finbook/loan-engine/internal/worker"
	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	runOnce := flag.Bool("once", false, "process due bills once and exit instead of running on a schedule")
	flag.Parse()

	// Optional local overrides; absence of the file is not an error.
	_ = godotenv.Load()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		return
	}

	logger, err := conf.Logging.BuildLogger(*logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	warnings := conf.ValidateConfiguration()
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	if conf.Worker.DatabasePath == "" {
		logger.Fatal("worker database path is required",
			zap.String("op", "main"),
		)
	}

	billStore, err := store.Open(conf.Worker.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open bill database",
			zap.String("op", "main"),
			zap.String("path", conf.Worker.DatabasePath),
			zap.Error(err),
		)
	}
	defer func() {
		_ = billStore.Close()
	}()

	processor := worker.NewProcessor(billStore, logger, conf.Worker.Concurrency)
	run := func() {
		ctx := context.Background()
		if _, err := processor.ProcessDueBills(ctx, startOfToday()); err != nil {
			logger.Error("bill processing run failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}

	if *runOnce {
		run()
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.Worker.Schedule, run); err != nil {
		logger.Fatal("invalid worker schedule",
			zap.String("op", "main"),
			zap.String("schedule", conf.Worker.Schedule),
			zap.Error(err),
		)
	}

	logger.Info("starting recurring-bill worker",
		zap.String("op", "main"),
		zap.String("schedule", conf.Worker.Schedule),
		zap.Int("concurrency", conf.Worker.Concurrency),
	)
	scheduler.Start()

	// Catch up anything missed while the worker was down.
	run()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down",
		zap.String("op", "main"),
	)
	<-scheduler.Stop().Done()
}

// startOfToday truncates the current time to midnight UTC, the resolution
// the scheduler works at.
func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
