package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cantontrack/internal/config"
	"cantontrack/internal/ingest"
	"cantontrack/internal/repository"
	"cantontrack/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	var setup bool
	cfg, err := config.Load("ingest", os.Args[1:], func(fs *flag.FlagSet) {
		fs.BoolVar(&setup, "setup", false, "Create the series for every upstream key without writing samples")
	})
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	logger := &util.MetricsLogger{}
	err = logger.Init(util.LoggerOptions{
		Dir:      cfg.Log.Dir,
		FileName: "ingest.log",
		Level:    cfg.LogLevel(),
		Stderr:   true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		return 1
	}
	defer logger.DeInit()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := util.CheckAndCreateLogFolder(cfg.StorageDir()); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to create storage folder -", err)
		return 1
	}

	store, err := repository.New(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Unknown storage type -", err)
		return 1
	}
	if err := store.Init(ctx); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to initialize metric store -", err)
		return 1
	}
	defer store.Close()

	source := ingest.NewHTTPSource(cfg.Source.URL, cfg.Source.Timeout)
	job := ingest.NewJob(source, store, logger, ingest.WithPrecision(cfg.Ingest.Precision))

	if setup {
		res, err := job.Setup(ctx)
		if err != nil {
			logger.LogEvent(util.LOG_LEVEL_ERROR, "Setup failed -", err)
			return 1
		}
		logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Series ensured: %d, failed: %d, skipped: %d", res.Ensured, res.Failed, res.Skipped))
		if res.Failed > 0 {
			return 1
		}
		return 0
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Fetching", source.URL())
	if _, err := job.Run(ctx); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Ingestion failed -", err)
		return 1
	}
	return 0
}
