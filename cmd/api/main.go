package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"cantontrack/internal/config"
	"cantontrack/internal/repository"
	"cantontrack/internal/router"
	"cantontrack/internal/util"
	"cantontrack/web"
)

func LoggerInitialize(cfg *config.Config) (*util.MetricsLogger, error) {

	metricsLogger := &util.MetricsLogger{}

	err := metricsLogger.Init(util.LoggerOptions{
		Dir:      cfg.Log.Dir,
		FileName: "webService.log",
		Level:    cfg.LogLevel(),
		Stderr:   cfg.Log.Stderr,
	})
	if err != nil {
		fmt.Println("Failed to initialize logger:", err)
		return nil, err
	}

	metricsLogger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: cantontrack API started \n", currentTime)

	return metricsLogger, nil

}

func main() {

	cfg, err := config.Load("api", os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := LoggerInitialize(cfg)
	if err != nil {
		fmt.Println("Error while initializing the logger..", err)
		os.Exit(1)
	}
	defer logger.DeInit()

	if err := util.CheckAndCreateLogFolder(cfg.StorageDir()); err != nil {
		log.Fatalf("Failed to create storage folder: %v", err)
	}

	metricStore, err := repository.New(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("Unknown storage type: %v", err)
	}

	if err := metricStore.Init(context.Background()); err != nil {
		log.Fatalf("Failed to initialize metric store: %v", err)
	}
	defer metricStore.Close()

	dashboard := web.Settings{
		PollInterval: cfg.Dashboard.PollInterval,
		HistoryLimit: cfg.Dashboard.HistoryLimit,
	}
	if err := router.Run(cfg.Listen, metricStore, logger, dashboard); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error -", err)
		log.Printf("Server stopped with error: %v", err)
	}
}
