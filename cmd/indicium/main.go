package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/indicium/internal/app"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/pipeline"
	"github.com/ternarybob/indicium/internal/server"
)

var (
	configPath  = flag.String("config", "indicium.toml", "Configuration file path")
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	workerMode  = flag.Bool("worker", false, "Run the polling worker instead of the HTTP server")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return
	}

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *serverPort > 0 {
		config.Server.Port = *serverPort
	}
	if *serverHost != "" {
		config.Server.Host = *serverHost
	}

	logger := common.SetupLogger(config)
	defer common.StopLogging()

	common.PrintBanner(config, logger)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if *workerMode {
		runPollingWorker(application)
		return
	}
	runServer(application)
}

// runServer starts the HTTP server plus the queue worker pool
func runServer(application *app.App) {
	logger := application.Logger

	if err := application.WorkerPool.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start worker pool")
	}

	srv := server.New(application)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}
}

// runPollingWorker runs the broker-less worker mode: it polls document
// versions directly and needs no queue
func runPollingWorker(application *app.App) {
	worker := pipeline.NewPollingWorker(
		application.Orchestrator,
		application.StorageManager.VersionStorage(),
		application.Config.Queue.PollIntervalDuration(),
		application.Logger,
	)
	if err := worker.Run(context.Background()); err != nil && err != context.Canceled {
		application.Logger.Fatal().Err(err).Msg("Polling worker failed")
	}
}
