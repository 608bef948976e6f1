package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"push-demo-backend/config"
	"push-demo-backend/internal/api"
	"push-demo-backend/internal/notification"
	"push-demo-backend/internal/store"
	"push-demo-backend/internal/trivia"
	"push-demo-backend/internal/vapid"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "pushd ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Printf("could not load .env file: %v", err)
	}

	flagset := flag.NewFlagSet("pushd", flag.ExitOnError)
	var (
		flConfigPath   = flagset.String("config-path", "./config/config.yaml", "path to the YAML configuration file")
		flGenerateKeys = flagset.Bool("generate-vapid-keys", false, "print a fresh VAPID key pair and exit")
		overrides      = config.RegisterFlags(flagset)
	)
	if err := ff.Parse(flagset, os.Args[1:], ff.WithEnvVars()); err != nil {
		logger.Fatalf("parsing flags: %v", err)
	}

	if *flGenerateKeys {
		keys, err := vapid.GenerateKeys()
		if err != nil {
			logger.Fatalf("%v", err)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", keys.PublicKey, keys.PrivateKey)
		return
	}

	// Load configuration
	cfg, err := config.Load(*flConfigPath, overrides)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Printf("no configuration file at %s, using defaults and environment", *flConfigPath)
		cfg = config.FromOverrides(overrides)
	case err != nil:
		logger.Fatalf("failed to load configuration from %s: %v", *flConfigPath, err)
	default:
		logger.Printf("configuration loaded successfully from %s", *flConfigPath)
	}

	identity, err := vapid.New(cfg.Push.Subject, cfg.Push.PublicKey, cfg.Push.PrivateKey)
	if err != nil {
		logger.Fatalf("invalid VAPID configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open %s subscription store: %v", cfg.Storage.Backend, err)
	}
	defer appStore.Close()
	logger.Printf("%s subscription store initialized", cfg.Storage.Backend)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatcher := notification.NewDispatcher(
		appStore,
		notification.NewEncoder(identity, cfg.Push.Topic, cfg.Push.RecordSize),
		notification.NewHTTPTransport(cfg.Dispatch.Timeout),
		notification.NewMetrics(registry),
		notification.Options{
			Concurrency: cfg.Dispatch.Concurrency,
			Timeout:     cfg.Dispatch.Timeout,
			TTL:         cfg.Push.TTL,
			Urgency:     cfg.Push.Urgency,
		},
	)
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, dispatcher)

	triviaSvc, err := trivia.NewService(cfg.Schedule, appStore, dispatcher)
	if err != nil {
		logger.Fatalf("failed to configure trivia schedule: %v", err)
	}

	router := api.NewRouter(
		api.NewHandler(appStore, identity, workerPool, cfg.Server.IsProduction()),
		cfg.Server,
		registry,
	)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	g.Add(func() error {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP server Shutdown: %v", err)
		}
	})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	g.Add(func() error {
		return workerPool.Run(workerCtx)
	}, func(error) {
		stopWorkers()
	})

	scheduleCtx, stopSchedule := context.WithCancel(ctx)
	g.Add(func() error {
		triviaSvc.Run(scheduleCtx)
		<-scheduleCtx.Done()
		return nil
	}, func(error) {
		stopSchedule()
	})

	if err := g.Run(); err != nil {
		logger.Printf("stopping services: %v", err)
	}
	logger.Println("Server gracefully stopped")
}
