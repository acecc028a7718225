package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/api"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/config"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/monitor"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/resolver"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/service"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/stats"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/storage"
)

func main() {
	// 1. Parse command-line arguments
	configFile := flag.String("c", "", "Path to the config file (JSON); defaults apply when omitted")
	listenAddr := flag.String("l", "", "HTTP listen address (overrides config)")
	logLevel := flag.String("L", "", "Log level (error, warn, info, debug; overrides config)")
	flag.Parse()

	// 2. Load configuration
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			logger.NewLogger("info").Errorf("Failed to load configuration: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// 3. Initialize logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Infof("Starting sponsor-skip daemon...")
	log.Infof("Log level set to: %s", cfg.LogLevel)

	// 4. Open persistent store
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Errorf("Failed to open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	// 5. Wire the background context
	lookupClient := resolver.NewClient(cfg.LookupBaseURL, cfg.UserAgent, logger.Component(log, "lookup"))
	segResolver := resolver.New(lookupClient, cfg.CacheTTL, logger.Component(log, "resolver"))
	recorder := stats.NewRecorder(store, logger.Component(log, "stats"))

	msgBus := bus.New(logger.Component(log, "bus"))
	backend := service.New(logger.Component(log, "service"), store, segResolver, recorder, msgBus)
	if err := backend.Init(); err != nil {
		log.Errorf("Failed to initialize persisted state: %v", err)
		os.Exit(1)
	}
	msgBus.Start()

	// 6. Wire the foreground monitor manager
	monitorMgr := monitor.NewManager(msgBus, logger.Component(log, "monitor"), monitor.Options{
		PollInterval:     cfg.PollInterval,
		SkipEpsilon:      cfg.SkipEpsilon,
		NavCheckInterval: cfg.NavCheckInterval,
		AttachAttempts:   cfg.AttachAttempts,
		AttachInterval:   cfg.AttachInterval,
	})
	monitorMgr.Start()

	// 7. Set up and run the HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.New(msgBus, monitorMgr, logger.Component(log, "api")),
	}

	go func() {
		log.Infof("Server starting on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", cfg.ListenAddr, err)
			os.Exit(1)
		}
	}()

	// Listen for shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Infof("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}

	monitorMgr.Stop()
	msgBus.Stop()

	log.Infof("Server exited gracefully")
}
