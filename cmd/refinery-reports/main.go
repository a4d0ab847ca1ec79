package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"refinery-reports/httpapi"
	"refinery-reports/reports"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	var configPath string
	var addr string
	var dbPath string
	var debug bool
	var archiveCache string
	var simulate bool
	var watchID uint
	var serverURL string
	var pollInterval time.Duration
	var userID string

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.StringVar(&addr, "addr", ":8080", "HTTP listen address.")
	flag.StringVar(&dbPath, "db", "refinery.db", "SQLite database path.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flag.StringVar(&archiveCache, "archive-cache", "", "Blob bucket URL for finished archives (mem://, file:///path).")
	flag.BoolVar(&simulate, "simulate", true, "Advance downloads with the built-in simulator.")
	flag.UintVar(&watchID, "watch", 0, "Watch the progress of this download id on -server-url instead of serving.")
	flag.StringVar(&serverURL, "server-url", "http://localhost:8080", "Service base URL used by -watch.")
	flag.DurationVar(&pollInterval, "poll-interval", time.Second, "Polling interval used by -watch.")
	flag.StringVar(&userID, "user", "anonymous", "User id attached to download requests and error reports.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	// Base config: defaults, then file, then environment, then CLI overrides.
	cfg := reports.DefaultConfig()
	if configPath != "" {
		fileCfg, err := reports.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = *fileCfg
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("load env: %v", err)
	}
	if visited["addr"] {
		cfg.Addr = addr
	}
	if visited["db"] {
		cfg.DB = dbPath
	}
	if visited["debug"] {
		cfg.Debug = debug
	}
	if visited["archive-cache"] {
		cfg.ArchiveCacheURL = archiveCache
	}
	if visited["simulate"] {
		cfg.Simulator.Enabled = simulate
	}
	if visited["server-url"] {
		cfg.ServerURL = serverURL
	}
	if visited["poll-interval"] {
		cfg.PollInterval = pollInterval
	}
	if visited["user"] {
		cfg.UserID = userID
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchID != 0 {
		if err := watch(ctx, cfg, watchID, logger); err != nil {
			log.Fatalf("watch: %v", err)
		}
		return
	}
	if err := serve(ctx, cfg, logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func serve(ctx context.Context, cfg reports.FileConfig, logger *log.Logger) error {
	store, err := reports.OpenStore(cfg.DB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	cache, err := reports.OpenArchiveCache(ctx, cfg.ArchiveCacheURL)
	if err != nil {
		return err
	}
	defer cache.Close()

	metrics := reports.NewMetrics("refinery")
	service, err := reports.NewService(reports.ServiceConfig{
		TotalFiles: cfg.AssumedTotalFiles,
		Debug:      cfg.Debug,
	}, store, cache, metrics, logger)
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(service, metrics, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.Chain(handler, logger, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("API server started on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Simulator.Enabled {
		sim, err := reports.NewSimulator(cfg.Simulator, store, reports.LogNotifier{Logger: logger}, metrics, logger, cfg.Debug)
		if err != nil {
			return err
		}
		g.Go(func() error { return sim.Run(gctx) })
	}

	err = g.Wait()
	logger.Println("Server exited")
	return err
}

func watch(ctx context.Context, cfg reports.FileConfig, id uint, logger *log.Logger) error {
	client, err := httpapi.NewClient(httpapi.ClientOptions{
		BaseURL: cfg.ServerURL,
		UserID:  cfg.UserID,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	poller := reports.NewPoller(client, reports.PollerOptions{
		Interval:   cfg.PollInterval,
		TotalFiles: cfg.AssumedTotalFiles,
		Errors:     client,
	})

	task := poller.Start(ctx, id)
	defer task.Stop()

	var last reports.ProgressUpdate
	for u := range task.Updates() {
		last = u
		if u.Err != nil {
			fmt.Fprintf(os.Stderr, "download %d: %v\n", id, u.Err)
			continue
		}
		fmt.Printf("download %d: %-22s %3d%% files=%d errors=%d\n", id, u.Status, u.Percent, u.FileCount, u.ErrorCount)
	}
	if ctx.Err() == nil && last.ErrorCount > 0 {
		fmt.Fprintf(os.Stderr, "download %d finished with %d errors\n", id, last.ErrorCount)
	}
	return nil
}
