package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lecture-chat/cli/config"
	"github.com/lecture-chat/cli/internal/api"
	"github.com/lecture-chat/cli/internal/db"
	"github.com/lecture-chat/cli/internal/queue"
	"github.com/lecture-chat/cli/internal/tui"
)

const version = "1.0.0"

func main() {
	var (
		configFlag  = flag.String("config", "", "Path to config file")
		migrateFlag = flag.Bool("migrate", false, "Run database migrations")
		serveFlag   = flag.Bool("serve", false, "Run the HTTP API")
		workerFlag  = flag.Bool("worker", false, "Consume processing jobs from the queue")
	)
	flag.Bool("tui", true, "Run the terminal UI (default)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateFlag {
		if err := runMigrations(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations completed successfully")
		return
	}

	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.ProcessedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	logger := newLogger(cfg)
	c, err := build(ctx, cfg, logger, *workerFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}
	defer c.close()

	switch {
	case *workerFlag:
		err = runWorker(ctx, c)
	case *serveFlag:
		err = runServer(ctx, c)
	default:
		err = runTUI(ctx, c)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		c.close()
		os.Exit(1)
	}
}

// runMigrations creates the database schema
func runMigrations(ctx context.Context, cfg *config.Config) error {
	database, err := db.New(ctx, cfg.Database.ConnectionString)
	if err != nil {
		return err
	}
	defer database.Close()
	return database.Migrate(ctx, cfg.VectorIndex.Dimension)
}

// recoverInline fails attempts a previous in-process run left behind; only the
// inline mode owns every attempt, queue workers may still be running theirs
func recoverInline(ctx context.Context, c *components) {
	if c.cfg.Queue.Kind != "inline" {
		return
	}
	n, err := c.controller.RecoverInterrupted(ctx)
	if err != nil {
		c.logger.Error("failed to recover interrupted attempts", "error", err)
		return
	}
	if n > 0 {
		c.logger.Info("recovered interrupted attempts", "count", n)
	}
}

func runServer(ctx context.Context, c *components) error {
	recoverInline(ctx, c)
	go c.controller.RunReaper(ctx, c.cfg.Processing.ReapInterval)

	srv := api.NewServer(api.Deps{
		Videos:    c.videos,
		Processor: c.controller,
		Answerer:  c.answerer,
		Chunks:    c.artifacts,
		Prober:    c.ffmpeg,
		Checks:    c.healthChecks(),
	}, api.Options{
		UploadDir: c.cfg.Paths.UploadDir,
		APIKey:    c.cfg.Server.APIKey,
		Version:   version,
	}, c.logger.With("component", "api"))

	httpServer := &http.Server{
		Addr:              c.cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
	case <-ctx.Done():
	}

	c.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("http shutdown", "error", err)
	}
	return c.controller.Shutdown(shutdownCtx)
}

func runWorker(ctx context.Context, c *components) error {
	var source queue.Source
	switch c.cfg.Queue.Kind {
	case "redis":
		source = c.redis
	case "pgnotify":
		l, err := queue.ListenJobs(c.cfg.Database.ConnectionString, db.JobChannel, c.logger)
		if err != nil {
			return err
		}
		defer l.Close()
		source = l
	default:
		return fmt.Errorf("worker mode needs queue.kind redis or pgnotify")
	}

	go c.controller.RunReaper(ctx, c.cfg.Processing.ReapInterval)
	w := queue.NewWorker(source, c.controller, int64(c.cfg.Processing.MaxConcurrent), c.logger.With("component", "worker"))
	return w.Run(ctx)
}

func runTUI(ctx context.Context, c *components) error {
	recoverInline(ctx, c)
	if err := tui.Run(ctx, tuiBackend{c: c}); err != nil {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.controller.Shutdown(shutdownCtx)
}
