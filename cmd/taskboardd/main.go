// Command taskboardd is the taskboard server daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/internal/version"
	"github.com/GoCodeAlone/taskboard/server"
	"github.com/GoCodeAlone/taskboard/store"
)

var (
	configPath = flag.String("config", "", "path to YAML config file (optional)")
	envFile    = flag.String("env", ".env", "path to .env file (ignored if missing)")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.LoadEnv(*envFile); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("starting taskboardd",
		"version", version.Version,
		"commit", version.Commit,
		"store", cfg.Store.Driver,
	)

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := store.Open(openCtx, cfg.Store)
	cancelOpen()
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close() //nolint:errcheck

	srv, err := server.New(*cfg, version.Version, st, logger)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("Taskboard server running on %s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s (%s)\n", version.Version, version.Commit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}
