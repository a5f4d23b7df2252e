/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the farm community simulator server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the record store (SQLite or in-memory)
  3. Create API handler with the built-in preset scenarios
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: farmsim.db)
           Use "memory" to skip SQLite entirely
  -log     Log level: debug, info, warn, error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/farmsim.db"

  # Run without persistence
  ./server -db=memory

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: persistent record store
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/farmsim/api"
	"github.com/warp/farmsim/sim"
	memstore "github.com/warp/farmsim/sim/store"
	"github.com/warp/farmsim/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "farmsim.db", `SQLite database path, or "memory"`)
	logLevel := flag.String("log", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	var recordStore sim.RecordStore
	if *dbPath == "memory" {
		recordStore = memstore.NewMemory()
	} else {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			logger.Error("failed to initialize database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		recordStore = db
	}

	handler := api.NewHandler(recordStore, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // synchronous Monte Carlo batches
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
