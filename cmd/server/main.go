/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the chore engine server: configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Open SQLite store (runs migrations)
  3. Wire the engine service and HTTP handler
  4. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db=./data/chores.db

  # Run with in-memory database on a different port
  ./server --db=":memory:" --port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/warp/chore-engine/api"
	"github.com/warp/chore-engine/chore"
	"github.com/warp/chore-engine/store/sqlite"
)

var cli struct {
	Port        int      `default:"8080" help:"HTTP server port."`
	DB          string   `default:"chores.db" help:"SQLite database path (\":memory:\" for in-memory)."`
	LogLevel    string   `default:"info" enum:"debug,info,warn,error" help:"Log level."`
	CORSOrigins []string `default:"http://localhost:5173" help:"Allowed CORS origins."`
	Parents     []string `help:"Person IDs with parental authority over every child."`
}

func main() {
	kong.Parse(&cli)

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "chore-engine",
	})
	level, err := log.ParseLevel(cli.LogLevel)
	if err == nil {
		logger.SetLevel(level)
	}

	store, err := sqlite.Open(cli.DB)
	if err != nil {
		logger.Fatal("failed to open database", "err", err)
	}
	defer store.Close()

	parents := make([]chore.PersonID, 0, len(cli.Parents))
	for _, p := range cli.Parents {
		parents = append(parents, chore.PersonID(p))
	}

	svc := chore.NewService(store, chore.CreatorOnly(parents...))
	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, logger, cli.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cli.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"db", cli.DB,
			"cors", strings.Join(cli.CORSOrigins, ","))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", "err", err)
	}

	logger.Info("server stopped")
}
