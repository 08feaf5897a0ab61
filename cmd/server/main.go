/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the finance ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire API handler with the applier, report engine, snapshot cache
  4. Start the outbox relay
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: ledger.db)
                   Use ":memory:" for an in-memory database
  -relay-interval  Outbox relay poll interval (default: 1s)

ENVIRONMENT:
  API_TOKEN / API_USER  Development bearer token mapping. A deployment
                        replaces StaticTokens with a real Authenticator.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the relay (final outbox drain)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: database implementation
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

	"github.com/joho/godotenv"

	"github.com/warp/finance-ledger/api"
	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/store/sqlite"
)

func main() {
	// .env is optional; flags and real env always win
	_ = godotenv.Load()

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	relayInterval := flag.Duration("relay-interval", time.Second, "outbox relay poll interval")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	handler := api.NewHandler(store, store)
	router := api.NewRouter(handler, devTokens())

	// The relay publishes committed transaction_created events. The log
	// publisher stands in for a real message broker.
	relay := ledger.NewRelay(store, ledger.PublisherFunc(func(_ context.Context, topic string, payload []byte) error {
		logger.Info("event published", "topic", topic, "payload", string(payload))
		return nil
	}), logger)
	relay.Interval = *relayInterval
	relay.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	relay.Stop()
	logger.Info("server stopped")
}

// devTokens builds the development token mapping from the environment.
func devTokens() api.StaticTokens {
	token := os.Getenv("API_TOKEN")
	if token == "" {
		token = "dev-token"
	}
	user := os.Getenv("API_USER")
	if user == "" {
		user = "dev-user"
	}
	return api.StaticTokens{token: ledger.UserID(user)}
}
