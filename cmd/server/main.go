/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the seat pool reservation server.
	Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Parse command-line flags
 2. Load YAML configuration (defaults when no file given)
 3. Initialize SQLite store
 4. Seed the configured pool (idempotent ensure-exists)
 5. Configure HTTP router
 6. Start server with graceful shutdown

COMMAND-LINE FLAGS:

	-config  YAML config file path (optional; defaults apply without it)
	-port    HTTP server port override
	-db      SQLite database path override
	         Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (30s timeout)
	3. Close database connection
	4. Exit

EXAMPLES:

	# Run with file database
	./server -db="./data/seatpool.db"

	# Run with a config file
	./server -config="./seatpool.yaml"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration structure
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/seatpool/api"
	"github.com/warp/seatpool/config"
	"github.com/warp/seatpool/engine"
	"github.com/warp/seatpool/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// Configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed the pool. Idempotent: an existing pool keeps its state.
	ctx := context.Background()
	poolID := engine.PoolID(cfg.Pool.ID)
	if err := store.EnsurePool(ctx, poolID, cfg.Pool.Label, cfg.Pool.Capacity); err != nil {
		log.Fatalf("Failed to seed pool: %v", err)
	}

	// Engine and router
	eng := engine.New(store)
	router := api.NewRouter(api.NewHandler(eng, poolID))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("Pool %q seeded with capacity %d", cfg.Pool.ID, cfg.Pool.Capacity)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
