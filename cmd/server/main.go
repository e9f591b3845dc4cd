/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the statement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Seed built-in templates on an empty database
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: statements.db)
           Use ":memory:" for an in-memory database
  -seed    Seed the built-in corporate templates when none are stored
           (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/statements.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"github.com/warp/statement-engine/api"
	"github.com/warp/statement-engine/factory"
	"github.com/warp/statement-engine/store/sqlite"
	"github.com/warp/statement-engine/tax"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "statements.db", "SQLite database path")
	seed := flag.Bool("seed", true, "seed built-in templates when the database is empty")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed the built-in corporate template set on a fresh database
	if *seed {
		if err := seedTemplates(context.Background(), store); err != nil {
			log.Fatalf("Failed to seed templates: %v", err)
		}
	}

	// Initialize handler with the default tax strategy registry
	handler := api.NewHandler(store, tax.NewEngine())

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedTemplates stores the built-in corporate set when no templates
// exist yet. An already-populated database is left untouched.
func seedTemplates(ctx context.Context, store *sqlite.Store) error {
	infos, err := store.ListTemplates(ctx)
	if err != nil {
		return err
	}
	if len(infos) > 0 {
		return nil
	}

	for _, doc := range factory.Documents() {
		code, err := store.SaveTemplate(ctx, doc)
		if err != nil {
			return err
		}
		log.Printf("Seeded template %s", code)
	}
	return nil
}
