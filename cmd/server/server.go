package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paularlott/cli"
	"github.com/trustd/trustd/internal/access"
	"github.com/trustd/trustd/internal/api"
	"github.com/trustd/trustd/internal/audit"
	"github.com/trustd/trustd/internal/config"
	"github.com/trustd/trustd/internal/log"
	"github.com/trustd/trustd/internal/mcp"
	"github.com/trustd/trustd/internal/netseg"
	"github.com/trustd/trustd/internal/storage"
	"github.com/trustd/trustd/internal/trust"
	"github.com/trustd/trustd/internal/worker"
)

// ServerConfig holds the assembled services for running the server
type ServerConfig struct {
	Config      *config.Config
	Store       storage.Storage
	AuditWriter *audit.Writer
	Scheduler   *worker.Scheduler
	MCPServer   *mcp.Server
	APIHandler  *api.Handler
}

// RunServer starts the trustd server with the given configuration
func RunServer(cfg *ServerConfig) error {
	// Setup HTTP routes
	mux := http.NewServeMux()

	// API routes
	cfg.APIHandler.RegisterRoutes(mux)

	// MCP endpoint
	mux.HandleFunc("/mcp", cfg.MCPServer.GetHTTPHandler())

	// Apply middleware
	var handler http.Handler = mux
	if cfg.Config.IsAPIAuthEnabled() {
		handler = api.AuthMiddleware(cfg.Config.APIAuthToken, handler)
	}
	handler = api.SecurityHeadersMiddleware(handler)

	// Start server
	server := &http.Server{
		Addr:    cfg.Config.ListenAddr,
		Handler: handler,
	}

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down server...")
		server.Close()
	}()

	// Log startup info
	log.Info("Starting trustd server", "addr", cfg.Config.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.Config.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+cfg.Config.ListenAddr+"/mcp")
	if cfg.Config.IsAPIAuthEnabled() {
		log.Info("API authentication enabled")
	}
	cfg.MCPServer.LogStartup()

	// Start serving
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}

func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the trustd server",
		Description: "Start the HTTP server with the access decision API and MCP endpoint",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.FromCommand(cmd)

			log.Info("Configuration loaded", "data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr)

			// Initialize storage (SQLite only)
			store, err := storage.NewSQLiteStorage(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "backend", "SQLite", "path", cfg.DataDir)

			// Audit entries are written off the request path
			auditWriter := audit.NewWriter(store, 0)
			auditWriter.Start()
			defer func() {
				log.Info("Stopping audit writer...")
				auditWriter.Stop()
			}()

			// Build services
			trustService := trust.NewService(store, auditWriter)
			netsegService := netseg.NewService(store)
			evaluator := access.NewEvaluator(netsegService, nil, auditWriter)

			// Create API handler
			apiHandler := api.NewHandler(trustService, netsegService, evaluator, store)

			// Create MCP server
			mcpServer := mcp.NewServer(trustService, netsegService, evaluator, cfg.MCPAuthToken)

			// Background maintenance: inactive device sweep and session expiry
			scheduler := worker.NewScheduler(trustService, store)
			if err := scheduler.Start(cfg); err != nil {
				log.Error("Failed to start maintenance scheduler", "error", err)
				return err
			}
			defer scheduler.Stop()

			serverConfig := &ServerConfig{
				Config:      cfg,
				Store:       store,
				AuditWriter: auditWriter,
				Scheduler:   scheduler,
				MCPServer:   mcpServer,
				APIHandler:  apiHandler,
			}

			return RunServer(serverConfig)
		},
	}
}
