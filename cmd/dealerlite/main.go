package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/dealerlite/internal/config"
	"github.com/a3tai/dealerlite/internal/mcp"
	"github.com/a3tai/dealerlite/internal/paperwork"
	"github.com/a3tai/dealerlite/internal/pdf/template"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol in stdio mode
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// newServer prepares templates and wires the paperwork service into the MCP server
func newServer(cfg *config.Config) (*mcp.Server, error) {
	registry, err := template.NewRegistry(cfg.TemplateDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to open template directory: %w", err)
	}
	created, err := registry.Ensure()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare templates: %w", err)
	}
	for _, path := range created {
		log.Printf("Created template %s", path)
	}

	service, err := paperwork.NewService(registry, cfg.OutputDirectory, cfg.MaxPayloadSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create paperwork service: %w", err)
	}

	return mcp.NewServer(cfg, service)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, server *mcp.Server) {
	// The parent process controls our lifecycle in stdio mode
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	server, err := newServer(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("DealerLite\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
