// cmd/novabypass/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/config"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/server"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/pkg/api"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "resolve":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Error: URL required\n")
			fmt.Fprintf(os.Stderr, "Usage: novabypass resolve <url>\n")
			os.Exit(1)
		}
		runResolve(os.Args[2])

	case "serve":
		runServe()

	case "validate":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Error: config file required\n")
			fmt.Fprintf(os.Stderr, "Usage: novabypass validate <config.yaml>\n")
			os.Exit(1)
		}
		validateConfig(os.Args[2])

	case "sites":
		runSites()

	case "version", "--version", "-v":
		printVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(os.Getenv("NOVABYPASS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newService(ctx context.Context, cfg *config.Config) *api.Service {
	service, err := api.NewService(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: service startup failed: %v\n", err)
		os.Exit(1)
	}
	return service
}

// runResolve performs one resolution and prints the result as JSON.
func runResolve(url string) {
	cfg := loadConfig()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	service := newService(ctx, cfg)
	defer service.Close(context.Background())

	result := service.Resolve(ctx, url)

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))

	if !result.Success {
		os.Exit(2)
	}
}

// runServe starts the HTTP service and blocks until interrupted.
func runServe() {
	cfg := loadConfig()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	service := newService(ctx, cfg)
	defer service.Close(context.Background())

	srv := server.New(service, cfg.HTTP.MetricsPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.HTTP.ListenAddress)
	}()

	select {
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: shutdown failed: %v\n", err)
		os.Exit(1)
	}
}

// validateConfig loads and validates a configuration file.
func validateConfig(configFile string) {
	if _, err := config.Load(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Configuration file '%s' is valid\n", configFile)
}

// runSites lists the supported-sites registry.
func runSites() {
	cfg := loadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	service := newService(ctx, cfg)
	defer service.Close(context.Background())

	sites, err := service.Sites().ActiveSites(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(sites) == 0 {
		fmt.Println("No supported sites recorded yet.")
		return
	}
	for _, site := range sites {
		fmt.Printf("%-40s bypasses: %d\n", site.Domain, site.BypassCount)
	}
}

// printUsage displays help information
func printUsage() {
	fmt.Println("NovaBypass - Adaptive Link Resolution Service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  novabypass resolve <url>            Resolve one shortened/gated URL")
	fmt.Println("  novabypass serve                    Run the HTTP service")
	fmt.Println("  novabypass validate <config.yaml>   Validate a configuration file")
	fmt.Println("  novabypass sites                    List supported sites")
	fmt.Println("  novabypass version                  Show version information")
	fmt.Println("  novabypass help                     Show this help message")
	fmt.Println()
	fmt.Println("Configuration is read from $NOVABYPASS_CONFIG (YAML), overridden")
	fmt.Println("by environment variables; a .env file is loaded when present.")
}

// printVersion displays version information
func printVersion() {
	fmt.Printf("NovaBypass %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
}
