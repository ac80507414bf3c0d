package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/auth-gateway/internal/app"
	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/schema"
	"github.com/your-org/auth-gateway/pkg/logger"
)

var (
	// Version is set during build
	Version = "dev"
	// BuildTime is set during build
	BuildTime = "unknown"
	// GitCommit is set during build
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	schemaType := flag.String("schema", "", "Print a JSON schema (config|policies) and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("auth-gateway %s\n", Version)
		fmt.Printf("Build time: %s\n", BuildTime)
		fmt.Printf("Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	if *schemaType != "" {
		printSchema(*schemaType)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting auth-gateway",
		logger.String("version", Version),
		logger.String("commit", GitCommit),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(cfg, app.WithBuildInfo(app.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))
	if err != nil {
		logger.Fatal("failed to create application", logger.Err(err))
	}
	if err := application.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize application", logger.Err(err))
	}
	if err := application.Start(); err != nil {
		logger.Fatal("failed to start application", logger.Err(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", logger.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", logger.Err(err))
	}

	logger.Info("auth-gateway stopped")
}

func printSchema(name string) {
	st, ok := schema.ParseSchemaType(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown schema type: %s (available: config, policies)\n", name)
		os.Exit(1)
	}
	data, err := schema.NewGenerator().Generate(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
