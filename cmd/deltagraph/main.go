// Package main provides the deltagraph CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/deltagraph/pkg/auth"
	"github.com/orneryd/deltagraph/pkg/benchmark"
	"github.com/orneryd/deltagraph/pkg/config"
	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deltagraph",
		Short: "deltagraph - delta-matrix graph store with a Neo4j-compatible HTTP query surface",
		Long: `deltagraph is a graph store built on delta matrices: a committed
adjacency matrix per label/relation type, overlaid with pending-addition
and pending-deletion matrices so writers never disturb a reader's frozen
view.

It exposes a Neo4j-HTTP-API-compatible transaction endpoint over a minimal
path-pattern subset of Cypher; the binary Bolt protocol is not implemented.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deltagraph v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deltagraph HTTP server",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("http-port", 7474, "HTTP API port")
	serveCmd.Flags().String("http-address", "0.0.0.0", "HTTP API bind address")
	serveCmd.Flags().String("data-dir", "./data", "Data directory")
	serveCmd.Flags().Bool("no-auth", false, "Disable authentication")
	serveCmd.Flags().String("admin-password", "", "Admin password (defaults to config/env-derived value)")
	serveCmd.Flags().String("config", "", "Path to a deltagraph.yaml config file (defaults to <data-dir>/deltagraph.yaml if present)")
	rootCmd.AddCommand(serveCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new deltagraph data directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(initCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the delta-multiply vs standard-multiply benchmark",
		RunE:  runBench,
	}
	benchCmd.Flags().Int("dims", 0, "Matrix dimensions (0 = use benchmark default)")
	benchCmd.Flags().Int("f-rows", 0, "Frontier row count (0 = use benchmark default)")
	benchCmd.Flags().Int("runs", 0, "Number of runs to average (0 = use benchmark default)")
	benchCmd.Flags().String("output", "summary", "Output format: summary, compact, json")
	benchCmd.Flags().String("save", "", "Save the report as JSON to this path")
	rootCmd.AddCommand(benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	httpPort, _ := cmd.Flags().GetInt("http-port")
	httpAddress, _ := cmd.Flags().GetString("http-address")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	noAuth, _ := cmd.Flags().GetBool("no-auth")
	adminPassword, _ := cmd.Flags().GetString("admin-password")
	configPath, _ := cmd.Flags().GetString("config")

	cfg := config.LoadFromEnv()

	if configPath == "" {
		configPath = filepath.Join(dataDir, "deltagraph.yaml")
	}
	if _, err := os.Stat(configPath); err == nil {
		if err := cfg.ApplyFile(configPath); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
		fmt.Printf("Loaded config file: %s\n", configPath)
	}

	cfg.Server.HTTPPort = httpPort
	cfg.Server.HTTPAddress = httpAddress
	cfg.Graph.DataDir = dataDir
	if noAuth {
		cfg.Auth.Enabled = false
	}
	if adminPassword != "" {
		cfg.Auth.InitialPassword = adminPassword
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Runtime.Apply()

	fmt.Printf("Starting deltagraph v%s\n", version)
	fmt.Printf("  Data directory: %s\n", cfg.Graph.DataDir)
	fmt.Printf("  HTTP API:       http://%s:%d\n", cfg.Server.HTTPAddress, cfg.Server.HTTPPort)
	fmt.Println()

	if err := os.MkdirAll(cfg.Graph.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store := graphstore.New()

	var authenticator *auth.Authenticator
	if cfg.Auth.Enabled {
		authConfig := auth.DefaultAuthConfig()
		authConfig.SecurityEnabled = true
		authConfig.JWTSecret = []byte(cfg.Auth.JWTSecret)
		authConfig.TokenExpiry = cfg.Auth.TokenExpiry
		authConfig.MinPasswordLength = cfg.Auth.MinPasswordLength

		var err error
		authenticator, err = auth.NewAuthenticator(authConfig)
		if err != nil {
			return fmt.Errorf("creating authenticator: %w", err)
		}
		if _, err := authenticator.CreateUser(cfg.Auth.InitialUsername, cfg.Auth.InitialPassword, []auth.Role{auth.RoleAdmin}); err != nil {
			fmt.Printf("  admin user: %v\n", err)
		} else {
			fmt.Printf("  Admin user created (%s)\n", cfg.Auth.InitialUsername)
		}
	} else {
		fmt.Println("  Authentication disabled")
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Address = cfg.Server.HTTPAddress
	serverConfig.Port = cfg.Server.HTTPPort
	serverConfig.QueryCacheSize = cfg.Graph.QueryCacheSize
	serverConfig.QueryCacheTTL = cfg.Graph.QueryCacheTTL

	httpServer, err := server.New(store, authenticator, serverConfig)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Println()
	fmt.Println("deltagraph is ready.")
	fmt.Printf("  Health:      http://%s:%d/health\n", cfg.Server.HTTPAddress, cfg.Server.HTTPPort)
	fmt.Printf("  Transaction: POST http://%s:%d/db/neo4j/tx/commit\n", cfg.Server.HTTPAddress, cfg.Server.HTTPPort)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("Initializing deltagraph data directory in %s\n", dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	configPath := filepath.Join(dataDir, "deltagraph.yaml")
	cfg := config.LoadFromEnv()
	cfg.Graph.DataDir = "./data"
	configContent, err := cfg.ExportYAML()
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	if err := os.WriteFile(configPath, configContent, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Database directory initialized successfully")
	fmt.Printf("  Config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next step: deltagraph serve --data-dir", dataDir)

	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	dims, _ := cmd.Flags().GetInt("dims")
	fRows, _ := cmd.Flags().GetInt("f-rows")
	runs, _ := cmd.Flags().GetInt("runs")
	output, _ := cmd.Flags().GetString("output")
	savePath, _ := cmd.Flags().GetString("save")

	cfg := benchmark.DefaultConfig()
	if dims > 0 {
		cfg.Dims = dims
		cfg.Density = 1.0 / float64(dims)
		cfg.PlusDensity = 0.00001 / float64(dims)
		cfg.MinusDensity = 0.00001 / float64(dims)
	}
	if fRows > 0 {
		cfg.FRows = fRows
	}
	if runs > 0 {
		cfg.Runs = runs
	}

	report, err := benchmark.Run(cfg)
	if err != nil {
		return fmt.Errorf("running benchmark: %w", err)
	}

	reporter := benchmark.NewReporter(os.Stdout)
	switch output {
	case "compact":
		reporter.PrintCompact(report)
	case "json":
		if err := reporter.PrintJSON(report); err != nil {
			return err
		}
	default:
		reporter.PrintSummary(report)
	}

	if savePath != "" {
		if err := reporter.SaveJSON(report, savePath); err != nil {
			return fmt.Errorf("saving report: %w", err)
		}
		fmt.Printf("Report saved to %s\n", savePath)
	}

	if !report.AllOutputsEqual {
		os.Exit(1)
	}
	return nil
}
