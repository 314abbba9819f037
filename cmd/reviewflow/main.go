// Package main is the entry point for the ReviewFlow application.
// ReviewFlow is an AI-powered code review webhook service.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/consts"
	"github.com/reviewflow/reviewflow/internal/ai"
	"github.com/reviewflow/reviewflow/internal/api/router"
	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/configfiles"
	"github.com/reviewflow/reviewflow/internal/database"
	"github.com/reviewflow/reviewflow/internal/engine"
	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/internal/queue"
	"github.com/reviewflow/reviewflow/internal/reviewer"
	"github.com/reviewflow/reviewflow/internal/server"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/internal/tasks"
	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/idgen"
	"github.com/reviewflow/reviewflow/pkg/logger"
	"github.com/reviewflow/reviewflow/pkg/telemetry"

	// Import AI provider implementations to register them
	_ "github.com/reviewflow/reviewflow/internal/ai/providers"

	// Import git platform implementations to register them
	_ "github.com/reviewflow/reviewflow/internal/git/platforms"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// configPath holds the path to the configuration file
var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reviewflow",
	Short: "ReviewFlow - AI-Powered Code Review Webhook Service",
	Long: `ReviewFlow is a code review webhook service that turns push and pull
request events into prioritized review tasks and analyzes the changes
with pluggable AI providers.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ReviewFlow server",
	Long: `Start the HTTP server to handle API requests and webhook triggers.

The server reads its configuration from config/config.yaml by default;
use --config to point at a different file.`,
	Run: runServe,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ReviewFlow %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	// Disable auto-generated completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: config/config.yaml)")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	// Serve command flags
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe starts the ReviewFlow server
func runServe(cmd *cobra.Command, args []string) {
	// Record server start time
	consts.SetStartedAt(time.Now())

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override config with command line flags
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}

	// Auto-generate JWT secret if empty; it only lives for this session
	if cfg.Admin != nil && cfg.Admin.Enabled && strings.TrimSpace(cfg.Admin.JWTSecret) == "" {
		cfg.Admin.JWTSecret = idgen.NewSecureSecret(32)
		fmt.Fprintf(os.Stderr, "[WARNING] Admin jwt_secret is empty, generated one for this session.\n")
		fmt.Fprintf(os.Stderr, "Add jwt_secret to your config file to keep tokens valid across restarts.\n\n")
	}

	// Validate admin configuration
	if validationErr := config.ValidateAdminConfig(cfg.Admin); validationErr != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] Admin configuration validation failed\n")
		fmt.Fprintf(os.Stderr, "Error Code: %s\n", validationErr.Code)
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", validationErr)

		// Print context-specific configuration hints based on error type
		switch validationErr.Code {
		case errors.ErrCodeJWTSecretInvalid:
			fmt.Fprintf(os.Stderr, "JWT secret is invalid or too short.\n")
			fmt.Fprintf(os.Stderr, "Please configure JWT secret in your config file:\n")
			fmt.Fprintf(os.Stderr, "  admin:\n")
			fmt.Fprintf(os.Stderr, "    jwt_secret: \"%s\"\n\n", idgen.NewSecureSecret(32))
		case errors.ErrCodeAdminCredentialsEmpty:
			fmt.Fprintf(os.Stderr, "Please configure admin username in your config file:\n")
			fmt.Fprintf(os.Stderr, "  admin:\n")
			fmt.Fprintf(os.Stderr, "    username: \"admin\"\n\n")
		default:
			fmt.Fprintf(os.Stderr, "Please check admin configuration in your config file.\n\n")
		}

		os.Exit(errors.ExitCodeConfigValidation)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize task log database (separate from main database)
	if err := database.InitTaskLogDB(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARNING] Failed to initialize task log database: %v\n", err)
		// Continue without task logging - not fatal
	} else {
		defer database.CloseTaskLogDB()

		// Create TaskLogStore and set up the logger hook for dual-write mode
		taskLogStore := store.NewTaskLogStore(database.GetTaskLogDB())
		logger.SetTaskLogHook(taskLogStore)
		defer logger.CloseTaskLogHook()

		// Start task log cleanup service (runs daily at 2 AM)
		cleanup := store.NewTaskLogCleanupService(taskLogStore, store.DefaultTaskLogRetentionDays)
		if err := cleanup.Start(); err != nil {
			logger.Warn("Failed to start task log cleanup service", zap.Error(err))
			// Continue without cleanup - not fatal
		} else {
			defer cleanup.Stop()
		}
	}

	logger.Info("Starting ReviewFlow",
		zap.String("version", Version),
	)

	// Initialize telemetry (OpenTelemetry traces and metrics)
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()
	metrics := telemetry.GetMetrics()

	// Database is already initialized in loadConfig
	// Just ensure cleanup on exit
	defer database.Close()

	// Create store instance for dependency injection
	dataStore := store.NewStore(database.Get())

	// Create the priority queue
	taskQueue, err := queue.New(cfg.Queue, metrics)
	if err != nil {
		logger.Fatal("Failed to create task queue", zap.Error(err))
	}
	defer taskQueue.Close()

	// Create git platform clients from configuration
	clients, err := platform.NewFactory(cfg.Git)
	if err != nil {
		logger.Fatal("Failed to create git platform clients", zap.Error(err))
	}

	// Create AI providers from configuration
	aiFactory, err := ai.NewFactory(cfg.AI)
	if err != nil {
		logger.Fatal("Failed to create AI providers", zap.Error(err))
	}

	// Wire the review pipeline
	assembler := reviewer.NewAssembler(clients, cfg.Review)
	orchestrator := reviewer.NewOrchestrator(assembler, aiFactory, dataStore.Template(), dataStore.Record(), metrics)
	taskService := tasks.NewService(dataStore, taskQueue, cfg.Task)

	// Create the worker pool and its supporting services
	retryService := engine.NewRetryService(dataStore.Task(), taskQueue, metrics)
	pool := engine.NewPool(taskQueue, dataStore.Task(), orchestrator, retryService, cfg.Task)

	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	pool.Start(poolCtx)
	defer pool.Stop()

	// Start the stranded-task reconciliation sweep
	reconciler := engine.NewReconciler(dataStore.Task(), taskQueue, cfg.Recovery)
	if err := reconciler.Start(); err != nil {
		logger.Fatal("Failed to start task reconciler", zap.Error(err))
	}
	defer reconciler.Stop()

	// Create and configure server
	srv := server.New(cfg, router.Deps{
		Store:   dataStore,
		Queue:   taskQueue,
		Tasks:   taskService,
		Clients: clients,
	})
	srv.SetupRoutes()

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("ReviewFlow server is running",
		zap.String("address", cfg.Server.Address()),
	)

	// Log access URLs for user convenience
	port := cfg.Server.Port
	logger.Info(fmt.Sprintf("  Local:   http://localhost:%d/admin", port))
	if lanIP := getLocalIP(); lanIP != "" {
		logger.Info(fmt.Sprintf("  Network: http://%s:%d/admin", lanIP, port))
	}

	// Wait for shutdown
	srv.WaitForShutdown()

	logger.Info("ReviewFlow stopped")
}

// DefaultConfigPath is the config file location used when --config is not set.
const DefaultConfigPath = "config/config.yaml"

// loadConfig loads configuration and initializes the main database
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if configPath != "" {
			return nil, fmt.Errorf("configuration not found: %s", path)
		}
		// First run: materialize the embedded example at the default
		// location so operators have something concrete to edit
		if err := configfiles.WriteConfigExample(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "[INFO] Created default config at %s, edit it to configure git platforms and AI providers\n\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize database early so defaults (prompt templates) are seeded
	// before anything resolves them
	if err := database.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cfg, nil
}

// getLocalIP returns the first non-loopback IPv4 address
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
