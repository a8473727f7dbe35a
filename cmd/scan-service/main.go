package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/scan-control/internal/config"
	"github.com/cuongbtq/scan-control/shared/logger"
)

var (
	cfg       *config.Config
	appLogger *logger.Logger

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Path to configuration file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initService

	migrateCmd.Flags().BoolVar(&flagMigrateStatus, "status", false, "print the schema version instead of migrating")
	reconCmd.Flags().StringSliceVar(&flagReconSubdomains, "subdomains", nil, "scan these subdomains instead of discovering them")
	reconCmd.Flags().BoolVar(&flagReconDiscoverOnly, "discover-only", false, "stop after discovery and validation")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:          "scan-service",
	Short:        "Scan orchestration service: jobs, schedules and the recon pipeline",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("scan-service: version info not available")
			return
		}
		fmt.Printf("scan-service: %s\n", info.Main.Version)
		fmt.Printf("go:           %s\n", info.GoVersion)
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				fmt.Printf("commit:       %s\n", s.Value)
			}
		}
	},
}

// initService loads .env, the config file and the logger. A missing config
// file is tolerated unless it was asked for explicitly; commands that need a
// database then fail validation.
func initService(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		// the configured logger does not exist yet
		logger.NewDefault().Info("No .env file found, using environment variables or flags")
	}

	configPath := config.ResolvePath(flagConfigFilePath)
	loaded, err := config.Load(configPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && flagConfigFilePath == "":
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	default:
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	if flagVerbose {
		cfg.Logging.Level = "debug"
	}

	appLogger, err = initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(appLogger.Logger)

	appLogger.Debug("Configuration loaded",
		slog.String("path", configPath),
		slog.String("command", cmd.Name()),
	)
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}
