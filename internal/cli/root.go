package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nhp/config"
	"nhp/internal/logger"
)

var (
	cfgFile     string
	cfg         *config.Config
	rootDir     string
	logLevel    string
	logJSON     bool
	logSource   bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "nhp",
	Short: "NHP ingredient classifier - classify natural health product ingredients against monographs",
	Long: `nhp builds a knowledge base from regulatory monograph PDFs and classifies the
medicinal ingredients declared on product labels into regulatory classes 1, 2 or 3,
grounding every decision in the retrieved monograph text.

The knowledge base is stored in .nhp/knowledge.db within the working directory.

Example usage:
  nhp ingest ./monographs                 # Build the knowledge base
  nhp analyze label.pdf                   # Classify a product label
  nhp analyze ./labels/*.pdf --out r.json # Write reports to a file
  nhp status                              # Show knowledge base status`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := config.LoadEnv(rootDir); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Flags win over the config file
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-json") {
			cfg.Logging.JSON = logJSON
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.Addr = metricsAddr
		}

		logCfg := logger.DefaultConfig()
		logCfg.Level = logger.LogLevel(cfg.Logging.Level)
		logCfg.JSON = cfg.Logging.JSON
		logCfg.AddSource = logSource
		cmd.SetContext(logger.ContextWithLogger(cmd.Context(), logger.NewLogger(logCfg)))

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./nhp.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&logSource, "log-source", false, "include source locations in logs")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
