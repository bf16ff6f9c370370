package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldbook/internal/config"
	"github.com/aretw0/fieldbook/internal/platform"
)

var (
	verbose    bool
	configPath string
	kindName   string

	cfg       *config.Config
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fieldbook",
	Short: "Offline-first case records for field workers",
	Long: `Fieldbook keeps child and enquiry records on the device and
reconciles them with the central server when connectivity allows.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(configPath)
		if err != nil {
			fatal("Failed to load config", err)
		}
		if err := loaded.Validate(); err != nil {
			fatal("Invalid config", err)
		}
		cfg = loaded

		level, err := platform.ParseLevel(cfg.Log.Level)
		if err != nil {
			fatal("Invalid config", err)
		}
		if verbose {
			level = slog.LevelDebug
		}

		logger, closer := platform.NewLogger(level, os.Stderr, platform.LogFile{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
		logCloser = closer
		slog.SetDefault(logger)
		if cfg.File != "" {
			logger.Debug("config loaded", "file", cfg.File)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to fieldbook.yaml")
	rootCmd.PersistentFlags().StringVarP(&kindName, "kind", "k", "child", "Record kind (child, enquiry)")
}
