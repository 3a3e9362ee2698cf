package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sameep-scrape/config"
	"github.com/sameep-scrape/logging"
	"github.com/sameep-scrape/pipeline"
	"github.com/sameep-scrape/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg       config.Config
	logger    *logrus.Logger
	logCloser io.Closer

	headless bool
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:     "sameep-scrape",
	Short:   "Collect and download SAMEEP utility statements",
	Version: server.Version,
	Long: `sameep-scrape logs into the SAMEEP customer portal, records every account,
supply point and statement in a checkpoint file (collect), then downloads the
statement PDFs listed in that checkpoint (fetch).

Credentials come from SAMEEP_USER and SAMEEP_PASS, read from the
environment or from .env.local / .env in the working directory.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run Chrome without a window (overrides SAMEEP_HEADLESS)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for checkpoint files (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// setup loads configuration and builds the logger before any subcommand
func setup(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
		if os.Getenv("ARTIFACT_DIR") == "" {
			cfg.ArtifactDir = filepath.Join(dataDir, "pdfs")
		}
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd == serviceCmd && cfg.LogFile == "" {
		// Services have no console, so log next to the executable
		if exe, err := os.Executable(); err == nil {
			cfg.LogFile = filepath.Join(filepath.Dir(exe), "logs", "sameep-scrape.log")
		}
	}

	logger, logCloser, err = logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.LogJSON,
	})
	return err
}

func newRunner() *pipeline.Runner {
	return &pipeline.Runner{Config: cfg, Logger: logger}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
