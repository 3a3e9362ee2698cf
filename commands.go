package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sameep-scrape/checkpoint"
	"github.com/sameep-scrape/report"
	"github.com/sameep-scrape/retry"
	"github.com/sameep-scrape/server"
	"github.com/sameep-scrape/service"
	"github.com/sameep-scrape/updater"
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Phase 1: walk every account and write a checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		run, path, err := newRunner().Collect(cmd.Context())
		if run != nil && path != "" {
			report.Collection(cmd.OutOrStdout(), run, path)
		}
		return err
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [checkpoint]",
	Short: "Phase 2: download the pending statements of a checkpoint",
	Long: `Downloads every statement the checkpoint marks as available and not yet
stored. Without an argument the most recent checkpoint in the data directory
is used. Running fetch again on the same checkpoint downloads nothing new.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		run, rep, _, err := newRunner().Fetch(cmd.Context(), path)
		if run != nil {
			report.Fetch(cmd.OutOrStdout(), rep)
		}
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run collect and then fetch on the new checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner := newRunner()

		run, path, err := runner.Collect(ctx)
		if path == "" {
			return err
		}
		report.Collection(cmd.OutOrStdout(), run, path)
		if err != nil {
			// Partial checkpoints are still fetched
			logger.Warnf("Collection incomplete: %v", err)
		}

		if err := retry.Sleep(ctx, cfg.Tunables.PhasePause.Duration); err != nil {
			return err
		}

		fetched, rep, _, fetchErr := runner.Fetch(ctx, path)
		if fetched != nil {
			report.Fetch(cmd.OutOrStdout(), rep)
		}
		return errors.Join(err, fetchErr)
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [checkpoint]",
	Short: "Print the progress recorded in a checkpoint",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			latest, err := checkpoint.Latest(cfg.DataDir, cfg.CheckpointPrefix)
			if err != nil {
				return err
			}
			path = latest
		}

		run, drift, err := checkpoint.Load(path)
		if err != nil {
			return err
		}
		if drift != nil {
			logger.Warnf("Stored counters did not match the records: %v", drift)
		}
		report.Checkpoint(cmd.OutOrStdout(), path, run)
		return nil
	},
}

var serviceCmd = &cobra.Command{
	Use:       "service <" + strings.Join(service.Commands, "|") + ">",
	Short:     "Manage the background fetch service",
	Long:      "The service runs fetch on the latest checkpoint on a schedule and serves gRPC health.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: service.Commands,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := cfg.Tunables
		prg := &service.Program{
			Runner:         newRunner(),
			Logger:         logger,
			Interval:       t.ScheduleInterval.Duration,
			GRPCPort:       t.GRPCPort,
			Version:        server.Version,
			AutoUpdate:     t.AutoUpdate,
			UpdateRepo:     t.UpdateRepo,
			UpdateInterval: t.UpdateInterval.Duration,
		}
		return service.RunServiceCommand(args[0], prg, logger)
	},
}

var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Replace this binary with the latest GitHub release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ucfg, err := updater.NewConfig(cfg.Tunables.UpdateRepo, server.Version, 0)
		if err != nil {
			return err
		}
		updated, err := updater.New(ucfg, logger).CheckAndUpdate(cmd.Context())
		if err != nil {
			return err
		}
		if !updated {
			fmt.Fprintf(cmd.OutOrStdout(), "sameep-scrape %s is up to date\n", server.Version)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// No configuration needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sameep-scrape", server.Version)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd, fetchCmd, runCmd, summaryCmd, serviceCmd, selfUpdateCmd, versionCmd)
}
