// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ava-labs/avalanche-consensus/app"
	"github.com/ava-labs/avalanche-consensus/config"
	"github.com/ava-labs/avalanche-consensus/simulator"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
	"github.com/ava-labs/avalanche-consensus/version"
)

var errExitCode = errors.New("simulation exited with non-zero code")

func main() {
	fs := config.BuildFlagSet()
	rootCmd := &cobra.Command{
		Use:   "snowsim",
		Short: "Simulates a network of Snowman consensus instances until every instance finalizes",
		// Flags are parsed by viper so that config files and the environment
		// are merged in.
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := config.BuildViper(fs, args)
			if errors.Is(err, pflag.ErrHelp) {
				return nil
			}
			if err != nil {
				return err
			}

			simConfig, err := config.GetConfig(v)
			if err != nil {
				return err
			}
			return run(simConfig)
		},
	}
	rootCmd.Flags().AddFlagSet(fs)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version details",
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(os.Stdout, version.String(version.GitCommit))
			return nil
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "snowsim failed: %v\n", err)
		os.Exit(app.ExitCodeFailure)
	}
}

func run(simConfig simulator.Config) error {
	logFactory := logging.NewFactory(simConfig.LoggingConfig)
	defer logFactory.Close()

	log, err := logFactory.Make("simulator")
	if err != nil {
		return fmt.Errorf("couldn't initialize log: %w", err)
	}

	log.Info("starting simulation",
		zap.String("version", version.String(version.GitCommit)),
		zap.Reflect("config", simConfig),
	)

	sim, err := simulator.New(simConfig, log, os.Stdout)
	if err != nil {
		return fmt.Errorf("couldn't initialize simulator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if exitCode := app.Run(ctx, sim); exitCode != app.ExitCodeSuccess {
		return fmt.Errorf("%w: %d", errExitCode, exitCode)
	}
	return nil
}
