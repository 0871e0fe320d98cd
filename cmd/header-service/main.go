// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/headerservice/lib/bus"
	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/config"
	"github.com/bureau-foundation/headerservice/lib/process"
	"github.com/bureau-foundation/headerservice/lib/version"
)

func main() {
	process.Exit(run())
}

func run() error {
	var (
		configPath string
		replayPath string
		logFormat  string
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("header-service", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&replayPath, "replay", "", "replay a JSONC script of samples onto the transport")
	flagSet.StringVar(&logFormat, "log-format", "", "override logging.format (json or text)")
	flagSet.StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flagSet.Bool("version", false, "print version information and exit")

	// Handle --version before flag parsing to match the other binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("header-service %s\n", version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		fmt.Printf("header-service %s\n", version.Info())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	var script *bus.Script
	if replayPath != "" {
		if script, err = bus.ReadScript(replayPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(cfg, clock.Real(), logger)
	if err != nil {
		return err
	}
	defer svc.close()

	logger.Info("starting header service",
		"version", version.Info(),
		"generator", cfg.Instrument.Name,
		"camera", cfg.Instrument.Camera,
		"output_directory", cfg.Output.Directory,
	)
	return svc.run(ctx, script)
}
