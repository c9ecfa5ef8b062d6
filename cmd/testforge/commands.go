// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/testforgelabs/testforge/cmd/testforge/config"
	"github.com/testforgelabs/testforge/pkg/logging"
	"github.com/testforgelabs/testforge/pkg/telemetry"
)

var (
	logger            *logging.Logger
	telemetryShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "testforge",
	Short: "Automated JUnit test generation for Java Maven projects",
	Long: `TestForge analyzes a Java Maven project, generates JUnit 5 test
classes with an LLM, reviews them, and validates them against the real
build until they pass or the retry budget runs out.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		logger = logging.New(logging.Config{
			Level:   logging.Level(config.Global.Logging.Level),
			LogDir:  config.Global.Logging.Dir,
			Service: "testforge",
			JSON:    config.Global.Logging.JSON,
		})

		if config.Global.Telemetry.Enabled {
			tcfg := telemetry.DefaultConfig()
			if v := config.Global.Telemetry.TraceExporter; v != "" {
				tcfg.TraceExporter = v
			}
			if v := config.Global.Telemetry.MetricExporter; v != "" {
				tcfg.MetricExporter = v
			}
			shutdown, terr := telemetry.Init(tcfg)
			if terr != nil {
				logger.Warn("telemetry disabled", "error", terr)
			} else {
				telemetryShutdown = shutdown
			}
		}
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if telemetryShutdown != nil {
			_ = telemetryShutdown(context.Background())
		}
		if logger != nil {
			_ = logger.Close()
		}
	}

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(stateCmd)
}
