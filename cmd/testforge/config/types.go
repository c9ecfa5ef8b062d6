// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

// TestForgeConfig is the on-disk tool configuration.
type TestForgeConfig struct {
	// LLM: which chat completion backend generates and fixes tests
	LLM LLMConfig `yaml:"llm"`

	// Maven: build tool invocation settings
	Maven MavenConfig `yaml:"maven"`

	// Pipeline: retry and watcher behavior
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logging: level and destination
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: OpenTelemetry exporter selection
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LLMConfig struct {
	Model   string `yaml:"model"`    // e.g. gpt-4o-mini
	BaseURL string `yaml:"base_url"` // empty for the hosted API, or e.g. http://localhost:11434/v1

	// RequestsPerSecond throttles bulk generation. Zero disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type MavenConfig struct {
	Binary         string `yaml:"binary"`          // e.g. mvn
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per invocation
}

type PipelineConfig struct {
	MaxRetries   int  `yaml:"max_retries"`
	WatchSources bool `yaml:"watch_sources"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // empty disables file logging
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	// Enabled turns on span and metric export. Instrumentation itself is
	// always compiled in; without providers it is a no-op.
	Enabled        bool   `yaml:"enabled"`
	TraceExporter  string `yaml:"trace_exporter"`  // stdout or none
	MetricExporter string `yaml:"metric_exporter"` // stdout or none
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() TestForgeConfig {
	return TestForgeConfig{
		LLM: LLMConfig{
			Model:             "gpt-4o-mini",
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Maven: MavenConfig{
			Binary:         "mvn",
			TimeoutSeconds: 300,
		},
		Pipeline: PipelineConfig{
			MaxRetries:   3,
			WatchSources: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.testforge/logs",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "stdout",
			MetricExporter: "stdout",
		},
	}
}
