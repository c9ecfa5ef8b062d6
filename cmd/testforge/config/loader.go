// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global TestForgeConfig
	once   sync.Once
)

// Load ensures the config is loaded into the Global variable. The first
// run writes the default config to ~/.testforge/testforge.yaml.
func Load() error {
	var err error
	once.Do(func() {
		var path string
		path, err = defaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

// LoadFrom reads and parses a config file, creating it with defaults if
// it does not exist.
func LoadFrom(path string) (TestForgeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return TestForgeConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return TestForgeConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TestForgeConfig{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	return cfg, nil
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".testforge", "testforge.yaml"), nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
