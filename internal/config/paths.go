// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package config

import (
	"os"
	"path/filepath"
)

const appName = "reelpass"

// Dir returns the ReelPass config directory. It checks XDG_CONFIG_HOME
// first and falls back to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DiscoverFile returns Dir()/config.yaml when it exists, or "" so that Load
// runs on defaults, environment and flags alone.
func DiscoverFile() string {
	path := filepath.Join(Dir(), "config.yaml")
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
