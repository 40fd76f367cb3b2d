// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for pastel.
//
// TOML, JSON and YAML files are supported, with defaults, .env files,
// environment variable overrides and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (highest precedence first):
//   - Environment variables (PASTEL_*), including values from .env files
//   - ~/.pastel/config.toml
//   - ~/.pastel/config.json
//   - ~/.pastel/config.yaml
//   - Built-in defaults
//
// The directory can be moved with PASTEL_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // defaults are still returned for load errors
//	}
//	fmt.Println(cfg.Backend.BaseURL)
//
// Thread-safe global access:
//
//	cfg := config.Global()
package config
