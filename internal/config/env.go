// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the environment are never replaced.
func LoadDotEnv() {
	var files []string
	if _, err := os.Stat(".env"); err == nil {
		files = append(files, ".env")
	}
	if dir, err := ConfigDir(); err == nil {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return
	}
	// A malformed .env is not fatal; the values simply stay unset.
	_ = godotenv.Load(files...)
}

// ApplyEnvOverrides applies PASTEL_* environment variables on top of the
// loaded configuration.
//
// Supported variables:
//   - PASTEL_BASE_URL: backend.base_url
//   - PASTEL_API_PREFIX: backend.api_prefix
//   - PASTEL_ENDPOINT: default_endpoint
//   - PASTEL_USER_NAME: user_name
//   - PASTEL_TENANT_ID, PASTEL_CLIENT_ID, PASTEL_CLIENT_SECRET: identity.*
//   - PASTEL_AZURE_TOKEN, PASTEL_M365_TOKEN: static identity tokens
//   - PASTEL_SESSION_TOKEN, PASTEL_EMAIL, PASTEL_MACHINE_NAME: pastel.*
//   - PASTEL_CACHE_PASSPHRASE: token_cache.passphrase
//   - PASTEL_TOKEN_CACHE: token_cache.enabled ("0"/"false" disables)
//   - PASTEL_LOG_LEVEL, PASTEL_LOG_FILE: logging.*
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"PASTEL_BASE_URL", &c.Backend.BaseURL},
		{"PASTEL_API_PREFIX", &c.Backend.APIPrefix},
		{"PASTEL_ENDPOINT", &c.DefaultEndpoint},
		{"PASTEL_USER_NAME", &c.UserName},
		{"PASTEL_TENANT_ID", &c.Identity.TenantID},
		{"PASTEL_CLIENT_ID", &c.Identity.ClientID},
		{"PASTEL_CLIENT_SECRET", &c.Identity.ClientSecret},
		{"PASTEL_AZURE_TOKEN", &c.Identity.AzureToken},
		{"PASTEL_M365_TOKEN", &c.Identity.M365Token},
		{"PASTEL_SESSION_TOKEN", &c.Pastel.Token},
		{"PASTEL_EMAIL", &c.Pastel.Email},
		{"PASTEL_MACHINE_NAME", &c.Pastel.MachineName},
		{"PASTEL_CACHE_PASSPHRASE", &c.TokenCache.Passphrase},
		{"PASTEL_LOG_LEVEL", &c.Logging.Level},
		{"PASTEL_LOG_FILE", &c.Logging.File},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("PASTEL_TOKEN_CACHE"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.TokenCache.Enabled = enabled
		}
	}
}
