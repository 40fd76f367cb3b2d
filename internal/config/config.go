// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete pastel configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	// DefaultEndpoint is the backend endpoint used when none is chosen.
	DefaultEndpoint string `toml:"default_endpoint" json:"default_endpoint" yaml:"default_endpoint"`
	// UserName is shown in the greeting. Empty means the OS user name.
	UserName string `toml:"user_name" json:"user_name" yaml:"user_name"`

	Backend    BackendConfig    `toml:"backend" json:"backend" yaml:"backend"`
	Identity   IdentityConfig   `toml:"identity" json:"identity" yaml:"identity"`
	Pastel     PastelConfig     `toml:"pastel" json:"pastel" yaml:"pastel"`
	TokenCache TokenCacheConfig `toml:"token_cache" json:"token_cache" yaml:"token_cache"`
	Logging    LoggingConfig    `toml:"logging" json:"logging" yaml:"logging"`
	UI         UIConfig         `toml:"ui" json:"ui" yaml:"ui"`
}

// BackendConfig locates the AI backend.
type BackendConfig struct {
	BaseURL            string `toml:"base_url" json:"base_url" yaml:"base_url"`
	APIPrefix          string `toml:"api_prefix" json:"api_prefix" yaml:"api_prefix"`
	ConnectTimeoutSecs int    `toml:"connect_timeout_secs" json:"connect_timeout_secs" yaml:"connect_timeout_secs"`
}

// IdentityConfig configures Azure and M365 token acquisition.
//
// Static tokens win over the client-credentials flow.
type IdentityConfig struct {
	Authority    string   `toml:"authority" json:"authority" yaml:"authority"`
	TenantID     string   `toml:"tenant_id" json:"tenant_id" yaml:"tenant_id"`
	ClientID     string   `toml:"client_id" json:"client_id" yaml:"client_id"`
	ClientSecret string   `toml:"client_secret" json:"client_secret" yaml:"client_secret"`
	AzureScopes  []string `toml:"azure_scopes" json:"azure_scopes" yaml:"azure_scopes"`
	M365Scopes   []string `toml:"m365_scopes" json:"m365_scopes" yaml:"m365_scopes"`
	AzureToken   string   `toml:"azure_token" json:"azure_token" yaml:"azure_token"`
	M365Token    string   `toml:"m365_token" json:"m365_token" yaml:"m365_token"`
}

// PastelConfig holds the backend session identity.
type PastelConfig struct {
	Token       string `toml:"token" json:"token" yaml:"token"`
	Email       string `toml:"email" json:"email" yaml:"email"`
	MachineName string `toml:"machine_name" json:"machine_name" yaml:"machine_name"`
}

// TokenCacheConfig controls the on-disk token cache.
type TokenCacheConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	// Path to the SQLite file. Empty means ~/.pastel/tokens.db.
	Path string `toml:"path" json:"path" yaml:"path"`
	// Passphrase seals cached values. Empty stores them unsealed.
	Passphrase string `toml:"passphrase" json:"passphrase" yaml:"passphrase"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level" json:"level" yaml:"level"`
	// File path. Empty means ~/.pastel/pastel.log.
	File string `toml:"file" json:"file" yaml:"file"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Theme is the glamour style: "auto", "dark", "light" or "notty".
	Theme    string `toml:"theme" json:"theme" yaml:"theme"`
	Markdown bool   `toml:"markdown" json:"markdown" yaml:"markdown"`
	WordWrap int    `toml:"word_wrap" json:"word_wrap" yaml:"word_wrap"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:         "1",
		DefaultEndpoint: string(backend.EndpointAzureTasks),
		Backend: BackendConfig{
			BaseURL:            "http://127.0.0.1:8787",
			APIPrefix:          backend.DefaultAPIPrefix,
			ConnectTimeoutSecs: 10,
		},
		Identity: IdentityConfig{
			Authority:   "https://login.microsoftonline.com",
			AzureScopes: []string{"499b84ac-1321-427f-aa17-267ca6975798/.default"},
			M365Scopes:  []string{"https://graph.microsoft.com/.default"},
		},
		TokenCache: TokenCacheConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
			WordWrap: 100,
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.DefaultEndpoint == "" {
		cfg.DefaultEndpoint = defaults.DefaultEndpoint
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if cfg.Backend.APIPrefix == "" {
		cfg.Backend.APIPrefix = defaults.Backend.APIPrefix
	}
	if cfg.Backend.ConnectTimeoutSecs <= 0 {
		cfg.Backend.ConnectTimeoutSecs = defaults.Backend.ConnectTimeoutSecs
	}
	if cfg.Identity.Authority == "" {
		cfg.Identity.Authority = defaults.Identity.Authority
	}
	if len(cfg.Identity.AzureScopes) == 0 {
		cfg.Identity.AzureScopes = defaults.Identity.AzureScopes
	}
	if len(cfg.Identity.M365Scopes) == 0 {
		cfg.Identity.M365Scopes = defaults.Identity.M365Scopes
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.WordWrap <= 0 {
		cfg.UI.WordWrap = defaults.UI.WordWrap
	}
}

// ConnectTimeout returns the backend dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Backend.ConnectTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the pastel configuration directory. PASTEL_HOME overrides
// the default of ~/.pastel.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PASTEL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".pastel"), nil
}

func pathInConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return pathInConfigDir("config.toml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return pathInConfigDir("config.json") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return pathInConfigDir("config.yaml") }

// LogPath returns the effective log file path.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	return pathInConfigDir("pastel.log")
}

// TokenCachePath returns the effective token cache path.
func (c *Config) TokenCachePath() (string, error) {
	if c.TokenCache.Path != "" {
		return c.TokenCache.Path, nil
	}
	return pathInConfigDir("tokens.db")
}

// HistoryPath returns the REPL history file path.
func HistoryPath() (string, error) { return pathInConfigDir("history") }

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens config files to 0600; they may hold tokens.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

type fileLoader struct {
	path func() (string, error)
	load func(*Config, string) error
}

var loaders = []fileLoader{
	{ConfigPathTOML, LoadTOML},
	{ConfigPathJSON, LoadJSON},
	{ConfigPathYAML, LoadYAML},
}

// Load loads configuration from the first config file found, falling back to
// defaults. .env files and environment overrides are applied last. A file
// that fails to parse is reported alongside the defaults.
func Load() (*Config, error) {
	LoadDotEnv()

	var loadErr error
	for _, l := range loaders {
		path, err := l.path()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := l.load(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
			break
		}
		if err := finalize(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := Default()
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file. The format follows
// the extension; anything unrecognized is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	LoadDotEnv()

	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finalize(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func warnPermissions(path string) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	warnPermissions(path)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML file into cfg.
func LoadYAML(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# pastel configuration file\n")
	b.WriteString("# Values can be overridden with PASTEL_* environment variables.\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validThemes = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}

// Validate checks the configuration and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := backend.ParseEndpoint(c.DefaultEndpoint); err != nil {
		errs = append(errs, ValidationError{
			Field:   "default_endpoint",
			Message: err.Error(),
		})
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("invalid URL %q", c.Backend.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		})
	}

	if c.Backend.APIPrefix != "" && !strings.HasPrefix(c.Backend.APIPrefix, "/") {
		errs = append(errs, ValidationError{
			Field:   "backend.api_prefix",
			Message: "must start with '/'",
		})
	}

	if c.Backend.ConnectTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.connect_timeout_secs",
			Message: "cannot be negative",
		})
	}

	if c.Identity.ClientID != "" && c.Identity.TenantID == "" {
		errs = append(errs, ValidationError{
			Field:   "identity.tenant_id",
			Message: "required when client_id is set",
		})
	}

	if c.Pastel.Email != "" && !strings.Contains(c.Pastel.Email, "@") {
		errs = append(errs, ValidationError{
			Field:   "pastel.email",
			Message: fmt.Sprintf("invalid email %q", c.Pastel.Email),
		})
	}

	if c.UI.Theme != "" && !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Identity.AzureScopes = append([]string(nil), c.Identity.AzureScopes...)
	clone.Identity.M365Scopes = append([]string(nil), c.Identity.M365Scopes...)
	return &clone
}

const redacted = "[REDACTED]"

// Redacted returns a copy with every secret replaced by a marker.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, s := range []*string{
		&safe.Identity.ClientSecret,
		&safe.Identity.AzureToken,
		&safe.Identity.M365Token,
		&safe.Pastel.Token,
		&safe.TokenCache.Passphrase,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	return safe
}

// String renders the configuration as TOML with secrets redacted.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return b.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first use.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
