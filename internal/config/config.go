package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for ChatSummary.
type Config struct {
	General  GeneralConfig             `json:"general"`
	Platform PlatformConfig            `json:"platform"`
	Providers map[string]ProviderConfig `json:"providers"`
	Summary  SummaryConfig             `json:"summary"`
	Caption  CaptionConfig             `json:"caption"`
	Render   RenderConfig              `json:"render"`
	Archive  ArchiveConfig             `json:"archive"`
	Telegram TelegramConfig            `json:"telegram,omitempty"`
	Groups   map[string]GroupConfig    `json:"groups,omitempty"`
}

type GeneralConfig struct {
	DataDir         string `json:"dataDir"`
	LogLevel        string `json:"logLevel"`
	DefaultProvider string `json:"defaultProvider"`
	GroupsDir       string `json:"groupsDir,omitempty"` // optional YAML per-group overlay directory
}

// PlatformConfig points at the chat-platform HTTP API (OneBot-compatible).
type PlatformConfig struct {
	APIBase     string `json:"apiBase"`
	AccessToken string `json:"accessToken,omitempty"`
}

type ProviderConfig struct {
	Enabled      bool     `json:"enabled"`
	APIBase      string   `json:"apiBase,omitempty"`
	APIKey       string   `json:"apiKey,omitempty"`
	DefaultModel string   `json:"defaultModel,omitempty"`
	VisionModels []string `json:"visionModels,omitempty"`
}

type SummaryConfig struct {
	DefaultPrompt    string   `json:"defaultPrompt"`
	DefaultTemplate  string   `json:"defaultTemplate"`
	WakePrefixes     []string `json:"wakePrefixes,omitempty"`
	MaxRetries       int      `json:"maxRetries"`
	RetryBaseDelayMs int      `json:"retryBaseDelayMs"`
	ExcerptRunes     int      `json:"excerptRunes"` // failure-summary excerpt bound
}

type CaptionConfig struct {
	Enabled       bool   `json:"enabled"`
	SystemPrompt  string `json:"systemPrompt,omitempty"`
	MaxConcurrent int    `json:"maxConcurrent"`
	DelayMs       int    `json:"delayMs"`
	CacheSize     int    `json:"cacheSize"`
}

type RenderConfig struct {
	ServiceURL string `json:"serviceUrl,omitempty"` // primary external renderer; empty disables it
	OutputDir  string `json:"outputDir"`            // chromedp fallback output
	Headless   bool   `json:"headless"`
}

type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

// GroupConfig overrides summary behavior for a single group. Zero values
// fall back to the process-wide defaults.
type GroupConfig struct {
	Prompt        string `json:"prompt,omitempty" yaml:"prompt"`
	Template      string `json:"template,omitempty" yaml:"template"`
	CaptionImages *bool  `json:"captionImages,omitempty" yaml:"captionImages"`
	MaxRetries    *int   `json:"maxRetries,omitempty" yaml:"maxRetries"`
	ScheduleTime  string `json:"scheduleTime,omitempty" yaml:"scheduleTime"` // "HH:MM", empty = no scheduled digest
	Interval      string `json:"interval,omitempty" yaml:"interval"`         // e.g. "24h", span summarized on schedule
}

// DefaultConfigDir returns the default config directory (~/.chatsummary).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatsummary"
	}
	return filepath.Join(home, ".chatsummary")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.GroupsDir = ExpandPath(cfg.General.GroupsDir)
	cfg.Archive.DBPath = ExpandPath(cfg.Archive.DBPath)
	cfg.Render.OutputDir = ExpandPath(cfg.Render.OutputDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Platform.APIBase == "" {
		errs = append(errs, "platform.apiBase is required")
	}
	if cfg.Summary.MaxRetries < 0 || cfg.Summary.MaxRetries > 10 {
		errs = append(errs, "summary.maxRetries must be between 0 and 10")
	}
	if cfg.Summary.RetryBaseDelayMs < 0 {
		errs = append(errs, "summary.retryBaseDelayMs must be >= 0")
	}
	if cfg.Caption.MaxConcurrent < 1 {
		errs = append(errs, "caption.maxConcurrent must be >= 1")
	}
	if cfg.Caption.CacheSize < 1 {
		errs = append(errs, "caption.cacheSize must be >= 1")
	}

	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}
	if cfg.General.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
			errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
		}
	}

	for id, gc := range cfg.Groups {
		if gc.ScheduleTime != "" && !scheduleTimePattern.MatchString(gc.ScheduleTime) {
			errs = append(errs, fmt.Sprintf("groups.%s: scheduleTime must be HH:MM", id))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

var scheduleTimePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
