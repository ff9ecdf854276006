package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GroupSummaryConfig is the fully resolved per-group summary policy. It is
// derived at request time from the group's entry (if any) overlaid on the
// process-wide defaults.
type GroupSummaryConfig struct {
	Prompt         string
	Template       string
	CaptionImages  bool
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// GroupSummary resolves the summary policy for a group.
func (c *Config) GroupSummary(groupID int64) GroupSummaryConfig {
	resolved := GroupSummaryConfig{
		Prompt:         c.Summary.DefaultPrompt,
		Template:       c.Summary.DefaultTemplate,
		CaptionImages:  c.Caption.Enabled,
		MaxRetries:     c.Summary.MaxRetries,
		RetryBaseDelay: time.Duration(c.Summary.RetryBaseDelayMs) * time.Millisecond,
	}
	if resolved.Prompt == "" {
		resolved.Prompt = DefaultPrompt
	}
	if resolved.Template == "" {
		resolved.Template = DefaultTemplate
	}

	gc, ok := c.Groups[fmt.Sprintf("%d", groupID)]
	if !ok {
		return resolved
	}
	if gc.Prompt != "" {
		resolved.Prompt = gc.Prompt
	}
	if gc.Template != "" {
		resolved.Template = gc.Template
	}
	if gc.CaptionImages != nil {
		resolved.CaptionImages = *gc.CaptionImages
	}
	if gc.MaxRetries != nil {
		resolved.MaxRetries = *gc.MaxRetries
	}
	return resolved
}

// LoadGroupOverlays reads per-group YAML files from dir and merges them into
// cfg.Groups. File names are the group ID (e.g. 123456789.yaml); a file-level
// entry wins over the JSON config's entry for the same group.
func LoadGroupOverlays(cfg *Config, dir string, logger *slog.Logger) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("groups directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read groups dir: %w", err)
	}

	if cfg.Groups == nil {
		cfg.Groups = make(map[string]GroupConfig)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read group file", "path", path, "err", err)
			continue
		}

		var gc GroupConfig
		if err := yaml.Unmarshal(data, &gc); err != nil {
			logger.Warn("cannot parse group file", "path", path, "err", err)
			continue
		}

		groupID := strings.TrimSuffix(name, filepath.Ext(name))
		cfg.Groups[groupID] = gc
		logger.Info("loaded group overlay", "group", groupID, "path", path)
	}

	return nil
}
