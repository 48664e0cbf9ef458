package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, auto-detecting format by
// extension. Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// Settings is the dispatcher section of the configuration.
type Settings struct {
	// QueueSize is the buffer of the inbound event queue.
	QueueSize int
	// SuspendTimeout is the default session suspension deadline.
	// Zero means wait indefinitely.
	SuspendTimeout time.Duration
	// JournalPath is the SQLite file for the dispatch journal.
	// Empty selects the in-memory journal.
	JournalPath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DefaultSettings returns the settings used when no configuration is
// provided.
func DefaultSettings() Settings {
	return Settings{
		QueueSize:      64,
		SuspendTimeout: 0,
		JournalPath:    "",
		LogLevel:       "info",
	}
}

// SettingsFrom extracts the "dispatcher" section of cfg, filling gaps
// from DefaultSettings.
func SettingsFrom(cfg Config) Settings {
	def := DefaultSettings()
	sec := cfg.Section("dispatcher")
	return Settings{
		QueueSize:      sec.Int("queue_size", def.QueueSize),
		SuspendTimeout: sec.Duration("suspend_timeout", def.SuspendTimeout),
		JournalPath:    sec.String("journal_path", def.JournalPath),
		LogLevel:       sec.String("log_level", def.LogLevel),
	}
}
