package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"minibridge/internal/ics"
	appLog "minibridge/internal/log"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// EnvPath names the environment variable holding the config file path.
const EnvPath = "MINIBRIDGE_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath names a file.
const DefaultPath = "minibridge.yaml"

// ExtractionConfig selects how teacher names are read from descriptions.
type ExtractionConfig struct {
	// Mode is "regex" (SURNAME, Firstname tokens) or "marker" (list after
	// a marker phrase).
	Mode string `yaml:"mode" json:"mode"`
	// Marker is the phrase used in marker mode.
	Marker string `yaml:"marker" json:"marker"`
}

// ExportConfig holds the default build options.
type ExportConfig struct {
	Annotate        bool `yaml:"annotate" json:"annotate"`
	IncludeTimezone bool `yaml:"include_timezone" json:"include_timezone"`
}

// CacheConfig bounds the parse cache and schedules its purge.
type CacheConfig struct {
	// MaxEntries is the number of decoded files kept in memory. A negative
	// value disables the cache.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
	// Purge is a standard 5-field cron spec. Empty disables purging.
	Purge string `yaml:"purge" json:"purge"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MaxUploadMB bounds a whole multipart request.
	MaxUploadMB int `yaml:"max_upload_mb" json:"max_upload_mb"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Export     ExportConfig     `yaml:"export" json:"export"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		LogLevel:    "info",
		MaxUploadMB: 32,
		Extraction: ExtractionConfig{
			Mode:   string(ics.ModeRegex),
			Marker: ics.DefaultMarker,
		},
		Export: ExportConfig{
			Annotate:        false,
			IncludeTimezone: true,
		},
		Cache: CacheConfig{
			MaxEntries: ics.DefaultCacheEntries,
			Purge:      "0 4 * * *",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 32
	}
	if c.Extraction.Mode == "" {
		c.Extraction.Mode = string(ics.ModeRegex)
	}
	if c.Extraction.Marker == "" {
		c.Extraction.Marker = ics.DefaultMarker
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = ics.DefaultCacheEntries
	}
}

// maxUploadMB caps max_upload_mb.
const maxUploadMB = 1024

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.MaxUploadMB > maxUploadMB {
		errs = append(errs, fmt.Errorf("max_upload_mb: %d exceeds %d", c.MaxUploadMB, maxUploadMB))
	}
	if _, err := ics.NewExtractor(ics.ExtractMode(c.Extraction.Mode), c.Extraction.Marker); err != nil {
		errs = append(errs, fmt.Errorf("extraction.mode: %w", err))
	}
	if c.Cache.Purge != "" {
		if _, err := cron.ParseStandard(c.Cache.Purge); err != nil {
			errs = append(errs, fmt.Errorf("cache.purge %q: %w", c.Cache.Purge, err))
		}
	}
	return errors.Join(errs...)
}

// Extractor builds the teacher extractor described by the config.
func (c *Config) Extractor() (ics.Extractor, error) {
	return ics.NewExtractor(ics.ExtractMode(c.Extraction.Mode), c.Extraction.Marker)
}

// BuildOptions returns the default export options.
func (c *Config) BuildOptions() ics.BuildOptions {
	return ics.BuildOptions{
		Annotate:        c.Export.Annotate,
		IncludeTimezone: c.Export.IncludeTimezone,
	}
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ResolvePath picks the config file: the explicit flag value, then
// EnvPath, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML over the defaults
//   - normalize and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("default config written", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	// Keys missing from the file keep their default, booleans included.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".minibridge-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
