package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/plantrack/internal/projector"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// Config represents the complete plantrack configuration.
// Maps config file fields through YAML tags.
type Config struct {
	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`

	Snapshot struct {
		Path        string `yaml:"path"`
		KeepBackups int    `yaml:"keep_backups"`
	} `yaml:"snapshot"`

	Journal struct {
		Path      string `yaml:"path"` // empty disables the journal
		MaxEvents int    `yaml:"max_events"`
	} `yaml:"journal"`

	Machines []types.Machine `yaml:"machines"`

	Labels struct {
		Machine     string `yaml:"machine"`
		Ton         string `yaml:"ton"`
		NoName      string `yaml:"no_name"`
		Maintenance string `yaml:"maintenance"`
	} `yaml:"labels"`

	Assistant struct {
		Language string `yaml:"language"`
		Company  string `yaml:"company"`
	} `yaml:"assistant"`

	Metrics struct {
		Textfile string        `yaml:"textfile"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"metrics"`
}

// defaultConfig is used for every key the file leaves out.
func defaultConfig() *Config {
	cfg := &Config{
		Timezone: "Local",
		LogLevel: "info",
	}
	cfg.Snapshot.Path = "data/plan.json"
	cfg.Journal.Path = "data/plan.journal"
	cfg.Journal.MaxEvents = 1000
	cfg.Machines = append([]types.Machine(nil), schedule.DefaultMachines...)
	cfg.Labels.Machine = projector.DefaultLabels.Machine
	cfg.Labels.Ton = projector.DefaultLabels.Ton
	cfg.Labels.NoName = projector.DefaultLabels.NoName
	cfg.Labels.Maintenance = "Scheduled Maintenance"
	cfg.Assistant.Language = "en"
	cfg.Metrics.Textfile = "data/plantrack.prom"
	cfg.Metrics.Interval = 30 * time.Second
	return cfg
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	// an explicit machine list replaces the default one instead of merging
	cfg.Machines = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if len(cfg.Machines) == 0 {
		cfg.Machines = append([]types.Machine(nil), schedule.DefaultMachines...)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfig loads path. When the path is the untouched default and the
// file does not exist, built-in defaults are used instead.
func resolveConfig(path string, explicit bool) (*Config, error) {
	cfg, err := loadConfig(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return defaultConfig(), nil
	}
	return cfg, err
}

// Location resolves the plant timezone.
func (c *Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Timezone) {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Catalog builds the machine catalog.
func (c *Config) Catalog() (*schedule.Catalog, error) {
	catalog, err := schedule.NewCatalog(c.Machines)
	if err != nil {
		return nil, fmt.Errorf("invalid machine list: %w", err)
	}
	return catalog, nil
}

// ProjectorLabels maps configured labels onto the projector's.
func (c *Config) ProjectorLabels() projector.Labels {
	return projector.Labels{Machine: c.Labels.Machine, Ton: c.Labels.Ton, NoName: c.Labels.NoName}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// setupLogging installs a text handler on w as the default logger.
func setupLogging(w io.Writer, level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
