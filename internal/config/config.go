// Package config loads the optional diskprobe YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/sample"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a scan. All fields are optional in the file.
type Config struct {
	Fragments      int           `yaml:"fragments"`
	Digest         string        `yaml:"digest"`
	TimeUnit       time.Duration `yaml:"time_unit"`
	InitialAverage float64       `yaml:"initial_average"`
	FoldCeiling    float64       `yaml:"fold_ceiling"`
	Headroom       float64       `yaml:"headroom"`
	VerifyWorkers  int           `yaml:"verify_workers"`
	BufferSize     int           `yaml:"buffer_size"`
	FragmentDir    string        `yaml:"fragment_dir"`
	MetricsFile    string        `yaml:"metrics_file"`
	HistoryKeep    int           `yaml:"history_keep"`
}

// Default returns the built-in configuration
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// DefaultPath returns ~/.diskprobe/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".diskprobe", "config.yaml")
	}
	return filepath.Join(home, ".diskprobe", "config.yaml")
}

// Load reads and parses the configuration file over the defaults, so a key present
// in the file always wins, zero included. A missing file yields defaults unless
// required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := *Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// setDefaults fills fields left empty
func (c *Config) setDefaults() {
	p := engine.DefaultPolicy()

	if c.Fragments == 0 {
		c.Fragments = 10000
	}
	if c.Digest == "" {
		c.Digest = string(sample.MD5)
	}
	if c.TimeUnit == 0 {
		c.TimeUnit = p.Unit
	}
	if c.InitialAverage == 0 {
		c.InitialAverage = p.InitialAverage
	}
	if c.FoldCeiling == 0 {
		c.FoldCeiling = p.FoldCeiling
	}
	if c.Headroom == 0 {
		c.Headroom = p.Headroom
	}
	if c.VerifyWorkers == 0 {
		c.VerifyWorkers = 1
	}
	if c.BufferSize == 0 {
		c.BufferSize = 1 << 20
	}
	if c.FragmentDir == "" {
		c.FragmentDir = ".diskprobe"
	}
	if c.HistoryKeep == 0 {
		c.HistoryKeep = 50
	}
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DISKPROBE_FRAGMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fragments = n
		}
	}
	if v := os.Getenv("DISKPROBE_DIGEST"); v != "" {
		c.Digest = v
	}
	if v := os.Getenv("DISKPROBE_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error
	if c.Fragments <= 0 {
		errs = append(errs, fmt.Errorf("fragments must be positive, got %d", c.Fragments))
	}
	if _, err := sample.ParseDigest(c.Digest); err != nil {
		errs = append(errs, err)
	}
	if c.TimeUnit <= 0 {
		errs = append(errs, fmt.Errorf("time_unit must be positive, got %s", c.TimeUnit))
	}
	if c.InitialAverage <= 0 {
		errs = append(errs, fmt.Errorf("initial_average must be positive, got %g", c.InitialAverage))
	}
	if c.FoldCeiling < 0 || c.Headroom < 0 {
		errs = append(errs, errors.New("fold_ceiling and headroom must not be negative"))
	}
	if c.VerifyWorkers < 1 {
		errs = append(errs, fmt.Errorf("verify_workers must be at least 1, got %d", c.VerifyWorkers))
	}
	if c.BufferSize < 4096 {
		errs = append(errs, fmt.Errorf("buffer_size must be at least 4096, got %d", c.BufferSize))
	}
	if filepath.IsAbs(c.FragmentDir) || strings.Contains(c.FragmentDir, "..") {
		errs = append(errs, fmt.Errorf("fragment_dir must be relative to the volume, got %q", c.FragmentDir))
	}
	if c.HistoryKeep < 0 {
		errs = append(errs, fmt.Errorf("history_keep must not be negative, got %d", c.HistoryKeep))
	}
	return errors.Join(errs...)
}

// Policy returns the adaptive timeout settings
func (c *Config) Policy() engine.PolicyConfig {
	return engine.PolicyConfig{
		Unit:           c.TimeUnit,
		InitialAverage: c.InitialAverage,
		FoldCeiling:    c.FoldCeiling,
		Headroom:       c.Headroom,
	}
}

// DigestKind returns the parsed digest. Only valid after Validate.
func (c *Config) DigestKind() sample.Digest {
	d, _ := sample.ParseDigest(c.Digest)
	return d
}

// SessionOptions builds engine options for a session rooted at dir
func (c *Config) SessionOptions(dir string) engine.Options {
	return engine.Options{
		Requested:     c.Fragments,
		Digest:        c.DigestKind(),
		Policy:        c.Policy(),
		VerifyWorkers: c.VerifyWorkers,
		BufferSize:    c.BufferSize,
		Dir:           dir,
	}
}
