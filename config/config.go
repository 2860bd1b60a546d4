// Package config handles avmprep.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "avmprep.toml"

// Error policies for a batch of methods.
const (
	OnErrorIsolate = "isolate"
	OnErrorAbort   = "abort"
)

// Config represents an avmprep.toml configuration.
type Config struct {
	Optimizer Optimizer `toml:"optimizer"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Cache     Cache     `toml:"cache"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the configuration file (set at load
	// time). Relative paths are resolved against it.
	Dir string `toml:"-"`
}

// Optimizer configures the optimization pass.
type Optimizer struct {
	Enabled       bool `toml:"enabled"`
	SimpleScoping bool `toml:"simple-scoping"`
}

// Pipeline configures batch preparation.
type Pipeline struct {
	Workers int    `toml:"workers"`
	OnError string `toml:"on-error"`
}

// Cache configures the verified-method cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Optimizer: Optimizer{Enabled: true, SimpleScoping: true},
		Pipeline:  Pipeline{Workers: 4, OnError: OnErrorIsolate},
		Cache:     Cache{Enabled: true, Path: filepath.Join(".avmprep", "cache.db")},
		Log:       Log{Verbosity: 1},
	}
}

// Load parses the avmprep.toml file in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file. Settings it leaves out keep their
// defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an avmprep.toml file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks settings that have a fixed set of values.
func (c *Config) Validate() error {
	switch c.Pipeline.OnError {
	case OnErrorIsolate, OnErrorAbort:
	default:
		return fmt.Errorf("pipeline.on-error must be %q or %q, got %q", OnErrorIsolate, OnErrorAbort, c.Pipeline.OnError)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	return nil
}

// Abort reports whether a failing method aborts the whole batch.
func (c *Config) Abort() bool {
	return c.Pipeline.OnError == OnErrorAbort
}

// CachePath returns the absolute cache database path, or "" when the cache
// is in-memory only or disabled.
func (c *Config) CachePath() string {
	if !c.Cache.Enabled || c.Cache.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}
	return filepath.Join(c.Dir, c.Cache.Path)
}

// LogFile returns the absolute log file path, or "" for stderr.
func (c *Config) LogFile() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	return filepath.Join(c.Dir, c.Log.File)
}
