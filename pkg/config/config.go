// Package config loads facet settings from YAML.
//
// Config file locations (priority order):
//  1. $FACET_CONFIG
//  2. ./facet.yaml
//  3. $XDG_CONFIG_HOME/facet/config.yaml
//  4. ~/.config/facet/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultTolerance      = 1e-6
	DefaultBackend        = BackendSDFX
	DefaultMeshCells      = 100
	DefaultSheetThickness = 0.1
	DefaultScriptTimeout  = 5 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Kernel backends.
const (
	BackendSDFX     = "sdfx"
	BackendManifold = "manifold" // needs a build with -tags=manifold
)

// Config is the root configuration document.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`
	Kernel   KernelConfig   `yaml:"kernel"`
	Union    UnionConfig    `yaml:"union"`
	Script   ScriptConfig   `yaml:"script"`
	Log      LogConfig      `yaml:"log"`
}

// GeometryConfig holds vertex matching settings
type GeometryConfig struct {
	Tolerance float64 `yaml:"tolerance"` // absolute, per component
}

// KernelConfig selects and tunes the solid-modeling backend.
//
// With sdfx, a boolean on an earlier result evaluates that result's meshed
// surface triangle by triangle near its bounds, and the triangle count grows
// with MeshCells squared. Lower mesh_cells for long chains of edits.
type KernelConfig struct {
	Backend        string  `yaml:"backend"`
	MeshCells      int     `yaml:"mesh_cells"`      // marching cubes cells along the longest axis
	SheetThickness float64 `yaml:"sheet_thickness"` // extrusion depth for planar bodies
}

// UnionConfig controls the union fallback. Fallback is a pointer so that an
// explicit false survives applyDefaults.
type UnionConfig struct {
	Fallback *bool `yaml:"fallback,omitempty"`
}

// FallbackEnabled reports whether a failed kernel union degrades to a
// concatenation instead of an error.
func (u UnionConfig) FallbackEnabled() bool {
	return u.Fallback == nil || *u.Fallback
}

// ScriptConfig holds script console settings
type ScriptConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Geometry.Tolerance == 0 {
		c.Geometry.Tolerance = DefaultTolerance
	}
	if c.Kernel.Backend == "" {
		c.Kernel.Backend = DefaultBackend
	}
	if c.Kernel.MeshCells == 0 {
		c.Kernel.MeshCells = DefaultMeshCells
	}
	if c.Kernel.SheetThickness == 0 {
		c.Kernel.SheetThickness = DefaultSheetThickness
	}
	if c.Union.Fallback == nil {
		on := true
		c.Union.Fallback = &on
	}
	if c.Script.Timeout == 0 {
		c.Script.Timeout = Duration(DefaultScriptTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch {
	case c.Geometry.Tolerance < 0:
		return fmt.Errorf("config: geometry.tolerance must be positive, got %g", c.Geometry.Tolerance)
	case c.Kernel.Backend != BackendSDFX && c.Kernel.Backend != BackendManifold:
		return fmt.Errorf("config: unknown kernel.backend %q", c.Kernel.Backend)
	case c.Kernel.MeshCells < 0:
		return fmt.Errorf("config: kernel.mesh_cells must be positive, got %d", c.Kernel.MeshCells)
	case c.Kernel.SheetThickness < 0:
		return fmt.Errorf("config: kernel.sheet_thickness must be positive, got %g", c.Kernel.SheetThickness)
	case c.Script.Timeout < 0:
		return fmt.Errorf("config: script.timeout must be positive, got %s", c.Script.Timeout.Duration())
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
