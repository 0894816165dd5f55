// Package config loads aggregation settings from YAML files and named presets.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/hupe1980/kpagg/engine"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named matcher configuration.
type Preset struct {
	Name     string
	Output   string
	MaxError float64
	CellSize float64
}

var presets = map[string]Preset{
	// Best quality but many points. Small scenes only.
	"loftr":        {Name: "loftr", Output: "matches-loftr", MaxError: 1, CellSize: 1},
	"loftr_aachen": {Name: "loftr_aachen", Output: "matches-loftr_aachen", MaxError: 2, CellSize: 8},
	// Dense matches snapped onto sparse detector keypoints.
	"loftr_superpoint": {Name: "loftr_superpoint", Output: "matches-loftr_aachen", MaxError: 4, CellSize: 4},
	"mast3r":           {Name: "mast3r", Output: "matches-mast3r", MaxError: 1, CellSize: 1},
	"mast3r_disk":      {Name: "mast3r_disk", Output: "matches-mast3r", MaxError: 4, CellSize: 4},
}

// Lookup returns the preset registered under name.
func Lookup(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// Presets returns the registered preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store selects the storage backend.
type Store struct {
	// Backend is one of "local", "memory", "sqlite", "s3" or "minio".
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`

	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	UseSSL      bool   `yaml:"use_ssl"`
	CommitTable string `yaml:"commit_table"`
}

// File is the YAML configuration. Unset fields fall back to the preset and
// then to engine.DefaultConfig.
type File struct {
	Preset             string   `yaml:"preset"`
	MaxError           *float64 `yaml:"max_error"`
	CellSize           *float64 `yaml:"cell_size"`
	MaxKeypoints       *int     `yaml:"max_keypoints"`
	Writers            *int     `yaml:"writers"`
	ReassignWorkers    *int     `yaml:"reassign_workers"`
	KeypointCacheSize  *int     `yaml:"keypoint_cache_size"`
	CheckpointInterval *int     `yaml:"checkpoint_interval"`
	Overwrite          bool     `yaml:"overwrite"`
	Store              Store    `yaml:"store"`
}

// Load reads the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if f.Preset != "" {
		if _, err := Lookup(f.Preset); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Save writes f to path.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Engine resolves the engine configuration and validates it.
func (f *File) Engine() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if f.Preset != "" {
		p, err := Lookup(f.Preset)
		if err != nil {
			return engine.Config{}, err
		}
		cfg.MaxError, cfg.CellSize = p.MaxError, p.CellSize
	}

	setFloat(&cfg.MaxError, f.MaxError)
	setFloat(&cfg.CellSize, f.CellSize)
	setInt(&cfg.MaxKeypoints, f.MaxKeypoints)
	setInt(&cfg.Writers, f.Writers)
	setInt(&cfg.ReassignWorkers, f.ReassignWorkers)
	setInt(&cfg.KeypointCacheSize, f.KeypointCacheSize)
	setInt(&cfg.CheckpointInterval, f.CheckpointInterval)
	cfg.Overwrite = f.Overwrite

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
