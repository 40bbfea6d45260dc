// Package config loads headroom settings from YAML and merges CLI overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/headroom/internal/gain"
)

// DefaultFileName is looked up in the target directory when no --config is given
const DefaultFileName = ".headroom.yaml"

// Config holds every tunable of a headroom run
type Config struct {
	Ceilings             Ceilings `yaml:"ceilings"`
	BitrateThresholdKbps int      `yaml:"bitrate_threshold_kbps"`
	MinGainDB            float64  `yaml:"min_gain_db"`
	NativeCeiling        string   `yaml:"native_ceiling"` // tiered | fixed
	FloorSafetyMargin    float64  `yaml:"floor_safety_margin"`

	Workers   int      `yaml:"workers"`
	Tools     Tools    `yaml:"tools"`
	BackupDir string   `yaml:"backup_dir"` // relative paths resolve against the target directory
	Exclude   []string `yaml:"exclude"`    // doublestar globs matched against slash-separated relative paths
}

// Ceilings are True Peak targets in dBTP
type Ceilings struct {
	Lossless float64 `yaml:"lossless"`
	High     float64 `yaml:"high"`
	Low      float64 `yaml:"low"`
}

// Tools names the external binaries
type Tools struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	MP3Gain string `yaml:"mp3gain"` // empty selects the built-in global_gain writer
}

// Default returns the configuration used when no file is present
func Default() Config {
	p := gain.DefaultPolicy()
	return Config{
		Ceilings: Ceilings{
			Lossless: p.LosslessCeiling,
			High:     p.HighCeiling,
			Low:      p.LowCeiling,
		},
		BitrateThresholdKbps: p.ThresholdKbps,
		MinGainDB:            p.MinGainDB,
		NativeCeiling:        p.NativeMode.String(),
		FloorSafetyMargin:    p.FloorSafetyMargin,
		Workers:              runtime.NumCPU(),
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		BackupDir: "backup",
	}
}

// Load reads a YAML file on top of Default(). An explicit path that does not
// exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return cfg.Normalized(), nil
}

// LoadForDir loads explicit when set, otherwise DefaultFileName inside dir
// if it exists, otherwise Default().
func LoadForDir(dir, explicit string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Normalized replaces out-of-range values with defaults
func (c Config) Normalized() Config {
	d := Default()

	if c.Ceilings.Lossless > 0 {
		c.Ceilings.Lossless = d.Ceilings.Lossless
	}
	if c.Ceilings.High > 0 || c.Ceilings.Low > 0 || c.Ceilings.Low > c.Ceilings.High {
		c.Ceilings.High = d.Ceilings.High
		c.Ceilings.Low = d.Ceilings.Low
	}
	if c.BitrateThresholdKbps <= 0 {
		c.BitrateThresholdKbps = d.BitrateThresholdKbps
	}
	if c.MinGainDB < 0 {
		c.MinGainDB = d.MinGainDB
	}
	if _, ok := gain.ParseNativeCeilingMode(c.NativeCeiling); !ok {
		c.NativeCeiling = d.NativeCeiling
	}
	if c.FloorSafetyMargin < 1 {
		c.FloorSafetyMargin = d.FloorSafetyMargin
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = d.Tools.FFmpeg
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = d.Tools.FFprobe
	}
	if c.BackupDir == "" {
		c.BackupDir = d.BackupDir
	}

	valid := c.Exclude[:0:0]
	for _, pattern := range c.Exclude {
		if doublestar.ValidatePattern(pattern) {
			valid = append(valid, pattern)
		}
	}
	c.Exclude = valid

	return c
}

// Policy converts the configuration into the decision policy
func (c Config) Policy() gain.Policy {
	mode, _ := gain.ParseNativeCeilingMode(c.NativeCeiling)
	return gain.Policy{
		LosslessCeiling:   c.Ceilings.Lossless,
		HighCeiling:       c.Ceilings.High,
		LowCeiling:        c.Ceilings.Low,
		ThresholdKbps:     c.BitrateThresholdKbps,
		MinGainDB:         c.MinGainDB,
		NativeMode:        mode,
		FloorSafetyMargin: c.FloorSafetyMargin,
	}
}

// BackupPath resolves BackupDir against the target directory
func (c Config) BackupPath(root string) string {
	if filepath.IsAbs(c.BackupDir) {
		return c.BackupDir
	}
	return filepath.Join(root, c.BackupDir)
}
