// Package config loads Lizard's configuration from defaults, a YAML file,
// a .env file and LIZARD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/lizard/internal/capture"
	"github.com/ayusman/lizard/internal/detector"
	"github.com/ayusman/lizard/internal/focus"
	"github.com/ayusman/lizard/internal/logger"
)

// Ratio strategies accepted in RatioStrategy.
const (
	RatioAverage = "average"
	RatioMerged  = "merged"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "LIZARD_"

var validate = validator.New()

// Config is the complete application configuration.
type Config struct {
	// DataDir holds the settings database and logs (default: ~/.lizard).
	DataDir   string `yaml:"data_dir" validate:"required"`
	Addr      string `yaml:"addr" validate:"required"`
	StaticDir string `yaml:"static_dir"`

	// Threshold is the eye ratio above which a frame counts as focused.
	Threshold float64 `yaml:"threshold" validate:"gt=0,lt=1"`
	// TargetMinutes is the default session length.
	TargetMinutes int    `yaml:"target_minutes" validate:"gte=1,lte=60"`
	RatioStrategy string `yaml:"ratio_strategy" validate:"oneof=average merged"`

	Camera   capture.Config  `yaml:"camera"`
	Detector detector.Config `yaml:"detector"`
	Log      logger.Config   `yaml:"log"`
	Hooks    HooksConfig     `yaml:"hooks"`
}

// HooksConfig configures the session event hooks.
type HooksConfig struct {
	// Dir holds one directory per hook (default: <DataDir>/hooks).
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := ".lizard"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".lizard")
	}

	return Config{
		DataDir:       dataDir,
		Addr:          ":8080",
		Threshold:     focus.DefaultThreshold,
		TargetMinutes: 10,
		RatioStrategy: RatioAverage,
		Camera:        capture.DefaultConfig(),
		Detector:      detector.DefaultConfig(),
		Log:           logger.DefaultConfig(),
		Hooks:         HooksConfig{Timeout: 5 * time.Second},
	}
}

// Load builds the configuration. If path is empty, <DataDir>/config.yaml is
// read when it exists; an explicit path must exist. A .env file in the
// working directory is loaded before environment overrides are applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}

	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from LIZARD_* variables.
func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"DATA_DIR":       &c.DataDir,
		"ADDR":           &c.Addr,
		"STATIC_DIR":     &c.StaticDir,
		"RATIO_STRATEGY": &c.RatioStrategy,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"LOG_FILE":       &c.Log.File,
		"FACE_MESH":      &c.Detector.ScriptPath,
		"PYTHON":         &c.Detector.PythonPath,
		"HOOK_DIR":       &c.Hooks.Dir,
	}
	for name, dst := range strVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"TARGET_MINUTES": &c.TargetMinutes,
		"CAMERA_ID":      &c.Camera.DeviceID,
		"FPS":            &c.Camera.FPS,
	}
	for name, dst := range intVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv(EnvPrefix + "THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTHRESHOLD: %w", EnvPrefix, err)
		}
		c.Threshold = f
	}

	if v := os.Getenv(EnvPrefix + "HOOK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sHOOK_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Hooks.Timeout = d
	}

	return nil
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DBPath returns the location of the settings database.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "lizard.db")
}

// HookDir returns the hook directory.
func (c Config) HookDir() string {
	if c.Hooks.Dir != "" {
		return c.Hooks.Dir
	}
	return filepath.Join(c.DataDir, "hooks")
}

// TargetDuration returns TargetMinutes as a duration.
func (c Config) TargetDuration() time.Duration {
	return time.Duration(c.TargetMinutes) * time.Minute
}

// RatioFunc returns the ratio computation selected by RatioStrategy.
func (c Config) RatioFunc() focus.RatioFunc {
	if c.RatioStrategy == RatioMerged {
		return focus.MergedEAR
	}
	return focus.AverageEAR
}
