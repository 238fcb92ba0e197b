// Package config provides configuration loading and management for cardiosync.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Signal parameters
	Signal struct {
		// SampleRate is the assumed sampling frequency in Hz when the
		// input carries no time column
		SampleRate float64 `yaml:"sampleRate"`

		// TargetRate is the common grid rate all channels are resampled
		// to before joint analysis
		TargetRate float64 `yaml:"targetRate"`
	} `yaml:"signal"`

	// Filter parameters
	Filter struct {
		// Mode selects which channels are bandpass filtered:
		// default, ppg_only or off
		Mode string `yaml:"mode"`

		// Detrend removes the least-squares trend before filtering
		Detrend bool `yaml:"detrend"`

		// Order is the Butterworth order of each band edge (even)
		Order int `yaml:"order"`

		// MedianWindowSec applies a median prefilter when positive
		MedianWindowSec float64 `yaml:"medianWindowSec"`

		// ECGLow and ECGHigh bound the ECG passband in Hz
		ECGLow  float64 `yaml:"ecgLow"`
		ECGHigh float64 `yaml:"ecgHigh"`

		// PPGLow and PPGHigh bound the PPG passband in Hz
		PPGLow  float64 `yaml:"ppgLow"`
		PPGHigh float64 `yaml:"ppgHigh"`
	} `yaml:"filter"`

	// Detector parameters
	Detector struct {
		// RPeakDistanceSec is the ECG refractory period in seconds
		RPeakDistanceSec float64 `yaml:"rPeakDistanceSec"`

		// RPeakProminence is the minimum z-scored R-peak prominence
		RPeakProminence float64 `yaml:"rPeakProminence"`

		// PulseDistanceSec is the PPG refractory period in seconds
		PulseDistanceSec float64 `yaml:"pulseDistanceSec"`

		// PulseProminence is the minimum z-scored pulse prominence
		PulseProminence float64 `yaml:"pulseProminence"`
	} `yaml:"detector"`

	// Analysis parameters
	Analysis struct {
		// MaxPTTSec is the upper bound of plausible pulse transit times
		MaxPTTSec float64 `yaml:"maxPTTSec"`

		// MaxLagSec bounds the cross-correlation delay search
		MaxLagSec float64 `yaml:"maxLagSec"`

		// TemplatePreSec and TemplatePostSec are the beat window extents
		TemplatePreSec  float64 `yaml:"templatePreSec"`
		TemplatePostSec float64 `yaml:"templatePostSec"`
	} `yaml:"analysis"`

	// Output parameters
	Output struct {
		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Signal.SampleRate = 128.0
	cfg.Signal.TargetRate = 128.0

	cfg.Filter.Mode = "default"
	cfg.Filter.Detrend = true
	cfg.Filter.Order = 4
	cfg.Filter.MedianWindowSec = 0
	cfg.Filter.ECGLow = 5.0
	cfg.Filter.ECGHigh = 15.0
	cfg.Filter.PPGLow = 0.5
	cfg.Filter.PPGHigh = 5.0

	cfg.Detector.RPeakDistanceSec = 0.25
	cfg.Detector.RPeakProminence = 1.0
	cfg.Detector.PulseDistanceSec = 0.30
	cfg.Detector.PulseProminence = 0.3

	cfg.Analysis.MaxPTTSec = 1.5
	cfg.Analysis.MaxLagSec = 2.0
	cfg.Analysis.TemplatePreSec = 0.25
	cfg.Analysis.TemplatePostSec = 0.45

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
