// Package config provides configuration loading and management for sopnet.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/unidesigner/sopnet/internal/models"
	"github.com/unidesigner/sopnet/pkg/logging"
	"github.com/unidesigner/sopnet/pkg/mser"
	"github.com/unidesigner/sopnet/pkg/segments"
	"github.com/unidesigner/sopnet/pkg/store"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input locations
	Input struct {
		// ImageDir holds one image per section, ordered by the number in
		// the file name
		ImageDir string `yaml:"imageDir"`

		// GroundTruthDir optionally holds one 16-bit label image per
		// section for evaluation
		GroundTruthDir string `yaml:"groundTruthDir"`

		// Sections restricts processing to a sub-stack
		Sections models.SectionRange `yaml:",inline"`
	} `yaml:"input"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores" validate:"gte=0"`
	} `yaml:"processing"`

	// Slice extraction
	Mser mser.Parameters `yaml:"mser"`

	// Segment hypotheses
	Segments segments.Parameters `yaml:"segments"`

	// Segment costs
	Cost segments.GeometricCost `yaml:"cost"`

	// Inference parameters
	Inference struct {
		// ForceExplanation requires every conflict set to be used once
		ForceExplanation bool `yaml:"forceExplanation"`

		// Solver is "lp" for the built-in solver or "file" to read the
		// result of an external solver from SolutionFile
		Solver       string `yaml:"solver" validate:"oneof=lp file"`
		SolutionFile string `yaml:"solutionFile" validate:"required_if=Solver file"`

		// MaxNodes bounds branch and bound, 0 means unbounded
		MaxNodes int `yaml:"maxNodes" validate:"gte=0"`

		// Relaxation solves the linear relaxation only
		Relaxation bool `yaml:"relaxation"`

		// SolverTimeout aborts the solver, 0 means no limit
		SolverTimeout time.Duration `yaml:"solverTimeout" validate:"gte=0"`
	} `yaml:"inference"`

	// Output parameters
	Output struct {
		// Dir receives all outputs, one subdirectory per run
		Dir string `yaml:"dir" validate:"required"`

		// SaveIntermediaryResults writes the slice and segment tables, the
		// slice images and the problem file
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// SliceImageFormat is used for slice images and neuron rasters
		SliceImageFormat string `yaml:"sliceImageFormat" validate:"oneof=png tiff"`

		// SaveNeuronRasters writes label and color images of the neurons
		SaveNeuronRasters bool `yaml:"saveNeuronRasters"`
	} `yaml:"output"`

	// Extraction cache
	Cache struct {
		Enabled      bool `yaml:"enabled"`
		store.Config `yaml:",inline"`
	} `yaml:"cache"`

	Logging logging.Config `yaml:"logging"`

	// Metrics are pushed to a Prometheus push gateway after each run
	Metrics struct {
		PushGateway string `yaml:"pushGateway" validate:"omitempty,url"`
		Job         string `yaml:"job"`
	} `yaml:"metrics"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(models.SectionRange)
		if r.First >= 0 && r.Last >= 0 && r.Last < r.First {
			sl.ReportError(r.Last, "Last", "Last", "gtefield", "First")
		}
	}, models.SectionRange{})
	return v
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.ImageDir = "sections"
	cfg.Input.Sections = models.AllSections

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Mser = mser.DefaultParameters()
	cfg.Segments = segments.DefaultParameters()
	cfg.Cost = segments.DefaultGeometricCost()

	cfg.Inference.Solver = "lp"
	cfg.Inference.MaxNodes = 10000

	cfg.Output.Dir = "output"
	cfg.Output.SaveIntermediaryResults = true
	cfg.Output.SliceImageFormat = "png"
	cfg.Output.SaveNeuronRasters = true

	cfg.Cache.Path = ".sopnet-cache"

	cfg.Logging = logging.DefaultConfig()

	cfg.Metrics.Job = "sopnet"

	return cfg
}

// Validate checks value ranges and required fields.
func (c *Config) Validate() error {
	return errors.Wrap(validate.Struct(c), "invalid configuration")
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
