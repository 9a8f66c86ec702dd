package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidesigner/sopnet/internal/models"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, models.AllSections, cfg.Input.Sections)
	assert.Equal(t, "lp", cfg.Inference.Solver)
	assert.Equal(t, 1.0, cfg.Cost.WeightPotts)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sopnet.yaml")

	cfg := DefaultConfig()
	cfg.Input.Sections = models.SectionRange{First: 2, Last: 5}
	cfg.Mser.Delta = 4
	cfg.Cost.WeightPotts = 0.5
	cfg.Inference.SolverTimeout = 90 * time.Second
	cfg.Cache.Enabled = true
	cfg.Cache.InMemory = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sopnet.yaml")
	data := `
input:
  imageDir: /data/membranes
  firstSection: 3
mser:
  delta: 7
cost:
  weightPotts: 2
inference:
  solverTimeout: 1m30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/membranes", cfg.Input.ImageDir)
	assert.Equal(t, models.SectionRange{First: 3, Last: -1}, cfg.Input.Sections)
	assert.Equal(t, 7, cfg.Mser.Delta)
	assert.Equal(t, DefaultConfig().Mser.MinArea, cfg.Mser.MinArea)
	assert.Equal(t, 2.0, cfg.Cost.WeightPotts)
	assert.Equal(t, DefaultConfig().Cost.EndBias, cfg.Cost.EndBias)
	assert.Equal(t, 90*time.Second, cfg.Inference.SolverTimeout)
}

func TestValidate(t *testing.T) {
	for name, modify := range map[string]func(*Config){
		"solver":        func(c *Config) { c.Inference.Solver = "cplex" },
		"solution file": func(c *Config) { c.Inference.Solver = "file" },
		"delta":         func(c *Config) { c.Mser.Delta = 0 },
		"overlap":       func(c *Config) { c.Segments.MinOverlap = 1.5 },
		"distance":      func(c *Config) { c.Segments.MaxCenterDistance = 0 },
		"range":         func(c *Config) { c.Input.Sections = models.SectionRange{First: 4, Last: 2} },
		"first":         func(c *Config) { c.Input.Sections.First = -2 },
		"format":        func(c *Config) { c.Output.SliceImageFormat = "gif" },
		"output":        func(c *Config) { c.Output.Dir = "" },
		"level":         func(c *Config) { c.Logging.Level = "loud" },
		"gateway":       func(c *Config) { c.Metrics.PushGateway = "not a url" },
		"potts":         func(c *Config) { c.Cost.WeightPotts = -1 },
	} {
		cfg := DefaultConfig()
		modify(cfg)
		assert.Error(t, cfg.Validate(), name)
	}

	cfg := DefaultConfig()
	cfg.Inference.Solver = "file"
	cfg.Inference.SolutionFile = "solution.txt"
	cfg.Metrics.PushGateway = "http://localhost:9091"
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sopnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mser:\n  delta: 0\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("mser: [\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sopnet.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
