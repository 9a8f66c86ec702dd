package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidesigner/sopnet/pkg/config"
)

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "sopnet.yaml")
	require.NoError(t, config.CreateDefaultConfigFile(configPath))

	flags := runCmd.Flags()
	require.NoError(t, flags.Set("input", "/data/sections"))
	require.NoError(t, flags.Set("output", dir))
	require.NoError(t, flags.Set("cores", "3"))
	require.NoError(t, flags.Set("no-rasters", "true"))
	require.NoError(t, flags.Set("solution", "solution.txt"))

	cfg, err := loadConfig(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "/data/sections", cfg.Input.ImageDir)
	assert.Equal(t, dir, cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Processing.NumCores)
	assert.False(t, cfg.Output.SaveNeuronRasters)
	assert.True(t, cfg.Output.SaveIntermediaryResults)
	assert.Equal(t, "file", cfg.Inference.Solver)
	assert.Equal(t, "solution.txt", cfg.Inference.SolutionFile)

	require.NoError(t, flags.Set("solver", "magic"))
	require.NoError(t, flags.Set("solution", ""))
	_, err = loadConfig(runCmd)
	assert.Error(t, err)
}
