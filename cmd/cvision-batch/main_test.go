package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvision/internal/config"
)

func TestApplyFlagsOnlyOverridesChanged(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts)
	require.NoError(t, fs.Parse([]string{"--input", "cvs", "--workers", "8", "--skill-strategy", "phrase", "--ext", "txt,pdf"}))

	cfg := config.DefaultConfig()
	applyFlags(cfg, fs, &opts)

	assert.Equal(t, "cvs", cfg.Processing.InputDir)
	assert.Equal(t, "outputs", cfg.Processing.OutputDir)
	assert.Equal(t, 8, cfg.Processing.Workers)
	assert.Equal(t, "phrase", cfg.Extraction.SkillStrategy)
	assert.Equal(t, 0.4, cfg.Extraction.SimilarityThreshold)
	assert.Equal(t, []string{"txt", "pdf"}, cfg.Processing.Extensions)
}

func TestApplyFlagsThresholdZero(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts)
	require.NoError(t, fs.Parse([]string{"--threshold", "0"}))

	cfg := config.DefaultConfig()
	applyFlags(cfg, fs, &opts)
	assert.Equal(t, 0.0, cfg.Extraction.SimilarityThreshold)
}

func TestExportTarget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Processing.OutputDir = "out"

	cfg.Processing.ExportFile = "all.csv"
	assert.Equal(t, filepath.Join("out", "all.csv"), exportTarget(cfg))

	cfg.Processing.ExportFile = filepath.Join("reports", "all.xlsx")
	assert.Equal(t, filepath.Join("reports", "all.xlsx"), exportTarget(cfg))

	cfg.Processing.ExportFile = ""
	assert.Equal(t, "", exportTarget(cfg))
}
