package main

import (
	"Go2NetClassifier/internal/config"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Apply(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts := NewOptions()
	opts.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--upstream", "stdin",
		"--classifier", "centroid",
		"--centroids", "model.yaml",
		"--cadence", "5",
		"--timeout", "1m",
		"--all-flows",
		"train", "Voice",
	}))

	cfg := config.Default()
	opts.Apply(cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "stdin", cfg.Upstream.Type)
	assert.Equal(t, "centroid", cfg.Classifier.Type)
	assert.Equal(t, "model.yaml", cfg.Classifier.CentroidPath)
	assert.Equal(t, 5, cfg.Engine.Cadence)
	assert.Equal(t, time.Minute, cfg.Training.Timeout)
	assert.True(t, cfg.Training.AllFlows)
	// Flags that were not given keep the configured values.
	assert.Equal(t, "127.0.0.1:50051", cfg.Classifier.GRPC.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.Equal(t, []string{"train", "Voice"}, fs.Args())
}

func TestParseCommand(t *testing.T) {
	mode, label, err := parseCommand([]string{"train", "Telnet"})
	require.NoError(t, err)
	assert.Equal(t, modeTrain, mode)
	assert.Equal(t, "Telnet", label)

	mode, label, err = parseCommand([]string{"classify"})
	require.NoError(t, err)
	assert.Equal(t, modeClassify, mode)
	assert.Empty(t, label)

	for _, args := range [][]string{
		nil,
		{"train"},
		{"train", "FTP"},
		{"train", "Voice", "extra"},
		{"classify", "Voice"},
		{"serve"},
	} {
		_, _, err := parseCommand(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig("does/not/exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}
