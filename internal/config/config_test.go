package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Engine.QualityThreshold, cfg.Engine.QualityThreshold)
	assert.Equal(t, cfg, l.Current())
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memoryd.yaml")
	yaml := []byte("storage:\n  dsn: custom.db\nengine:\n  quality_threshold: 0.55\nlog:\n  level: debug\n  format: json\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "custom.db", cfg.Storage.DSN)
	assert.Equal(t, 0.55, cfg.Engine.QualityThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}
