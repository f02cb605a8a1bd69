package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50, cfg.Search.RetrievalWidth)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 0.3, cfg.Search.SimilarityThreshold)
	assert.Equal(t, 200, cfg.Search.SnippetLength)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartdoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  top_k: 10
  retrieval_width: 100
server:
  port: 9090
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 100, cfg.Search.RetrievalWidth)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, "smartdoc.embeddings", cfg.Queue.Subject)
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartdoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("SMARTDOC_PORT", "7070")
	t.Setenv("SMARTDOC_DATABASE_DSN", "postgres://env/override")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://env/override", cfg.Database.DSN)
}

func TestValidateRejectsTopKAboveWidth(t *testing.T) {
	cfg := Default()
	cfg.Search.TopK = 80
	cfg.Search.RetrievalWidth = 50
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	cfg.Search.SimilarityThreshold = 1.5
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartdoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: ["), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
