package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "vector_db:\n  backend: chromem\n  chromem_path: /tmp/x\n  embedding_dim: 384\nembedding:\n  dimension: 384\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VectorBackendChromem, cfg.VectorDB.Backend)
	assert.Equal(t, "/tmp/x", cfg.VectorDB.ChromemPath)
	assert.Equal(t, 384, cfg.VectorDB.EmbeddingDim)
	assert.Equal(t, "ragcrawld", cfg.Server.Name, "unset fields keep their default")
}

func TestLoadRejectsWorldReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  name: x\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "vector_db:\n  backend: chromem\n  chromem_path: /tmp/x\n  embedding_dim: 384\nembedding:\n  dimension: 384\n")
	t.Setenv("RAGCRAWLD_VECTOR_DB__CHROMEM_PATH", "/tmp/from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.VectorDB.ChromemPath)
}

func TestLoadMissingFileFallsBackToDefaultsThenFailsValidation(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err, "defaults alone are invalid (no postgres DSN configured)")
}
