package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "crawl:\n  memory_threshold_mb: 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	w, err := Watch(ctx, path, zap.NewNop(), func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("vector_db:\n  backend: chromem\n  chromem_path: /tmp/x\ncrawl:\n  memory_threshold_mb: 500\n"), 0600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, float64(500), cfg.Crawl.MemoryThresholdMB)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatchReactsToFileCreatedAfterWatchStarts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	w, err := Watch(ctx, path, zap.NewNop(), func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("vector_db:\n  backend: chromem\n  chromem_path: /tmp/x\ncrawl:\n  memory_threshold_mb: 250\n"), 0600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, float64(250), cfg.Crawl.MemoryThresholdMB)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload after file creation")
	}
}

func TestWatchIgnoresUnrelatedFilesInSameDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "crawl:\n  memory_threshold_mb: 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	w, err := Watch(ctx, path, zap.NewNop(), func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("noise"), 0600))

	select {
	case <-reloaded:
		t.Fatal("unrelated file write should not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
