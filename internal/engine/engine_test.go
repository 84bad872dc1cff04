package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txservice/internal/config"
)

func loadConfig(t *testing.T, yaml string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "txservice.yml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestEngineRunsUntilCancelled(t *testing.T) {
	cfg := loadConfig(t, `
http:
  addr: 127.0.0.1:0
  shutdown_timeout: 2s
grpc:
  enabled: true
  addr: 127.0.0.1:0
`)
	e, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, e.Service().Directives())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngineFailsOnBadAddress(t *testing.T) {
	cfg := loadConfig(t, "http:\n  addr: 256.0.0.1:1\n")
	e, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not report the listen failure")
	}
}

func TestBootstrapRejectsMissingPipeline(t *testing.T) {
	cfg := loadConfig(t, "stream:\n  pipeline: /does/not/exist.yml\n")
	_, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBootstrapRejectsBadUserDirectives(t *testing.T) {
	dir := t.TempDir()
	user := filepath.Join(dir, "user.yml")
	require.NoError(t, os.WriteFile(user, []byte("directives:\n  - name: broken\n    expression: 'value +'\n"), 0o644))
	cfg := loadConfig(t, "directives:\n  user_file: "+user+"\n")
	_, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
}
