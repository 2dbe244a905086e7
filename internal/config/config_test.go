package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.API.Port)
	assert.Equal(t, BackendMemory, cfg.Queue.Backend)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Queue.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Queue.MaxDelay)
	assert.Equal(t, "*/10 * * * *", cfg.Queue.PruneCron)
	assert.Equal(t, 2*time.Second, cfg.Script.Timeout)
	assert.Equal(t, "echo", cfg.Provider.Kind)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptflow.yaml")
	content := `
queue:
  backend: amqp
  max_attempts: 5
  initial_delay: 250ms
provider:
  kind: gateway
  url: http://gateway:8090
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DB_URL", "postgresql://u:p@db:5432/pf")
	t.Setenv("PROMPTFLOW_API_PORT", "9999")
	t.Setenv("PROMPTFLOW_SCRIPT_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendAMQP, cfg.Queue.Backend)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.InitialDelay)
	assert.Equal(t, "postgresql://u:p@db:5432/pf", cfg.DB.URL)
	assert.Equal(t, "9999", cfg.API.Port)
	assert.Equal(t, 5*time.Second, cfg.Script.Timeout)
	assert.Equal(t, "DEBUG", cfg.Log.Level)

	pc := cfg.ProviderConfig()
	assert.Equal(t, "gateway", pc.Kind)
	assert.Equal(t, "http://gateway:8090", pc.Gateway.BaseURL)

	rp := cfg.RetryPolicy()
	assert.Equal(t, 5, rp.MaxAttempts)
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROMPTFLOW_QUEUE_BACKEND", "kafka")

	_, err := Load("")
	assert.ErrorContains(t, err, "invalid queue.backend")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
