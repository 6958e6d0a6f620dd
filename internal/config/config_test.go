package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.RPC.Endpoints)
	assert.Equal(t, 10*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, 5*time.Second, cfg.RPC.ProbeInterval)
	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Equal(t, 100, cfg.Sync.MaxPages)
	assert.Equal(t, 10*time.Second, cfg.Sync.PageDelay)
	assert.Equal(t, 20, cfg.Sync.InitialRecipients)
	assert.Equal(t, time.Hour, cfg.Sync.GapThreshold)
	assert.Equal(t, 5, cfg.Sync.MaxDepth)
	assert.Equal(t, 30*time.Second, cfg.Sync.RerunDelay)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "tokensync.yaml", `
rpc:
  endpoints:
    - https://a.example.com
    - https://b.example.com
  terminal_codes: [-32602]
sync:
  mints: [MintA]
  page_delay: 2s
storage:
  backend: postgres
  postgres_dsn: postgres://file
log:
  format: json
`)
	t.Setenv("TOKENSYNC_STORAGE_POSTGRES_DSN", "postgres://env")
	t.Setenv("TOKENSYNC_SYNC_MAX_PAGES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RPC.Endpoints)
	assert.Equal(t, []int{-32602}, cfg.RPC.TerminalCodes)
	assert.Equal(t, []string{"MintA"}, cfg.Sync.Mints)
	assert.Equal(t, 2*time.Second, cfg.Sync.PageDelay)
	assert.Equal(t, 7, cfg.Sync.MaxPages)
	assert.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvLists(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOKENSYNC_RPC_ENDPOINTS", "https://a.example.com, https://b.example.com")
	t.Setenv("TOKENSYNC_SYNC_MINTS", "MintA,MintB")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RPC.Endpoints)
	assert.Equal(t, []string{"MintA", "MintB"}, cfg.Sync.Mints)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOKENSYNC_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TOKENSYNC_LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("TOKENSYNC_STORAGE_BACKEND", "postgres")
	_, err := Load("")
	assert.Error(t, err, "postgres without dsn")

	t.Setenv("TOKENSYNC_STORAGE_BACKEND", "sqlite")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("TOKENSYNC_STORAGE_BACKEND", "memory")
	t.Setenv("TOKENSYNC_LOG_LEVEL", "loud")
	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
