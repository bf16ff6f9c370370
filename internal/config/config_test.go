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
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Adapter)
	assert.Equal(t, "fieldbook.db", cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5.0, cfg.Remote.Rate)
	assert.Equal(t, 5, cfg.Remote.Burst)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
	assert.Equal(t, []string{"child", "enquiry"}, cfg.Sync.Kinds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.File)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.RequireUser())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "fieldbook.yaml")
	content := `
user:
  name: worker1
  verified: true
  organisation: unicef
store:
  adapter: fs
  path: ./data
  format: yaml
remote:
  url: https://rapidftr.example.org
  timeout: 10s
sync:
  interval: 5m
  kinds: [child]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("FIELDBOOK_REMOTE_TOKEN", "secret")
	t.Setenv("FIELDBOOK_USER_ORGANISATION", "unhcr")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "worker1", cfg.User.Name)
	assert.True(t, cfg.User.Verified)
	assert.Equal(t, "unhcr", cfg.User.Organisation)
	assert.Equal(t, "fs", cfg.Store.Adapter)
	assert.Equal(t, "yaml", cfg.Store.Format)
	assert.Equal(t, "https://rapidftr.example.org", cfg.Remote.URL)
	assert.Equal(t, "secret", cfg.Remote.Token)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, []string{"child"}, cfg.Sync.Kinds)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.RequireUser())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FIELDBOOK_USER_NAME=from-dotenv\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("FIELDBOOK_USER_NAME") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.User.Name)
}

func TestLoad_FindsProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "forms", "child")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "fieldbook.yaml"), []byte("user:\n  name: from-root\n"), 0644))
	t.Chdir(nested)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-root", cfg.User.Name)
	assert.Equal(t, "fieldbook.yaml", filepath.Base(cfg.File))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Adapter: "sqlite", Format: "json"},
			Remote: RemoteConfig{Rate: 5, Burst: 5},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Unknown Adapter", func(c *Config) { c.Store.Adapter = "postgres" }},
		{"Unknown Format", func(c *Config) { c.Store.Adapter = "fs"; c.Store.Format = "toml" }},
		{"Negative Interval", func(c *Config) { c.Sync.Interval = -time.Second }},
		{"Zero Rate", func(c *Config) { c.Remote.Rate = 0 }},
		{"Zero Burst", func(c *Config) { c.Remote.Burst = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
