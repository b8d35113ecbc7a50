package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_CreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Chdir(dir)

	manager, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	cfg := manager.Get()
	require.Len(t, cfg.Scanner.Libraries, 1)
	assert.True(t, filepath.IsAbs(cfg.Scanner.Libraries[0].Path))
	assert.Equal(t, DefaultExcludeFile, cfg.Scanner.ExcludeFile)
	assert.Equal(t, "daily", cfg.Scanner.UpdatePeriod)
	assert.Equal(t, path, manager.Path())
}

func TestLoad_AppliesDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TELEGRAM_TOKEN", "secret")
	t.Setenv("SOULSCAN_DB_PATH", filepath.Join(dir, "db", "scan.db"))

	path := writeConfig(t, `
database:
  path: ./library.db
scanner:
  libraries:
    - name: Music
      path: /srv/music
`)
	manager, err := Load(path)
	require.NoError(t, err)

	cfg := manager.Get()
	assert.Equal(t, "never", cfg.Scanner.UpdatePeriod)
	assert.Equal(t, DefaultWriteBatchSize, cfg.Scanner.WriteBatchSize)
	assert.Greater(t, cfg.Scanner.Workers, 0)
	assert.Equal(t, "secret", cfg.Telegram.Token)
	assert.Equal(t, filepath.Join(dir, "db", "scan.db"), cfg.Database.Path)
	assert.DirExists(t, filepath.Join(dir, "db"))
	assert.NotContains(t, manager.GetYAML(), "secret")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := map[string]string{
		"no libraries": `
database:
  path: ./library.db
`,
		"bad period": `
database:
  path: ./library.db
scanner:
  update_period: yearly
  libraries:
    - name: Music
      path: /srv/music
`,
		"bad plugin": `
database:
  path: ./library.db
scanner:
  plugins: [audio, video]
  libraries:
    - name: Music
      path: /srv/music
`,
		"bad start time": `
database:
  path: ./library.db
scanner:
  start_time: "25:99"
  libraries:
    - name: Music
      path: /srv/music
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestManager_Reload(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
database:
  path: ./library.db
scanner:
  libraries:
    - name: Music
      path: /srv/music
`)
	manager, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: ./library.db
scanner:
  schedule: "0 4 * * *"
  libraries:
    - name: Music
      path: /srv/music
    - name: Podcasts
      path: /srv/podcasts
`), 0644))
	require.NoError(t, manager.Reload())
	assert.Len(t, manager.Get().Scanner.Libraries, 2)
	assert.Equal(t, "0 4 * * *", manager.Get().Scanner.Schedule)

	require.NoError(t, os.WriteFile(path, []byte("scanner: ["), 0644))
	assert.Error(t, manager.Reload())
	assert.Len(t, manager.Get().Scanner.Libraries, 2)
}
