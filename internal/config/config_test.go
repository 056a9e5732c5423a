package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Len(t, cfg.SessionKey(), 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Second load reads the same secret back.
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Session.Secret, again.Session.Secret)
}

func TestLoadUsesDefaultsWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	// A dangling symlink reads as missing but cannot be created under.
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), link))
	path := filepath.Join(link, "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Len(t, cfg.SessionKey(), 32)

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("listen: \":9000\"\nweek_start: friday\ncalendar_months: 40\ndatabase:\n  driver: mysql\n  dsn: \"u:p@tcp(db:3306)/parkalot\"\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, 12, cfg.CalendarMonths)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, defaultHousekeeping, cfg.Housekeeping)
	assert.NotEmpty(t, cfg.Session.Secret)
	assert.Equal(t, 10, cfg.LoginLimit.PerMinute)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	assert.Equal(t, "Local", cfg.Location().String())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestSessionKeyAcceptsRawSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Secret = "not-hex!"
	assert.Equal(t, []byte("not-hex!"), cfg.SessionKey())
}
