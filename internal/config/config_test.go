package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digital-sign", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.SlideInterval())
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIURL, again.APIURL)
	assert.Equal(t, cfg.SlideIntervalSeconds, again.SlideIntervalSeconds)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
api_url = "https://events.example.org/"
window_width = 1280
window_height = 720
slide_interval_seconds = 15
refresh_interval_minutes = 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://events.example.org", cfg.APIURL)
	assert.Equal(t, 1280, cfg.WindowWidth)
	assert.Equal(t, 15*time.Second, cfg.SlideInterval())
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, SourceAPI, cfg.Source)
	assert.Equal(t, defaultListen, cfg.Listen)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
source: ICS
timezone: America/New_York
ics:
  - id: church
    url: https://calendar.example.org/feed.ics
basic_auth:
  username: kiosk
  password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceICS, cfg.Source)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "church", cfg.ICS[0].ID)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "kiosk", cfg.BasicAuth.Username)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("slide_interval_seconds = [oops"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeClampsTickBelowSlide(t *testing.T) {
	cfg := &Config{SlideIntervalSeconds: 1, TickIntervalMillis: 5000}
	cfg.Normalize()
	assert.Less(t, cfg.TickInterval(), cfg.SlideInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval())
}

func TestNormalizeUnknownSource(t *testing.T) {
	cfg := &Config{Source: "carrier-pigeon"}
	cfg.Normalize()
	assert.Equal(t, SourceAPI, cfg.Source)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestSaveRoundTripYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.SlideIntervalSeconds = 20
	cfg.ICS = []ICSConfig{{ID: "a", URL: "https://example.org/a.ics"}}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.SlideIntervalSeconds)
	assert.Equal(t, cfg.ICS, loaded.ICS)
}
