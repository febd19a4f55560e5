package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachhub/onboard/models"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMergesOverDefaults(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
		"guideVisibility": {"showOnQRScan": false, "reShowDays": 3},
		"guideContent": {"heading": "Install CoachHub"},
		"androidSteps": [{"order": 1, "title": "Menu", "description": "Open the menu"}],
		"redirectSettings": {"nonPwaRedirectUrl": "https://portal.example/login"}
	}`)

	defaults := models.DefaultGuideConfiguration()
	cfg, err := NewClient(srv.URL, defaults).Fetch(context.Background())
	require.NoError(t, err)

	assert.False(t, cfg.Visibility.ShowOnQRScan)
	assert.True(t, cfg.Visibility.ShowToNewVisitors, "absent booleans keep their defaults")
	assert.Equal(t, 3, cfg.Visibility.ReShowDays)
	assert.Equal(t, "Install CoachHub", cfg.Content.Heading)
	assert.Equal(t, defaults.Content.SafariNotice, cfg.Content.SafariNotice)
	assert.Len(t, cfg.AndroidSteps, 1)
	assert.Empty(t, cfg.IOSSteps)
	assert.Equal(t, "https://portal.example/login", cfg.Redirect.NonPWARedirectURL)
	assert.Equal(t, defaults.Redirect.PWARedirectURL, cfg.Redirect.PWARedirectURL)
	assert.True(t, cfg.Redirect.Enabled)
}

func TestFetchUnwrapsEnvelope(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success": true, "data": {"redirectSettings": {"enabled": false}}}`)

	cfg, err := NewClient(srv.URL, models.DefaultGuideConfiguration()).Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Redirect.Enabled)
}

func TestFetchDoesNotMutateDefaults(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"redirectSettings": {"roleTargets": {"student": "/s"}}, "guideContent": {"benefits": ["x"]}}`)

	defaults := models.DefaultGuideConfiguration()
	c := NewClient(srv.URL, defaults)
	_, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/student/dashboard", c.Defaults.Redirect.RoleTargets[models.RoleStudent])
	assert.Len(t, c.Defaults.Content.Benefits, 3)
}

func TestFetchErrors(t *testing.T) {
	defaults := models.DefaultGuideConfiguration()

	_, err := NewClient(serve(t, http.StatusInternalServerError, `oops`).URL, defaults).Fetch(context.Background())
	assert.Error(t, err)

	_, err = NewClient(serve(t, http.StatusOK, `{not json`).URL, defaults).Fetch(context.Background())
	assert.Error(t, err)

	_, err = NewClient("http://127.0.0.1:1/settings", defaults).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetchWithoutURLReturnsDefaults(t *testing.T) {
	cfg, err := NewClient("", models.DefaultGuideConfiguration()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultGuideConfiguration(), cfg)
}

func TestLoadDefaultsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
guideVisibility:
  reShowDays: 14
redirectSettings:
  desktopRedirectUrl: /desktop
iosSteps:
  - order: 1
    title: Share
    description: Tap share
`), 0o600))

	cfg, err := LoadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Visibility.ReShowDays)
	assert.True(t, cfg.Visibility.ShowOnQRScan)
	assert.Equal(t, "/desktop", cfg.Redirect.DesktopRedirectURL)
	assert.Equal(t, models.DefaultLoginURL, cfg.Redirect.NonPWARedirectURL)
	require.Len(t, cfg.IOSSteps, 1)
	assert.Equal(t, "Share", cfg.IOSSteps[0].Title)

	_, err = LoadDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = LoadDefaults("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultGuideConfiguration(), cfg)
}
