// Package settings reads the administrator's onboarding configuration.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"coachhub/onboard/models"
)

const maxBodyBytes = 1 << 20

// Client fetches GuideConfiguration from the portal's public settings
// endpoint. Fields the endpoint leaves out keep their default values.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Defaults   models.GuideConfiguration
}

func NewClient(url string, defaults models.GuideConfiguration) *Client {
	return &Client{
		URL:      url,
		Defaults: defaults,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// envelope matches the portal's {"success": true, "data": {...}} responses.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Fetch performs one GET. On error the caller is expected to fall back to
// Defaults; Fetch itself never returns a partially decoded configuration.
func (c *Client) Fetch(ctx context.Context) (models.GuideConfiguration, error) {
	if c.URL == "" {
		return c.Defaults.Clone(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return models.GuideConfiguration{}, errors.Wrap(err, "building settings request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return models.GuideConfiguration{}, errors.Wrap(err, "fetching guide settings")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.GuideConfiguration{}, errors.Errorf("settings endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.GuideConfiguration{}, errors.Wrap(err, "reading settings response")
	}
	return c.decode(body)
}

func (c *Client) decode(body []byte) (models.GuideConfiguration, error) {
	payload := bytes.TrimSpace(body)
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
	}

	cfg := c.Defaults.Clone()
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return models.GuideConfiguration{}, errors.Wrap(err, "decoding guide settings")
	}
	cfg.Normalize(c.Defaults)
	return cfg, nil
}

// LoadDefaults overlays a YAML file on the built-in configuration. An empty
// path returns the built-in configuration unchanged.
func LoadDefaults(path string) (models.GuideConfiguration, error) {
	builtin := models.DefaultGuideConfiguration()
	if path == "" {
		return builtin, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return builtin, fmt.Errorf("failed to read guide defaults %s: %w", path, err)
	}

	cfg := builtin.Clone()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(file))), &cfg); err != nil {
		return builtin, fmt.Errorf("failed to parse guide defaults %s: %w", path, err)
	}
	cfg.Normalize(builtin)

	log.Printf("Loaded guide defaults from %s", path)
	return cfg, nil
}
