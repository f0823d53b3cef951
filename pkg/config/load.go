package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads, normalizes and validates the configuration at location, which
// may be a local path or an http(s) URL. A missing local file yields the
// defaults unless required is set.
func Load(ctx context.Context, location string, required bool) (*Config, error) {
	content, err := read(ctx, location)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg, err := Parse(content, formatOf(location))
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", location, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", location, err)
	}
	return cfg, nil
}

// Parse decodes content as yaml or toml and normalizes the result.
func Parse(content []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case "toml":
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, err
		}
	}
	Normalize(&cfg)
	return &cfg, nil
}

func formatOf(location string) string {
	ext := filepath.Ext(location)
	if IsRemoteLocation(location) {
		ext = path.Ext(strings.SplitN(location, "?", 2)[0])
	}
	if strings.EqualFold(ext, ".toml") {
		return "toml"
	}
	return "yaml"
}

func read(ctx context.Context, location string) ([]byte, error) {
	if IsRemoteLocation(location) {
		return readRemote(ctx, location)
	}
	return os.ReadFile(location)
}

func readRemote(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("load config failed: %s status=%d", location, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
