package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// cliConfig holds persisted defaults for the REPL, loaded from a JSONC
// (hujson) file so the config can carry comments.
type cliConfig struct {
	Dimension         uint32  `json:"dimension"`
	CompactRatio      float64 `json:"compact_ratio"`       //nolint:tagliatelle
	CompactCount      int     `json:"compact_count"`       //nolint:tagliatelle
	EnableAutoCompact bool    `json:"enable_auto_compact"` //nolint:tagliatelle
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Dimension:         128,
		CompactRatio:      0.5,
		CompactCount:      1000,
		EnableAutoCompact: true,
	}
}

// loadCLIConfig reads a JSONC config file at path, if it exists, layering
// it over the defaults. A missing file is not an error.
func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", path, err)
	}

	return cfg, nil
}

// saveCLIConfig writes cfg to path atomically (temp file + rename), so a
// crash mid-write never leaves a half-written config behind.
func saveCLIConfig(path string, cfg cliConfig) error {
	buf, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}

	return nil
}
