package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/plateforme/homegarden/internal/model"
)

// FilePersistence keeps the configuration in a single JSON file (data.json).
// Writes go through a temp file and rename so readers never see a torn
// config.
type FilePersistence struct {
	path string
}

// NewFilePersistence opens the config file, seeding it with the default
// plant profiles when it does not exist yet.
func NewFilePersistence(path string) (*FilePersistence, error) {
	fp := &FilePersistence{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := fp.Store(DefaultConfig()); err != nil {
			return nil, fmt.Errorf("seed default config: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return fp, nil
}

func (fp *FilePersistence) Load() (model.SystemConfig, error) {
	raw, err := os.ReadFile(fp.path)
	if err != nil {
		return model.SystemConfig{}, err
	}
	var cfg model.SystemConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.SystemConfig{}, fmt.Errorf("parse %s: %w", fp.path, err)
	}
	if cfg.MinWateringIntervalMinutes <= 0 {
		cfg.MinWateringIntervalMinutes = model.DefaultMinWateringIntervalMinutes
	}
	return cfg, nil
}

func (fp *FilePersistence) Store(cfg model.SystemConfig) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := fp.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fp.path)
}

// Path returns the backing file location.
func (fp *FilePersistence) Path() string { return filepath.Clean(fp.path) }
