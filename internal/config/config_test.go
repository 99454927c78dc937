// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/style2vec/internal/encoder"
)

// validConfig returns a structurally valid configuration for mutation in
// table tests.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Dataset.Path = "/data/outfits.json"
	cfg.Dataset.ImagesRoot = "/data/images"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dataset path", func(c *Config) { c.Dataset.Path = "" }},
		{"missing images root", func(c *Config) { c.Dataset.ImagesRoot = "" }},
		{"zero batch size", func(c *Config) { c.Training.BatchSize = 0 }},
		{"negative neg samples", func(c *Config) { c.Training.NegSampleCount = -1 }},
		{"zero epochs", func(c *Config) { c.Training.Epochs = 0 }},
		{"zero learn rate", func(c *Config) { c.Training.LearnRate = 0 }},
		{"negative prep workers", func(c *Config) { c.Training.PrepWorkers = -1 }},
		{"missing family", func(c *Config) { c.Model.Family = "" }},
		{"unknown family", func(c *Config) { c.Model.Family = "vgg" }},
		{"missing artifacts dir", func(c *Config) { c.Artifacts.Dir = "" }},
		{"metrics enabled without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error type = %T, want *ConfigurationError", err)
			}
		})
	}
}

func TestValidateUnknownFamilyWrapsSentinel(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Model.Family = "vgg"
	if err := cfg.Validate(); !errors.Is(err, encoder.ErrUnsupportedFamily) {
		t.Errorf("error = %v, want ErrUnsupportedFamily in chain", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATASET_PATH", "/data/outfits.json")
	t.Setenv("IMAGES_ROOT", "/data/images")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Training.BatchSize != 32 {
		t.Errorf("BatchSize = %d, want 32", cfg.Training.BatchSize)
	}
	if cfg.Training.NegSampleCount != 2 {
		t.Errorf("NegSampleCount = %d, want 2", cfg.Training.NegSampleCount)
	}
	if cfg.Training.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Training.Seed)
	}
	if cfg.Model.Family != "inception" {
		t.Errorf("Family = %q, want inception", cfg.Model.Family)
	}
	if cfg.Dataset.Path != "/data/outfits.json" {
		t.Errorf("Dataset.Path = %q", cfg.Dataset.Path)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
dataset:
  path: /data/outfits.json
  images_root: /data/images
training:
  batch_size: 8
  epochs: 2
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", configPath)
	t.Setenv("EPOCHS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// File beats defaults.
	if cfg.Training.BatchSize != 8 {
		t.Errorf("BatchSize = %d, want 8 from file", cfg.Training.BatchSize)
	}
	// Env beats file.
	if cfg.Training.Epochs != 7 {
		t.Errorf("Epochs = %d, want 7 from env", cfg.Training.Epochs)
	}
}

func TestLoadRejectsUnknownFamilyBeforeAnyIO(t *testing.T) {
	t.Setenv("DATASET_PATH", filepath.Join(t.TempDir(), "absent.json"))
	t.Setenv("IMAGES_ROOT", "/data/images")
	t.Setenv("MODEL_FAMILY", "resnet")

	// The dataset file does not exist; the family check must fire first.
	_, err := Load()
	if !errors.Is(err, encoder.ErrUnsupportedFamily) {
		t.Errorf("Load() error = %v, want ErrUnsupportedFamily", err)
	}
}

func TestEnvTransformDropsUnknownKeys(t *testing.T) {
	t.Parallel()

	if got := envTransformFunc("BATCH_SIZE"); got != "training.batch_size" {
		t.Errorf("BATCH_SIZE -> %q", got)
	}
	if got := envTransformFunc("HOME"); got != "" {
		t.Errorf("HOME -> %q, want dropped", got)
	}
}
