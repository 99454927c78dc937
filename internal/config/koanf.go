// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/style2vec/config.yaml",
	"/etc/style2vec/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:         "",
			ImagesRoot:   "",
			OutfitsLimit: 0,
			SamplesLimit: 0,
		},
		Training: TrainingConfig{
			BatchSize:      32,
			NegSampleCount: 2,
			Epochs:         10,
			LearnRate:      0.001,
			FineTune:       false,
			Seed:           42,
			PrepWorkers:    0,
		},
		Model: ModelConfig{
			Family:      "inception",
			WeightsPath: "",
		},
		Artifacts: ArtifactsConfig{
			Dir: "/data/style2vec",
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			Addr:            ":9090",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values
//  2. Config File: optional YAML file (if one exists)
//  3. Environment Variables: highest priority
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// DATASET_PATH -> dataset.path, BATCH_SIZE -> training.batch_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile searches for a config file, the env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so unrelated environment state cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"dataset_path":  "dataset.path",
		"images_root":   "dataset.images_root",
		"outfits_limit": "dataset.outfits_limit",
		"samples_limit": "dataset.samples_limit",

		"batch_size":   "training.batch_size",
		"neg_samples":  "training.neg_samples",
		"epochs":       "training.epochs",
		"learn_rate":   "training.learn_rate",
		"fine_tune":    "training.fine_tune",
		"seed":         "training.seed",
		"prep_workers": "training.prep_workers",

		"model_family":  "model.family",
		"model_weights": "model.weights_path",

		"artifacts_dir": "artifacts.dir",

		"metrics_enabled":          "metrics.enabled",
		"metrics_addr":             "metrics.addr",
		"metrics_shutdown_timeout": "metrics.shutdown_timeout",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
