// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package config holds the trainer configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/style2vec/internal/encoder"
)

// ConfigurationError reports an invalid or inconsistent configuration. It
// is returned before any dataset or image I/O happens.
type ConfigurationError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Config holds all trainer settings.
type Config struct {
	Dataset   DatasetConfig   `koanf:"dataset"`
	Training  TrainingConfig  `koanf:"training"`
	Model     ModelConfig     `koanf:"model"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatasetConfig locates the outfit dataset and bounds how much of it is
// used.
type DatasetConfig struct {
	// Path is the outfit JSON file.
	Path string `koanf:"path" validate:"required"`

	// ImagesRoot is the directory item image paths are resolved against.
	ImagesRoot string `koanf:"images_root" validate:"required"`

	// OutfitsLimit caps the dataset to its first N outfits. Zero or
	// negative means no cap.
	OutfitsLimit int `koanf:"outfits_limit"`

	// SamplesLimit caps the per-epoch sample count. Zero or negative
	// means no cap.
	SamplesLimit int `koanf:"samples_limit"`
}

// TrainingConfig holds the optimization hyperparameters.
type TrainingConfig struct {
	// BatchSize is the number of pairs per training step.
	BatchSize int `koanf:"batch_size" validate:"gt=0"`

	// NegSampleCount is the number of negatives drawn per item.
	NegSampleCount int `koanf:"neg_samples" validate:"gte=0"`

	// Epochs is the number of passes over the regenerated sample set.
	Epochs int `koanf:"epochs" validate:"gt=0"`

	// LearnRate is the Adam learning rate.
	LearnRate float64 `koanf:"learn_rate" validate:"gt=0"`

	// FineTune unfreezes the upper encoder layers.
	FineTune bool `koanf:"fine_tune"`

	// Seed fixes the sampling RNG for reproducible runs.
	Seed int64 `koanf:"seed"`

	// PrepWorkers bounds concurrent image preparation. Zero means one
	// worker per batch element.
	PrepWorkers int `koanf:"prep_workers" validate:"gte=0"`
}

// ModelConfig selects the encoder architecture.
type ModelConfig struct {
	// Family is the tower architecture family, e.g. "inception".
	Family string `koanf:"family" validate:"required"`

	// WeightsPath optionally points at a weight file written by a previous
	// run; the parameters are restored before training starts.
	WeightsPath string `koanf:"weights_path"`
}

// ArtifactsConfig controls run persistence.
type ArtifactsConfig struct {
	// Dir is the root directory run artifacts are written under.
	Dir string `koanf:"dir" validate:"required"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Enabled starts the /metrics listener.
	Enabled bool `koanf:"enabled"`

	// Addr is the listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful listener shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for structural problems. It runs
// before any file is touched, so a bad config never leaves partial
// artifacts behind.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return &ConfigurationError{
				Field: first.Namespace(),
				Err:   fmt.Errorf("failed %q constraint", first.Tag()),
			}
		}
		return &ConfigurationError{Err: err}
	}

	if _, err := encoder.ParseFamily(c.Model.Family); err != nil {
		return &ConfigurationError{Field: "Model.Family", Err: err}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return &ConfigurationError{
			Field: "Metrics.Addr",
			Err:   fmt.Errorf("required when metrics are enabled"),
		}
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the slice directly
	if ok {
		*target = verrs
	}
	return ok
}
