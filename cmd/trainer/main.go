// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package main is the entry point for the Style2Vec trainer.
//
// Style2Vec learns fashion-item embeddings from outfit co-occurrence: two
// Inception-style image towers score whether a pair of items appears in
// the same outfit, trained with negative sampling over the outfit dataset.
//
// # Application Flow
//
// The trainer initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Logging: Structured zerolog output per the logging config
//  3. Metrics (optional): Prometheus exposition endpoint
//  4. Pipeline: Dataset loader, image preprocessor and sample generator
//  5. Model: Dual-encoder graph, compiled at the configured batch size
//  6. Fit loop: Epoch/step training with per-epoch checkpoints
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. Required settings:
//
//	export DATASET_PATH=/data/outfits.json
//	export IMAGES_ROOT=/data/images
//
// Common overrides:
//
//	export BATCH_SIZE=32
//	export NEG_SAMPLES=2
//	export EPOCHS=10
//	export FINE_TUNE=true
//	export ARTIFACTS_DIR=/data/style2vec
//	export METRICS_ENABLED=true
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the run context. The fit loop stops at the
// next batch boundary and persists the current weights alongside a
// failure report before exiting.
//
// # Exit Codes
//
// 0 on a completed run, 1 on configuration or training failure. Training
// failures leave artifacts under the run directory either way.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/style2vec/internal/artifacts"
	"github.com/tomtom215/style2vec/internal/config"
	"github.com/tomtom215/style2vec/internal/encoder"
	"github.com/tomtom215/style2vec/internal/logging"
	"github.com/tomtom215/style2vec/internal/metrics"
	"github.com/tomtom215/style2vec/internal/model"
	"github.com/tomtom215/style2vec/internal/preprocess"
	"github.com/tomtom215/style2vec/internal/sampling"
	"github.com/tomtom215/style2vec/internal/training"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("dataset", cfg.Dataset.Path).
		Str("images_root", cfg.Dataset.ImagesRoot).
		Str("family", cfg.Model.Family).
		Int("batch_size", cfg.Training.BatchSize).
		Int("epochs", cfg.Training.Epochs).
		Bool("fine_tune", cfg.Training.FineTune).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logging.Error().Err(err).Msg("Metrics endpoint failed")
			}
		}()
	}

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("Training run failed")
		os.Exit(1)
	}
}

// run wires the pipeline and executes the fit loop. Every component error
// is returned rather than logged-and-swallowed so main owns the exit code.
func run(ctx context.Context, cfg *config.Config) error {
	family, err := encoder.ParseFamily(cfg.Model.Family)
	if err != nil {
		return err
	}

	prep, err := preprocess.New(cfg.Dataset.ImagesRoot, family)
	if err != nil {
		return err
	}

	gen, err := sampling.NewGenerator(sampling.Config{
		DatasetPath:    cfg.Dataset.Path,
		NegSampleCount: cfg.Training.NegSampleCount,
		BatchSize:      cfg.Training.BatchSize,
		OutfitsLimit:   cfg.Dataset.OutfitsLimit,
		SamplesLimit:   cfg.Dataset.SamplesLimit,
		Seed:           cfg.Training.Seed,
		PrepWorkers:    cfg.Training.PrepWorkers,
	}, prep)
	if err != nil {
		return err
	}

	m, err := model.New(model.Config{
		Family:    family,
		BatchSize: cfg.Training.BatchSize,
		FineTune:  cfg.Training.FineTune,
		LearnRate: cfg.Training.LearnRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing model")
		}
	}()

	if cfg.Model.WeightsPath != "" {
		weights, meta, err := artifacts.LoadWeights(cfg.Model.WeightsPath)
		if err != nil {
			return err
		}
		if err := m.LoadWeights(weights); err != nil {
			return err
		}
		logging.Info().
			Str("path", cfg.Model.WeightsPath).
			Str("source_run", meta.RunID).
			Msg("Pretrained weights restored")
	}

	runID := artifacts.NewRunID(time.Now())
	store, err := artifacts.NewStore(cfg.Artifacts.Dir, runID)
	if err != nil {
		return err
	}
	logging.Info().Str("run_id", runID).Str("run_dir", store.Dir()).Msg("Run artifacts directory ready")

	trainer := training.New(cfg, m, gen, store)
	result, err := trainer.Fit(ctx)
	if err != nil {
		return err
	}

	logging.Info().
		Str("run_id", result.RunID).
		Str("model", result.FinalPath).
		Int("epochs", result.EpochsCompleted).
		Float32("final_loss", result.FinalLoss).
		Float32("final_accuracy", result.FinalAccuracy).
		Msg("Training run completed")
	return nil
}
