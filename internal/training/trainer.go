// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package training drives the epoch/step loop of a run.
//
// The trainer pulls batches from the sampling iterator, feeds them to the
// model, checkpoints after every epoch and writes the final artifacts. A
// failure anywhere in the loop persists the current weights and a failure
// report before the error is returned, so a long run never dies without a
// trace on disk.
package training

import (
	"context"
	"fmt"
	"time"

	"gorgonia.org/tensor"

	"github.com/tomtom215/style2vec/internal/artifacts"
	"github.com/tomtom215/style2vec/internal/config"
	"github.com/tomtom215/style2vec/internal/dataset"
	"github.com/tomtom215/style2vec/internal/logging"
	"github.com/tomtom215/style2vec/internal/metrics"
	"github.com/tomtom215/style2vec/internal/sampling"
)

// TrainingFailure reports a run that died mid-training. The failure
// artifacts have already been persisted when it is returned.
type TrainingFailure struct {
	Epoch int
	Step  int
	Err   error
}

// Error implements the error interface.
func (e *TrainingFailure) Error() string {
	return fmt.Sprintf("training failed at epoch %d step %d: %v", e.Epoch, e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TrainingFailure) Unwrap() error {
	return e.Err
}

// Model is the trainable consumer of prepared batches. Implemented by
// model.Model; stubbed in tests.
type Model interface {
	TrainOnBatch(targets, contexts *tensor.Dense, labels []float32) (loss, accuracy float32, err error)
	Snapshot() (artifacts.Weights, error)
}

// BatchSource yields prepared batches, regenerating samples between epoch
// passes. Implemented by sampling.BatchIterator.
type BatchSource interface {
	Next(ctx context.Context) (*sampling.Batch, error)
	Epoch() int
}

// SampleSource owns the dataset and the batch stream. Implemented by the
// generatorSource adapter over sampling.Generator; stubbed in tests.
type SampleSource interface {
	GenerateSamples() ([]sampling.Sample, error)
	StepsPerEpoch() int
	Dataset() dataset.Dataset
	Batches() BatchSource
}

// generatorSource adapts *sampling.Generator to the SampleSource
// interface.
type generatorSource struct {
	*sampling.Generator
}

func (g generatorSource) Batches() BatchSource {
	return g.Generator.Batches()
}

// Result summarizes a completed run.
type Result struct {
	RunID           string
	RunDir          string
	FinalPath       string
	EpochsCompleted int
	StepsPerEpoch   int
	FinalLoss       float32
	FinalAccuracy   float32
}

// Trainer runs the fit loop for one run.
type Trainer struct {
	cfg    *config.Config
	model  Model
	source SampleSource
	store  *artifacts.Store

	startedAt   time.Time
	sampleCount int
}

// New creates a trainer over a sampling generator.
func New(cfg *config.Config, m Model, gen *sampling.Generator, store *artifacts.Store) *Trainer {
	return NewWithSource(cfg, m, generatorSource{gen}, store)
}

// NewWithSource creates a trainer over an arbitrary sample source.
func NewWithSource(cfg *config.Config, m Model, source SampleSource, store *artifacts.Store) *Trainer {
	return &Trainer{
		cfg:    cfg,
		model:  m,
		source: source,
		store:  store,
	}
}

// Fit runs the configured number of epochs. The step count per epoch is
// fixed by the first sample pass; later passes regenerate and reshuffle
// but the loop geometry never changes. On failure the current weights and
// a report are persisted and a *TrainingFailure is returned.
func (t *Trainer) Fit(ctx context.Context) (*Result, error) {
	t.startedAt = time.Now()

	samples, err := t.source.GenerateSamples()
	if err != nil {
		return nil, t.fail(0, 0, err)
	}
	t.sampleCount = len(samples)
	steps := t.source.StepsPerEpoch()
	if steps == 0 {
		return nil, t.fail(0, 0,
			fmt.Errorf("no full batch available: %d samples at batch size %d",
				len(samples), t.cfg.Training.BatchSize))
	}

	log := logging.Ctx(ctx)
	log.Info().
		Str("run_id", t.store.RunID()).
		Int("epochs", t.cfg.Training.Epochs).
		Int("steps_per_epoch", steps).
		Int("samples", len(samples)).
		Msg("training started")

	var lastLoss, lastAccuracy float32
	batches := t.source.Batches()

	for epoch := 1; epoch <= t.cfg.Training.Epochs; epoch++ {
		epochStart := time.Now()
		var epochLoss float64

		for step := 1; step <= steps; step++ {
			batch, err := batches.Next(ctx)
			if err != nil {
				return nil, t.fail(epoch, step, err)
			}

			loss, accuracy, err := t.model.TrainOnBatch(batch.Targets, batch.Contexts, batch.Labels)
			if err != nil {
				return nil, t.fail(epoch, step, err)
			}
			lastLoss, lastAccuracy = loss, accuracy
			epochLoss += float64(loss)
		}

		meta := t.metadata(epoch, lastLoss, lastAccuracy, steps)
		weights, err := t.model.Snapshot()
		if err != nil {
			return nil, t.fail(epoch, steps, fmt.Errorf("snapshot weights: %w", err))
		}
		path, err := t.store.SaveCheckpoint(epoch, weights, meta)
		if err != nil {
			return nil, t.fail(epoch, steps, fmt.Errorf("save checkpoint: %w", err))
		}

		metrics.EpochsCompleted.Inc()
		metrics.EpochDuration.Observe(time.Since(epochStart).Seconds())
		log.Info().
			Int("epoch", epoch).
			Int("of", t.cfg.Training.Epochs).
			Float64("mean_loss", epochLoss/float64(steps)).
			Float32("accuracy", lastAccuracy).
			Dur("took", time.Since(epochStart)).
			Str("checkpoint", path).
			Msg("epoch completed")
	}

	meta := t.metadata(t.cfg.Training.Epochs, lastLoss, lastAccuracy, steps)
	weights, err := t.model.Snapshot()
	if err != nil {
		return nil, t.fail(t.cfg.Training.Epochs, steps, fmt.Errorf("snapshot weights: %w", err))
	}
	finalPath, err := t.store.SaveFinal(weights, meta)
	if err != nil {
		return nil, t.fail(t.cfg.Training.Epochs, steps, fmt.Errorf("save final weights: %w", err))
	}
	if err := t.store.WriteMeta(meta); err != nil {
		return nil, t.fail(t.cfg.Training.Epochs, steps, err)
	}

	log.Info().
		Str("run_id", t.store.RunID()).
		Str("model", finalPath).
		Float32("final_loss", lastLoss).
		Float32("final_accuracy", lastAccuracy).
		Dur("took", time.Since(t.startedAt)).
		Msg("training completed")

	return &Result{
		RunID:           t.store.RunID(),
		RunDir:          t.store.Dir(),
		FinalPath:       finalPath,
		EpochsCompleted: t.cfg.Training.Epochs,
		StepsPerEpoch:   steps,
		FinalLoss:       lastLoss,
		FinalAccuracy:   lastAccuracy,
	}, nil
}

// fail persists whatever state exists and wraps the cause. Persistence
// errors are logged, never allowed to mask the original failure.
func (t *Trainer) fail(epoch, step int, cause error) error {
	failure := &TrainingFailure{Epoch: epoch, Step: step, Err: cause}

	weights, err := t.model.Snapshot()
	if err != nil {
		logging.Err(err).Msg("could not snapshot weights for failure artifacts")
		weights = nil
	}

	meta := t.metadata(epoch-1, 0, 0, t.source.StepsPerEpoch())
	if err := t.store.SaveFailure(weights, meta, failure); err != nil {
		logging.Err(err).Msg("could not persist failure artifacts")
	}

	logging.Err(cause).
		Int("epoch", epoch).
		Int("step", step).
		Str("run_dir", t.store.Dir()).
		Msg("training failed")
	return failure
}

// metadata assembles the run metadata at a point in time.
func (t *Trainer) metadata(epochsCompleted int, loss, accuracy float32, steps int) artifacts.RunMetadata {
	if epochsCompleted < 0 {
		epochsCompleted = 0
	}
	meta := artifacts.RunMetadata{
		Family:          t.cfg.Model.Family,
		BatchSize:       t.cfg.Training.BatchSize,
		NegSampleCount:  t.cfg.Training.NegSampleCount,
		Epochs:          t.cfg.Training.Epochs,
		EpochsCompleted: epochsCompleted,
		StepsPerEpoch:   steps,
		SampleCount:     t.sampleCount,
		FineTune:        t.cfg.Training.FineTune,
		StartedAt:       t.startedAt,
		FinalLoss:       float64(loss),
		FinalAccuracy:   float64(accuracy),
	}
	if data := t.source.Dataset(); data != nil {
		meta.OutfitCount = data.Outfits()
		meta.ItemCount = data.ItemCount()
	}
	return meta
}
