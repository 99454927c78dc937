// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package sampling

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gorgonia.org/tensor"

	"github.com/tomtom215/style2vec/internal/dataset"
	"github.com/tomtom215/style2vec/internal/logging"
	"github.com/tomtom215/style2vec/internal/metrics"
)

// Config contains configuration for the sample generator.
type Config struct {
	// DatasetPath is the outfit dataset JSON file.
	DatasetPath string

	// NegSampleCount is the number of negative samples drawn per item.
	// Zero disables negative sampling.
	NegSampleCount int

	// BatchSize is the number of samples per full batch.
	BatchSize int

	// OutfitsLimit caps the dataset to its first N outfits when positive.
	OutfitsLimit int

	// SamplesLimit caps one epoch's sample list when positive.
	SamplesLimit int

	// Seed seeds the shuffle/negative-draw RNG. Zero uses a default seed.
	Seed int64

	// PrepWorkers bounds the image preprocessing pool per batch.
	PrepWorkers int
}

// Sample is one labeled training pair. Label 1 means target and context
// co-occur in the same outfit; label 0 means the context was drawn from a
// different outfit.
type Sample struct {
	Target  dataset.Item
	Context dataset.Item
	Label   float32
}

// Batch holds parallel target/context image tensors of shape
// [n, 3, 299, 299] plus the matching label vector. The trailing batch of
// an epoch pass may be shorter than the configured batch size.
type Batch struct {
	Targets  *tensor.Dense
	Contexts *tensor.Dense
	Labels   []float32
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	return len(b.Labels)
}

// ItemPreparer converts items into a stacked input tensor, preserving
// item order. Implemented by preprocess.Preprocessor; stubbed in tests.
type ItemPreparer interface {
	PrepareBatch(ctx context.Context, items []dataset.Item, workers int) (*tensor.Dense, error)
}

// Generator builds labeled samples from the outfit dataset and exposes the
// infinite batch sequence. The dataset is loaded once (lazily on first use
// or explicitly via Load) and read-only afterwards. The RNG is single-owner:
// generation must stay on one goroutine.
type Generator struct {
	cfg  Config
	prep ItemPreparer
	rng  *rand.Rand

	data          dataset.Dataset
	stepsPerEpoch int
}

// NewGenerator creates a generator. The dataset is not touched until Load
// or the first sample generation.
func NewGenerator(cfg Config, prep ItemPreparer) (*Generator, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("sampling: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.NegSampleCount < 0 {
		return nil, fmt.Errorf("sampling: negative sample count must be >= 0, got %d", cfg.NegSampleCount)
	}
	if prep == nil {
		return nil, fmt.Errorf("sampling: item preparer is required")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}

	return &Generator{
		cfg: cfg,
		//nolint:gosec // G404: math/rand is fine for sample shuffling (not security)
		rng:  rand.New(rand.NewSource(seed)),
		prep: prep,
	}, nil
}

// Load reads the dataset from disk, applies the outfit-count cap and
// verifies the negative-sampling precondition. Calling it more than once
// is a no-op after the first success.
func (g *Generator) Load() error {
	if g.data != nil {
		return nil
	}

	data, err := dataset.Load(g.cfg.DatasetPath, g.cfg.OutfitsLimit)
	if err != nil {
		return err
	}

	// A single outfit cannot supply "an item from a different outfit";
	// the draw loop would never terminate. Fail fast instead.
	if g.cfg.NegSampleCount > 0 && len(data) < 2 {
		return &dataset.InsufficientDataError{Outfits: len(data), Required: 2}
	}

	g.data = data
	logging.Info().
		Int("outfits", data.Outfits()).
		Int("items", data.ItemCount()).
		Str("path", g.cfg.DatasetPath).
		Msg("dataset loaded")
	return nil
}

// Dataset returns the loaded dataset, or nil before Load.
func (g *Generator) Dataset() dataset.Dataset {
	return g.data
}

// GenerateSamples produces one full epoch's worth of labeled samples:
// all within-outfit ordered pairs as positives, NegSampleCount negative
// draws per item, uniformly shuffled and truncated to SamplesLimit. It
// also recomputes StepsPerEpoch. Every call starts from scratch: fresh
// shuffle, fresh negative draws.
func (g *Generator) GenerateSamples() ([]Sample, error) {
	if err := g.Load(); err != nil {
		return nil, err
	}

	start := time.Now()

	var samples []Sample
	var positives, negatives int

	for oi := range g.data {
		outfit := &g.data[oi]
		for ii := range outfit.Items {
			item := outfit.Items[ii]

			// Positive samples: every other item of the same outfit.
			for ci := range outfit.Items {
				if ci == ii {
					continue
				}
				samples = append(samples, Sample{Target: item, Context: outfit.Items[ci], Label: 1})
				positives++
			}

			// Negative samples: independent draws from different outfits.
			// The same negative outfit may be hit more than once.
			for n := 0; n < g.cfg.NegSampleCount; n++ {
				neg := g.drawNegative(outfit.SetID)
				samples = append(samples, Sample{Target: item, Context: neg, Label: 0})
				negatives++
			}
		}
	}

	g.rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})

	if g.cfg.SamplesLimit > 0 && g.cfg.SamplesLimit < len(samples) {
		samples = samples[:g.cfg.SamplesLimit]
	}

	g.stepsPerEpoch = len(samples) / g.cfg.BatchSize

	metrics.SamplesGenerated.WithLabelValues("positive").Add(float64(positives))
	metrics.SamplesGenerated.WithLabelValues("negative").Add(float64(negatives))
	metrics.SampleGenerationDuration.Observe(time.Since(start).Seconds())
	metrics.StepsPerEpoch.Set(float64(g.stepsPerEpoch))

	logging.Debug().
		Int("samples", len(samples)).
		Int("positives", positives).
		Int("negatives", negatives).
		Int("steps_per_epoch", g.stepsPerEpoch).
		Msg("samples generated")

	return samples, nil
}

// drawNegative picks a uniformly random item from a uniformly random
// outfit whose SetID differs from setID. Termination is guaranteed by the
// >= 2 outfits precondition checked in Load.
func (g *Generator) drawNegative(setID int) dataset.Item {
	for {
		outfit := &g.data[g.rng.Intn(len(g.data))]
		if outfit.SetID == setID {
			continue
		}
		return outfit.Items[g.rng.Intn(len(outfit.Items))]
	}
}

// StepsPerEpoch returns floor(totalSamples / batchSize) from the most
// recent sample pass. Zero before the first GenerateSamples call.
func (g *Generator) StepsPerEpoch() int {
	return g.stepsPerEpoch
}

// Batches returns the infinite, restartable batch sequence. Each epoch
// pass regenerates samples, then slices them into consecutive chunks of
// BatchSize; the trailing short chunk is still yielded.
func (g *Generator) Batches() *BatchIterator {
	return &BatchIterator{gen: g}
}

// BatchIterator is a cooperative, pull-based producer over the sample
// stream. It is single-threaded: production suspends between Next calls.
type BatchIterator struct {
	gen     *Generator
	samples []Sample
	cursor  int
	epoch   int
}

// Epoch returns the number of completed sample passes, counting from zero
// while the first pass is being consumed.
func (it *BatchIterator) Epoch() int {
	return it.epoch
}

// Next yields the next batch, starting a new epoch pass (regenerate,
// reshuffle, fresh negatives) whenever the current one is exhausted.
// Per-item image errors abort the batch; no partial batches are emitted.
func (it *BatchIterator) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if it.cursor >= len(it.samples) {
		if it.samples != nil {
			it.epoch++
		}
		samples, err := it.gen.GenerateSamples()
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			return nil, fmt.Errorf("sampling: dataset produced no samples")
		}
		it.samples = samples
		it.cursor = 0
	}

	end := it.cursor + it.gen.cfg.BatchSize
	if end > len(it.samples) {
		end = len(it.samples)
	}
	chunk := it.samples[it.cursor:end]
	it.cursor = end

	targets := make([]dataset.Item, len(chunk))
	contexts := make([]dataset.Item, len(chunk))
	labels := make([]float32, len(chunk))
	for i, s := range chunk {
		targets[i] = s.Target
		contexts[i] = s.Context
		labels[i] = s.Label
	}

	targetTensor, err := it.gen.prep.PrepareBatch(ctx, targets, it.gen.cfg.PrepWorkers)
	if err != nil {
		return nil, fmt.Errorf("prepare targets: %w", err)
	}
	contextTensor, err := it.gen.prep.PrepareBatch(ctx, contexts, it.gen.cfg.PrepWorkers)
	if err != nil {
		return nil, fmt.Errorf("prepare contexts: %w", err)
	}

	metrics.BatchesProduced.Inc()

	return &Batch{
		Targets:  targetTensor,
		Contexts: contextTensor,
		Labels:   labels,
	}, nil
}
