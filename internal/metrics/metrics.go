// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package metrics provides Prometheus instrumentation for the training
// pipeline: sample generation, batch production, image preprocessing and
// the fit loop itself. Collectors are registered via promauto on the
// default registry; the optional exposition endpoint is started by the
// training driver when configured.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sample generation metrics.
	SamplesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "style2vec_samples_generated_total",
			Help: "Total number of training samples generated, by label",
		},
		[]string{"label"}, // "positive", "negative"
	)

	SampleGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "style2vec_sample_generation_duration_seconds",
			Help:    "Duration of one full sample-generation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	StepsPerEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "style2vec_steps_per_epoch",
			Help: "Number of full-size batches per epoch pass",
		},
	)

	// Batch production metrics.
	BatchesProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "style2vec_batches_produced_total",
			Help: "Total number of batches yielded by the generator",
		},
	)

	// Image preprocessing metrics.
	ImagePrepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "style2vec_image_prep_duration_seconds",
			Help:    "Duration of single-image decode/resize/normalize",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ImagePrepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "style2vec_image_prep_errors_total",
			Help: "Total number of image load/decode failures",
		},
	)

	// Fit loop metrics.
	BatchLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "style2vec_batch_loss",
			Help: "Binary cross-entropy loss of the most recent batch",
		},
	)

	BatchAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "style2vec_batch_accuracy",
			Help: "Co-occurrence classification accuracy of the most recent batch",
		},
	)

	TrainStepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "style2vec_train_step_duration_seconds",
			Help:    "Duration of one forward/backward/update step",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	EpochsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "style2vec_epochs_completed_total",
			Help: "Total number of completed training epochs",
		},
	)

	EpochDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "style2vec_epoch_duration_seconds",
			Help:    "Duration of one training epoch",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
	)

	CheckpointsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "style2vec_checkpoints_written_total",
			Help: "Total number of per-epoch weight checkpoints written",
		},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled. It blocks; run it
// in its own goroutine. A closed server is not an error.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
