// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package training

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorgonia.org/tensor"

	"github.com/tomtom215/style2vec/internal/artifacts"
	"github.com/tomtom215/style2vec/internal/config"
	"github.com/tomtom215/style2vec/internal/dataset"
	"github.com/tomtom215/style2vec/internal/sampling"
)

// stubModel counts training calls and can be told to fail on a given call.
type stubModel struct {
	calls       int
	failAtCall  int
	snapshotErr error
}

func (m *stubModel) TrainOnBatch(_, _ *tensor.Dense, labels []float32) (float32, float32, error) {
	m.calls++
	if m.failAtCall > 0 && m.calls == m.failAtCall {
		return 0, 0, errors.New("loss diverged")
	}
	return 0.5, 0.75, nil
}

func (m *stubModel) Snapshot() (artifacts.Weights, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return artifacts.Weights{
		"head_w": tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{0.5})),
	}, nil
}

// stubSource yields a fixed geometry of small canned batches.
type stubSource struct {
	steps      int
	samples    int
	genErr     error
	batchErrAt int // 1-based Next call that fails, 0 for never
}

func (s *stubSource) GenerateSamples() ([]sampling.Sample, error) {
	if s.genErr != nil {
		return nil, s.genErr
	}
	return make([]sampling.Sample, s.samples), nil
}

func (s *stubSource) StepsPerEpoch() int {
	return s.steps
}

func (s *stubSource) Dataset() dataset.Dataset {
	return dataset.Dataset{
		{SetID: 1, Items: []dataset.Item{{Name: "a"}, {Name: "b"}}},
		{SetID: 2, Items: []dataset.Item{{Name: "c"}}},
	}
}

func (s *stubSource) Batches() BatchSource {
	return &stubIterator{src: s}
}

type stubIterator struct {
	src   *stubSource
	calls int
}

func (it *stubIterator) Epoch() int {
	if it.src.steps == 0 {
		return 0
	}
	return it.calls / it.src.steps
}

func (it *stubIterator) Next(context.Context) (*sampling.Batch, error) {
	it.calls++
	if it.src.batchErrAt > 0 && it.calls == it.src.batchErrAt {
		return nil, errors.New("image decode failed")
	}
	return &sampling.Batch{
		Targets:  tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float32{1, 2})),
		Contexts: tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float32{3, 4})),
		Labels:   []float32{1, 0},
	}, nil
}

func testCfg(epochs int) *config.Config {
	return &config.Config{
		Dataset:   config.DatasetConfig{Path: "/data/outfits.json", ImagesRoot: "/data/images"},
		Training:  config.TrainingConfig{BatchSize: 2, NegSampleCount: 1, Epochs: epochs, LearnRate: 0.001},
		Model:     config.ModelConfig{Family: "inception"},
		Artifacts: config.ArtifactsConfig{Dir: "/data/style2vec"},
	}
}

func newTestStore(t *testing.T, runID string) *artifacts.Store {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir(), runID)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestFitCompletesRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "20260314-090000")
	m := &stubModel{}
	tr := NewWithSource(testCfg(2), m, &stubSource{steps: 3, samples: 6}, store)

	res, err := tr.Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if m.calls != 6 {
		t.Errorf("training calls = %d, want 6 (2 epochs x 3 steps)", m.calls)
	}
	if res.EpochsCompleted != 2 || res.StepsPerEpoch != 3 {
		t.Errorf("result geometry = %d epochs, %d steps", res.EpochsCompleted, res.StepsPerEpoch)
	}
	if res.FinalLoss != 0.5 || res.FinalAccuracy != 0.75 {
		t.Errorf("result metrics = %g/%g", res.FinalLoss, res.FinalAccuracy)
	}

	checkpoints, err := store.Checkpoints()
	if err != nil {
		t.Fatalf("Checkpoints: %v", err)
	}
	if len(checkpoints) != 2 {
		t.Errorf("checkpoint count = %d, want one per epoch", len(checkpoints))
	}

	if _, _, err := artifacts.LoadWeights(res.FinalPath); err != nil {
		t.Errorf("final weights unreadable: %v", err)
	}

	meta, err := os.ReadFile(filepath.Join(store.Dir(), "meta.txt"))
	if err != nil {
		t.Fatalf("meta.txt: %v", err)
	}
	for _, want := range []string{"epochs_completed: 2", "sample_count: 6", "outfit_count: 2", "item_count: 3"} {
		if !strings.Contains(string(meta), want) {
			t.Errorf("meta.txt missing %q:\n%s", want, meta)
		}
	}
}

func TestFitBatchFailurePersistsArtifacts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "20260314-091500")
	m := &stubModel{}
	// Fails on the first batch of the second epoch.
	tr := NewWithSource(testCfg(3), m, &stubSource{steps: 2, samples: 4, batchErrAt: 3}, store)

	_, err := tr.Fit(context.Background())
	var failure *TrainingFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Fit error = %v, want *TrainingFailure", err)
	}
	if failure.Epoch != 2 || failure.Step != 1 {
		t.Errorf("failure at epoch %d step %d, want 2/1", failure.Epoch, failure.Step)
	}

	if _, err := os.Stat(filepath.Join(store.Dir(), "err_20260314-091500.txt")); err != nil {
		t.Errorf("failure report missing: %v", err)
	}
	if _, _, err := artifacts.LoadWeights(filepath.Join(store.Dir(), "model_20260314-091500_err.gob.gz")); err != nil {
		t.Errorf("failure weights unreadable: %v", err)
	}
}

func TestFitModelFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "run")
	m := &stubModel{failAtCall: 2}
	tr := NewWithSource(testCfg(1), m, &stubSource{steps: 3, samples: 6}, store)

	_, err := tr.Fit(context.Background())
	var failure *TrainingFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Fit error = %v, want *TrainingFailure", err)
	}
	if failure.Epoch != 1 || failure.Step != 2 {
		t.Errorf("failure at epoch %d step %d, want 1/2", failure.Epoch, failure.Step)
	}
}

func TestFitSampleGenerationFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "run")
	cause := &dataset.DataLoadError{Path: "/data/outfits.json", Err: errors.New("no such file")}
	tr := NewWithSource(testCfg(1), &stubModel{}, &stubSource{genErr: cause}, store)

	_, err := tr.Fit(context.Background())
	var failure *TrainingFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Fit error = %v, want *TrainingFailure", err)
	}
	if failure.Epoch != 0 {
		t.Errorf("failure epoch = %d, want 0 before training", failure.Epoch)
	}
	var loadErr *dataset.DataLoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("cause %v not preserved in chain", cause)
	}

	// No weights existed yet, but the report must.
	if _, err := os.Stat(filepath.Join(store.Dir(), "err_run.txt")); err != nil {
		t.Errorf("failure report missing: %v", err)
	}
}

func TestFitRejectsEmptyEpoch(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "run")
	tr := NewWithSource(testCfg(1), &stubModel{}, &stubSource{steps: 0, samples: 1}, store)

	if _, err := tr.Fit(context.Background()); err == nil {
		t.Error("Fit with zero steps per epoch: want error, got nil")
	}
}

func TestFitContextCancellation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "run")
	src := &stubSource{steps: 2, samples: 4}
	tr := NewWithSource(testCfg(1), &stubModel{}, &cancellingSource{stubSource: src}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Fit(ctx)
	var failure *TrainingFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Fit error = %v, want *TrainingFailure", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cause = %v, want context.Canceled", err)
	}
}

// cancellingSource propagates ctx errors from Next like the real iterator.
type cancellingSource struct {
	*stubSource
}

func (s *cancellingSource) Batches() BatchSource {
	return &cancellingIterator{}
}

type cancellingIterator struct{}

func (it *cancellingIterator) Epoch() int { return 0 }

func (it *cancellingIterator) Next(ctx context.Context) (*sampling.Batch, error) {
	return nil, ctx.Err()
}
