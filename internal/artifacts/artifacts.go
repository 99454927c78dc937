// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package artifacts provides persistence for training runs.
//
// Weight snapshots are serialized with Go's gob encoding, gzip-compressed
// and wrapped with metadata carrying a SHA-256 checksum, so a checkpoint
// can be verified and reloaded independently of the run that produced it.
//
// # Run layout
//
// Every run owns a directory named after its run ID under the artifacts
// root:
//
//	<root>/<runID>/checkpoints/weights_eNN.gob.gz   per-epoch checkpoints
//	<root>/<runID>/model_<runID>.gob.gz             final weights
//	<root>/<runID>/model_<runID>_err.gob.gz         weights at failure
//	<root>/<runID>/err_<runID>.txt                  failure report
//	<root>/<runID>/meta.txt                         run summary
//
// # Thread Safety
//
// All store operations are safe for concurrent use.
package artifacts

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gorgonia.org/tensor"

	"github.com/tomtom215/style2vec/internal/metrics"
)

// RunMetadata describes a training run alongside its stored weights.
type RunMetadata struct {
	// RunID identifies the run, derived from its start time.
	RunID string `json:"run_id"`

	// Family is the encoder architecture family.
	Family string `json:"family"`

	// BatchSize is the training batch size.
	BatchSize int `json:"batch_size"`

	// NegSampleCount is the number of negatives drawn per item.
	NegSampleCount int `json:"neg_sample_count"`

	// Epochs is the configured epoch count.
	Epochs int `json:"epochs"`

	// EpochsCompleted is how many epochs finished before the save.
	EpochsCompleted int `json:"epochs_completed"`

	// StepsPerEpoch is the per-epoch step count.
	StepsPerEpoch int `json:"steps_per_epoch"`

	// SampleCount is the number of training samples per epoch.
	SampleCount int `json:"sample_count"`

	// OutfitCount is the number of outfits in the dataset.
	OutfitCount int `json:"outfit_count"`

	// ItemCount is the number of items in the dataset.
	ItemCount int `json:"item_count"`

	// FineTune reports whether tower fine-tuning was enabled.
	FineTune bool `json:"fine_tune"`

	// StartedAt is when training began.
	StartedAt time.Time `json:"started_at"`

	// SavedAt is when the weights were saved.
	SavedAt time.Time `json:"saved_at"`

	// FinalLoss is the last observed batch loss.
	FinalLoss float64 `json:"final_loss"`

	// FinalAccuracy is the last observed batch accuracy.
	FinalAccuracy float64 `json:"final_accuracy"`

	// Checksum is the SHA-256 checksum of the raw weight encoding.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed weight size in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// Weights is a name-keyed parameter snapshot.
type Weights = map[string]*tensor.Dense

// storedFile is the on-disk format for weight files.
type storedFile struct {
	Metadata       RunMetadata
	CompressedData []byte
}

// NewRunID derives a run identifier from a start time.
func NewRunID(t time.Time) string {
	return t.Format("20060102-150405")
}

// Store manages the artifact directory of one training run.
type Store struct {
	runID  string
	runDir string
	mu     sync.Mutex
}

// NewStore creates the run directory (and its checkpoints subdirectory)
// under root.
func NewStore(root, runID string) (*Store, error) {
	if runID == "" {
		return nil, fmt.Errorf("artifacts: run ID is required")
	}
	runDir := filepath.Join(root, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "checkpoints"), 0o750); err != nil { //nolint:gosec // 0750 is acceptable for artifact storage
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &Store{runID: runID, runDir: runDir}, nil
}

// RunID returns the run identifier the store was created with.
func (s *Store) RunID() string {
	return s.runID
}

// Dir returns the run's artifact directory.
func (s *Store) Dir() string {
	return s.runDir
}

// SaveCheckpoint persists an end-of-epoch weight snapshot and returns the
// written path. Epochs are numbered from 1.
func (s *Store) SaveCheckpoint(epoch int, weights Weights, meta RunMetadata) (string, error) {
	if epoch < 1 {
		return "", fmt.Errorf("artifacts: epoch must be >= 1, got %d", epoch)
	}
	path := filepath.Join(s.runDir, "checkpoints", fmt.Sprintf("weights_e%02d.gob.gz", epoch))
	if err := s.save(path, weights, meta); err != nil {
		return "", err
	}
	metrics.CheckpointsWritten.Inc()
	return path, nil
}

// SaveFinal persists the end-of-run weights and returns the written path.
func (s *Store) SaveFinal(weights Weights, meta RunMetadata) (string, error) {
	path := filepath.Join(s.runDir, fmt.Sprintf("model_%s.gob.gz", s.runID))
	if err := s.save(path, weights, meta); err != nil {
		return "", err
	}
	return path, nil
}

// SaveFailure persists the state of a run that died mid-training: the
// current weights (when any exist) next to a plain-text failure report and
// the run summary. Persistence is best-effort; the first error is
// returned but later files are still attempted.
func (s *Store) SaveFailure(weights Weights, meta RunMetadata, cause error) error {
	var firstErr error

	if len(weights) > 0 {
		path := filepath.Join(s.runDir, fmt.Sprintf("model_%s_err.gob.gz", s.runID))
		if err := s.save(path, weights, meta); err != nil {
			firstErr = err
		}
	}

	report := fmt.Sprintf("run %s failed at %s\n\n%v\n",
		s.runID, time.Now().Format(time.RFC3339), cause)
	errPath := filepath.Join(s.runDir, fmt.Sprintf("err_%s.txt", s.runID))
	if err := os.WriteFile(errPath, []byte(report), 0o640); err != nil && firstErr == nil { //nolint:gosec // report is not sensitive
		firstErr = fmt.Errorf("write failure report: %w", err)
	}

	if err := s.WriteMeta(meta); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// WriteMeta writes the human-readable run summary.
func (s *Store) WriteMeta(meta RunMetadata) error {
	var b strings.Builder
	writeField := func(k string, v any) {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	writeField("run_id", s.runID)
	writeField("family", meta.Family)
	writeField("batch_size", meta.BatchSize)
	writeField("neg_sample_count", meta.NegSampleCount)
	writeField("epochs", meta.Epochs)
	writeField("epochs_completed", meta.EpochsCompleted)
	writeField("steps_per_epoch", meta.StepsPerEpoch)
	writeField("sample_count", meta.SampleCount)
	writeField("outfit_count", meta.OutfitCount)
	writeField("item_count", meta.ItemCount)
	writeField("fine_tune", meta.FineTune)
	writeField("started_at", meta.StartedAt.Format(time.RFC3339))
	writeField("final_loss", meta.FinalLoss)
	writeField("final_accuracy", meta.FinalAccuracy)

	path := filepath.Join(s.runDir, "meta.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o640); err != nil { //nolint:gosec // summary is not sensitive
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}

// Checkpoints lists the run's checkpoint files in epoch order.
func (s *Store) Checkpoints() ([]string, error) {
	dir := filepath.Join(s.runDir, "checkpoints")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".gob.gz") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// save serializes weights, checksums the raw encoding, compresses it and
// writes the wrapped file.
func (s *Store) save(path string, weights Weights, meta RunMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(weights); err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return fmt.Errorf("compress weights: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()
	meta.RunID = s.runID

	f, err := os.Create(path) //nolint:gosec // path is constructed from the run directory
	if err != nil {
		return fmt.Errorf("create weight file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after write is logged via return

	sf := storedFile{
		Metadata:       meta,
		CompressedData: compressed.Bytes(),
	}
	fileEnc := gob.NewEncoder(f)
	if err := fileEnc.Encode(sf); err != nil {
		return fmt.Errorf("write weight file: %w", err)
	}
	return nil
}

// LoadWeights reads a weight file written by a Store, verifies its
// checksum and returns the snapshot with its metadata.
func LoadWeights(path string) (Weights, *RunMetadata, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return nil, nil, fmt.Errorf("open weight file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	fileDec := gob.NewDecoder(f)
	if err := fileDec.Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read weight file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress weights: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	checksum := hex.EncodeToString(hash[:])
	if checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, checksum)
	}

	var weights Weights
	dec := gob.NewDecoder(bytes.NewReader(rawData))
	if err := dec.Decode(&weights); err != nil {
		return nil, nil, fmt.Errorf("decode weights: %w", err)
	}
	return weights, &sf.Metadata, nil
}
