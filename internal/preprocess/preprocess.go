// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package preprocess

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	// Register decoders for the formats the Polyvore-style datasets carry.
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/tomtom215/style2vec/internal/dataset"
	"github.com/tomtom215/style2vec/internal/encoder"
	"github.com/tomtom215/style2vec/internal/metrics"
)

// ImageLoadError reports a missing or undecodable item image.
type ImageLoadError struct {
	// Path is the resolved image file path.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// Preprocessor turns items into encoder input tensors.
// It is stateless apart from its configuration and safe for concurrent use.
type Preprocessor struct {
	imagesRoot string
	family     encoder.Family
	size       int
	channels   int
}

// New creates a preprocessor for the given encoder family. The family must
// already be validated via encoder.ParseFamily; an unknown value still fails
// here so a preprocessor can never silently produce tensors with the wrong
// input distribution.
func New(imagesRoot string, family encoder.Family) (*Preprocessor, error) {
	if _, err := encoder.ParseFamily(string(family)); err != nil {
		return nil, err
	}
	return &Preprocessor{
		imagesRoot: imagesRoot,
		family:     family,
		size:       family.InputSize(),
		channels:   family.Channels(),
	}, nil
}

// TensorLen returns the number of float32 values in one prepared item.
func (p *Preprocessor) TensorLen() int {
	return p.channels * p.size * p.size
}

// Prepare loads the item's image and converts it into a CHW float32 tensor
// of shape [3, 299, 299] scaled to [-1, 1]. Failures are *ImageLoadError.
func (p *Preprocessor) Prepare(item dataset.Item) (*tensor.Dense, error) {
	backing := make([]float32, p.TensorLen())
	if err := p.prepareInto(item, backing); err != nil {
		return nil, err
	}
	return tensor.New(
		tensor.WithShape(p.channels, p.size, p.size),
		tensor.WithBacking(backing),
	), nil
}

// PrepareBatch prepares all items into a single [n, 3, 299, 299] tensor,
// preserving item order. When workers > 1 the decode/resize work fans out
// across a bounded worker pool; each worker writes into a disjoint region
// of the shared backing slice, so ordering is preserved by construction.
// Any item failure aborts the whole batch; no partial batches are emitted.
func (p *Preprocessor) PrepareBatch(ctx context.Context, items []dataset.Item, workers int) (*tensor.Dense, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("prepare batch: no items")
	}
	if workers < 1 {
		workers = 1
	}

	stride := p.TensorLen()
	backing := make([]float32, len(items)*stride)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.prepareInto(items[i], backing[i*stride:(i+1)*stride])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tensor.New(
		tensor.WithShape(len(items), p.channels, p.size, p.size),
		tensor.WithBacking(backing),
	), nil
}

// prepareInto decodes, resizes and normalizes one item image into dst,
// which must have length TensorLen.
func (p *Preprocessor) prepareInto(item dataset.Item, dst []float32) error {
	start := time.Now()

	path := filepath.Join(p.imagesRoot, filepath.FromSlash(item.ImagePath))
	f, err := os.Open(path) //nolint:gosec // path is rooted at the configured images directory
	if err != nil {
		metrics.ImagePrepErrors.Inc()
		return &ImageLoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	src, _, err := image.Decode(f)
	if err != nil {
		metrics.ImagePrepErrors.Inc()
		return &ImageLoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}

	// Resize to the family's fixed input resolution. Catmull-Rom is
	// deterministic, so repeated preparation of the same file yields
	// byte-identical tensors.
	resized := image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	// RGBA -> CHW float32 in [-1, 1] (Inception input scaling).
	plane := p.size * p.size
	for y := 0; y < p.size; y++ {
		row := y * resized.Stride
		for x := 0; x < p.size; x++ {
			off := row + x*4
			idx := y*p.size + x
			dst[idx] = float32(resized.Pix[off])/127.5 - 1.0
			dst[plane+idx] = float32(resized.Pix[off+1])/127.5 - 1.0
			dst[2*plane+idx] = float32(resized.Pix[off+2])/127.5 - 1.0
		}
	}

	metrics.ImagePrepDuration.Observe(time.Since(start).Seconds())
	return nil
}
