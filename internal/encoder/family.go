// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package encoder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFamily reports an encoder family selector with no
// registered architecture. Callers surface it as a configuration error
// before any file I/O or graph construction happens.
var ErrUnsupportedFamily = errors.New("unsupported encoder family")

// Family selects the image encoder architecture shared by both towers.
// Only the Inception family is supported.
type Family string

// FamilyInception is the Inception-v3 style convolutional encoder.
const FamilyInception Family = "inception"

// ParseFamily validates an encoder family selector.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyInception:
		return FamilyInception, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnsupportedFamily)
	}
}

// InputSize returns the square input resolution the family expects.
func (f Family) InputSize() int {
	return 299
}

// Channels returns the number of input channels the family expects.
func (f Family) Channels() int {
	return 3
}

// FreezeDepth returns the layer-depth threshold used when fine-tuning:
// layers with index below the threshold stay frozen, layers at or beyond
// it train.
func (f Family) FreezeDepth() int {
	return 249
}

func (f Family) String() string {
	return string(f)
}
