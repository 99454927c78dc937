// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package encoder

import "gorgonia.org/gorgonia"

// LayerKind classifies registry entries.
type LayerKind int

const (
	// KindInput is the tower's input placeholder.
	KindInput LayerKind = iota
	// KindConv is a 2D convolution.
	KindConv
	// KindBatchNorm is a folded batch-norm affine (per-channel scale/shift).
	KindBatchNorm
	// KindActivation is a ReLU activation.
	KindActivation
	// KindPool is a max or average pooling layer.
	KindPool
	// KindConcat is a channel-axis branch concatenation.
	KindConcat
	// KindGlobalPool is the final global average pooling layer.
	KindGlobalPool
)

// String returns a human-readable name for the layer kind.
func (k LayerKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConv:
		return "conv"
	case KindBatchNorm:
		return "batchnorm"
	case KindActivation:
		return "activation"
	case KindPool:
		return "pool"
	case KindConcat:
		return "concat"
	case KindGlobalPool:
		return "global_pool"
	default:
		return "unknown"
	}
}

// Layer is one entry of a tower's depth-ordered registry.
type Layer struct {
	// Name is the role-namespaced layer name, e.g. "target_17". The final
	// layer of a tower is named "<role>_last_layer".
	Name string

	// Index is the layer's depth position, starting at 0 for the input.
	Index int

	// Kind classifies the layer.
	Kind LayerKind

	// Trainable reports whether the layer's parameters receive updates.
	// Parameterless layers (activations, pools, concats) carry the flag of
	// their depth position for registry bookkeeping but own no weights.
	Trainable bool

	// Params are the layer's weight nodes (empty for parameterless layers).
	Params gorgonia.Nodes
}
