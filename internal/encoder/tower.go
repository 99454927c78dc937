// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package encoder

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Tower is one image encoder instance living on a shared expression graph.
// Its output is the globally average-pooled feature vector of the final
// spatial feature map, shape [batch, FeatureDim].
type Tower struct {
	role   string
	family Family
	input  *gorgonia.Node
	output *gorgonia.Node
	layers []*Layer
}

// NewTower builds a role-namespaced tower on g with a fixed batch size.
// Two towers built on the same graph never collide: every layer and weight
// name carries the role prefix.
//
// Weights are Glorot-initialized; pretrained values are loaded afterwards
// by the model via the named parameter map.
func NewTower(g *gorgonia.ExprGraph, family Family, role string, batchSize int, fineTune bool) (*Tower, error) {
	if _, err := ParseFamily(string(family)); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("encoder: batch size must be positive, got %d", batchSize)
	}
	if role == "" {
		return nil, fmt.Errorf("encoder: tower role is required")
	}

	b := &builder{g: g, role: role}

	input := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(batchSize, family.Channels(), family.InputSize(), family.InputSize()),
		gorgonia.WithName(role+"_input"),
	)
	b.register(KindInput)

	output := b.inceptionV3(input)
	if b.err != nil {
		return nil, fmt.Errorf("build %s tower: %w", role, b.err)
	}

	// The original naming convention keeps a stable handle on the pooled
	// feature layer regardless of depth.
	b.layers[len(b.layers)-1].Name = role + "_last_layer"

	t := &Tower{
		role:   role,
		family: family,
		input:  input,
		output: output,
		layers: b.layers,
	}
	t.applyFreeze(fineTune)
	return t, nil
}

// Role returns the tower's namespace ("target" or "context").
func (t *Tower) Role() string {
	return t.role
}

// Input returns the tower's input placeholder node.
func (t *Tower) Input() *gorgonia.Node {
	return t.input
}

// Output returns the pooled feature vector node, shape [batch, FeatureDim].
func (t *Tower) Output() *gorgonia.Node {
	return t.output
}

// FeatureDim returns the length of the pooled feature vector.
func (t *Tower) FeatureDim() int {
	return t.output.Shape()[1]
}

// Layers returns the depth-ordered layer registry.
func (t *Tower) Layers() []*Layer {
	return t.layers
}

// Params returns every weight node of the tower, frozen or not.
func (t *Tower) Params() gorgonia.Nodes {
	var params gorgonia.Nodes
	for _, l := range t.layers {
		params = append(params, l.Params...)
	}
	return params
}

// Learnables returns the weight nodes of trainable layers only. These are
// the nodes the optimizer updates.
func (t *Tower) Learnables() gorgonia.Nodes {
	var params gorgonia.Nodes
	for _, l := range t.layers {
		if l.Trainable {
			params = append(params, l.Params...)
		}
	}
	return params
}

// ParamsByName returns the tower's weight nodes keyed by their namespaced
// node names, for checkpointing and pretrained-weight loading.
func (t *Tower) ParamsByName() map[string]*gorgonia.Node {
	m := make(map[string]*gorgonia.Node)
	for _, l := range t.layers {
		for _, p := range l.Params {
			m[p.Name()] = p
		}
	}
	return m
}

// applyFreeze sets the trainable flag of every layer from the fine-tune
// policy: enabled trains layers at or beyond the family's freeze depth;
// disabled freezes the whole tower (the scoring head still trains).
func (t *Tower) applyFreeze(fineTune bool) {
	threshold := t.family.FreezeDepth()
	for _, l := range t.layers {
		l.Trainable = fineTune && l.Index >= threshold
	}
}

// builder accumulates the layer registry while constructing the graph.
// The first op construction error short-circuits everything after it.
type builder struct {
	g      *gorgonia.ExprGraph
	role   string
	layers []*Layer
	err    error
}

// register appends a registry entry at the current depth and returns it.
func (b *builder) register(kind LayerKind, params ...*gorgonia.Node) *Layer {
	idx := len(b.layers)
	l := &Layer{
		Name:   fmt.Sprintf("%s_%d", b.role, idx),
		Index:  idx,
		Kind:   kind,
		Params: params,
	}
	b.layers = append(b.layers, l)
	return l
}

func (b *builder) fail(stage string, err error) {
	if b.err == nil {
		b.err = fmt.Errorf("%s (layer %d): %w", stage, len(b.layers), err)
	}
}

// convBN is the conv → folded-BN affine → ReLU unit every Inception branch
// is made of. It registers three layers, matching the reference
// enumeration.
func (b *builder) convBN(x *gorgonia.Node, filters, kh, kw, sh, sw int, same bool) *gorgonia.Node {
	if b.err != nil {
		return nil
	}

	in := x.Shape()[1]

	idx := len(b.layers)
	w := gorgonia.NewTensor(b.g, tensor.Float32, 4,
		gorgonia.WithShape(filters, in, kh, kw),
		gorgonia.WithName(fmt.Sprintf("%s_%d_w", b.role, idx)),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)),
	)
	pad := []int{0, 0}
	if same {
		pad = []int{kh / 2, kw / 2}
	}
	conv, err := gorgonia.Conv2d(x, w, tensor.Shape{kh, kw}, pad, []int{sh, sw}, []int{1, 1})
	if err != nil {
		b.fail("conv2d", err)
		return nil
	}
	b.register(KindConv, w)

	idx = len(b.layers)
	gamma := gorgonia.NewTensor(b.g, tensor.Float32, 4,
		gorgonia.WithShape(1, filters, 1, 1),
		gorgonia.WithName(fmt.Sprintf("%s_%d_gamma", b.role, idx)),
		gorgonia.WithInit(gorgonia.Ones()),
	)
	beta := gorgonia.NewTensor(b.g, tensor.Float32, 4,
		gorgonia.WithShape(1, filters, 1, 1),
		gorgonia.WithName(fmt.Sprintf("%s_%d_beta", b.role, idx)),
		gorgonia.WithInit(gorgonia.Zeroes()),
	)
	scaled, err := gorgonia.BroadcastHadamardProd(conv, gamma, nil, []byte{0, 2, 3})
	if err != nil {
		b.fail("batchnorm scale", err)
		return nil
	}
	shifted, err := gorgonia.BroadcastAdd(scaled, beta, nil, []byte{0, 2, 3})
	if err != nil {
		b.fail("batchnorm shift", err)
		return nil
	}
	b.register(KindBatchNorm, gamma, beta)

	act, err := gorgonia.Rectify(shifted)
	if err != nil {
		b.fail("rectify", err)
		return nil
	}
	b.register(KindActivation)

	return act
}

func (b *builder) maxPool(x *gorgonia.Node, k, stride int, same bool) *gorgonia.Node {
	if b.err != nil {
		return nil
	}
	pad := []int{0, 0}
	if same {
		pad = []int{k / 2, k / 2}
	}
	out, err := gorgonia.MaxPool2D(x, tensor.Shape{k, k}, pad, []int{stride, stride})
	if err != nil {
		b.fail("maxpool", err)
		return nil
	}
	b.register(KindPool)
	return out
}

func (b *builder) avgPool(x *gorgonia.Node, k, stride int, same bool) *gorgonia.Node {
	if b.err != nil {
		return nil
	}
	pad := []int{0, 0}
	if same {
		pad = []int{k / 2, k / 2}
	}
	out, err := gorgonia.AveragePool2D(x, tensor.Shape{k, k}, pad, []int{stride, stride})
	if err != nil {
		b.fail("avgpool", err)
		return nil
	}
	b.register(KindPool)
	return out
}

// concat joins branches along the channel axis.
func (b *builder) concat(ns ...*gorgonia.Node) *gorgonia.Node {
	if b.err != nil {
		return nil
	}
	out, err := gorgonia.Concat(1, ns...)
	if err != nil {
		b.fail("concat", err)
		return nil
	}
	b.register(KindConcat)
	return out
}

// globalPool reduces the final spatial map to one feature vector per
// example.
func (b *builder) globalPool(x *gorgonia.Node) *gorgonia.Node {
	if b.err != nil {
		return nil
	}
	out, err := gorgonia.Mean(x, 2, 3)
	if err != nil {
		b.fail("global average pool", err)
		return nil
	}
	b.register(KindGlobalPool)
	return out
}

// inceptionV3 assembles the Inception-v3 feature extractor: stem, three
// 35x35 blocks, the 17x17 reduction, four 17x17 blocks, the 8x8 reduction
// and two 8x8 blocks, followed by global average pooling. With this
// enumeration the 8x8 blocks start exactly at registry index 249, the
// family's fine-tune threshold.
func (b *builder) inceptionV3(x *gorgonia.Node) *gorgonia.Node {
	// Stem: 299x299x3 -> 35x35x192.
	x = b.convBN(x, 32, 3, 3, 2, 2, false)
	x = b.convBN(x, 32, 3, 3, 1, 1, false)
	x = b.convBN(x, 64, 3, 3, 1, 1, true)
	x = b.maxPool(x, 3, 2, false)
	x = b.convBN(x, 80, 1, 1, 1, 1, false)
	x = b.convBN(x, 192, 3, 3, 1, 1, false)
	x = b.maxPool(x, 3, 2, false)

	// 35x35 inception blocks.
	x = b.blockA(x, 32)
	x = b.blockA(x, 64)
	x = b.blockA(x, 64)

	// Reduction to 17x17.
	x = b.blockB(x)

	// 17x17 inception blocks with growing 7x7 branch width.
	x = b.blockC(x, 128)
	x = b.blockC(x, 160)
	x = b.blockC(x, 160)
	x = b.blockC(x, 192)

	// Reduction to 8x8.
	x = b.blockD(x)

	// 8x8 inception blocks.
	x = b.blockE(x)
	x = b.blockE(x)

	return b.globalPool(x)
}

// blockA is the 35x35 inception block (1x1, 5x5, double-3x3 and pooled
// branches).
func (b *builder) blockA(x *gorgonia.Node, poolProj int) *gorgonia.Node {
	b1x1 := b.convBN(x, 64, 1, 1, 1, 1, true)

	b5x5 := b.convBN(x, 48, 1, 1, 1, 1, true)
	b5x5 = b.convBN(b5x5, 64, 5, 5, 1, 1, true)

	b3x3 := b.convBN(x, 64, 1, 1, 1, 1, true)
	b3x3 = b.convBN(b3x3, 96, 3, 3, 1, 1, true)
	b3x3 = b.convBN(b3x3, 96, 3, 3, 1, 1, true)

	pool := b.avgPool(x, 3, 1, true)
	pool = b.convBN(pool, poolProj, 1, 1, 1, 1, true)

	return b.concat(b1x1, b5x5, b3x3, pool)
}

// blockB is the 35x35 -> 17x17 grid reduction.
func (b *builder) blockB(x *gorgonia.Node) *gorgonia.Node {
	b3x3 := b.convBN(x, 384, 3, 3, 2, 2, false)

	bdbl := b.convBN(x, 64, 1, 1, 1, 1, true)
	bdbl = b.convBN(bdbl, 96, 3, 3, 1, 1, true)
	bdbl = b.convBN(bdbl, 96, 3, 3, 2, 2, false)

	pool := b.maxPool(x, 3, 2, false)

	return b.concat(b3x3, bdbl, pool)
}

// blockC is the 17x17 inception block with factorized 7x7 convolutions.
func (b *builder) blockC(x *gorgonia.Node, c7 int) *gorgonia.Node {
	b1x1 := b.convBN(x, 192, 1, 1, 1, 1, true)

	b7x7 := b.convBN(x, c7, 1, 1, 1, 1, true)
	b7x7 = b.convBN(b7x7, c7, 1, 7, 1, 1, true)
	b7x7 = b.convBN(b7x7, 192, 7, 1, 1, 1, true)

	bdbl := b.convBN(x, c7, 1, 1, 1, 1, true)
	bdbl = b.convBN(bdbl, c7, 7, 1, 1, 1, true)
	bdbl = b.convBN(bdbl, c7, 1, 7, 1, 1, true)
	bdbl = b.convBN(bdbl, c7, 7, 1, 1, 1, true)
	bdbl = b.convBN(bdbl, 192, 1, 7, 1, 1, true)

	pool := b.avgPool(x, 3, 1, true)
	pool = b.convBN(pool, 192, 1, 1, 1, 1, true)

	return b.concat(b1x1, b7x7, bdbl, pool)
}

// blockD is the 17x17 -> 8x8 grid reduction.
func (b *builder) blockD(x *gorgonia.Node) *gorgonia.Node {
	b3x3 := b.convBN(x, 192, 1, 1, 1, 1, true)
	b3x3 = b.convBN(b3x3, 320, 3, 3, 2, 2, false)

	b7x7 := b.convBN(x, 192, 1, 1, 1, 1, true)
	b7x7 = b.convBN(b7x7, 192, 1, 7, 1, 1, true)
	b7x7 = b.convBN(b7x7, 192, 7, 1, 1, 1, true)
	b7x7 = b.convBN(b7x7, 192, 3, 3, 2, 2, false)

	pool := b.maxPool(x, 3, 2, false)

	return b.concat(b3x3, b7x7, pool)
}

// blockE is the 8x8 inception block with split 3x3 branches.
func (b *builder) blockE(x *gorgonia.Node) *gorgonia.Node {
	b1x1 := b.convBN(x, 320, 1, 1, 1, 1, true)

	b3x3 := b.convBN(x, 384, 1, 1, 1, 1, true)
	b3x3a := b.convBN(b3x3, 384, 1, 3, 1, 1, true)
	b3x3b := b.convBN(b3x3, 384, 3, 1, 1, 1, true)
	b3x3 = b.concat(b3x3a, b3x3b)

	bdbl := b.convBN(x, 448, 1, 1, 1, 1, true)
	bdbl = b.convBN(bdbl, 384, 3, 3, 1, 1, true)
	bdbla := b.convBN(bdbl, 384, 1, 3, 1, 1, true)
	bdblb := b.convBN(bdbl, 384, 3, 1, 1, 1, true)
	bdbl = b.concat(bdbla, bdblb)

	pool := b.avgPool(x, 3, 1, true)
	pool = b.convBN(pool, 192, 1, 1, 1, 1, true)

	return b.concat(b1x1, b3x3, bdbl, pool)
}
