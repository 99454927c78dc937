// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package model

import (
	"fmt"
	"math"
	"time"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/tomtom215/style2vec/internal/encoder"
	"github.com/tomtom215/style2vec/internal/logging"
	"github.com/tomtom215/style2vec/internal/metrics"
)

// epsilon keeps the cross-entropy logs finite at probability 0 and 1.
const epsilon = 1e-7

// Config holds the model hyperparameters.
type Config struct {
	// Family selects the tower architecture.
	Family encoder.Family

	// BatchSize is the fixed compiled batch size. Shorter batches are
	// padded and masked.
	BatchSize int

	// FineTune unfreezes the upper tower layers. When false only the
	// scoring head trains.
	FineTune bool

	// LearnRate is the Adam learning rate.
	LearnRate float64
}

// Model is the compiled dual-encoder with its tape machine and optimizer.
type Model struct {
	cfg Config

	g       *gorgonia.ExprGraph
	target  *encoder.Tower
	context *encoder.Tower

	headW *gorgonia.Node
	headB *gorgonia.Node

	labels *gorgonia.Node
	mask   *gorgonia.Node

	loss *gorgonia.Node

	predVal gorgonia.Value
	lossVal gorgonia.Value

	learnables gorgonia.Nodes
	vm         gorgonia.VM
	solver     gorgonia.Solver
}

// New constructs the training graph, wires gradients and compiles the tape
// machine. The returned model owns the machine; call Close when done.
func New(cfg Config) (*Model, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("model: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.LearnRate <= 0 {
		return nil, fmt.Errorf("model: learning rate must be positive, got %g", cfg.LearnRate)
	}

	g := gorgonia.NewGraph()

	target, err := encoder.NewTower(g, cfg.Family, "target", cfg.BatchSize, cfg.FineTune)
	if err != nil {
		return nil, err
	}
	context, err := encoder.NewTower(g, cfg.Family, "context", cfg.BatchSize, cfg.FineTune)
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:     cfg,
		g:       g,
		target:  target,
		context: context,
	}
	if err := m.buildHead(); err != nil {
		return nil, fmt.Errorf("build scoring head: %w", err)
	}

	m.learnables = append(m.learnables, target.Learnables()...)
	m.learnables = append(m.learnables, context.Learnables()...)
	m.learnables = append(m.learnables, m.headW, m.headB)

	if _, err := gorgonia.Grad(m.loss, m.learnables...); err != nil {
		return nil, fmt.Errorf("derive gradients: %w", err)
	}

	m.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(m.learnables...))
	m.solver = gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(cfg.LearnRate),
		gorgonia.WithBatchSize(float64(cfg.BatchSize)),
	)

	logging.Info().
		Str("component", "model").
		Str("family", string(cfg.Family)).
		Int("batch_size", cfg.BatchSize).
		Bool("fine_tune", cfg.FineTune).
		Int("learnable_params", len(m.learnables)).
		Msg("model compiled")

	return m, nil
}

// buildHead wires the dot-product scoring head and the masked
// cross-entropy loss on top of the two tower outputs.
func (m *Model) buildHead() error {
	n := m.cfg.BatchSize

	prod, err := gorgonia.HadamardProd(m.target.Output(), m.context.Output())
	if err != nil {
		return err
	}
	dots, err := gorgonia.Sum(prod, 1)
	if err != nil {
		return err
	}

	m.headW = gorgonia.NewVector(m.g, tensor.Float32,
		gorgonia.WithShape(1),
		gorgonia.WithName("head_w"),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)),
	)
	m.headB = gorgonia.NewVector(m.g, tensor.Float32,
		gorgonia.WithShape(1),
		gorgonia.WithName("head_b"),
		gorgonia.WithInit(gorgonia.Zeroes()),
	)

	scaled, err := gorgonia.BroadcastHadamardProd(dots, m.headW, nil, []byte{0})
	if err != nil {
		return err
	}
	logits, err := gorgonia.BroadcastAdd(scaled, m.headB, nil, []byte{0})
	if err != nil {
		return err
	}
	pred, err := gorgonia.Sigmoid(logits)
	if err != nil {
		return err
	}
	gorgonia.Read(pred, &m.predVal)

	m.labels = gorgonia.NewVector(m.g, tensor.Float32,
		gorgonia.WithShape(n),
		gorgonia.WithName("labels"),
	)
	m.mask = gorgonia.NewVector(m.g, tensor.Float32,
		gorgonia.WithShape(n),
		gorgonia.WithName("example_mask"),
	)

	one := gorgonia.NewConstant(float32(1.0), gorgonia.WithName("one"))
	eps := gorgonia.NewConstant(float32(epsilon), gorgonia.WithName("epsilon"))

	predEps, err := gorgonia.Add(pred, eps)
	if err != nil {
		return err
	}
	logPred, err := gorgonia.Log(predEps)
	if err != nil {
		return err
	}
	posTerm, err := gorgonia.HadamardProd(m.labels, logPred)
	if err != nil {
		return err
	}

	invLabels, err := gorgonia.Sub(one, m.labels)
	if err != nil {
		return err
	}
	invPred, err := gorgonia.Sub(one, pred)
	if err != nil {
		return err
	}
	invPredEps, err := gorgonia.Add(invPred, eps)
	if err != nil {
		return err
	}
	logInvPred, err := gorgonia.Log(invPredEps)
	if err != nil {
		return err
	}
	negTerm, err := gorgonia.HadamardProd(invLabels, logInvPred)
	if err != nil {
		return err
	}

	bce, err := gorgonia.Add(posTerm, negTerm)
	if err != nil {
		return err
	}
	bce, err = gorgonia.Neg(bce)
	if err != nil {
		return err
	}

	masked, err := gorgonia.HadamardProd(bce, m.mask)
	if err != nil {
		return err
	}
	lossSum, err := gorgonia.Sum(masked)
	if err != nil {
		return err
	}
	maskSum, err := gorgonia.Sum(m.mask)
	if err != nil {
		return err
	}
	m.loss, err = gorgonia.Div(lossSum, maskSum)
	if err != nil {
		return err
	}
	gorgonia.Read(m.loss, &m.lossVal)

	return nil
}

// BatchSize returns the compiled batch size.
func (m *Model) BatchSize() int {
	return m.cfg.BatchSize
}

// FeatureDim returns the tower embedding length.
func (m *Model) FeatureDim() int {
	return m.target.FeatureDim()
}

// TrainOnBatch runs one forward/backward pass and applies an Adam step.
// targets and contexts are [n, C, H, W] tensors with matching n between 1
// and the compiled batch size; labels holds the n co-occurrence labels.
// It returns the masked mean loss and accuracy of the real examples.
func (m *Model) TrainOnBatch(targets, contexts *tensor.Dense, labels []float32) (loss, accuracy float32, err error) {
	start := time.Now()

	n := targets.Shape()[0]
	switch {
	case n == 0:
		return 0, 0, fmt.Errorf("model: empty batch")
	case n > m.cfg.BatchSize:
		return 0, 0, fmt.Errorf("model: batch length %d exceeds compiled size %d", n, m.cfg.BatchSize)
	case contexts.Shape()[0] != n || len(labels) != n:
		return 0, 0, fmt.Errorf("model: mismatched batch: %d targets, %d contexts, %d labels",
			n, contexts.Shape()[0], len(labels))
	}

	paddedTargets, err := m.padExamples(targets)
	if err != nil {
		return 0, 0, fmt.Errorf("pad targets: %w", err)
	}
	paddedContexts, err := m.padExamples(contexts)
	if err != nil {
		return 0, 0, fmt.Errorf("pad contexts: %w", err)
	}
	paddedLabels, maskVec := padLabels(labels, m.cfg.BatchSize)

	if err := gorgonia.Let(m.target.Input(), paddedTargets); err != nil {
		return 0, 0, fmt.Errorf("bind targets: %w", err)
	}
	if err := gorgonia.Let(m.context.Input(), paddedContexts); err != nil {
		return 0, 0, fmt.Errorf("bind contexts: %w", err)
	}
	if err := gorgonia.Let(m.labels, paddedLabels); err != nil {
		return 0, 0, fmt.Errorf("bind labels: %w", err)
	}
	if err := gorgonia.Let(m.mask, maskVec); err != nil {
		return 0, 0, fmt.Errorf("bind mask: %w", err)
	}

	m.vm.Reset()
	if err := m.vm.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("run training step: %w", err)
	}
	if err := m.solver.Step(gorgonia.NodesToValueGrads(m.learnables)); err != nil {
		return 0, 0, fmt.Errorf("apply optimizer step: %w", err)
	}

	loss = m.lossVal.Data().(float32)
	if math.IsNaN(float64(loss)) || math.IsInf(float64(loss), 0) {
		return loss, 0, fmt.Errorf("model: loss diverged to %g", loss)
	}
	accuracy = batchAccuracy(m.predVal.Data().([]float32), labels)

	metrics.BatchLoss.Set(float64(loss))
	metrics.BatchAccuracy.Set(float64(accuracy))
	metrics.TrainStepDuration.Observe(time.Since(start).Seconds())

	return loss, accuracy, nil
}

// padExamples returns x extended with zero examples up to the compiled
// batch size. Full batches pass through untouched.
func (m *Model) padExamples(x *tensor.Dense) (*tensor.Dense, error) {
	n := x.Shape()[0]
	if n == m.cfg.BatchSize {
		return x, nil
	}

	shape := append([]int{m.cfg.BatchSize}, x.Shape()[1:]...)
	padded := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...))
	src, ok := x.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("model: expected float32 batch, got %v", x.Dtype())
	}
	copy(padded.Data().([]float32), src)
	return padded, nil
}

// padLabels extends labels to size with zeros and builds the matching 0/1
// example mask.
func padLabels(labels []float32, size int) (labelVec, maskVec *tensor.Dense) {
	lv := make([]float32, size)
	mv := make([]float32, size)
	copy(lv, labels)
	for i := range labels {
		mv[i] = 1
	}
	return tensor.New(tensor.WithShape(size), tensor.WithBacking(lv)),
		tensor.New(tensor.WithShape(size), tensor.WithBacking(mv))
}

// batchAccuracy counts 0.5-thresholded predictions matching their labels,
// over the real (unpadded) examples only.
func batchAccuracy(preds, labels []float32) float32 {
	if len(labels) == 0 {
		return 0
	}
	var correct int
	for i, y := range labels {
		predicted := float32(0)
		if preds[i] >= 0.5 {
			predicted = 1
		}
		if predicted == y {
			correct++
		}
	}
	return float32(correct) / float32(len(labels))
}

// Close releases the tape machine.
func (m *Model) Close() error {
	return m.vm.Close()
}
