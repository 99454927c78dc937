// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package model

import (
	"fmt"
	"sort"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// paramsByName returns every parameter node of the model, towers and
// scoring head included, keyed by node name.
func (m *Model) paramsByName() map[string]*gorgonia.Node {
	params := m.target.ParamsByName()
	for name, n := range m.context.ParamsByName() {
		params[name] = n
	}
	params["head_w"] = m.headW
	params["head_b"] = m.headB
	return params
}

// ParamNames returns the sorted names of all model parameters.
func (m *Model) ParamNames() []string {
	params := m.paramsByName()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot clones the current parameter values into a name-keyed map, safe
// to persist while training continues on the originals.
func (m *Model) Snapshot() (map[string]*tensor.Dense, error) {
	params := m.paramsByName()
	snap := make(map[string]*tensor.Dense, len(params))
	for name, node := range params {
		v := node.Value()
		if v == nil {
			return nil, fmt.Errorf("model: parameter %q has no value", name)
		}
		d, ok := v.(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("model: parameter %q is not a dense tensor", name)
		}
		snap[name] = d.Clone().(*tensor.Dense)
	}
	return snap, nil
}

// LoadWeights restores parameter values from a snapshot. Every model
// parameter must be present with its exact shape; unknown extra entries
// are rejected so a checkpoint from a different architecture cannot be
// half-applied.
func (m *Model) LoadWeights(weights map[string]*tensor.Dense) error {
	params := m.paramsByName()

	for name := range weights {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("model: snapshot carries unknown parameter %q", name)
		}
	}

	for name, node := range params {
		w, ok := weights[name]
		if !ok {
			return fmt.Errorf("model: snapshot is missing parameter %q", name)
		}
		if !node.Shape().Eq(w.Shape()) {
			return fmt.Errorf("model: parameter %q shape mismatch: have %v, snapshot %v",
				name, node.Shape(), w.Shape())
		}
		if err := gorgonia.Let(node, w.Clone().(*tensor.Dense)); err != nil {
			return fmt.Errorf("model: restore parameter %q: %w", name, err)
		}
	}
	return nil
}
