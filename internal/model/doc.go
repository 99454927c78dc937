// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package model assembles the dual-encoder co-occurrence model and runs
// its training steps.
//
// Two role-namespaced towers ("target", "context") share one expression
// graph. Each example's towers produce a feature vector; their dot product
// feeds a one-unit sigmoid scoring head, and binary cross-entropy against
// the co-occurrence label drives Adam updates of the learnable parameters.
//
// The graph is compiled once at a fixed batch size. Short trailing batches
// are padded to that size and excluded from the loss through a 0/1 example
// weight vector, so padding never influences gradients or the reported
// metrics.
package model
