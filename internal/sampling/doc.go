// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package sampling turns the outfit dataset into labeled (target, context)
// training pairs and streams them as batches.
//
// For every item of every outfit the generator emits one positive sample
// per other item of the same outfit (all ordered pairs, no self-pairs) and
// a configured number of negative samples, each drawn from a uniformly
// random different outfit. The full candidate list is shuffled uniformly,
// optionally truncated, and recomputed from scratch at the start of every
// epoch; negatives are deliberately not fixed across epochs.
//
// Batches are produced by a cooperative, pull-based iterator: production
// suspends between pulls, items are preprocessed lazily per chunk, and
// exhausting one epoch's chunks transitions explicitly into a fresh
// sample pass. One generator instance feeds one training run; the iterator
// is not safe for concurrent pulls.
package sampling
