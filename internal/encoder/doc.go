// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package encoder builds the convolutional image towers of the
// dual-encoder model.
//
// A tower is an Inception-v3 style feature extractor constructed on a
// shared gorgonia expression graph by an architecture factory. The factory
// is instantiated once per role ("target", "context"), and every layer it
// creates is registered under a role-namespaced, depth-indexed name
// (target_0 ... target_last_layer) so two structurally identical towers can
// live in one trainable graph without identifier collisions.
//
// # Layer registry and fine-tuning
//
// The registry enumerates layers the way the reference Inception
// implementation does: convolutions, batch-norm affines, activations,
// pools and concatenations each count as one layer. The fine-tune policy
// operates on registry depth: with fine-tuning enabled, layers below the
// family's freeze threshold (249 for Inception) keep their weights fixed
// and layers at or beyond it train. With fine-tuning disabled both towers
// are fully frozen and only the model's scoring head trains; this default
// is deliberate and covered by tests.
//
// # Batch normalization
//
// Towers are fine-tuned from pretrained weights, so batch-norm layers are
// folded into per-channel affine transforms (scale and shift over stored
// statistics). The affine parameters train whenever their layer is
// trainable; running statistics are never re-estimated.
package encoder
