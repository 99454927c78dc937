// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package preprocess converts dataset items into the numeric tensors the
// encoder towers consume.
//
// For the Inception family an item image is decoded, resized to 299x299
// with Catmull-Rom interpolation, and scaled channel-wise from [0, 255] to
// [-1, 1], the input distribution the pretrained weights were produced
// with. Tensors are laid out NCHW (channels-first) to match the
// convolution ops.
//
// Preprocessing is deterministic: the same image file always yields the
// same tensor. There is deliberately no caching of prepared tensors across
// epochs; every appearance of an item re-decodes its image, trading CPU for
// a flat memory profile.
package preprocess
