// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package dataset

import "fmt"

// DataLoadError reports an unreadable or malformed dataset file.
type DataLoadError struct {
	// Path is the dataset file that failed to load.
	Path string

	// Err is the underlying cause (I/O or JSON decode error).
	Err error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports a dataset that cannot satisfy the
// negative-sampling precondition: drawing a context item from a different
// outfit requires at least two outfits.
type InsufficientDataError struct {
	// Outfits is the number of outfits actually present.
	Outfits int

	// Required is the minimum number of outfits needed.
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: negative sampling requires at least %d outfits, dataset has %d",
		e.Required, e.Outfits)
}
