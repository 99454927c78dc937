// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package dataset

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Load reads the outfit dataset from the JSON file at path.
//
// If outfitLimit is positive and smaller than the number of outfits in the
// file, only the first outfitLimit outfits are kept, preserving file order.
// A non-positive limit keeps everything.
//
// Every item in the returned dataset has its SetID set to the SetId of the
// outfit it belongs to. Failures are reported as *DataLoadError.
func Load(path string, outfitLimit int) (Dataset, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from run configuration
	if err != nil {
		return nil, &DataLoadError{Path: path, Err: err}
	}

	var outfits []Outfit
	if err := json.Unmarshal(raw, &outfits); err != nil {
		return nil, &DataLoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}

	if outfitLimit > 0 && outfitLimit < len(outfits) {
		outfits = outfits[:outfitLimit]
	}

	for i := range outfits {
		if len(outfits[i].Items) == 0 {
			return nil, &DataLoadError{
				Path: path,
				Err:  fmt.Errorf("outfit %d (SetId %d) has no items", i, outfits[i].SetID),
			}
		}
		for j := range outfits[i].Items {
			outfits[i].Items[j].SetID = outfits[i].SetID
		}
	}

	return Dataset(outfits), nil
}
