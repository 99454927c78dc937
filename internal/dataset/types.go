// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package dataset

// Item is a single fashion item inside an outfit.
type Item struct {
	// ImagePath is the item's image location relative to the images root.
	ImagePath string `json:"ImagePath"`

	// Name is an optional human-readable item name.
	Name string `json:"Name,omitempty"`

	// CategoryID is an optional item category from the source dataset.
	CategoryID string `json:"CategoryId,omitempty"`

	// SetID is the identifier of the outfit this item was loaded from.
	// Filled in by Load; not part of the file format for items.
	SetID int `json:"-"`
}

// Outfit is an ordered set of items considered to co-occur.
// Invariant: SetID uniquely identifies an outfit within the dataset and an
// outfit contains at least one item.
type Outfit struct {
	// SetID uniquely identifies the outfit within the dataset.
	SetID int `json:"SetId"`

	// Items are the outfit's members, in file order.
	Items []Item `json:"Items"`
}

// Dataset is an ordered sequence of outfits, read-only after Load.
type Dataset []Outfit

// Outfits returns the number of outfits in the dataset.
func (d Dataset) Outfits() int {
	return len(d)
}

// ItemCount returns the total number of items across all outfits.
func (d Dataset) ItemCount() int {
	n := 0
	for i := range d {
		n += len(d[i].Items)
	}
	return n
}
