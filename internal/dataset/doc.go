// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

// Package dataset defines the in-memory outfit store and its JSON loader.
//
// A dataset is an ordered list of outfits; each outfit is a set of fashion
// items that co-occur (are worn together). Co-occurrence is defined strictly
// within a single outfit, so every item records the SetID of the outfit it
// was loaded from.
//
// The dataset file is a JSON array of outfit records:
//
//	[
//	  {"SetId": 101, "Items": [{"ImagePath": "101/1.jpg"}, {"ImagePath": "101/2.jpg"}]},
//	  {"SetId": 102, "Items": [{"ImagePath": "102/1.jpg"}]}
//	]
//
// The store is read-only after Load; callers share it freely across
// goroutines without further synchronization.
package dataset
