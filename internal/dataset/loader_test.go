// Style2Vec - Outfit Co-occurrence Embedding Trainer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/style2vec

package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeDataset(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "outfits.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

const threeOutfits = `[
  {"SetId": 1, "Items": [{"ImagePath": "1/a.jpg"}, {"ImagePath": "1/b.jpg"}]},
  {"SetId": 2, "Items": [{"ImagePath": "2/a.jpg"}]},
  {"SetId": 3, "Items": [{"ImagePath": "3/a.jpg"}, {"ImagePath": "3/b.jpg"}, {"ImagePath": "3/c.jpg"}]}
]`

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, threeOutfits)

	ds, err := Load(path, -1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := ds.Outfits(); got != 3 {
		t.Errorf("Outfits() = %d, want 3", got)
	}
	if got := ds.ItemCount(); got != 6 {
		t.Errorf("ItemCount() = %d, want 6", got)
	}

	// Every item must carry its source outfit's SetID.
	for _, outfit := range ds {
		for _, item := range outfit.Items {
			if item.SetID != outfit.SetID {
				t.Errorf("item %q SetID = %d, want %d", item.ImagePath, item.SetID, outfit.SetID)
			}
		}
	}
}

func TestLoadOutfitLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		limit      int
		want       int
		wantSetIDs []int
	}{
		{name: "limit below total keeps first K in order", limit: 2, want: 2, wantSetIDs: []int{1, 2}},
		{name: "limit equal to total keeps all", limit: 3, want: 3, wantSetIDs: []int{1, 2, 3}},
		{name: "limit above total keeps all", limit: 10, want: 3, wantSetIDs: []int{1, 2, 3}},
		{name: "negative limit disables cap", limit: -1, want: 3, wantSetIDs: []int{1, 2, 3}},
		{name: "zero limit disables cap", limit: 0, want: 3, wantSetIDs: []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeDataset(t, threeOutfits)
			ds, err := Load(path, tt.limit)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(ds) != tt.want {
				t.Fatalf("Load() returned %d outfits, want %d", len(ds), tt.want)
			}
			for i, want := range tt.wantSetIDs {
				if ds[i].SetID != want {
					t.Errorf("outfit[%d].SetID = %d, want %d", i, ds[i].SetID, want)
				}
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "nope.json")
			},
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string {
				t.Helper()
				return writeDataset(t, `{"not": "an array"`)
			},
		},
		{
			name: "outfit without items",
			path: func(t *testing.T) string {
				t.Helper()
				return writeDataset(t, `[{"SetId": 1, "Items": []}]`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(tt.path(t), -1)
			if err == nil {
				t.Fatal("Load() error = nil, want *DataLoadError")
			}
			var loadErr *DataLoadError
			if !errors.As(err, &loadErr) {
				t.Errorf("Load() error = %T, want *DataLoadError", err)
			}
		})
	}
}
