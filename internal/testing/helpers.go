// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package testing

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kraklabs/assetseed/pkg/storage"
)

// MetadataHeader is the full column set understood by the metadata parser.
var MetadataHeader = []string{
	"number", "name", "category", "status", "subcategory", "componentName",
	"isFeatured", "projectManagers", "summary", "description",
	"location.zipCode", "location.neighborhood", "timeline.duration", "tags",
}

// Row builds one metadata row for MetadataHeader from column/value pairs.
// Columns not mentioned are left empty.
//
// Example:
//
//	seedtest.Row("number", "187", "name", "Smith Residence", "category", "kitchen", "status", "completed")
func Row(pairs ...string) []string {
	if len(pairs)%2 != 0 {
		panic("seedtest.Row: odd number of arguments")
	}
	row := make([]string, len(MetadataHeader))
	for i := 0; i < len(pairs); i += 2 {
		for j, col := range MetadataHeader {
			if col == pairs[i] {
				row[j] = pairs[i+1]
			}
		}
	}
	return row
}

// WriteMetadataCSV writes header and rows to a CSV file in a temp dir and
// returns its path.
func WriteMetadataCSV(t *testing.T, header []string, rows ...[]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "projects.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create metadata file: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("failed to write rows: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close metadata file: %v", err)
	}
	return path
}

// CSVString renders header and rows as CSV text.
func CSVString(t *testing.T, header []string, rows ...[]string) string {
	t.Helper()

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("failed to write rows: %v", err)
	}
	return b.String()
}

// AssetTree builds a local asset tree under a temp dir.
//
// Example:
//
//	tree := seedtest.NewAssetTree(t)
//	tree.Add("kitchen/187 - Smith Residence/187 - After Photos/a.jpg", 1024)
//	files := scanner.Scan(ctx, tree.Root, ingestion.ScanOptions{})
type AssetTree struct {
	t    *testing.T
	Root string
}

// NewAssetTree creates an empty tree.
func NewAssetTree(t *testing.T) *AssetTree {
	t.Helper()
	return &AssetTree{t: t, Root: t.TempDir()}
}

// Add writes a file of size bytes at the slash-separated path rel and
// returns its absolute path.
func (a *AssetTree) Add(rel string, size int) string {
	a.t.Helper()
	return a.AddContent(rel, strings.Repeat("x", size))
}

// AddContent writes content at rel and returns its absolute path.
func (a *AssetTree) AddContent(rel, content string) string {
	a.t.Helper()

	path := filepath.Join(a.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		a.t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		a.t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// Dir creates an empty directory at rel.
func (a *AssetTree) Dir(rel string) string {
	a.t.Helper()

	path := filepath.Join(a.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(path, 0755); err != nil {
		a.t.Fatalf("failed to create dir %s: %v", rel, err)
	}
	return path
}

// SetupDocumentStore opens a sqlite-backed document store in a temp dir. The
// store is closed when the test finishes.
func SetupDocumentStore(t *testing.T) *storage.SQLDocumentStore {
	t.Helper()

	store, err := storage.NewSQLDocumentStore(storage.SQLConfig{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "documents.db"),
	})
	if err != nil {
		t.Fatalf("failed to create document store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SetupObjectStore returns an empty in-memory object store.
func SetupObjectStore(t *testing.T) *storage.MemoryObjectStore {
	t.Helper()
	return storage.NewMemoryObjectStore("test-assets")
}
