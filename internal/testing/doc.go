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

// Package testing provides fixtures for assetseed tests.
//
// Import it under an alias to avoid clashing with the standard library:
//
//	import seedtest "github.com/kraklabs/assetseed/internal/testing"
//
// # Metadata
//
// Row and WriteMetadataCSV build metadata tables:
//
//	path := seedtest.WriteMetadataCSV(t, seedtest.MetadataHeader,
//	    seedtest.Row("number", "187", "name", "Smith", "category", "kitchen", "status", "completed"),
//	)
//
// # Asset Trees
//
// AssetTree writes files under a temp dir using slash-separated paths:
//
//	tree := seedtest.NewAssetTree(t)
//	tree.Add("kitchen/187 - Smith/187 - After Photos/a.jpg", 10)
//
// # Stores
//
//   - SetupObjectStore: in-memory ObjectStore that counts calls
//   - SetupDocumentStore: sqlite DocumentStore in a temp dir
package testing
