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

// Package storage provides the persistence abstractions for assetseed.
//
// Two stores are involved in every ingestion run:
//
//   - ObjectStore holds the binary assets (photos and documents). MinioStore
//     speaks to any S3-compatible endpoint; MemoryObjectStore backs tests and
//     dry runs.
//   - DocumentStore holds one ProjectDocument per project. SQLDocumentStore
//     persists documents in sqlite (embedded) or postgres; MemoryDocumentStore
//     backs tests.
//
// # Optimistic Concurrency
//
// Every ProjectDocument carries a Version. CompareAndSwap only replaces a
// document whose stored version equals the expected one, and Update wraps
// the read-modify-write cycle with a bounded retry:
//
//	doc, err := storage.Update(ctx, docs, "187", 0, func(cur *storage.ProjectDocument) (storage.ProjectDocument, error) {
//	    next := storage.ProjectDocument{ID: "187"}
//	    if cur != nil {
//	        next = cur.Clone()
//	    }
//	    next.Featured = true
//	    return next, nil
//	})
//
// # Object Keys
//
// Object keys are plain slash-separated strings. The store never interprets
// them beyond prefix listing, so the key layout is owned by the ingestion
// package.
package storage
