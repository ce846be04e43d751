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

package ingestion

// Batcher splits a project's files into upload batches. A batch holds at
// most targetFiles files and, when maxBytes is positive, at most maxBytes
// bytes. A single file larger than maxBytes gets a batch of its own.
type Batcher struct {
	targetFiles int
	maxBytes    int64
}

// NewBatcher creates a new batcher. targetFiles below 1 is treated as 1.
func NewBatcher(targetFiles int, maxBytes int64) *Batcher {
	if targetFiles < 1 {
		targetFiles = 1
	}
	return &Batcher{
		targetFiles: targetFiles,
		maxBytes:    maxBytes,
	}
}

// Batch splits files into consecutive batches, preserving order.
func (b *Batcher) Batch(files []DiscoveredFile) [][]DiscoveredFile {
	if len(files) == 0 {
		return nil
	}

	var batches [][]DiscoveredFile
	var current []DiscoveredFile
	var currentBytes int64

	for _, f := range files {
		wouldExceedSize := b.maxBytes > 0 && currentBytes+f.Size > b.maxBytes
		wouldExceedTarget := len(current) >= b.targetFiles

		if len(current) > 0 && (wouldExceedSize || wouldExceedTarget) {
			batches = append(batches, current)
			current = nil
			currentBytes = 0
		}

		current = append(current, f)
		currentBytes += f.Size
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
