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

package storage

import (
	"context"
	"errors"
	"fmt"
)

// DefaultUpdateAttempts bounds how many times Update re-reads and retries
// after a version conflict.
const DefaultUpdateAttempts = 3

// MutateFunc computes the document to store from the current stored copy.
// current is nil when the document does not exist yet.
type MutateFunc func(current *ProjectDocument) (ProjectDocument, error)

// Update performs an optimistic read-modify-write of the document with the
// given id. On ErrConflict it re-reads the document and calls mutate again,
// up to attempts times in total.
func Update(ctx context.Context, store DocumentStore, id string, attempts int, mutate MutateFunc) (ProjectDocument, error) {
	if attempts <= 0 {
		attempts = DefaultUpdateAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := store.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return ProjectDocument{}, fmt.Errorf("read %s: %w", id, err)
		}
		var expected int64
		if current != nil {
			expected = current.Version
		}

		next, err := mutate(current)
		if err != nil {
			return ProjectDocument{}, err
		}
		if next.ID != id {
			return ProjectDocument{}, fmt.Errorf("mutate changed document id from %q to %q", id, next.ID)
		}

		stored, err := store.CompareAndSwap(ctx, next, expected)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, ErrConflict) {
			return ProjectDocument{}, err
		}
		lastErr = err
	}
	return ProjectDocument{}, fmt.Errorf("update %s: gave up after %d attempts: %w", id, attempts, lastErr)
}
