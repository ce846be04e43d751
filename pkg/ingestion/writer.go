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

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/assetseed/pkg/storage"
)

// errUnchanged short-circuits an update whose content already matches.
var errUnchanged = errors.New("document unchanged")

// WriteResult aggregates document writes.
type WriteResult struct {
	// Written are ids of documents created or replaced.
	Written []string

	// Unchanged are ids whose stored content already matched.
	Unchanged []string

	Errors    []Issue
	Conflicts int
}

// Writer stores documents with optimistic concurrency.
type Writer struct {
	store    storage.DocumentStore
	attempts int
	logger   *slog.Logger
}

// NewWriter creates a writer. attempts bounds retries per document on
// version conflicts.
func NewWriter(store storage.DocumentStore, attempts int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts <= 0 {
		attempts = DefaultWriteAttempts
	}
	return &Writer{store: store, attempts: attempts, logger: logger}
}

// Write stores every document. A failing document does not stop the others.
func (w *Writer) Write(ctx context.Context, docs []storage.ProjectDocument) *WriteResult {
	result := &WriteResult{Written: []string{}, Unchanged: []string{}, Errors: []Issue{}}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, Issue{
				Step: StepWrite, Code: CodeDocument, ProjectID: doc.ID,
				Message: fmt.Sprintf("not written: %v", err),
			})
			continue
		}

		start := time.Now()
		calls := 0
		_, err := storage.Update(ctx, w.store, doc.ID, w.attempts, func(current *storage.ProjectDocument) (storage.ProjectDocument, error) {
			calls++
			next := MergeOrdering(doc, current)
			if current != nil && sameContent(*current, next) {
				return storage.ProjectDocument{}, errUnchanged
			}
			return next, nil
		})
		if calls > 1 {
			result.Conflicts += calls - 1
			for i := 1; i < calls; i++ {
				recordDocConflict()
			}
		}

		switch {
		case errors.Is(err, errUnchanged):
			result.Unchanged = append(result.Unchanged, doc.ID)
			w.logger.Debug("ingest.write.unchanged", "project_id", doc.ID)
		case err != nil:
			result.Errors = append(result.Errors, Issue{
				Step: StepWrite, Code: CodeDocument, ProjectID: doc.ID,
				Message: fmt.Sprintf("write failed: %v", err),
			})
			w.logger.Error("ingest.write.failed", "project_id", doc.ID, "attempts", calls, "err", err)
		default:
			result.Written = append(result.Written, doc.ID)
			recordDocWritten()
			w.logger.Debug("ingest.write.document", "project_id", doc.ID, "duration_ms", time.Since(start).Milliseconds())
		}
	}
	return result
}

// Clear deletes every document in the target collection.
func (w *Writer) Clear(ctx context.Context) (int, error) {
	n, err := w.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	w.logger.Warn("ingest.write.cleared", "documents", n)
	return n, nil
}

// sameContent compares two documents ignoring version and update time.
func sameContent(a, b storage.ProjectDocument) bool {
	a, b = a.Clone(), b.Clone()
	a.Version, b.Version = 0, 0
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
