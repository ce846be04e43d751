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

package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/assetseed/pkg/ingestion"
	"github.com/kraklabs/assetseed/pkg/storage"
)

func TestClearDocuments(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	docs := storage.NewMemoryDocumentStore()
	for _, id := range []string{"187", "205"} {
		_, err := docs.CompareAndSwap(ctx, storage.ProjectDocument{ID: id, Name: "P" + id}, 0)
		require.NoError(t, err)
	}
	runs := ingestion.NewRunRecordManager(filepath.Join(t.TempDir(), runsDirName))
	require.NoError(t, runs.Save(ingestion.NewSummaryBuilder(ingestion.EnvDevelopment, false).Finish()))

	deleted, err := clearDocuments(ctx, docs, runs, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	left, err := docs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)

	last, err := runs.Load()
	require.NoError(t, err)
	assert.Nil(t, last, "the last run no longer describes stored documents")
}

func TestClearDocumentsKeepsRecordOnFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs := storage.NewMemoryDocumentStore()
	require.NoError(t, docs.Close())

	runs := ingestion.NewRunRecordManager(filepath.Join(t.TempDir(), runsDirName))
	require.NoError(t, runs.Save(ingestion.NewSummaryBuilder(ingestion.EnvDevelopment, false).Finish()))

	_, err := clearDocuments(context.Background(), docs, runs, logger)
	assert.ErrorIs(t, err, storage.ErrClosed)

	last, err := runs.Load()
	require.NoError(t, err)
	assert.NotNil(t, last)
}
