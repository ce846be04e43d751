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
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/kraklabs/assetseed/internal/bootstrap"
	"github.com/kraklabs/assetseed/internal/errors"
	"github.com/kraklabs/assetseed/internal/output"
	"github.com/kraklabs/assetseed/internal/ui"
	"github.com/kraklabs/assetseed/pkg/ingestion"
	"github.com/kraklabs/assetseed/pkg/storage"
)

// ClearResult is the JSON output of the clear command.
type ClearResult struct {
	Collection string `json:"collection"`
	Deleted    int    `json:"deleted"`
}

// runClear deletes every document in the configured collection and forgets
// the last run. Uploaded objects are left in place.
func runClear(args []string, configPath string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("clear", pflag.ContinueOnError)
	confirm := fs.Bool("yes", false, "Confirm the deletion (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: assetseed clear --yes

Deletes every project document in the configured collection. Objects in
the bucket are not touched; the next ingest run rewrites the documents
without uploading again.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(errors.ExitInput)
	}

	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Confirmation required",
			"clear deletes every stored project document",
			"Pass --yes to confirm",
		), globals.JSON)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load assetseed configuration",
			err.Error(),
			"Run 'assetseed init' or pass --config",
			err,
		), globals.JSON)
	}
	logger := newLogger(globals, false)

	lock, err := acquireRunLock(cfg.Root())
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer func() { _ = lock.Unlock() }()

	docs, err := bootstrap.OpenDocumentStore(cfg.Stores().Documents, logger)
	if err != nil {
		_ = lock.Unlock()
		errors.FatalError(errors.NewStorageError("Cannot open document store", err.Error(), "Check document_store in .assetseed/project.yaml", err), globals.JSON)
	}
	defer func() { _ = docs.Close() }()

	spinner := NewSpinner(NewProgressConfig(globals), fmt.Sprintf("Clearing %s", cfg.DocumentStore.Collection))
	if spinner != nil {
		_ = spinner.Add(1)
	}
	runs := ingestion.NewRunRecordManager(filepath.Join(ConfigDir(cfg.Root()), runsDirName))
	deleted, err := clearDocuments(context.Background(), docs, runs, logger)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		_ = docs.Close()
		_ = lock.Unlock()
		errors.FatalError(errors.NewStorageError("Cannot clear documents", err.Error(), "Check document store connectivity", err), globals.JSON)
	}
	logger.Info("clear.complete", "collection", cfg.DocumentStore.Collection, "deleted", deleted)

	if globals.JSON {
		_ = output.JSON(ClearResult{Collection: cfg.DocumentStore.Collection, Deleted: deleted})
		return
	}
	ui.Successf("Deleted %d document(s) from %s", deleted, cfg.DocumentStore.Collection)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  assetseed ingest    Rewrite the documents")
}

// clearDocuments deletes the collection's documents, then the last-run
// record that described them. A record that cannot be removed is logged.
func clearDocuments(ctx context.Context, docs storage.DocumentStore, runs *ingestion.RunRecordManager, logger *slog.Logger) (int, error) {
	deleted, err := docs.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := runs.Clear(); err != nil {
		logger.Warn("clear.record.error", "err", err)
	}
	return deleted, nil
}
