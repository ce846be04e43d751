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
	"time"

	"github.com/spf13/pflag"

	"github.com/kraklabs/assetseed/internal/bootstrap"
	"github.com/kraklabs/assetseed/internal/errors"
	"github.com/kraklabs/assetseed/internal/output"
	"github.com/kraklabs/assetseed/internal/ui"
	"github.com/kraklabs/assetseed/pkg/ingestion"
)

// StatusResult represents the workspace status for JSON output.
type StatusResult struct {
	Root        string                `json:"root"`
	Environment string                `json:"environment"`
	Bucket      string                `json:"bucket"`
	Collection  string                `json:"collection"`
	Connected   bool                  `json:"connected"`
	Documents   int                   `json:"documents"`
	LastRun     *ingestion.RunSummary `json:"last_run,omitempty"`
	Error       string                `json:"error,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
}

// runStatus executes the 'status' CLI command: the last recorded run and
// the number of documents in the configured collection.
//
// Examples:
//
//	assetseed status           Display formatted status
//	assetseed status --json    Output as JSON for programmatic use
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	fs.BoolVar(&globals.JSON, "json", globals.JSON, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: assetseed status [options]

Shows the last ingestion run and the stored document count.

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
	result := collectStatus(context.Background(), cfg, logger)

	if globals.JSON {
		_ = output.JSON(result)
	} else {
		printStatus(result)
	}
	if !result.Connected {
		os.Exit(errors.ExitStorage)
	}
}

// collectStatus gathers the status. Store failures are reported in the
// result rather than returned.
func collectStatus(ctx context.Context, cfg *Config, logger *slog.Logger) *StatusResult {
	result := &StatusResult{
		Root:        cfg.Root(),
		Environment: cfg.Environment,
		Bucket:      cfg.ObjectStore.Bucket,
		Collection:  cfg.DocumentStore.Collection,
		Timestamp:   time.Now(),
	}

	last, err := ingestion.NewRunRecordManager(filepath.Join(ConfigDir(cfg.Root()), runsDirName)).Load()
	if err != nil {
		logger.Warn("status.record.error", "err", err)
	}
	result.LastRun = last

	docCfg := cfg.Stores().Documents
	docCfg.ReadOnly = true
	docs, err := bootstrap.OpenDocumentStore(docCfg, logger)
	if err != nil {
		result.Error = fmt.Sprintf("cannot open document store: %v", err)
		return result
	}
	defer func() { _ = docs.Close() }()

	list, err := docs.List(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("cannot list documents: %v", err)
		return result
	}
	result.Connected = true
	result.Documents = len(list)
	return result
}

func printStatus(result *StatusResult) {
	ui.Header("assetseed status")
	fmt.Printf("%s %s\n", ui.Label("Workspace:  "), ui.DimText(result.Root))
	fmt.Printf("%s %s\n", ui.Label("Environment:"), result.Environment)
	fmt.Printf("%s %s\n", ui.Label("Bucket:     "), result.Bucket)
	fmt.Printf("%s %s\n", ui.Label("Collection: "), result.Collection)
	if result.Connected {
		fmt.Printf("%s %s\n", ui.Label("Documents:  "), ui.CountText(result.Documents))
	}
	fmt.Println()

	if result.LastRun == nil {
		fmt.Println("No runs recorded yet. Run 'assetseed ingest --dry-run' to start.")
	} else {
		fmt.Printf("%s %s\n\n", ui.Label("Last run:"), ui.Ago(result.LastRun.FinishedAt))
		fmt.Print(renderReport(result.LastRun))
	}

	if result.Error != "" {
		fmt.Println()
		ui.Warning(result.Error)
	}
}
