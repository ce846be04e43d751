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
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/kraklabs/assetseed/internal/bootstrap"
	"github.com/kraklabs/assetseed/internal/contract"
	"github.com/kraklabs/assetseed/internal/errors"
	"github.com/kraklabs/assetseed/internal/output"
	"github.com/kraklabs/assetseed/pkg/ingestion"
)

const (
	lockFileName = "run.lock"
	runsDirName  = "runs"
)

// ingestFlags holds parsed flags for the ingest command.
type ingestFlags struct {
	dryRun, force, clear, skipExisting bool
	allowPartial, debug                bool
	projects                           []string
	category, output                   string
	metadata, assets, env              string
	metricsAddr                        string
	batchSize                          int
}

// options converts the flags into pipeline options.
func (f ingestFlags) options() ingestion.Options {
	var projects []string
	for _, p := range f.projects {
		if p = strings.TrimSpace(p); p != "" {
			projects = append(projects, p)
		}
	}
	return ingestion.Options{
		DryRun:       f.dryRun,
		Force:        f.force,
		SkipExisting: f.skipExisting,
		Projects:     projects,
		Category:     strings.TrimSpace(f.category),
		Clear:        f.clear,
		BatchSize:    f.batchSize,
		AllowPartial: f.allowPartial,
	}
}

// apply overrides config file settings with the path and environment
// flags. Paths given on the command line are relative to the working
// directory.
func (f ingestFlags) apply(cfg *ingestion.Config) error {
	if f.metadata != "" {
		p, err := filepath.Abs(f.metadata)
		if err != nil {
			return err
		}
		cfg.MetadataPath = p
	}
	if f.assets != "" {
		p, err := filepath.Abs(f.assets)
		if err != nil {
			return err
		}
		cfg.AssetsRoot = p
	}
	if f.env != "" {
		cfg.Environment = f.env
	}
	return cfg.Validate()
}

func parseIngestFlags(args []string) (ingestFlags, error) {
	fs := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	var f ingestFlags
	fs.BoolVar(&f.dryRun, "dry-run", false, "Scan, parse and plan without uploading or writing")
	fs.BoolVar(&f.force, "force", false, "Re-upload files that already exist remotely")
	fs.StringSliceVar(&f.projects, "project", nil, "Limit to project id(s), comma separated")
	fs.BoolVar(&f.clear, "clear", false, "Delete every stored document before writing (destructive!)")
	fs.BoolVar(&f.skipExisting, "skip-existing", false, "Skip files that already exist remotely (default behavior)")
	fs.StringVar(&f.category, "category", "", "Limit to one category directory")
	fs.IntVar(&f.batchSize, "batch-size", 0, "Concurrent uploads per batch (default from config)")
	fs.StringVar(&f.output, "output", "", "Write the JSON run summary to this path")
	fs.StringVar(&f.metadata, "metadata", "", "Metadata CSV (overrides config)")
	fs.StringVar(&f.assets, "assets", "", "Asset tree root (overrides config)")
	fs.StringVar(&f.env, "env", "", "Target environment: development or production (overrides ASSETSEED_ENV)")
	fs.BoolVar(&f.allowPartial, "allow-partial", false, "Continue when some metadata rows are invalid")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: assetseed ingest [options]

Runs scan, parse, upload, build, validate, write and report in sequence.
Files already present in the object store are skipped, so an interrupted
run can simply be started again.

Examples:
  assetseed ingest --dry-run
  assetseed ingest --project 187,205
  assetseed ingest --category kitchen --batch-size 10
  assetseed ingest --clear --env production --output run.json

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// runIngest executes the 'ingest' CLI command.
//
// The process exit code is 0 when the run recorded no errors and 1
// otherwise. Setup failures exit with the codes in internal/errors.
func runIngest(args []string, configPath string, globals GlobalFlags) {
	flags, err := parseIngestFlags(args)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		errors.FatalError(errors.NewInputError(
			"Invalid ingest options",
			err.Error(),
			"Run 'assetseed ingest --help' for usage",
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

	ingCfg, err := cfg.Ingestion()
	if err == nil {
		err = flags.apply(&ingCfg)
	}
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Invalid ingestion settings",
			err.Error(),
			"Check .assetseed/project.yaml and the command flags",
			err,
		), globals.JSON)
	}

	logger := newLogger(globals, flags.debug)

	opts := flags.options()
	if err := opts.Validate(); err != nil {
		errors.FatalError(errors.NewInputError("Invalid ingest options", err.Error(), "Run 'assetseed ingest --help' for usage"), globals.JSON)
	}

	lock, err := acquireRunLock(cfg.Root())
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer func() { _ = lock.Unlock() }()

	if flags.metricsAddr != "" {
		go serveMetrics(flags.metricsAddr, logger)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	storesCfg := cfg.Stores()
	storesCfg.ReadOnly = opts.DryRun
	stores, err := bootstrap.Open(storesCfg, logger)
	if err != nil {
		_ = lock.Unlock()
		errors.FatalError(errors.NewStorageError(
			"Cannot open storage",
			err.Error(),
			"Check object_store and document_store in .assetseed/project.yaml and the ASSETSEED_S3_* variables",
			err,
		), globals.JSON)
	}
	defer func() { _ = stores.Close() }()

	pipeline, err := ingestion.NewPipeline(ingCfg, opts, stores.Objects, stores.Documents, logger)
	if err != nil {
		_ = stores.Close()
		_ = lock.Unlock()
		errors.FatalError(errors.NewConfigError("Cannot start ingestion", err.Error(), "Check the ingestion settings", err), globals.JSON)
	}
	pipeline.SetDocumentLimit(contract.DocSoftLimitBytes())

	progress := newUploadProgress(NewProgressConfig(globals))
	pipeline.SetProgress(progress.Update)

	if ingCfg.IsProduction() && !opts.DryRun && !globals.Quiet {
		fmt.Fprintf(os.Stderr, "Target is PRODUCTION. Writing starts in %s; press Ctrl+C to abort.\n", ingCfg.ConfirmDelay)
	}

	summary, runErr := pipeline.Run(ctx)
	progress.Finish()

	recordDir := filepath.Join(ConfigDir(cfg.Root()), runsDirName)
	if err := ingestion.NewRunRecordManager(recordDir).Save(summary); err != nil {
		logger.Warn("ingest.record.error", "dir", recordDir, "err", err)
	}
	if flags.output != "" {
		if err := output.JSONFile(flags.output, summary); err != nil {
			logger.Warn("ingest.output.error", "path", flags.output, "err", err)
		}
	}

	if globals.JSON {
		_ = output.JSON(summary)
	} else {
		fmt.Print(renderReport(summary))
	}

	code := summary.ExitCode()
	if runErr != nil {
		_ = stores.Close()
		_ = lock.Unlock()
		errors.FatalError(fatalRunError(summary, runErr), globals.JSON)
	}
	if code != 0 {
		_ = stores.Close()
		_ = lock.Unlock()
		os.Exit(code)
	}
}

// fatalRunError maps an aborted run to a user-facing error.
func fatalRunError(summary *ingestion.RunSummary, err error) *errors.UserError {
	switch {
	case stderrors.Is(err, context.Canceled):
		return errors.NewRunError(
			"Run cancelled",
			"The run was interrupted before it finished",
			"Run the same command again; files already uploaded are skipped",
		)
	case summary != nil && summary.LastStep == ingestion.StepWrite:
		return errors.NewStorageError("Cannot clear the document store", err.Error(), "Check document_store settings and connectivity", err)
	default:
		return errors.NewInputError(
			"Cannot read ingestion inputs",
			err.Error(),
			"Check the metadata and assets paths in .assetseed/project.yaml",
		)
	}
}

// acquireRunLock takes the workspace run lock without blocking.
func acquireRunLock(root string) (*flock.Flock, error) {
	dir := ConfigDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewPermissionError("Cannot create "+dir, err.Error(), "Check directory permissions", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.NewPermissionError("Cannot acquire run lock", err.Error(), "Check permissions on "+lock.Path(), err)
	}
	if !locked {
		return nil, errors.NewRunError(
			"Another assetseed run is in progress",
			lock.Path()+" is held by another process",
			"Wait for the other run to finish",
		)
	}
	return lock, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics.http.error", "err", err)
	}
}
