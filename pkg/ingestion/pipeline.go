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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/assetseed/pkg/storage"
)

// ErrConflictingOptions is returned when Options contradict each other.
var ErrConflictingOptions = errors.New("conflicting options")

// Options are the per-run switches of an ingestion run.
type Options struct {
	DryRun bool

	// Force re-uploads files that already exist remotely.
	Force bool

	// SkipExisting makes the default idempotent behavior explicit. It cannot
	// be combined with Force.
	SkipExisting bool

	// Projects restricts the run to these project ids.
	Projects []string

	// Category restricts the run to one category directory.
	Category string

	// Clear deletes every stored document before writing.
	Clear bool

	// BatchSize overrides the configured upload batch size when positive.
	BatchSize int

	// AllowPartial continues after metadata rows failed validation.
	AllowPartial bool
}

// Validate checks option combinations.
func (o Options) Validate() error {
	if o.Force && o.SkipExisting {
		return fmt.Errorf("%w: --force and --skip-existing cannot be used together", ErrConflictingOptions)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrConflictingOptions, o.BatchSize)
	}
	return nil
}

// Pipeline runs Scan, Parse, Upload, Build, Validate, Write and Report in
// strict sequence. Store handles are injected.
type Pipeline struct {
	cfg     Config
	opts    Options
	logger  *slog.Logger
	objects storage.ObjectStore
	docs    storage.DocumentStore

	scanner  *Scanner
	uploader *Uploader
	builder  *Builder
	writer   *Writer

	maxDocBytes int64

	// sleep waits out the production confirmation delay; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline over the given stores.
func NewPipeline(cfg Config, opts Options, objects storage.ObjectStore, docs storage.DocumentStore, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if objects == nil || docs == nil {
		return nil, fmt.Errorf("object store and document store are required")
	}
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	builder := NewBuilder(logger)
	if opts.Category != "" {
		builder.LimitToCategory(opts.Category)
	}

	return &Pipeline{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		objects:  objects,
		docs:     docs,
		scanner:  NewScanner(cfg.Scan, logger),
		uploader: NewUploader(objects, cfg.Upload, logger),
		builder:  builder,
		writer:   NewWriter(docs, cfg.WriteAttempts, logger),
		sleep:    sleepContext,
	}, nil
}

// SetDocumentLimit bounds the encoded size of a document. Zero disables the
// check.
func (p *Pipeline) SetDocumentLimit(maxBytes int64) { p.maxDocBytes = maxBytes }

// SetProgress forwards upload progress.
func (p *Pipeline) SetProgress(fn ProgressFunc) { p.uploader.SetProgress(fn) }

// Run executes the pipeline. The summary is always returned. A non-nil
// error means the run aborted on a fatal condition.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	sb := NewSummaryBuilder(p.cfg.Environment, p.opts.DryRun)
	runID := sb.RunID()
	log := p.logger.With("run_id", runID)
	defer func() { observeRun(time.Since(start)) }()

	log.Info("ingest.start",
		"env", p.cfg.Environment,
		"dry_run", p.opts.DryRun,
		"force", p.opts.Force,
		"projects", strings.Join(p.opts.Projects, ","),
		"category", p.opts.Category,
		"clear", p.opts.Clear,
	)

	// Scan
	stageStart := p.enter(sb, StepScan, log)
	scan, err := p.scanner.Scan(ctx, p.cfg.AssetsRoot, ScanOptions{
		Categories: nonEmpty(p.opts.Category),
		Projects:   p.opts.Projects,
	})
	if err != nil {
		sb.Abort(Issue{Step: StepScan, Code: CodeScan, Path: p.cfg.AssetsRoot, Message: err.Error()})
		return p.finish(sb, log), fmt.Errorf("scan assets: %w", err)
	}
	sb.Warn(scan.Warnings...)
	sb.Error(scan.Errors...)
	sb.Update(func(c *Counts) { c.Scanned = len(scan.Files) })
	recordFilesScanned(len(scan.Files))
	observeStage(StepScan, time.Since(stageStart))

	// Parse
	stageStart = p.enter(sb, StepParse, log)
	parsed, err := ParseMetadataFile(p.cfg.MetadataPath, ParseOptions{})
	if err != nil {
		sb.Abort(Issue{Step: StepParse, Code: CodeValidation, Path: p.cfg.MetadataPath, Message: err.Error()})
		return p.finish(sb, log), fmt.Errorf("parse metadata: %w", err)
	}
	sb.Warn(parsed.Warnings...)
	sb.Error(parsed.Errors...)
	sb.Warn(p.unknownProjects(parsed)...)
	records := p.filterRecords(parsed.Records)
	sb.Update(func(c *Counts) {
		c.RowsTotal = parsed.Stats.RowsTotal
		c.RowsValid = parsed.Stats.RowsValid
		c.RowsInvalid = parsed.Stats.RowsInvalid
		c.Projects = len(records)
		for _, r := range records {
			c.Components += len(r.Components)
		}
	})
	recordRowsInvalid(parsed.Stats.RowsInvalid)
	observeStage(StepParse, time.Since(stageStart))
	log.Info("ingest.parse.complete",
		"rows", parsed.Stats.RowsTotal,
		"invalid", parsed.Stats.RowsInvalid,
		"projects", len(records),
	)

	if len(parsed.Errors) > 0 && !p.opts.AllowPartial {
		log.Error("ingest.abort.parse_errors", "errors", len(parsed.Errors))
		sb.Abort(Issue{Step: StepParse, Code: CodeValidation, Path: p.cfg.MetadataPath,
			Message: fmt.Sprintf("%d metadata rows failed validation; fix them or pass --allow-partial", len(parsed.Errors))})
		return p.finish(sb, log), nil
	}

	if err := p.confirmProduction(ctx, log); err != nil {
		sb.Abort(Issue{Step: StepUpload, Code: CodeOptions, Message: err.Error()})
		return p.finish(sb, log), err
	}

	// Upload
	stageStart = p.enter(sb, StepUpload, log)
	files, orphans := matchFiles(records, scan.Files)
	sb.Warn(orphans...)
	uploads := p.uploader.Upload(ctx, files, UploadOptions{
		Force:     p.opts.Force,
		DryRun:    p.opts.DryRun,
		BatchSize: p.opts.BatchSize,
	})
	sb.Warn(uploads.Warnings...)
	for _, fe := range uploads.Errors {
		sb.Error(Issue{
			Step: StepUpload, Code: CodeUpload, ProjectID: fe.File.ProjectID, Path: fe.File.RelPath,
			Message: fmt.Sprintf("upload to %s failed after %d attempts: %v", fe.Key, fe.Attempts, fe.Err),
		})
	}
	sb.Update(func(c *Counts) {
		c.Orphaned = len(orphans)
		c.Uploaded = len(uploads.Uploaded)
		c.Skipped = len(uploads.Skipped)
		c.Failed = len(uploads.Errors)
		c.Bytes = uploads.Bytes
	})
	observeStage(StepUpload, time.Since(stageStart))

	// Build
	stageStart = p.enter(sb, StepBuild, log)
	existing := p.loadExisting(ctx, records, sb, log)
	built := p.builder.Build(records, uploads.All(), existing)
	sb.Warn(built.Warnings...)
	sb.Update(func(c *Counts) {
		c.Orphaned += built.Orphaned
		c.DocumentsBuilt = len(built.Documents)
	})
	observeStage(StepBuild, time.Since(stageStart))

	// Validate
	stageStart = p.enter(sb, StepValidate, log)
	valid, invalid := ValidateDocuments(built.Documents, p.maxDocBytes)
	sb.Error(invalid...)
	sb.Update(func(c *Counts) { c.DocumentsInvalid = len(invalid) })
	observeStage(StepValidate, time.Since(stageStart))

	// Write
	stageStart = p.enter(sb, StepWrite, log)
	if err := p.clear(ctx, sb, log); err != nil {
		sb.Abort(Issue{Step: StepWrite, Code: CodeDocument, Message: err.Error()})
		return p.finish(sb, log), err
	}
	if p.opts.DryRun {
		log.Info("ingest.write.skipped", "reason", "dry_run", "documents", len(valid))
	} else {
		written := p.writer.Write(ctx, valid)
		sb.Error(written.Errors...)
		sb.Update(func(c *Counts) {
			c.DocumentsWritten = len(written.Written)
			c.DocumentsFailed = len(written.Errors)
		})
		log.Info("ingest.write.complete",
			"written", len(written.Written),
			"unchanged", len(written.Unchanged),
			"failed", len(written.Errors),
			"conflicts", written.Conflicts,
		)
	}
	observeStage(StepWrite, time.Since(stageStart))

	p.enter(sb, StepReport, log)
	return p.finish(sb, log), nil
}

func (p *Pipeline) enter(sb *SummaryBuilder, step Step, log *slog.Logger) time.Time {
	sb.Enter(step)
	log.Info("ingest.step." + string(step))
	return time.Now()
}

func (p *Pipeline) finish(sb *SummaryBuilder, log *slog.Logger) *RunSummary {
	summary := sb.Finish()
	log.Info("ingest.complete",
		"errors", len(summary.Errors),
		"warnings", len(summary.Warnings),
		"uploaded", summary.Counts.Uploaded,
		"skipped", summary.Counts.Skipped,
		"failed", summary.Counts.Failed,
		"documents_written", summary.Counts.DocumentsWritten,
		"aborted", summary.Aborted,
		"total_duration_ms", summary.Elapsed.Milliseconds(),
	)
	return summary
}

// confirmProduction gives the operator a window to interrupt a production
// run before anything is written.
func (p *Pipeline) confirmProduction(ctx context.Context, log *slog.Logger) error {
	if !p.cfg.IsProduction() || p.opts.DryRun || p.cfg.ConfirmDelay <= 0 {
		return nil
	}
	log.Warn("ingest.production.confirm",
		"delay_s", p.cfg.ConfirmDelay.Seconds(),
		"clear", p.opts.Clear,
		"hint", "press Ctrl+C to cancel",
	)
	if err := p.sleep(ctx, p.cfg.ConfirmDelay); err != nil {
		return fmt.Errorf("production run cancelled during confirmation: %w", err)
	}
	return nil
}

func (p *Pipeline) clear(ctx context.Context, sb *SummaryBuilder, log *slog.Logger) error {
	if !p.opts.Clear {
		return nil
	}
	if p.opts.DryRun {
		sb.Warn(Issue{Step: StepWrite, Code: CodeDryRun, Message: "dry run: existing documents would be deleted before writing"})
		log.Warn("ingest.clear.skipped", "reason", "dry_run")
		return nil
	}
	n, err := p.writer.Clear(ctx)
	if err != nil {
		return err
	}
	sb.Update(func(c *Counts) { c.DocumentsCleared = n })
	return nil
}

// loadExisting reads the stored documents of the run's projects. Read
// failures are warnings; the writer re-reads before every swap anyway.
func (p *Pipeline) loadExisting(ctx context.Context, records []ProjectRecord, sb *SummaryBuilder, log *slog.Logger) map[string]storage.ProjectDocument {
	existing := make(map[string]storage.ProjectDocument, len(records))
	for _, rec := range records {
		doc, err := p.docs.Get(ctx, rec.ID)
		switch {
		case err == nil:
			existing[rec.ID] = *doc
		case errors.Is(err, storage.ErrNotFound):
		default:
			log.Warn("ingest.build.existing.error", "project_id", rec.ID, "err", err)
			sb.Warn(Issue{Step: StepBuild, Code: CodeDocument, ProjectID: rec.ID,
				Message: fmt.Sprintf("cannot read stored document, media order may change: %v", err)})
		}
	}
	return existing
}

// unknownProjects warns about --project ids without a valid metadata row.
func (p *Pipeline) unknownProjects(parsed *ParseResult) []Issue {
	var issues []Issue
	for _, id := range p.opts.Projects {
		id = strings.TrimSpace(id)
		if id == "" || parsed.Project(id) != nil {
			continue
		}
		issues = append(issues, Issue{Step: StepParse, Code: CodeOptions, ProjectID: id,
			Message: "requested project has no valid metadata row"})
	}
	return issues
}

// filterRecords applies the project and category restrictions.
func (p *Pipeline) filterRecords(records []ProjectRecord) []ProjectRecord {
	projects := toSet(p.opts.Projects, strings.TrimSpace)
	category := Slugify(p.opts.Category)

	out := make([]ProjectRecord, 0, len(records))
	for _, rec := range records {
		if len(projects) > 0 && !projects[rec.ID] {
			continue
		}
		if category != "" && !recordHasCategory(rec, category) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func recordHasCategory(rec ProjectRecord, category string) bool {
	if rec.Category == category {
		return true
	}
	for _, c := range rec.Components {
		if c.Category == category {
			return true
		}
	}
	return false
}

// matchFiles keeps files that belong to a component of a parsed project and
// stamps them with the project's metadata slug, so storage paths follow the
// CSV name rather than folder spelling. The rest are reported as orphaned and
// never uploaded.
func matchFiles(records []ProjectRecord, files []DiscoveredFile) ([]DiscoveredFile, []Issue) {
	slugs := make(map[string]string, len(records))
	components := make(map[string]bool)
	for _, rec := range records {
		slugs[rec.ID] = rec.Slug
		for _, c := range rec.Components {
			components[componentKey(rec.ID, c.Category, c.Subcategory)] = true
		}
	}

	matched := make([]DiscoveredFile, 0, len(files))
	var orphans []Issue
	for _, f := range files {
		slug, known := slugs[f.ProjectID]
		switch {
		case !known:
			orphans = append(orphans, Issue{Step: StepUpload, Code: CodeOrphanedFile, ProjectID: f.ProjectID, Path: f.RelPath,
				Message: "file not uploaded: project has no valid metadata row"})
		case !components[f.ComponentKey()]:
			orphans = append(orphans, Issue{Step: StepUpload, Code: CodeOrphanedFile, ProjectID: f.ProjectID, Path: f.RelPath,
				Message: fmt.Sprintf("file not uploaded: no component for category %q%s", f.Category, subcategoryNote(f.Subcategory))})
		default:
			f.ProjectSlug = slug
			matched = append(matched, f)
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool { return orphans[i].Path < orphans[j].Path })
	return matched, orphans
}

func nonEmpty(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return []string{v}
}
