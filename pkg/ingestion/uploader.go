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
	"os"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/assetseed/internal/contract"
	"github.com/kraklabs/assetseed/pkg/storage"
)

// DryRunScheme prefixes placeholder URLs produced in dry-run mode.
const DryRunScheme = "dryrun://"

// UploadOptions are the per-run switches of the uploader.
type UploadOptions struct {
	// Force re-uploads files that already exist remotely.
	Force bool

	// DryRun performs listings but no writes, and returns placeholder
	// references.
	DryRun bool

	// BatchSize overrides the configured batch size when positive.
	BatchSize int
}

// UploadResult aggregates per-file outcomes.
type UploadResult struct {
	// Uploaded are files written this run (or that would be, in dry-run).
	Uploaded []UploadedFile

	// Skipped are files already present remotely.
	Skipped []UploadedFile

	Errors   []FileError
	Warnings []Issue

	// Bytes is the total size of Uploaded.
	Bytes int64
}

// All returns uploaded and skipped files together.
func (r *UploadResult) All() []UploadedFile {
	out := make([]UploadedFile, 0, len(r.Uploaded)+len(r.Skipped))
	out = append(out, r.Uploaded...)
	return append(out, r.Skipped...)
}

// ProgressFunc is called after each file finishes, from a single goroutine.
type ProgressFunc func(done, total int, f DiscoveredFile)

// Uploader pushes discovered files to an ObjectStore. Projects are handled
// one at a time; within a project files go out in bounded concurrent
// batches.
type Uploader struct {
	store    storage.ObjectStore
	cfg      UploadConfig
	logger   *slog.Logger
	progress ProgressFunc

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewUploader creates an uploader writing to store.
func NewUploader(store storage.ObjectStore, cfg UploadConfig, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	cfg.Retry = cfg.Retry.withDefaults()
	return &Uploader{
		store:  store,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// SetProgress installs a progress callback.
func (u *Uploader) SetProgress(fn ProgressFunc) { u.progress = fn }

// plannedFile is a file with its resolved remote key.
type plannedFile struct {
	file DiscoveredFile
	key  string
}

// fileOutcome is the result of one upload job.
type fileOutcome struct {
	index    int
	uploaded UploadedFile
	err      *FileError
}

// Upload processes files project by project. It never aborts on a file
// failure; failures are returned in UploadResult.Errors.
func (u *Uploader) Upload(ctx context.Context, files []DiscoveredFile, opts UploadOptions) *UploadResult {
	result := &UploadResult{
		Uploaded: []UploadedFile{},
		Skipped:  []UploadedFile{},
		Errors:   []FileError{},
		Warnings: []Issue{},
	}
	batchSize := u.cfg.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}

	byProject := make(map[string][]DiscoveredFile)
	var projectIDs []string
	for _, f := range files {
		if _, ok := byProject[f.ProjectID]; !ok {
			projectIDs = append(projectIDs, f.ProjectID)
		}
		byProject[f.ProjectID] = append(byProject[f.ProjectID], f)
	}
	sort.Strings(projectIDs)

	total := len(files)
	done := 0
	tick := func(f DiscoveredFile) {
		done++
		if u.progress != nil {
			u.progress(done, total, f)
		}
	}

	u.logger.Info("ingest.upload.start",
		"projects", len(projectIDs),
		"files", total,
		"batch_size", batchSize,
		"dry_run", opts.DryRun,
		"force", opts.Force,
	)

	for _, id := range projectIDs {
		projectFiles := byProject[id]
		sort.SliceStable(projectFiles, func(i, j int) bool {
			return projectFiles[i].RelPath < projectFiles[j].RelPath
		})
		u.uploadProject(ctx, id, projectFiles, opts, batchSize, result, tick)
	}

	u.logger.Info("ingest.upload.complete",
		"uploaded", len(result.Uploaded),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
		"bytes", result.Bytes,
	)
	return result
}

func (u *Uploader) uploadProject(ctx context.Context, projectID string, files []DiscoveredFile, opts UploadOptions, batchSize int, result *UploadResult, tick func(DiscoveredFile)) {
	files, slug, mixed := unifyProjectSlug(files)
	if mixed != nil {
		result.Warnings = append(result.Warnings, *mixed)
	}
	planned, collisions := planKeys(files)
	result.Warnings = append(result.Warnings, collisions...)
	planned, rejected := checkKeys(planned)
	for _, fe := range rejected {
		u.logger.Error("ingest.upload.key.invalid", "path", fe.File.RelPath, "err", fe.Err)
		result.Errors = append(result.Errors, fe)
		recordUploadFailed()
		tick(fe.File)
	}

	if err := ctx.Err(); err != nil {
		u.failAll(planned, 0, fmt.Errorf("cancelled before upload: %w", err), result, tick)
		return
	}

	listing, err := u.listWithRetry(ctx, ProjectPrefix(slug))
	if err != nil {
		u.logger.Error("ingest.upload.list.failed", "project_id", projectID, "prefix", ProjectPrefix(slug), "err", err)
		u.failAll(planned, u.cfg.Retry.MaxAttempts, fmt.Errorf("list existing objects: %w", err), result, tick)
		return
	}

	sizes := make(map[string]int64, len(planned))
	for _, p := range planned {
		sizes[p.key] = p.file.Size
	}
	delta := ComputeObjectDelta(sizes, listing)
	for _, key := range delta.RemoteOnly {
		result.Warnings = append(result.Warnings, Issue{
			Step: StepUpload, Code: CodeStaleObject, ProjectID: projectID, Path: key,
			Message: "remote object has no matching local file",
		})
	}

	var pending []plannedFile
	for _, p := range planned {
		change := delta.Change(p.key, p.file.Size)
		if opts.Force || change == ObjectNew {
			pending = append(pending, p)
			continue
		}
		if change == ObjectModified {
			result.Warnings = append(result.Warnings, Issue{
				Step: StepUpload, Code: CodeStaleObject, ProjectID: projectID, Path: p.key,
				Message: fmt.Sprintf("remote size %d differs from local size %d; use --force to replace it", delta.Remote[p.key].Size, p.file.Size),
			})
		}
		result.Skipped = append(result.Skipped, UploadedFile{
			File:        p.file,
			URL:         u.store.URL(p.key),
			StoragePath: p.key,
			Size:        delta.Remote[p.key].Size,
		})
		recordUploadSkipped()
		tick(p.file)
	}

	u.logger.Debug("ingest.upload.project",
		"project_id", projectID,
		"planned", len(planned),
		"pending", len(pending),
		"remote", len(listing),
	)

	keys := make(map[string]string, len(pending))
	var toSend []DiscoveredFile
	for _, p := range pending {
		keys[p.file.RelPath] = p.key
		toSend = append(toSend, p.file)
	}

	for _, batch := range NewBatcher(batchSize, u.cfg.MaxBatchBytes).Batch(toSend) {
		jobs := make([]plannedFile, len(batch))
		for i, f := range batch {
			jobs[i] = plannedFile{file: f, key: keys[f.RelPath]}
		}
		for _, out := range u.runBatch(ctx, jobs, opts.DryRun, batchSize) {
			if out.err != nil {
				result.Errors = append(result.Errors, *out.err)
				recordUploadFailed()
			} else {
				result.Uploaded = append(result.Uploaded, out.uploaded)
				result.Bytes += out.uploaded.Size
				if !out.uploaded.DryRun {
					recordUploaded(out.uploaded.Size)
				}
			}
			tick(jobs[out.index].file)
		}
	}
}

// runBatch uploads a batch with at most workers concurrent uploads and waits
// for all of them. Outcomes are returned in batch order.
func (u *Uploader) runBatch(ctx context.Context, batch []plannedFile, dryRun bool, workers int) []fileOutcome {
	if workers > len(batch) {
		workers = len(batch)
	}
	jobs := make(chan int, len(batch))
	results := make(chan fileOutcome, len(batch))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := batch[i]
				uploaded, attempts, err := u.uploadOne(ctx, p, dryRun)
				if err != nil {
					u.logger.Error("ingest.upload.file.failed", "path", p.file.RelPath, "key", p.key, "attempts", attempts, "err", err)
					results <- fileOutcome{index: i, err: &FileError{File: p.file, Key: p.key, Attempts: attempts, Err: err}}
					continue
				}
				results <- fileOutcome{index: i, uploaded: uploaded}
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]fileOutcome, len(batch))
	for out := range results {
		outcomes[out.index] = out
	}
	return outcomes
}

// uploadOne uploads a single file with retries. It returns the number of
// attempts made.
func (u *Uploader) uploadOne(ctx context.Context, p plannedFile, dryRun bool) (UploadedFile, int, error) {
	if dryRun {
		return UploadedFile{
			File:        p.file,
			URL:         DryRunScheme + u.store.Bucket() + "/" + p.key,
			StoragePath: p.key,
			Size:        p.file.Size,
			Uploaded:    true,
			DryRun:      true,
		}, 0, nil
	}

	retry := u.cfg.Retry
	var lastErr error
	attempt := 0
	for attempt < retry.MaxAttempts {
		attempt++
		start := time.Now()
		info, err := u.putAndConfirm(ctx, p)
		if err == nil {
			observeUploadDuration(time.Since(start))
			return UploadedFile{
				File:        p.file,
				URL:         u.store.URL(p.key),
				StoragePath: p.key,
				Size:        info.Size,
				Uploaded:    true,
				Attempts:    attempt,
			}, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil || isPermanentUploadError(err) || attempt == retry.MaxAttempts {
			break
		}

		delay := retry.Delay(attempt)
		recordUploadRetry()
		u.logger.Warn("ingest.upload.retry", "key", p.key, "attempt", attempt, "sleep_ms", delay.Milliseconds(), "err", err)
		if err := u.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return UploadedFile{}, attempt, lastErr
}

// putAndConfirm writes the object and verifies it landed with the expected
// size. A mismatched object is removed so no partial object is left behind.
func (u *Uploader) putAndConfirm(ctx context.Context, p plannedFile) (storage.ObjectInfo, error) {
	f, err := os.Open(p.file.Path)
	if err != nil {
		return storage.ObjectInfo{}, permanentUploadError{fmt.Errorf("open local file: %w", err)}
	}
	defer func() { _ = f.Close() }()

	if _, err := u.store.Put(ctx, p.key, f, p.file.Size, ContentType(p.file.Ext)); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put: %w", err)
	}

	info, err := u.store.Stat(ctx, p.key)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("confirm: %w", err)
	}
	if info.Size != p.file.Size {
		if rmErr := u.store.Remove(ctx, p.key); rmErr != nil {
			u.logger.Warn("ingest.upload.cleanup.failed", "key", p.key, "err", rmErr)
		}
		return storage.ObjectInfo{}, fmt.Errorf("confirm: remote size %d, expected %d", info.Size, p.file.Size)
	}
	return info, nil
}

// listWithRetry lists a prefix with the same retry policy as uploads.
func (u *Uploader) listWithRetry(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	retry := u.cfg.Retry
	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		objs, err := u.store.List(ctx, prefix)
		if err == nil {
			return objs, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == retry.MaxAttempts {
			break
		}
		u.logger.Warn("ingest.upload.list.retry", "prefix", prefix, "attempt", attempt, "err", err)
		if err := u.sleep(ctx, retry.Delay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (u *Uploader) failAll(planned []plannedFile, attempts int, err error, result *UploadResult, tick func(DiscoveredFile)) {
	for _, p := range planned {
		result.Errors = append(result.Errors, FileError{File: p.file, Key: p.key, Attempts: attempts, Err: err})
		recordUploadFailed()
		tick(p.file)
	}
}

// unifyProjectSlug gives every file of a project the same slug so all of its
// keys live under the one listed prefix. The first file's slug wins; files
// are expected in relative path order.
func unifyProjectSlug(files []DiscoveredFile) ([]DiscoveredFile, string, *Issue) {
	slug := files[0].ProjectSlug
	var others []string
	out := make([]DiscoveredFile, len(files))
	for i, f := range files {
		if f.ProjectSlug != slug {
			if !slices.Contains(others, f.ProjectSlug) {
				others = append(others, f.ProjectSlug)
			}
			f.ProjectSlug = slug
		}
		out[i] = f
	}
	if len(others) == 0 {
		return out, slug, nil
	}
	return out, slug, &Issue{
		Step: StepUpload, Code: CodeInconsistentProject, ProjectID: files[0].ProjectID,
		Message: fmt.Sprintf("project folders use different names (%s); storing under %s", strings.Join(others, ", "), slug),
	}
}

// planKeys assigns remote keys to a project's files. When two files map to
// the same key, the later one gets its component category prefixed to the
// filename, then a numeric suffix if that is still taken.
func planKeys(files []DiscoveredFile) ([]plannedFile, []Issue) {
	used := make(map[string]string, len(files))
	planned := make([]plannedFile, 0, len(files))
	var warnings []Issue

	for _, f := range files {
		key := ObjectKey(f)
		if first, taken := used[key]; taken {
			original := key
			dir := path.Dir(key)
			name := f.Filename
			if f.Category != "" {
				name = f.Category + "-" + name
			}
			key = path.Join(dir, safeObjectName(name))
			for n := 2; ; n++ {
				if _, taken := used[key]; !taken {
					break
				}
				ext := path.Ext(name)
				key = path.Join(dir, safeObjectName(fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)))
			}
			warnings = append(warnings, Issue{
				Step: StepUpload, Code: CodeKeyCollision, ProjectID: f.ProjectID, Path: f.RelPath,
				Message: fmt.Sprintf("remote key %s is already used by %s; using %s", original, first, key),
			})
		}
		used[key] = f.RelPath
		planned = append(planned, plannedFile{file: f, key: key})
	}
	return planned, warnings
}

// checkKeys drops planned files whose key the stores would refuse.
func checkKeys(planned []plannedFile) ([]plannedFile, []FileError) {
	ok := make([]plannedFile, 0, len(planned))
	var rejected []FileError
	for _, p := range planned {
		if r := contract.ValidateObjectKey(p.key); !r.OK {
			rejected = append(rejected, FileError{File: p.file, Key: p.key, Err: errors.New(r.Message)})
			continue
		}
		ok = append(ok, p)
	}
	return ok, rejected
}

// permanentUploadError marks failures that retrying cannot fix.
type permanentUploadError struct{ err error }

func (e permanentUploadError) Error() string { return e.err.Error() }
func (e permanentUploadError) Unwrap() error { return e.err }

func isPermanentUploadError(err error) bool {
	var p permanentUploadError
	return errors.As(err, &p)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
