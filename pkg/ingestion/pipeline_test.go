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
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seedtest "github.com/kraklabs/assetseed/internal/testing"
	"github.com/kraklabs/assetseed/pkg/storage"
)

type pipelineFixture struct {
	cfg     Config
	objects *storage.MemoryObjectStore
	docs    *storage.SQLDocumentStore
}

func newPipelineFixture(t *testing.T, extraRows ...[]string) *pipelineFixture {
	t.Helper()

	tree := seedtest.NewAssetTree(t)
	tree.Add("kitchen/187 - Smith/187 - After/a.jpg", 10)
	tree.Add("kitchen/187 - Smith/187 - Before/b.jpg", 20)
	tree.Add("bathroom/187 - Smith/187 - After/c.jpg", 30)
	tree.Add("kitchen/999 - Ghost/999 - After/g.jpg", 5)

	rows := [][]string{
		seedtest.Row("number", "187", "name", "Smith", "category", "Kitchen", "status", "Completed",
			"summary", "Kitchen and bath", "description", "d", "location.zipCode", "94110", "timeline.duration", "3 months"),
		seedtest.Row("number", "187", "name", "Smith", "category", "Bathroom", "status", "completed",
			"componentName", "Guest bath", "summary", "Kitchen and bath", "description", "d", "location.zipCode", "94110", "timeline.duration", "3 months"),
	}
	rows = append(rows, extraRows...)

	cfg := DefaultConfig()
	cfg.AssetsRoot = tree.Root
	cfg.MetadataPath = seedtest.WriteMetadataCSV(t, seedtest.MetadataHeader, rows...)
	cfg.Upload.Retry.BaseDelay = 0

	return &pipelineFixture{
		cfg:     cfg,
		objects: seedtest.SetupObjectStore(t),
		docs:    seedtest.SetupDocumentStore(t),
	}
}

func (f *pipelineFixture) pipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := NewPipeline(f.cfg, opts, f.objects, f.docs, nil)
	require.NoError(t, err)
	return p
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	summary, err := f.pipeline(t, Options{}).Run(ctx)
	require.NoError(t, err)
	require.Empty(t, summary.Errors, "%v", summary.Errors)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Equal(t, StepReport, summary.LastStep)
	assert.False(t, summary.Aborted)

	c := summary.Counts
	assert.Equal(t, 2, c.RowsTotal)
	assert.Equal(t, 1, c.Projects)
	assert.Equal(t, 2, c.Components)
	assert.Equal(t, 4, c.Scanned)
	assert.Equal(t, 3, c.Uploaded)
	assert.Equal(t, 1, c.Orphaned)
	assert.Equal(t, int64(60), c.Bytes)
	assert.Equal(t, 1, c.DocumentsWritten)
	assert.Equal(t, 3, f.objects.Len())

	doc, err := f.docs.Get(ctx, "187")
	require.NoError(t, err)
	assert.Equal(t, "187-smith", doc.Slug)
	assert.Equal(t, StatusCompleted, doc.Status)
	require.Len(t, doc.Components, 2)
	kitchen := doc.Component("187-kitchen")
	require.NotNil(t, kitchen)
	assert.Len(t, kitchen.Media, 2)
	bath := doc.Component("187-bathroom")
	require.NotNil(t, bath)
	assert.Equal(t, "Guest bath", bath.Name)
	require.Len(t, bath.Media, 1)
	assert.Equal(t, "mem://test-assets/projects/187-smith/photos/after/c.jpg", bath.Media[0].URL)

	var orphanWarned bool
	for _, w := range summary.Warnings {
		if w.Code == CodeOrphanedFile && w.ProjectID == "999" {
			orphanWarned = true
		}
	}
	assert.True(t, orphanWarned)
}

func TestPipeline_SecondRunIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline(t, Options{}).Run(ctx)
	require.NoError(t, err)
	puts := f.objects.PutCalls()
	before, err := f.docs.Get(ctx, "187")
	require.NoError(t, err)

	summary, err := f.pipeline(t, Options{SkipExisting: true}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, 0, summary.Counts.Uploaded)
	assert.Equal(t, 3, summary.Counts.Skipped)
	assert.Equal(t, 0, summary.Counts.DocumentsWritten)
	assert.Equal(t, puts, f.objects.PutCalls())
	assert.Equal(t, 3, f.objects.Len())

	after, err := f.docs.Get(ctx, "187")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Components, after.Components)
}

func TestPipeline_StoragePathsFollowMetadataName(t *testing.T) {
	tree := seedtest.NewAssetTree(t)
	tree.Add("kitchen/187 - Smith Residence/187 - After/a.jpg", 4)
	tree.Add("bathroom/187 - Smith Home/187 - After/b.jpg", 5)

	f := newPipelineFixture(t)
	f.cfg.AssetsRoot = tree.Root
	ctx := context.Background()

	summary, err := f.pipeline(t, Options{}).Run(ctx)
	require.NoError(t, err)
	require.Empty(t, summary.Errors, "%v", summary.Errors)
	assert.Equal(t, 2, summary.Counts.Uploaded)

	doc, err := f.docs.Get(ctx, "187")
	require.NoError(t, err)
	for _, c := range doc.Components {
		for _, m := range c.Media {
			assert.True(t, strings.HasPrefix(m.StoragePath, "projects/"+doc.Slug+"/"), m.StoragePath)
		}
	}

	again, err := f.pipeline(t, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Counts.Uploaded)
	assert.Equal(t, 2, again.Counts.Skipped)
	assert.Equal(t, 2, f.objects.PutCalls())
}

func TestPipeline_DryRunWritesNothing(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	summary, err := f.pipeline(t, Options{DryRun: true, Clear: true}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 3, summary.Counts.Uploaded)
	assert.Equal(t, 0, summary.Counts.DocumentsWritten)
	assert.Equal(t, 1, summary.Counts.DocumentsBuilt)
	assert.Equal(t, 0, f.objects.PutCalls())
	assert.Equal(t, 0, f.objects.Len())

	docs, err := f.docs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	var dryRunWarned bool
	for _, w := range summary.Warnings {
		if w.Code == CodeDryRun {
			dryRunWarned = true
		}
	}
	assert.True(t, dryRunWarned)
}

func TestPipeline_DryRunAgainstReadOnlyStore(t *testing.T) {
	f := newPipelineFixture(t)
	dsn := filepath.Join(t.TempDir(), "fresh", "documents.db")
	docs, err := storage.NewSQLDocumentStore(storage.SQLConfig{DSN: dsn, ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = docs.Close() }()

	p, err := NewPipeline(f.cfg, Options{DryRun: true, Clear: true}, f.objects, docs, nil)
	require.NoError(t, err)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Errors, "%v", summary.Errors)
	assert.Equal(t, 1, summary.Counts.DocumentsBuilt)
	assert.NoFileExists(t, dsn)
}

func TestPipeline_AbortsOnInvalidRows(t *testing.T) {
	f := newPipelineFixture(t, seedtest.Row("number", "188", "category", "kitchen", "status", "completed"))

	summary, err := f.pipeline(t, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Aborted)
	assert.Equal(t, StepParse, summary.LastStep)
	assert.Equal(t, 1, summary.ExitCode())
	assert.Equal(t, 1, summary.Counts.RowsInvalid)
	assert.Equal(t, 0, f.objects.PutCalls())

	docs, err := f.docs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPipeline_AllowPartialContinues(t *testing.T) {
	f := newPipelineFixture(t, seedtest.Row("number", "188", "category", "kitchen", "status", "completed"))

	summary, err := f.pipeline(t, Options{AllowPartial: true}).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Aborted)
	assert.Equal(t, StepReport, summary.LastStep)
	assert.Equal(t, 1, summary.ExitCode(), "row errors still fail the run")
	assert.Equal(t, 3, summary.Counts.Uploaded)
	assert.Equal(t, 1, summary.Counts.DocumentsWritten)
}

func TestPipeline_UploadFailuresAreReported(t *testing.T) {
	f := newPipelineFixture(t)
	f.objects.PutHook = func(key string, _ int) error {
		if key == "projects/187-smith/photos/after/c.jpg" {
			return errors.New("503 slow down")
		}
		return nil
	}
	p := f.pipeline(t, Options{})
	p.uploader.sleep = func(context.Context, time.Duration) error { return nil }

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExitCode())
	assert.Equal(t, 1, summary.Counts.Failed)
	assert.Equal(t, 2, summary.Counts.Uploaded)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, StepUpload, summary.Errors[0].Step)
	assert.Contains(t, summary.Errors[0].Message, "after 3 attempts")

	doc, err := f.docs.Get(context.Background(), "187")
	require.NoError(t, err)
	assert.Empty(t, doc.Component("187-bathroom").Media)
	assert.Len(t, doc.Component("187-kitchen").Media, 2)
}

func TestPipeline_ProjectFilter(t *testing.T) {
	f := newPipelineFixture(t)

	summary, err := f.pipeline(t, Options{Projects: []string{"999"}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts.Projects)
	assert.Equal(t, 1, summary.Counts.Scanned)
	assert.Equal(t, 0, summary.Counts.Uploaded)
	assert.Equal(t, 1, summary.Counts.Orphaned)
}

func TestPipeline_UnknownProjectFilterWarns(t *testing.T) {
	f := newPipelineFixture(t)

	summary, err := f.pipeline(t, Options{Projects: []string{"187", " 404 "}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Equal(t, 1, summary.Counts.Projects)

	var warned []string
	for _, w := range summary.Warnings {
		if w.Code == CodeOptions {
			warned = append(warned, w.ProjectID)
		}
	}
	assert.Equal(t, []string{"404"}, warned)
}

func TestPipeline_CategoryRunKeepsOtherComponents(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline(t, Options{}).Run(ctx)
	require.NoError(t, err)

	summary, err := f.pipeline(t, Options{Category: "Kitchen", Force: true}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.OK(), "%v", summary.Errors)
	assert.Equal(t, 2, summary.Counts.Uploaded)

	doc, err := f.docs.Get(ctx, "187")
	require.NoError(t, err)
	assert.Len(t, doc.Component("187-kitchen").Media, 2)
	assert.Len(t, doc.Component("187-bathroom").Media, 1, "bathroom media survives a kitchen-only run")
}

func TestPipeline_Clear(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	_, err := storage.Update(ctx, f.docs, "555", 1, func(*storage.ProjectDocument) (storage.ProjectDocument, error) {
		return storage.ProjectDocument{ID: "555", Name: "Stale"}, nil
	})
	require.NoError(t, err)

	summary, err := f.pipeline(t, Options{Clear: true}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts.DocumentsCleared)

	_, err = f.docs.Get(ctx, "555")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.docs.Get(ctx, "187")
	assert.NoError(t, err)
}

func TestPipeline_ProductionWaitsBeforeWriting(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.Environment = EnvProduction
	f.cfg.ConfirmDelay = 10 * time.Second
	p := f.pipeline(t, Options{})

	var waited []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		assert.Equal(t, 0, f.objects.PutCalls(), "nothing written before confirmation")
		return nil
	}

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, []time.Duration{10 * time.Second}, waited)
	assert.Equal(t, EnvProduction, summary.Environment)
}

func TestPipeline_ProductionCancelledDuringConfirmation(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.Environment = EnvProduction
	p := f.pipeline(t, Options{})
	p.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	summary, err := p.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Aborted)
	assert.Equal(t, 0, f.objects.PutCalls())
	assert.Equal(t, 0, f.objects.ListCalls())
}

func TestPipeline_ProductionDryRunDoesNotWait(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.Environment = EnvProduction
	p := f.pipeline(t, Options{DryRun: true})
	p.sleep = func(context.Context, time.Duration) error {
		t.Fatal("dry run must not wait")
		return nil
	}
	_, err := p.Run(context.Background())
	require.NoError(t, err)
}

func TestPipeline_MissingAssetsRootIsFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.AssetsRoot = t.TempDir() + "/missing"

	summary, err := f.pipeline(t, Options{}).Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Aborted)
	assert.Equal(t, StepScan, summary.LastStep)
	assert.Equal(t, 1, summary.ExitCode())
}

func TestPipeline_MissingMetadataIsFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.MetadataPath = t.TempDir() + "/none.csv"

	summary, err := f.pipeline(t, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepParse, summary.LastStep)
}

func TestNewPipeline_Validation(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := NewPipeline(f.cfg, Options{Force: true, SkipExisting: true}, f.objects, f.docs, nil)
	assert.ErrorIs(t, err, ErrConflictingOptions)

	_, err = NewPipeline(f.cfg, Options{BatchSize: -1}, f.objects, f.docs, nil)
	assert.ErrorIs(t, err, ErrConflictingOptions)

	_, err = NewPipeline(f.cfg, Options{}, nil, f.docs, nil)
	assert.Error(t, err)

	bad := f.cfg
	bad.MetadataPath = ""
	_, err = NewPipeline(bad, Options{}, f.objects, f.docs, nil)
	assert.Error(t, err)
}
