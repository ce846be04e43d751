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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/assetseed/pkg/storage"
)

func smithRecord() ProjectRecord {
	return ProjectRecord{
		ID:       "187",
		Slug:     "187-smith",
		Name:     "Smith",
		Category: "kitchen",
		Status:   StatusCompleted,
		Summary:  "Full kitchen remodel",
		Location: Location{ZipCode: "94110"},
		Components: []ComponentRecord{
			{ID: "187-kitchen", Category: "kitchen"},
			{ID: "187-bathroom", Category: "bathroom", Name: "Guest bath"},
		},
	}
}

func uploaded(category, stage, name string, kind FileKind) UploadedFile {
	f := DiscoveredFile{
		ProjectID:   "187",
		ProjectSlug: "187-smith",
		Category:    category,
		Stage:       stage,
		Kind:        kind,
		Filename:    name,
		RelPath:     category + "/187 - Smith/" + stage + "/" + name,
		Size:        10,
		Ext:         strings.ToLower(name[strings.LastIndex(name, "."):]),
	}
	key := ObjectKey(f)
	return UploadedFile{File: f, URL: "mem://b/" + key, StoragePath: key, Size: 10, Uploaded: true}
}

func TestBuilder_AttachesByComponent(t *testing.T) {
	uploads := []UploadedFile{
		uploaded("kitchen", StageAfter, "b.jpg", KindImage),
		uploaded("kitchen", StageBefore, "a.jpg", KindImage),
		uploaded("kitchen", StageOther, "permit.pdf", KindDocument),
		uploaded("bathroom", StageAfter, "c.jpg", KindImage),
	}

	result := NewBuilder(nil).Build([]ProjectRecord{smithRecord()}, uploads, nil)
	require.Len(t, result.Documents, 1)
	assert.Zero(t, result.Orphaned)

	doc := result.Documents[0]
	assert.Equal(t, "187", doc.ID)
	assert.Equal(t, "187-smith", doc.Slug)
	require.NotNil(t, doc.Location)
	assert.Equal(t, "94110", doc.Location.ZipCode)
	assert.Nil(t, doc.Timeline)

	kitchen := doc.Component("187-kitchen")
	require.NotNil(t, kitchen)
	require.Len(t, kitchen.Media, 2)
	// Sorted by relative path: "after" sorts before "before".
	assert.Equal(t, "projects/187-smith/photos/after/b.jpg", kitchen.Media[0].StoragePath)
	assert.Equal(t, StageAfter, kitchen.Media[0].Category)
	assert.Equal(t, 1, kitchen.Media[0].Order)
	assert.Equal(t, 2, kitchen.Media[1].Order)
	assert.Empty(t, kitchen.Thumbnail, "thumbnail fallback is resolved by readers")
	require.Len(t, kitchen.Documents, 1)
	assert.Equal(t, "pdf", kitchen.Documents[0].Type)

	bath := doc.Component("187-bathroom")
	require.NotNil(t, bath)
	assert.Equal(t, "Guest bath", bath.Name)
	assert.Len(t, bath.Media, 1)
	assert.Empty(t, bath.Documents)
	assert.NotNil(t, bath.Documents)

	assert.Empty(t, ValidateDocument(doc, 0))
}

func TestBuilder_OrphanedFiles(t *testing.T) {
	stray := uploaded("garage", StageAfter, "g.jpg", KindImage)
	other := uploaded("kitchen", StageAfter, "x.jpg", KindImage)
	other.File.ProjectID = "999"

	result := NewBuilder(nil).Build([]ProjectRecord{smithRecord()}, []UploadedFile{stray, other}, nil)
	assert.Equal(t, 2, result.Orphaned)
	require.Len(t, result.Warnings, 2)
	for _, w := range result.Warnings {
		assert.Equal(t, CodeOrphanedFile, w.Code)
		assert.Equal(t, StepBuild, w.Step)
	}
	assert.Contains(t, result.Warnings[0].Message, `"garage"`)
	assert.Contains(t, result.Warnings[1].Message, "no metadata row")
}

func TestBuilder_ProjectWithoutFilesStillBuilds(t *testing.T) {
	result := NewBuilder(nil).Build([]ProjectRecord{smithRecord()}, nil, nil)
	require.Len(t, result.Documents, 1)
	for _, c := range result.Documents[0].Components {
		assert.Empty(t, c.Media)
		assert.Empty(t, c.Thumbnail)
	}
}

func TestBuilder_WarnsAboutShadowedComponents(t *testing.T) {
	rec := smithRecord()
	rec.Components = append(rec.Components, ComponentRecord{ID: "187-kitchen-2", Category: "kitchen", Row: 4})

	result := NewBuilder(nil).Build([]ProjectRecord{rec}, []UploadedFile{uploaded("kitchen", StageAfter, "a.jpg", KindImage)}, nil)
	require.Len(t, result.Warnings, 1)
	w := result.Warnings[0]
	assert.Equal(t, CodeShadowedComponent, w.Code)
	assert.Equal(t, 4, w.Row)
	assert.Contains(t, w.Message, "187-kitchen-2 (Smith)")

	doc := result.Documents[0]
	assert.Len(t, doc.Component("187-kitchen").Media, 1)
	assert.Empty(t, doc.Component("187-kitchen-2").Media)
}

func TestBuilder_ExplicitThumbnailKept(t *testing.T) {
	rec := smithRecord()
	rec.Components[0].Thumbnail = "https://cdn/thumb.jpg"
	result := NewBuilder(nil).Build([]ProjectRecord{rec}, []UploadedFile{uploaded("kitchen", StageAfter, "a.jpg", KindImage)}, nil)
	assert.Equal(t, "https://cdn/thumb.jpg", result.Documents[0].Components[0].Thumbnail)
}

func TestBuilder_KeepsStoredMediaOrder(t *testing.T) {
	a := uploaded("kitchen", StageAfter, "a.jpg", KindImage)
	b := uploaded("kitchen", StageAfter, "b.jpg", KindImage)
	c := uploaded("kitchen", StageAfter, "c.jpg", KindImage)

	previous := storage.ProjectDocument{
		ID:      "187",
		Version: 4,
		Components: []storage.ComponentDocument{{
			ID: "187-kitchen",
			Media: []storage.MediaEntry{
				{StoragePath: c.StoragePath, Order: 1},
				{StoragePath: a.StoragePath, Order: 2},
			},
		}},
	}

	result := NewBuilder(nil).Build([]ProjectRecord{smithRecord()}, []UploadedFile{a, b, c}, map[string]storage.ProjectDocument{"187": previous})
	doc := result.Documents[0]
	assert.Equal(t, int64(4), doc.Version)

	media := doc.Component("187-kitchen").Media
	require.Len(t, media, 3)
	assert.Equal(t, c.StoragePath, media[0].StoragePath)
	assert.Equal(t, a.StoragePath, media[1].StoragePath)
	assert.Equal(t, b.StoragePath, media[2].StoragePath)
	for i, m := range media {
		assert.Equal(t, i+1, m.Order)
	}
}

func TestBuilder_CategoryRunPreservesOtherComponents(t *testing.T) {
	bathPath := "projects/187-smith/photos/after/old-bath.jpg"
	previous := storage.ProjectDocument{
		ID: "187",
		Components: []storage.ComponentDocument{
			{ID: "187-kitchen", Category: "kitchen", Media: []storage.MediaEntry{{URL: "u", StoragePath: "projects/187-smith/photos/after/gone.jpg"}}},
			{ID: "187-bathroom", Category: "bathroom", Media: []storage.MediaEntry{{URL: "u", StoragePath: bathPath}}},
		},
	}

	b := NewBuilder(nil)
	b.LimitToCategory("Kitchen")
	result := b.Build([]ProjectRecord{smithRecord()},
		[]UploadedFile{uploaded("kitchen", StageAfter, "new.jpg", KindImage)},
		map[string]storage.ProjectDocument{"187": previous})

	doc := result.Documents[0]
	kitchen := doc.Component("187-kitchen").Media
	require.Len(t, kitchen, 1)
	assert.Equal(t, "projects/187-smith/photos/after/new.jpg", kitchen[0].StoragePath)

	bath := doc.Component("187-bathroom").Media
	require.Len(t, bath, 1)
	assert.Equal(t, bathPath, bath[0].StoragePath)
	assert.Equal(t, 1, bath[0].Order)
}

func TestMergeOrdering_DoesNotMutateInput(t *testing.T) {
	doc := storage.ProjectDocument{ID: "1", Components: []storage.ComponentDocument{{
		ID:    "1-kitchen",
		Media: []storage.MediaEntry{{StoragePath: "a"}, {StoragePath: "b"}},
	}}}
	prev := storage.ProjectDocument{ID: "1", Components: []storage.ComponentDocument{{
		ID:    "1-kitchen",
		Media: []storage.MediaEntry{{StoragePath: "b"}, {StoragePath: "a"}},
	}}}

	out := MergeOrdering(doc, &prev)
	assert.Equal(t, "b", out.Components[0].Media[0].StoragePath)
	assert.Equal(t, "a", doc.Components[0].Media[0].StoragePath)
	assert.Zero(t, doc.Components[0].Media[0].Order)
}

func TestValidateDocument(t *testing.T) {
	valid := func() storage.ProjectDocument {
		return storage.ProjectDocument{
			ID: "1", Slug: "1-a", Name: "A", Category: "kitchen",
			Components: []storage.ComponentDocument{{
				ID: "1-kitchen", Category: "kitchen",
				Media: []storage.MediaEntry{{URL: "u", StoragePath: "p", Order: 1}},
			}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*storage.ProjectDocument)
		want   string
	}{
		{"empty name", func(d *storage.ProjectDocument) { d.Name = " " }, "name is empty"},
		{"no components", func(d *storage.ProjectDocument) { d.Components = nil }, "no components"},
		{"duplicate ids", func(d *storage.ProjectDocument) {
			d.Components = append(d.Components, storage.ComponentDocument{ID: "1-kitchen", Category: "kitchen"})
		}, "duplicate component id"},
		{"missing url", func(d *storage.ProjectDocument) { d.Components[0].Media[0].URL = "" }, "no url"},
		{"bad order", func(d *storage.ProjectDocument) { d.Components[0].Media[0].Order = 3 }, "has order 3"},
		{"no category", func(d *storage.ProjectDocument) { d.Components[0].Category = "" }, "has no category"},
	}

	assert.Empty(t, ValidateDocument(valid(), 0))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(&doc)
			problems := ValidateDocument(doc, 0)
			require.NotEmpty(t, problems)
			assert.Contains(t, strings.Join(problems, "\n"), tt.want)
		})
	}

	assert.NotEmpty(t, ValidateDocument(valid(), 10), "size limit")
}

func TestValidateDocuments_SplitsInvalid(t *testing.T) {
	good := storage.ProjectDocument{ID: "1", Slug: "1-a", Name: "A", Category: "k",
		Components: []storage.ComponentDocument{{ID: "1-k", Category: "k"}}}
	bad := storage.ProjectDocument{ID: "2", Slug: "2-b", Name: "B", Category: "k"}

	valid, issues := ValidateDocuments([]storage.ProjectDocument{good, bad}, 0)
	require.Len(t, valid, 1)
	assert.Equal(t, "1", valid[0].ID)
	require.Len(t, issues, 1)
	assert.Equal(t, "2", issues[0].ProjectID)
	assert.Equal(t, StepValidate, issues[0].Step)
}
