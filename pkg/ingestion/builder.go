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
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kraklabs/assetseed/internal/contract"
	"github.com/kraklabs/assetseed/pkg/storage"
)

// BuildResult holds the composite documents produced by Builder.Build.
type BuildResult struct {
	Documents []storage.ProjectDocument
	Warnings  []Issue

	// Orphaned counts files that matched no component.
	Orphaned int
}

// Builder merges metadata records with upload results.
type Builder struct {
	logger *slog.Logger

	// category, when set, limits the run to components of that category.
	// Other components keep their stored entries.
	category string
}

// NewBuilder creates a builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// LimitToCategory marks a category-restricted run. Components of other
// categories keep the media and documents already stored for them.
func (b *Builder) LimitToCategory(category string) {
	b.category = Slugify(category)
}

// Build creates one document per record. Each file is attached to the first
// component of its project with the same category and subcategory; other
// files are reported as orphaned. existing holds the currently stored
// documents by id and is only used to keep media order stable.
func (b *Builder) Build(records []ProjectRecord, uploads []UploadedFile, existing map[string]storage.ProjectDocument) *BuildResult {
	result := &BuildResult{Documents: []storage.ProjectDocument{}, Warnings: []Issue{}}

	files := append([]UploadedFile(nil), uploads...)
	sort.SliceStable(files, func(i, j int) bool { return files[i].File.RelPath < files[j].File.RelPath })

	byProject := make(map[string][]UploadedFile)
	for _, u := range files {
		byProject[u.File.ProjectID] = append(byProject[u.File.ProjectID], u)
	}

	known := make(map[string]bool, len(records))
	for i := range records {
		rec := &records[i]
		known[rec.ID] = true

		doc := newDocument(rec)
		result.Warnings = append(result.Warnings, shadowedComponents(rec)...)

		for _, u := range byProject[rec.ID] {
			c := rec.Component(u.File.Category, u.File.Subcategory)
			if c == nil {
				result.Orphaned++
				result.Warnings = append(result.Warnings, orphanIssue(u, fmt.Sprintf(
					"no component for category %q%s", u.File.Category, subcategoryNote(u.File.Subcategory))))
				continue
			}
			attach(doc.Component(c.ID), u)
		}

		if prev, ok := existing[rec.ID]; ok {
			doc.Version = prev.Version
			if b.category != "" {
				b.preserveOutOfScope(&doc, &prev)
			}
			doc = MergeOrdering(doc, &prev)
		} else {
			doc = MergeOrdering(doc, nil)
		}
		result.Documents = append(result.Documents, doc)
	}

	// Files of projects without metadata.
	var unknown []string
	for id := range byProject {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		for _, u := range byProject[id] {
			result.Orphaned++
			result.Warnings = append(result.Warnings, orphanIssue(u, "project has no metadata row"))
		}
	}

	b.logger.Info("ingest.build.complete", "documents", len(result.Documents), "orphaned", result.Orphaned)
	return result
}

// shadowedComponents warns about components that repeat the category and
// subcategory of an earlier component of the same project. Files always
// attach to the first one, so the later ones never receive media.
func shadowedComponents(rec *ProjectRecord) []Issue {
	var issues []Issue
	for _, c := range rec.Components {
		first := rec.Component(c.Category, c.Subcategory)
		if first == nil || first.ID == c.ID {
			continue
		}
		issues = append(issues, Issue{
			Step: StepBuild, Code: CodeShadowedComponent, Row: c.Row, ProjectID: rec.ID,
			Message: fmt.Sprintf("component %s (%s) repeats category %q%s of %s; its files attach to %s",
				c.ID, c.Resolved(rec).Name, c.Category, subcategoryNote(c.Subcategory), first.ID, first.ID),
		})
	}
	return issues
}

// preserveOutOfScope adds stored entries of components outside the run's
// category to the freshly built ones.
func (b *Builder) preserveOutOfScope(doc, prev *storage.ProjectDocument) {
	for i := range doc.Components {
		c := &doc.Components[i]
		if c.Category == b.category {
			continue
		}
		old := prev.Component(c.ID)
		if old == nil {
			continue
		}
		c.Media = unionEntries(old.Media, c.Media, func(m storage.MediaEntry) string { return m.StoragePath })
		c.Documents = unionEntries(old.Documents, c.Documents, func(d storage.DocumentEntry) string { return d.StoragePath })
	}
}

func unionEntries[T any](base, extra []T, key func(T) string) []T {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]T, 0, len(base)+len(extra))
	for _, group := range [][]T{base, extra} {
		for _, item := range group {
			if k := key(item); !seen[k] {
				seen[k] = true
				out = append(out, item)
			}
		}
	}
	return out
}

func newDocument(rec *ProjectRecord) storage.ProjectDocument {
	doc := storage.ProjectDocument{
		ID:          rec.ID,
		Slug:        rec.Slug,
		Name:        rec.Name,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Status:      rec.Status,
		Summary:     rec.Summary,
		Description: rec.Description,
		Scope:       rec.Scope,
		Tags:        append([]string{}, rec.Tags...),
		Managers:    append([]string{}, rec.Managers...),
		Featured:    rec.Featured,
		Components:  make([]storage.ComponentDocument, 0, len(rec.Components)),
	}
	if !rec.Location.IsZero() {
		doc.Location = &storage.Location{ZipCode: rec.Location.ZipCode, Neighborhood: rec.Location.Neighborhood}
	}
	if rec.Timeline.Duration != "" {
		doc.Timeline = &storage.Timeline{Duration: rec.Timeline.Duration}
	}
	for _, c := range rec.Components {
		doc.Components = append(doc.Components, storage.ComponentDocument{
			ID:          c.ID,
			Category:    c.Category,
			Subcategory: c.Subcategory,
			Name:        c.Name,
			Summary:     c.Summary,
			Description: c.Description,
			Scope:       c.Scope,
			Thumbnail:   c.Thumbnail,
			Media:       []storage.MediaEntry{},
			Documents:   []storage.DocumentEntry{},
		})
	}
	return doc
}

func attach(c *storage.ComponentDocument, u UploadedFile) {
	if u.File.Kind == KindImage {
		c.Media = append(c.Media, storage.MediaEntry{
			URL:         u.URL,
			StoragePath: u.StoragePath,
			Category:    u.File.Stage,
			Size:        u.Size,
		})
		return
	}
	c.Documents = append(c.Documents, storage.DocumentEntry{
		URL:         u.URL,
		StoragePath: u.StoragePath,
		Category:    u.File.Stage,
		Type:        strings.TrimPrefix(u.File.Ext, "."),
		Size:        u.Size,
	})
}

// MergeOrdering returns a copy of doc whose media and documents keep the
// relative order they have in previous. Entries previous does not know keep
// their current relative order after the known ones. Media orders are then
// renumbered from 1. Component overrides such as the thumbnail are stored
// as given; readers resolve fallbacks.
func MergeOrdering(doc storage.ProjectDocument, previous *storage.ProjectDocument) storage.ProjectDocument {
	out := doc.Clone()
	for i := range out.Components {
		c := &out.Components[i]
		var prev *storage.ComponentDocument
		if previous != nil {
			prev = previous.Component(c.ID)
		}
		if prev != nil {
			c.Media = stableByPrevious(c.Media, prev.Media, func(m storage.MediaEntry) string { return m.StoragePath })
			c.Documents = stableByPrevious(c.Documents, prev.Documents, func(d storage.DocumentEntry) string { return d.StoragePath })
		}
		for j := range c.Media {
			c.Media[j].Order = j + 1
		}
	}
	return out
}

func stableByPrevious[T any](items, previous []T, key func(T) string) []T {
	rank := make(map[string]int, len(previous))
	for i, p := range previous {
		if _, ok := rank[key(p)]; !ok {
			rank[key(p)] = i
		}
	}
	out := append(make([]T, 0, len(items)), items...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, oki := rank[key(out[i])]
		rj, okj := rank[key(out[j])]
		switch {
		case oki && okj:
			return ri < rj
		case oki:
			return true
		default:
			return false
		}
	})
	return out
}

// ValidateDocument checks the invariants a document must hold before it is
// written. maxBytes bounds the encoded size when positive.
func ValidateDocument(doc storage.ProjectDocument, maxBytes int64) []string {
	var problems []string
	for field, value := range map[string]string{"id": doc.ID, "name": doc.Name, "category": doc.Category, "slug": doc.Slug} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s is empty", field))
		}
	}
	if len(doc.Components) == 0 {
		problems = append(problems, "document has no components")
	}

	seen := make(map[string]bool, len(doc.Components))
	for _, c := range doc.Components {
		if c.ID == "" {
			problems = append(problems, "component with empty id")
			continue
		}
		if seen[c.ID] {
			problems = append(problems, fmt.Sprintf("duplicate component id %q", c.ID))
		}
		seen[c.ID] = true
		if c.Category == "" {
			problems = append(problems, fmt.Sprintf("component %q has no category", c.ID))
		}
		for j, m := range c.Media {
			if m.URL == "" || m.StoragePath == "" {
				problems = append(problems, fmt.Sprintf("component %q media %d has no url or storage path", c.ID, j+1))
			}
			if m.Order != j+1 {
				problems = append(problems, fmt.Sprintf("component %q media %d has order %d", c.ID, j+1, m.Order))
			}
		}
		for j, d := range c.Documents {
			if d.URL == "" || d.StoragePath == "" {
				problems = append(problems, fmt.Sprintf("component %q document %d has no url or storage path", c.ID, j+1))
			}
		}
	}

	if maxBytes > 0 {
		encoded, err := json.Marshal(doc)
		if err != nil {
			problems = append(problems, fmt.Sprintf("cannot encode: %v", err))
		} else if r := contract.ValidateDocumentSize(encoded, maxBytes); !r.OK {
			problems = append(problems, r.Message)
		}
	}
	sort.Strings(problems)
	return problems
}

// ValidateDocuments splits docs into valid ones and one error per invalid
// document.
func ValidateDocuments(docs []storage.ProjectDocument, maxBytes int64) ([]storage.ProjectDocument, []Issue) {
	valid := make([]storage.ProjectDocument, 0, len(docs))
	var issues []Issue
	for _, doc := range docs {
		if problems := ValidateDocument(doc, maxBytes); len(problems) > 0 {
			issues = append(issues, Issue{
				Step: StepValidate, Code: CodeDocument, ProjectID: doc.ID,
				Message: "document excluded: " + strings.Join(problems, "; "),
			})
			recordDocInvalid()
			continue
		}
		valid = append(valid, doc)
	}
	return valid, issues
}

func orphanIssue(u UploadedFile, reason string) Issue {
	return Issue{
		Step: StepBuild, Code: CodeOrphanedFile, ProjectID: u.File.ProjectID, Path: u.File.RelPath,
		Message: "file not attached: " + reason,
	}
}

func subcategoryNote(sub string) string {
	if sub == "" {
		return ""
	}
	return fmt.Sprintf(" and subcategory %q", sub)
}
