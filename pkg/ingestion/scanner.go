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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Skip reasons reported in ScanStats.SkipReasons.
const (
	skipIgnored        = "ignored"
	skipUnsupported    = "unsupported_type"
	skipExcluded       = "excluded"
	skipExcludedDir    = "excluded_dir"
	skipLooseFile      = "loose_file"
	skipUnparsedFolder = "unparsed_folder"
	skipFilteredCat    = "filtered_category"
	skipFilteredProj   = "filtered_project"
)

// ScanOptions restricts a scan.
type ScanOptions struct {
	// Categories keeps only these category directories (slugged). Empty keeps
	// all.
	Categories []string

	// Projects keeps only these project ids. Empty keeps all.
	Projects []string
}

// ScanStats summarizes a scan.
type ScanStats struct {
	Categories  int
	Projects    int
	Images      int
	Documents   int
	TotalBytes  int64
	SkipReasons map[string]int
}

// Files returns the number of discovered files.
func (s ScanStats) Files() int { return s.Images + s.Documents }

// ScanResult is the output of Scanner.Scan. Files are sorted by RelPath.
type ScanResult struct {
	Root     string
	Files    []DiscoveredFile
	Warnings []Issue
	Errors   []Issue
	Stats    ScanStats
}

// Scanner walks a local asset tree laid out as
// {category}/[{subcategory}/]{number} - {name}[ - {hint}]/{stage}/{file}.
type Scanner struct {
	cfg    ScanConfig
	logger *slog.Logger
	nested map[string]bool
}

// NewScanner creates a scanner.
func NewScanner(cfg ScanConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NestedCategories == nil {
		cfg.NestedCategories = DefaultNestedCategories
	}
	nested := make(map[string]bool, len(cfg.NestedCategories))
	for _, c := range cfg.NestedCategories {
		nested[Slugify(c)] = true
	}
	return &Scanner{cfg: cfg, logger: logger, nested: nested}
}

// scanState is the mutable state of one Scan call.
type scanState struct {
	root       string
	categories map[string]bool
	projects   map[string]bool
	result     *ScanResult
}

// Scan walks root and returns every ingestible file. It only fails when root
// is missing, unreadable or not a directory, or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, root string, opts ScanOptions) (*ScanResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve assets root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat assets root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets root is not a directory: %s", abs)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read assets root: %w", err)
	}

	st := &scanState{
		root:       abs,
		categories: toSet(opts.Categories, Slugify),
		projects:   toSet(opts.Projects, strings.TrimSpace),
		result: &ScanResult{
			Root:     abs,
			Files:    []DiscoveredFile{},
			Warnings: []Issue{},
			Errors:   []Issue{},
			Stats:    ScanStats{SkipReasons: make(map[string]int)},
		},
	}
	s.logger.Info("ingest.scan.start", "root", abs)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if IsIgnoredName(name) {
			st.result.Stats.SkipReasons[skipIgnored]++
			continue
		}
		if !entry.IsDir() {
			st.result.Stats.SkipReasons[skipLooseFile]++
			continue
		}
		category := Slugify(name)
		if s.excluded(name) {
			st.result.Stats.SkipReasons[skipExcludedDir]++
			continue
		}
		if len(st.categories) > 0 && !st.categories[category] {
			st.result.Stats.SkipReasons[skipFilteredCat]++
			continue
		}
		st.result.Stats.Categories++

		if s.nested[category] {
			s.scanNestedCategory(ctx, st, name, category)
			continue
		}
		s.scanProjects(ctx, st, name, category, "")
	}

	sort.Slice(st.result.Files, func(i, j int) bool {
		return st.result.Files[i].RelPath < st.result.Files[j].RelPath
	})

	s.logger.Info("ingest.scan.complete",
		"root", abs,
		"projects", st.result.Stats.Projects,
		"images", st.result.Stats.Images,
		"documents", st.result.Stats.Documents,
		"bytes", st.result.Stats.TotalBytes,
		"warnings", len(st.result.Warnings),
		"errors", len(st.result.Errors),
	)
	return st.result, ctx.Err()
}

func (s *Scanner) scanNestedCategory(ctx context.Context, st *scanState, catRel, category string) {
	entries, ok := s.readDir(st, catRel)
	if !ok {
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		rel := path.Join(catRel, entry.Name())
		if IsIgnoredName(entry.Name()) {
			st.result.Stats.SkipReasons[skipIgnored]++
			continue
		}
		if !entry.IsDir() {
			st.result.Stats.SkipReasons[skipLooseFile]++
			continue
		}
		if s.excluded(rel) {
			st.result.Stats.SkipReasons[skipExcludedDir]++
			continue
		}
		s.scanProjects(ctx, st, rel, category, Slugify(entry.Name()))
	}
}

func (s *Scanner) scanProjects(ctx context.Context, st *scanState, parentRel, category, subcategory string) {
	entries, ok := s.readDir(st, parentRel)
	if !ok {
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		name := entry.Name()
		rel := path.Join(parentRel, name)
		if IsIgnoredName(name) {
			st.result.Stats.SkipReasons[skipIgnored]++
			continue
		}
		if !entry.IsDir() {
			st.result.Stats.SkipReasons[skipLooseFile]++
			continue
		}
		if s.excluded(rel) {
			st.result.Stats.SkipReasons[skipExcludedDir]++
			continue
		}

		folder, ok := ParseProjectFolder(name)
		if !ok {
			st.result.Stats.SkipReasons[skipUnparsedFolder]++
			st.result.Warnings = append(st.result.Warnings, Issue{
				Step: StepScan, Code: CodeUnparsedFolder, Path: rel,
				Message: fmt.Sprintf("folder %q does not match \"{number} - {name}\", skipping", name),
			})
			s.logger.Warn("ingest.scan.unparsed_folder", "path", rel)
			continue
		}
		if len(st.projects) > 0 && !st.projects[folder.ID] {
			st.result.Stats.SkipReasons[skipFilteredProj]++
			continue
		}
		st.result.Stats.Projects++
		s.scanProject(st, rel, folder, category, subcategory)
	}
}

// scanProject walks one project folder. Files directly inside it get
// StageOther; files under a stage folder (at any depth) take that folder's
// stage.
func (s *Scanner) scanProject(st *scanState, projectRel string, folder ProjectFolder, category, subcategory string) {
	base := projectComponent(category, subcategory, folder.Hint)
	projectAbs := filepath.Join(st.root, filepath.FromSlash(projectRel))

	err := filepath.WalkDir(projectAbs, func(p string, d fs.DirEntry, err error) error {
		relToProject, relErr := filepath.Rel(projectAbs, p)
		if relErr != nil {
			return nil
		}
		rel := normalizePath(path.Join(projectRel, filepath.ToSlash(relToProject)))

		if err != nil {
			st.result.Errors = append(st.result.Errors, Issue{
				Step: StepScan, Code: CodeScan, ProjectID: folder.ID, Path: rel,
				Message: fmt.Sprintf("cannot read: %v", err),
			})
			s.logger.Warn("ingest.scan.walk.error", "path", rel, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == projectAbs {
			return nil
		}
		if IsIgnoredName(d.Name()) {
			st.result.Stats.SkipReasons[skipIgnored]++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if s.excluded(rel) {
				st.result.Stats.SkipReasons[skipExcludedDir]++
				return filepath.SkipDir
			}
			return nil
		}
		if s.excluded(rel) {
			st.result.Stats.SkipReasons[skipExcluded]++
			return nil
		}

		kind := ClassifyFile(d.Name())
		if kind == KindSkip {
			st.result.Stats.SkipReasons[skipUnsupported]++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			st.result.Errors = append(st.result.Errors, Issue{
				Step: StepScan, Code: CodeScan, ProjectID: folder.ID, Path: rel,
				Message: fmt.Sprintf("cannot stat: %v", err),
			})
			return nil
		}

		comp := base
		stage := StageOther
		if parts := strings.Split(filepath.ToSlash(relToProject), "/"); len(parts) > 1 {
			sf := ParseStageFolder(parts[0])
			stage = sf.Stage
			if subcategory == "" && sf.Hint != "" {
				if hinted := Slugify(sf.Hint); hinted != "" {
					comp = hinted
				}
			}
		}

		file := DiscoveredFile{
			ProjectID:   folder.ID,
			ProjectSlug: folder.Slug,
			ProjectName: folder.Name,
			Category:    comp,
			Subcategory: subcategory,
			Stage:       stage,
			Kind:        kind,
			Filename:    d.Name(),
			Path:        p,
			RelPath:     rel,
			Size:        info.Size(),
			Ext:         strings.ToLower(filepath.Ext(d.Name())),
		}
		s.add(st, file)
		return nil
	})
	if err != nil {
		st.result.Errors = append(st.result.Errors, Issue{
			Step: StepScan, Code: CodeScan, ProjectID: folder.ID, Path: projectRel,
			Message: fmt.Sprintf("walk project folder: %v", err),
		})
	}
}

func (s *Scanner) add(st *scanState, f DiscoveredFile) {
	st.result.Files = append(st.result.Files, f)
	st.result.Stats.TotalBytes += f.Size
	if f.Kind == KindImage {
		st.result.Stats.Images++
	} else {
		st.result.Stats.Documents++
	}
	if s.cfg.LargeFileBytes > 0 && f.Size > s.cfg.LargeFileBytes {
		st.result.Warnings = append(st.result.Warnings, Issue{
			Step: StepScan, Code: CodeLargeFile, ProjectID: f.ProjectID, Path: f.RelPath,
			Message: fmt.Sprintf("file is %d bytes, above the %d byte threshold", f.Size, s.cfg.LargeFileBytes),
		})
		s.logger.Warn("ingest.scan.large_file", "path", f.RelPath, "size", f.Size, "limit", s.cfg.LargeFileBytes)
	}
}

func (s *Scanner) readDir(st *scanState, rel string) ([]os.DirEntry, bool) {
	entries, err := os.ReadDir(filepath.Join(st.root, filepath.FromSlash(rel)))
	if err != nil {
		st.result.Errors = append(st.result.Errors, Issue{
			Step: StepScan, Code: CodeScan, Path: rel,
			Message: fmt.Sprintf("cannot read folder: %v", err),
		})
		s.logger.Warn("ingest.scan.read_dir.error", "path", rel, "err", err)
		return nil, false
	}
	return entries, true
}

// excluded reports whether rel matches an exclude glob. Patterns without a
// slash also match against the base name.
func (s *Scanner) excluded(rel string) bool {
	rel = normalizePath(rel)
	for _, pattern := range s.cfg.Exclude {
		pattern = filepath.ToSlash(pattern)
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, path.Base(rel)); ok {
				return true
			}
		}
	}
	return false
}

// projectComponent picks the component category for files of a project
// folder. A project folder hint overrides the category directory, except in
// nested categories where the subcategory identifies the component.
func projectComponent(category, subcategory, hint string) string {
	if subcategory == "" && hint != "" {
		if hinted := Slugify(hint); hinted != "" {
			return hinted
		}
	}
	return category
}

func validGlob(pattern string) bool {
	return doublestar.ValidatePattern(filepath.ToSlash(pattern))
}

func toSet(values []string, norm func(string) string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = norm(v); v != "" {
			set[v] = true
		}
	}
	return set
}
