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

import "strings"

// FileKind classifies a discovered file by extension.
type FileKind string

const (
	KindImage    FileKind = "image"
	KindDocument FileKind = "document"
	KindSkip     FileKind = "skip"
)

// Location is where a project took place.
type Location struct {
	ZipCode      string
	Neighborhood string
}

// IsZero reports whether no location fields are set.
func (l Location) IsZero() bool { return l.ZipCode == "" && l.Neighborhood == "" }

// Timeline describes how long a project ran.
type Timeline struct {
	Duration string
}

// ProjectRecord is one project assembled from one or more metadata rows.
type ProjectRecord struct {
	ID          string
	Slug        string
	Name        string
	Category    string
	Subcategory string
	Status      string
	Summary     string
	Description string
	Scope       string
	Location    Location
	Timeline    Timeline
	Tags        []string
	Managers    []string
	Featured    bool
	Components  []ComponentRecord

	// Row is the 1-based source row of the first row for this project.
	Row int
}

// Component returns the first component matching category and subcategory,
// or nil.
func (p *ProjectRecord) Component(category, subcategory string) *ComponentRecord {
	for i := range p.Components {
		c := &p.Components[i]
		if c.Category == category && c.Subcategory == subcategory {
			return c
		}
	}
	return nil
}

// ComponentRecord is one sub-aspect of a project. The display overrides are
// optional; Resolved fills the gaps from the parent project.
type ComponentRecord struct {
	ID          string
	Category    string
	Subcategory string
	Name        string
	Summary     string
	Description string
	Scope       string
	Thumbnail   string
	Row         int
}

// ResolvedComponent is the read-time view of a component with project
// fallbacks applied.
type ResolvedComponent struct {
	ID          string
	Category    string
	Subcategory string
	Name        string
	Summary     string
	Description string
	Scope       string
	Thumbnail   string
}

// Resolved merges the component's overrides with the project's values. The
// receiver is not modified.
func (c ComponentRecord) Resolved(p *ProjectRecord) ResolvedComponent {
	r := ResolvedComponent{
		ID:          c.ID,
		Category:    c.Category,
		Subcategory: c.Subcategory,
		Name:        c.Name,
		Summary:     c.Summary,
		Description: c.Description,
		Scope:       c.Scope,
		Thumbnail:   c.Thumbnail,
	}
	if p == nil {
		return r
	}
	if r.Name == "" {
		r.Name = p.Name
	}
	if r.Summary == "" {
		r.Summary = p.Summary
	}
	if r.Description == "" {
		r.Description = p.Description
	}
	if r.Scope == "" {
		r.Scope = p.Scope
	}
	return r
}

// DiscoveredFile is one physical file found by the scanner.
type DiscoveredFile struct {
	ProjectID   string
	ProjectSlug string
	ProjectName string
	Category    string
	Subcategory string
	Stage       string
	Kind        FileKind
	Filename    string
	Path        string // absolute
	RelPath     string // slash-separated, relative to the scan root
	Size        int64
	Ext         string // lower-case, with leading dot
}

// ComponentKey identifies the component a file belongs to.
func (f DiscoveredFile) ComponentKey() string {
	return componentKey(f.ProjectID, f.Category, f.Subcategory)
}

// UploadedFile is a file that exists remotely after the upload stage.
type UploadedFile struct {
	File        DiscoveredFile
	URL         string
	StoragePath string
	Size        int64

	// Uploaded is true when the object was written during this run and false
	// when it was already present.
	Uploaded bool
	DryRun   bool
	Attempts int
}

// FileError is a file-scoped upload failure.
type FileError struct {
	File     DiscoveredFile
	Key      string
	Attempts int
	Err      error
}

func (e FileError) Error() string {
	return e.File.RelPath + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error { return e.Err }

func componentKey(projectID, category, subcategory string) string {
	return strings.Join([]string{projectID, category, subcategory}, "\x00")
}
