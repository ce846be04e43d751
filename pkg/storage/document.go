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

package storage

import "time"

// ProjectDocument is the composite record written to the document store.
// It is the shape consumed by the presentation layer.
type ProjectDocument struct {
	ID          string              `json:"id"`
	Slug        string              `json:"slug"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Subcategory string              `json:"subcategory,omitempty"`
	Status      string              `json:"status,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	Scope       string              `json:"scope,omitempty"`
	Location    *Location           `json:"location,omitempty"`
	Timeline    *Timeline           `json:"timeline,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Managers    []string            `json:"managers,omitempty"`
	Featured    bool                `json:"featured"`
	Components  []ComponentDocument `json:"components"`

	// Version is maintained by the store for optimistic concurrency.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Location is the optional project location block.
type Location struct {
	ZipCode      string `json:"zipCode,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Timeline is the optional project timeline block.
type Timeline struct {
	Duration string `json:"duration,omitempty"`
}

// ComponentDocument is one component of a project with its own media.
type ComponentDocument struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Name        string          `json:"name,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Scope       string          `json:"scope,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	Media       []MediaEntry    `json:"media"`
	Documents   []DocumentEntry `json:"documents"`
}

// MediaEntry is an image attached to a component.
type MediaEntry struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
	Category    string `json:"category"`
	Order       int    `json:"order"`
	Size        int64  `json:"size"`
}

// DocumentEntry is a non-image file attached to a component.
type DocumentEntry struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
}

// Component returns the component with the given id, or nil.
func (d *ProjectDocument) Component(id string) *ComponentDocument {
	for i := range d.Components {
		if d.Components[i].ID == id {
			return &d.Components[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the document so callers never share slices.
func (d ProjectDocument) Clone() ProjectDocument {
	out := d
	if d.Location != nil {
		loc := *d.Location
		out.Location = &loc
	}
	if d.Timeline != nil {
		tl := *d.Timeline
		out.Timeline = &tl
	}
	out.Tags = append([]string(nil), d.Tags...)
	out.Managers = append([]string(nil), d.Managers...)
	out.Components = make([]ComponentDocument, len(d.Components))
	for i, c := range d.Components {
		c.Media = append(make([]MediaEntry, 0, len(c.Media)), c.Media...)
		c.Documents = append(make([]DocumentEntry, 0, len(c.Documents)), c.Documents...)
		out.Components[i] = c
	}
	return out
}
