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
	"sort"

	"github.com/kraklabs/assetseed/pkg/storage"
)

// ObjectChange classifies a planned object against the remote listing.
type ObjectChange string

const (
	ObjectNew      ObjectChange = "new"
	ObjectExisting ObjectChange = "existing"

	// ObjectModified exists remotely with a different size.
	ObjectModified ObjectChange = "modified"
)

// ObjectDelta compares the keys a project wants with what a single listing
// call returned for its prefix.
type ObjectDelta struct {
	// Remote indexes the listing by key.
	Remote map[string]storage.ObjectInfo

	// New are planned keys absent remotely.
	New []string

	// Existing are planned keys present remotely with the expected size.
	Existing []string

	// Modified are planned keys present remotely with a different size.
	Modified []string

	// RemoteOnly are listed keys no local file maps to (sorted).
	RemoteOnly []string
}

// ComputeObjectDelta classifies planned keys (key -> local size) against a
// remote listing.
func ComputeObjectDelta(planned map[string]int64, remote []storage.ObjectInfo) *ObjectDelta {
	d := &ObjectDelta{Remote: make(map[string]storage.ObjectInfo, len(remote))}
	for _, obj := range remote {
		d.Remote[obj.Key] = obj
	}

	for key, size := range planned {
		obj, ok := d.Remote[key]
		switch {
		case !ok:
			d.New = append(d.New, key)
		case size >= 0 && obj.Size != size:
			d.Modified = append(d.Modified, key)
		default:
			d.Existing = append(d.Existing, key)
		}
	}
	for key := range d.Remote {
		if _, ok := planned[key]; !ok {
			d.RemoteOnly = append(d.RemoteOnly, key)
		}
	}

	sort.Strings(d.New)
	sort.Strings(d.Existing)
	sort.Strings(d.Modified)
	sort.Strings(d.RemoteOnly)
	return d
}

// Change returns how key compares with the remote listing.
func (d *ObjectDelta) Change(key string, size int64) ObjectChange {
	obj, ok := d.Remote[key]
	if !ok {
		return ObjectNew
	}
	if size >= 0 && obj.Size != size {
		return ObjectModified
	}
	return ObjectExisting
}
