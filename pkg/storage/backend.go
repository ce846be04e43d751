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

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when an object or document does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict is returned by CompareAndSwap when the stored version no
	// longer matches the expected version.
	ErrConflict = errors.New("storage: version conflict")

	// ErrClosed is returned by any operation on a closed store.
	ErrClosed = errors.New("storage: store is closed")

	// ErrReadOnly is returned by write operations on a store opened
	// read-only.
	ErrReadOnly = errors.New("storage: store is read-only")
)

// ObjectInfo describes a single remote object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectStore is the remote binary storage used for photos and documents.
//
// Implementations must only report a Put as successful once the object is
// fully acknowledged by the remote side.
type ObjectStore interface {
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Put uploads size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)

	// Stat returns metadata for key, or ErrNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// URL returns the durable public reference for key.
	URL(key string) string

	// Bucket names the bucket (or namespace) objects are written to.
	Bucket() string
}

// DocumentStore persists composite project documents in a single collection.
type DocumentStore interface {
	// Get returns the stored document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*ProjectDocument, error)

	// List returns every document in the collection ordered by id.
	List(ctx context.Context) ([]ProjectDocument, error)

	// CompareAndSwap stores doc if the stored version equals expected.
	// An expected version of 0 means the document must not exist yet.
	// On success the returned document carries the new version.
	CompareAndSwap(ctx context.Context, doc ProjectDocument, expected int64) (ProjectDocument, error)

	// DeleteAll removes every document in the collection and reports how many
	// were deleted.
	DeleteAll(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
