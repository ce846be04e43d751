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
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryObjectStore is an in-process ObjectStore used by tests and local
// previews. It counts every call so callers can assert on network behavior.
type MemoryObjectStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]memoryObject

	listCalls   int
	putCalls    int
	removeCalls int

	// PutHook, when set, runs before every Put. A non-nil error fails the Put
	// without storing anything.
	PutHook func(key string, call int) error

	// Truncate, when set, makes Put store fewer bytes than requested for the
	// given key so that confirmation fails.
	Truncate func(key string) bool
}

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemoryObjectStore creates an empty in-memory object store.
func NewMemoryObjectStore(bucket string) *MemoryObjectStore {
	if bucket == "" {
		bucket = "memory"
	}
	return &MemoryObjectStore{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
	}
}

// List implements ObjectStore.
func (m *MemoryObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	var out []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.info(key))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Put implements ObjectStore.
func (m *MemoryObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.Lock()
	m.putCalls++
	call := m.putCalls
	hook := m.PutHook
	truncate := m.Truncate
	m.mu.Unlock()

	if hook != nil {
		if err := hook(key, call); err != nil {
			return ObjectInfo{}, err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return ObjectInfo{}, fmt.Errorf("short body for %s: got %d bytes, want %d", key, len(data), size)
	}
	if truncate != nil && truncate(key) && len(data) > 0 {
		data = data[:len(data)-1]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	obj := memoryObject{data: bytes.Clone(data), contentType: contentType, modified: time.Now()}
	m.objects[key] = obj
	return obj.info(key), nil
}

// Stat implements ObjectStore.
func (m *MemoryObjectStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return obj.info(key), nil
}

// Remove implements ObjectStore.
func (m *MemoryObjectStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls++
	delete(m.objects, key)
	return nil
}

// URL implements ObjectStore.
func (m *MemoryObjectStore) URL(key string) string {
	return "mem://" + m.bucket + "/" + key
}

// Bucket implements ObjectStore.
func (m *MemoryObjectStore) Bucket() string { return m.bucket }

// Seed stores an object directly, bypassing call counters.
func (m *MemoryObjectStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: bytes.Clone(data), modified: time.Now()}
}

// Len returns the number of stored objects.
func (m *MemoryObjectStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// PutCalls returns how many times Put was invoked.
func (m *MemoryObjectStore) PutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCalls
}

// ListCalls returns how many times List was invoked.
func (m *MemoryObjectStore) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// RemoveCalls returns how many times Remove was invoked.
func (m *MemoryObjectStore) RemoveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeCalls
}

func (o memoryObject) info(key string) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		LastModified: o.modified,
	}
}

// MemoryDocumentStore is an in-process DocumentStore.
type MemoryDocumentStore struct {
	mu     sync.Mutex
	docs   map[string]ProjectDocument
	closed bool
	now    func() time.Time

	casCalls int

	// BeforeSwap, when set, runs inside CompareAndSwap before the version
	// check. Tests use it to simulate a concurrent writer.
	BeforeSwap func(id string, call int)
}

// NewMemoryDocumentStore creates an empty in-memory document store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[string]ProjectDocument),
		now:  time.Now,
	}
}

// Get implements DocumentStore.
func (m *MemoryDocumentStore) Get(ctx context.Context, id string) (*ProjectDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := doc.Clone()
	return &clone, nil
}

// List implements DocumentStore.
func (m *MemoryDocumentStore) List(ctx context.Context) ([]ProjectDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]ProjectDocument, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, doc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CompareAndSwap implements DocumentStore.
func (m *MemoryDocumentStore) CompareAndSwap(ctx context.Context, doc ProjectDocument, expected int64) (ProjectDocument, error) {
	if err := ctx.Err(); err != nil {
		return ProjectDocument{}, err
	}
	m.mu.Lock()
	m.casCalls++
	call := m.casCalls
	hook := m.BeforeSwap
	m.mu.Unlock()

	if hook != nil {
		hook(doc.ID, call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ProjectDocument{}, ErrClosed
	}
	var current int64
	if cur, ok := m.docs[doc.ID]; ok {
		current = cur.Version
	}
	if current != expected {
		return ProjectDocument{}, fmt.Errorf("%w: %s at version %d, expected %d", ErrConflict, doc.ID, current, expected)
	}
	stored := doc.Clone()
	stored.Version = expected + 1
	stored.UpdatedAt = m.now().UTC()
	m.docs[doc.ID] = stored
	return stored.Clone(), nil
}

// DeleteAll implements DocumentStore.
func (m *MemoryDocumentStore) DeleteAll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	n := len(m.docs)
	m.docs = make(map[string]ProjectDocument)
	return n, nil
}

// Put stores doc unconditionally. It is meant for seeding tests.
func (m *MemoryDocumentStore) Put(doc ProjectDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.Version == 0 {
		doc.Version = 1
	}
	m.docs[doc.ID] = doc.Clone()
}

// Len returns the number of stored documents.
func (m *MemoryDocumentStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Close implements DocumentStore.
func (m *MemoryDocumentStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
