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

package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kraklabs/assetseed/pkg/storage"
)

// Object store kinds.
const (
	ObjectStoreS3     = "s3"
	ObjectStoreMemory = "memory"
)

// DocumentStoreMemory selects the in-process document store. The SQL drivers
// are storage.DriverSQLite and storage.DriverPostgres.
const DocumentStoreMemory = "memory"

// ObjectStoreConfig selects and configures the remote object store.
type ObjectStoreConfig struct {
	// Kind is ObjectStoreS3 (default) or ObjectStoreMemory.
	Kind string

	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// PublicBaseURL overrides the base of object URLs.
	PublicBaseURL string

	// ReadOnly opens the store without creating the bucket.
	ReadOnly bool
}

// DocumentStoreConfig selects and configures the document store.
type DocumentStoreConfig struct {
	// Driver is sqlite (default), postgres or memory.
	Driver     string
	DSN        string
	Collection string
	CacheSize  int

	// ReadOnly opens the store without creating the schema.
	ReadOnly bool
}

// Config holds both store configurations.
type Config struct {
	Objects   ObjectStoreConfig
	Documents DocumentStoreConfig

	// ReadOnly opens both stores read-only, as dry runs require.
	ReadOnly bool
}

// Stores are the opened store handles handed to the pipeline.
type Stores struct {
	Objects   storage.ObjectStore
	Documents storage.DocumentStore
}

// Close releases the document store. Object stores hold no resources.
func (s *Stores) Close() error {
	if s == nil || s.Documents == nil {
		return nil
	}
	return s.Documents.Close()
}

// Open builds both stores. On failure nothing is left open.
func Open(cfg Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ReadOnly {
		cfg.Objects.ReadOnly = true
		cfg.Documents.ReadOnly = true
	}

	objects, err := OpenObjectStore(cfg.Objects, logger)
	if err != nil {
		return nil, err
	}
	docs, err := OpenDocumentStore(cfg.Documents, logger)
	if err != nil {
		return nil, err
	}
	return &Stores{Objects: objects, Documents: docs}, nil
}

// OpenObjectStore creates the configured object store. The S3 client makes
// no network call until first use.
func OpenObjectStore(cfg ObjectStoreConfig, logger *slog.Logger) (storage.ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	switch kind {
	case "", ObjectStoreS3:
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.Endpoint,
			Region:        cfg.Region,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Bucket:        cfg.Bucket,
			UseSSL:        cfg.UseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
			ReadOnly:      cfg.ReadOnly,
		})
		if err != nil {
			return nil, fmt.Errorf("open object store: %w", err)
		}
		logger.Debug("bootstrap.objects.open", "kind", ObjectStoreS3, "endpoint", cfg.Endpoint, "bucket", store.Bucket(), "read_only", cfg.ReadOnly)
		return store, nil
	case ObjectStoreMemory:
		bucket := cfg.Bucket
		if bucket == "" {
			bucket = "assets"
		}
		logger.Warn("bootstrap.objects.memory", "bucket", bucket, "note", "uploads are not persisted")
		return storage.NewMemoryObjectStore(bucket), nil
	default:
		return nil, fmt.Errorf("unsupported object store kind %q (want %s or %s)", cfg.Kind, ObjectStoreS3, ObjectStoreMemory)
	}
}

// OpenDocumentStore creates the configured document store. For sqlite the
// parent directory of the DSN is created.
func OpenDocumentStore(cfg DocumentStoreConfig, logger *slog.Logger) (storage.DocumentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == DocumentStoreMemory {
		logger.Warn("bootstrap.documents.memory", "note", "documents are not persisted")
		return storage.NewMemoryDocumentStore(), nil
	}

	store, err := storage.NewSQLDocumentStore(storage.SQLConfig{
		Driver:     driver,
		DSN:        cfg.DSN,
		Collection: cfg.Collection,
		CacheSize:  cfg.CacheSize,
		ReadOnly:   cfg.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	logger.Debug("bootstrap.documents.open", "driver", store.Driver(), "collection", cfg.Collection, "read_only", cfg.ReadOnly)
	return store, nil
}

// LoadEnv loads KEY=value pairs from the given files (".env" when none are
// given) without overriding variables already set. Missing files are
// ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
