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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/assetseed/internal/bootstrap"
	"github.com/kraklabs/assetseed/pkg/ingestion"
)

func writeConfig(t *testing.T, root, body string) string {
	t.Helper()
	path := ConfigPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envEnvironment, envAccessKey, envSecretKey, envDocstoreDSN} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	path := writeConfig(t, root, `version: "1"
environment: development
metadata: data/projects.csv
assets: /srv/assets
confirm_delay: 3s
scan:
  exclude: ["**/raw"]
  large_file_bytes: 1024
upload:
  batch_size: 8
  max_attempts: 5
  base_delay: 250ms
  max_delay: 4s
object_store:
  endpoint: s3.example.com
  bucket: media
  use_ssl: true
document_store:
  driver: sqlite
  dsn: .assetseed/data/documents.db
  collection: projects
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(cfg.Root())
	require.NoError(t, err)
	assert.Equal(t, resolved, gotRoot)

	ing, err := cfg.Ingestion()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Root(), "data", "projects.csv"), ing.MetadataPath)
	assert.Equal(t, "/srv/assets", ing.AssetsRoot)
	assert.Equal(t, 3*time.Second, ing.ConfirmDelay)
	assert.Equal(t, []string{"**/raw"}, ing.Scan.Exclude)
	assert.Equal(t, int64(1024), ing.Scan.LargeFileBytes)
	assert.Equal(t, ingestion.DefaultNestedCategories, ing.Scan.NestedCategories)
	assert.Equal(t, 8, ing.Upload.BatchSize)
	assert.Equal(t, 5, ing.Upload.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, ing.Upload.Retry.BaseDelay)
	assert.Equal(t, 4*time.Second, ing.Upload.Retry.MaxDelay)
	assert.Equal(t, ingestion.DefaultWriteAttempts, ing.WriteAttempts)

	stores := cfg.Stores()
	assert.Equal(t, "s3.example.com", stores.Objects.Endpoint)
	assert.True(t, stores.Objects.UseSSL)
	assert.Equal(t, filepath.Join(cfg.Root(), ".assetseed", "data", "documents.db"), stores.Documents.DSN)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, "metadata: m.csv\nassets: a\n")

	t.Setenv(envEnvironment, "production")
	t.Setenv(envAccessKey, "AKIA")
	t.Setenv(envSecretKey, "s3cr3t")
	t.Setenv(envDocstoreDSN, "postgres://db/assets")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.DocumentStore.Driver = "postgres"

	ing, err := cfg.Ingestion()
	require.NoError(t, err)
	assert.True(t, ing.IsProduction())

	stores := cfg.Stores()
	assert.Equal(t, "AKIA", stores.Objects.AccessKey)
	assert.Equal(t, "s3cr3t", stores.Objects.SecretKey)
	assert.Equal(t, "postgres://db/assets", stores.Documents.DSN)
}

func TestLoadConfigErrors(t *testing.T) {
	clearConfigEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "metadata: [unclosed\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("not found upward", func(t *testing.T) {
		chdir(t, t.TempDir())
		_, err := LoadConfig("")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadConfigSearchesParents(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	writeConfig(t, root, "metadata: m.csv\nassets: a\n")
	nested := filepath.Join(root, "assets", "kitchen")
	require.NoError(t, os.MkdirAll(nested, 0755))

	chdir(t, nested)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(cfg.Root())
	assert.Equal(t, want, got)
}

func TestConfigIngestionInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad confirm delay", func(c *Config) { c.ConfirmDelay = "soon" }},
		{"negative base delay", func(c *Config) { c.Upload.BaseDelay = "-1s" }},
		{"bad max delay", func(c *Config) { c.Upload.MaxDelay = "1 minute" }},
		{"unknown environment", func(c *Config) { c.Environment = "staging" }},
		{"bad exclude", func(c *Config) { c.Scan.Exclude = []string{"[abc"} }},
		{"no metadata", func(c *Config) { c.Metadata = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := cfg.Ingestion()
			assert.Error(t, err)
		})
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.ObjectStore.Bucket = "media"
	require.NoError(t, cfg.Save(ConfigPath(root)))

	loaded, err := LoadConfig(ConfigPath(root))
	require.NoError(t, err)
	assert.Equal(t, "media", loaded.ObjectStore.Bucket)
	assert.Equal(t, cfg.Upload, loaded.Upload)
	assert.Equal(t, cfg.DocumentStore, loaded.DocumentStore)
	assert.Empty(t, loaded.ObjectStore.AccessKey)

	ing, err := loaded.Ingestion()
	require.NoError(t, err)
	assert.Equal(t, ingestion.DefaultConfirmDelay, ing.ConfirmDelay)
	assert.Equal(t, ingestion.DefaultBaseDelay, ing.Upload.Retry.BaseDelay)
}

func TestConfigStoresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.root = "/work"

	tests := []struct {
		driver, dsn, want string
	}{
		{"sqlite", "data/docs.db", filepath.Join("/work", "data", "docs.db")},
		{"", "data/docs.db", filepath.Join("/work", "data", "docs.db")},
		{"sqlite", "/abs/docs.db", "/abs/docs.db"},
		{"sqlite", ":memory:", ":memory:"},
		{"sqlite", "file:docs.db?cache=shared", "file:docs.db?cache=shared"},
		{"postgres", "postgres://db/assets", "postgres://db/assets"},
	}
	for _, tt := range tests {
		t.Run(tt.driver+" "+tt.dsn, func(t *testing.T) {
			cfg.DocumentStore.Driver = tt.driver
			cfg.DocumentStore.DSN = tt.dsn
			assert.Equal(t, tt.want, cfg.Stores().Documents.DSN)
		})
	}

	assert.Equal(t, bootstrap.ObjectStoreS3, cfg.Stores().Objects.Kind)
}

// chdir switches the working directory for the test and restores it on
// cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
