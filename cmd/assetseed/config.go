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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/assetseed/internal/bootstrap"
	"github.com/kraklabs/assetseed/pkg/ingestion"
	"github.com/kraklabs/assetseed/pkg/storage"
)

const (
	configDirName  = ".assetseed"
	configFileName = "project.yaml"
	configVersion  = "1"
)

// Environment variables that override the project file.
const (
	envEnvironment = "ASSETSEED_ENV"
	envAccessKey   = "ASSETSEED_S3_ACCESS_KEY"
	envSecretKey   = "ASSETSEED_S3_SECRET_KEY"
	envDocstoreDSN = "ASSETSEED_DOCSTORE_DSN"
)

// Config is the on-disk project configuration in .assetseed/project.yaml.
type Config struct {
	Version       string              `yaml:"version"`
	Environment   string              `yaml:"environment"`
	Metadata      string              `yaml:"metadata"`
	Assets        string              `yaml:"assets"`
	ConfirmDelay  string              `yaml:"confirm_delay,omitempty"`
	WriteAttempts int                 `yaml:"write_attempts,omitempty"`
	Scan          ScanSettings        `yaml:"scan"`
	Upload        UploadSettings      `yaml:"upload"`
	ObjectStore   ObjectStoreSettings `yaml:"object_store"`
	DocumentStore DocStoreSettings    `yaml:"document_store"`

	// root is the directory holding .assetseed; relative paths resolve
	// against it.
	root string
}

// ScanSettings configures the filesystem scanner.
type ScanSettings struct {
	Exclude          []string `yaml:"exclude,omitempty"`
	LargeFileBytes   int64    `yaml:"large_file_bytes,omitempty"`
	NestedCategories []string `yaml:"nested_categories,omitempty"`
}

// UploadSettings configures batching and retries.
type UploadSettings struct {
	BatchSize     int    `yaml:"batch_size,omitempty"`
	MaxBatchBytes int64  `yaml:"max_batch_bytes,omitempty"`
	MaxAttempts   int    `yaml:"max_attempts,omitempty"`
	BaseDelay     string `yaml:"base_delay,omitempty"`
	MaxDelay      string `yaml:"max_delay,omitempty"`
}

// ObjectStoreSettings locate the bucket. Credentials normally come from the
// environment.
type ObjectStoreSettings struct {
	Kind          string `yaml:"kind,omitempty"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region,omitempty"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url,omitempty"`
	AccessKey     string `yaml:"access_key,omitempty"`
	SecretKey     string `yaml:"secret_key,omitempty"`
}

// DocStoreSettings locate the document collection.
type DocStoreSettings struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	CacheSize  int    `yaml:"cache_size,omitempty"`
}

// DefaultConfig returns the configuration written by 'assetseed init'.
func DefaultConfig() *Config {
	return &Config{
		Version:      configVersion,
		Environment:  ingestion.EnvDevelopment,
		Metadata:     "data/projects.csv",
		Assets:       "assets",
		ConfirmDelay: ingestion.DefaultConfirmDelay.String(),
		Scan: ScanSettings{
			LargeFileBytes:   ingestion.DefaultLargeFileBytes,
			NestedCategories: append([]string(nil), ingestion.DefaultNestedCategories...),
		},
		Upload: UploadSettings{
			BatchSize:   ingestion.DefaultBatchSize,
			MaxAttempts: ingestion.DefaultMaxAttempts,
			BaseDelay:   ingestion.DefaultBaseDelay.String(),
			MaxDelay:    ingestion.DefaultMaxDelay.String(),
		},
		ObjectStore: ObjectStoreSettings{
			Kind:     bootstrap.ObjectStoreS3,
			Endpoint: "localhost:9000",
			Region:   "us-east-1",
			Bucket:   "assets",
		},
		DocumentStore: DocStoreSettings{
			Driver:     storage.DriverSQLite,
			DSN:        filepath.Join(configDirName, "data", "documents.db"),
			Collection: "projects",
		},
	}
}

// ConfigDir returns the .assetseed directory under root.
func ConfigDir(root string) string {
	return filepath.Join(root, configDirName)
}

// ConfigPath returns the project file path under root.
func ConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), configFileName)
}

// Root returns the workspace directory the config was loaded from.
func (c *Config) Root() string { return c.root }

// LoadConfig reads the project file. An empty configPath searches the
// current directory and its parents for .assetseed/project.yaml.
// Environment overrides are applied after parsing.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		configPath = found
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.root = filepath.Dir(filepath.Dir(abs))
	cfg.applyEnv()
	return cfg, nil
}

// findConfig walks up from the working directory.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := ConfigPath(dir)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s/%s not found (run 'assetseed init' first): %w", configDirName, configFileName, os.ErrNotExist)
		}
		dir = parent
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envEnvironment)); v != "" {
		c.Environment = v
	}
	if v := os.Getenv(envAccessKey); v != "" {
		c.ObjectStore.AccessKey = v
	}
	if v := os.Getenv(envSecretKey); v != "" {
		c.ObjectStore.SecretKey = v
	}
	if v := os.Getenv(envDocstoreDSN); v != "" {
		c.DocumentStore.DSN = v
	}
}

// resolve makes a relative path absolute against the workspace root.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.root == "" {
		return p
	}
	return filepath.Join(c.root, p)
}

// Save writes the config as YAML, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Ingestion converts the file settings into a pipeline Config.
func (c *Config) Ingestion() (ingestion.Config, error) {
	out := ingestion.DefaultConfig()
	out.MetadataPath = c.resolve(c.Metadata)
	out.AssetsRoot = c.resolve(c.Assets)
	if c.Environment != "" {
		out.Environment = c.Environment
	}

	var err error
	if out.ConfirmDelay, err = parseDuration("confirm_delay", c.ConfirmDelay, out.ConfirmDelay); err != nil {
		return out, err
	}
	if c.WriteAttempts > 0 {
		out.WriteAttempts = c.WriteAttempts
	}

	out.Scan.Exclude = c.Scan.Exclude
	if c.Scan.LargeFileBytes != 0 {
		out.Scan.LargeFileBytes = c.Scan.LargeFileBytes
	}
	if c.Scan.NestedCategories != nil {
		out.Scan.NestedCategories = c.Scan.NestedCategories
	}

	if c.Upload.BatchSize > 0 {
		out.Upload.BatchSize = c.Upload.BatchSize
	}
	out.Upload.MaxBatchBytes = c.Upload.MaxBatchBytes
	if c.Upload.MaxAttempts > 0 {
		out.Upload.Retry.MaxAttempts = c.Upload.MaxAttempts
	}
	if out.Upload.Retry.BaseDelay, err = parseDuration("upload.base_delay", c.Upload.BaseDelay, out.Upload.Retry.BaseDelay); err != nil {
		return out, err
	}
	if out.Upload.Retry.MaxDelay, err = parseDuration("upload.max_delay", c.Upload.MaxDelay, out.Upload.Retry.MaxDelay); err != nil {
		return out, err
	}

	return out, out.Validate()
}

// Stores converts the store settings into a bootstrap Config.
func (c *Config) Stores() bootstrap.Config {
	dsn := c.DocumentStore.DSN
	sqlite := c.DocumentStore.Driver == "" || strings.EqualFold(c.DocumentStore.Driver, storage.DriverSQLite)
	if sqlite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dsn = c.resolve(dsn)
	}
	return bootstrap.Config{
		Objects: bootstrap.ObjectStoreConfig{
			Kind:          c.ObjectStore.Kind,
			Endpoint:      c.ObjectStore.Endpoint,
			Region:        c.ObjectStore.Region,
			Bucket:        c.ObjectStore.Bucket,
			AccessKey:     c.ObjectStore.AccessKey,
			SecretKey:     c.ObjectStore.SecretKey,
			UseSSL:        c.ObjectStore.UseSSL,
			PublicBaseURL: c.ObjectStore.PublicBaseURL,
		},
		Documents: bootstrap.DocumentStoreConfig{
			Driver:     c.DocumentStore.Driver,
			DSN:        dsn,
			Collection: c.DocumentStore.Collection,
			CacheSize:  c.DocumentStore.CacheSize,
		},
	}
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, value)
	}
	return d, nil
}
