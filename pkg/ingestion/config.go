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
	"fmt"
	"time"
)

// Target environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Defaults for Config.
const (
	DefaultBatchSize      = 5
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMaxDelay       = 8 * time.Second
	DefaultLargeFileBytes = 25 << 20
	DefaultConfirmDelay   = 10 * time.Second
	DefaultWriteAttempts  = 3
)

// DefaultNestedCategories are category directory names that carry an extra
// subcategory directory level.
var DefaultNestedCategories = []string{"adu-addition"}

// Config holds the settings of an ingestion run that come from the project
// file and environment. Per-run switches live in Options.
type Config struct {
	// MetadataPath is the CSV metadata file.
	MetadataPath string

	// AssetsRoot is the local asset tree.
	AssetsRoot string

	// Environment is EnvDevelopment or EnvProduction.
	Environment string

	// ConfirmDelay is how long production runs wait before the first remote
	// write.
	ConfirmDelay time.Duration

	Scan   ScanConfig
	Upload UploadConfig

	// WriteAttempts bounds optimistic-concurrency retries per document.
	WriteAttempts int
}

// ScanConfig configures the filesystem scanner.
type ScanConfig struct {
	// Exclude holds doublestar globs matched against slash-separated paths
	// relative to the root.
	Exclude []string

	// LargeFileBytes flags files above this size. Zero disables the check.
	LargeFileBytes int64

	// NestedCategories lists slugged category names that add a
	// subcategory level.
	NestedCategories []string
}

// UploadConfig configures the uploader.
type UploadConfig struct {
	BatchSize int

	// MaxBatchBytes additionally caps the bytes per batch. Zero means no cap.
	MaxBatchBytes int64

	Retry RetryConfig
}

// RetryConfig configures per-file upload retries.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Environment:  EnvDevelopment,
		ConfirmDelay: DefaultConfirmDelay,
		Scan: ScanConfig{
			LargeFileBytes:   DefaultLargeFileBytes,
			NestedCategories: append([]string(nil), DefaultNestedCategories...),
		},
		Upload: UploadConfig{
			BatchSize: DefaultBatchSize,
			Retry: RetryConfig{
				MaxAttempts: DefaultMaxAttempts,
				BaseDelay:   DefaultBaseDelay,
				MaxDelay:    DefaultMaxDelay,
			},
		},
		WriteAttempts: DefaultWriteAttempts,
	}
}

// withDefaults fills zero values.
func (r RetryConfig) withDefaults() RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.BaseDelay < 0 {
		r.BaseDelay = 0
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = DefaultMaxDelay
	}
	return r
}

// Delay returns the wait after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (r RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := r.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// IsProduction reports whether the config targets production.
func (c Config) IsProduction() bool { return c.Environment == EnvProduction }

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.MetadataPath == "" {
		return fmt.Errorf("metadata path is required")
	}
	if c.AssetsRoot == "" {
		return fmt.Errorf("assets root is required")
	}
	switch c.Environment {
	case "", EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q (want %s or %s)", c.Environment, EnvDevelopment, EnvProduction)
	}
	if c.Upload.BatchSize < 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Upload.BatchSize)
	}
	for _, pattern := range c.Scan.Exclude {
		if !validGlob(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}
