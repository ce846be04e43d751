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

package contract

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultDocSoftLimitBytes is the baseline soft limit for one encoded
// project document (1 MiB).
const DefaultDocSoftLimitBytes int64 = 1 << 20

// DocSoftLimitEnv overrides DefaultDocSoftLimitBytes.
const DocSoftLimitEnv = "ASSETSEED_DOC_SOFT_LIMIT_BYTES"

// MaxObjectKeyBytes is the longest remote object key the stores accept.
const MaxObjectKeyBytes = 1024

// DocSoftLimitBytes returns the effective document soft limit. Invalid or
// non-positive overrides fall back to the default.
func DocSoftLimitBytes() int64 {
	if v := os.Getenv(DocSoftLimitEnv); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return DefaultDocSoftLimitBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateDocumentSize checks an encoded document against limit, or against
// DocSoftLimitBytes when limit is not positive.
func ValidateDocumentSize(encoded []byte, limit int64) *ValidationResult {
	if limit <= 0 {
		limit = DocSoftLimitBytes()
	}
	if int64(len(encoded)) > limit {
		return &ValidationResult{
			OK:      false,
			Message: fmt.Sprintf("encoded size %d bytes exceeds the %d byte limit", len(encoded), limit),
		}
	}
	return &ValidationResult{OK: true}
}

// ValidateObjectKey checks a remote key against store limits.
func ValidateObjectKey(key string) *ValidationResult {
	switch {
	case key == "":
		return &ValidationResult{Message: "object key is empty"}
	case len(key) > MaxObjectKeyBytes:
		return &ValidationResult{Message: "object key exceeds " + strconv.Itoa(MaxObjectKeyBytes) + " bytes"}
	}
	return &ValidationResult{OK: true}
}
