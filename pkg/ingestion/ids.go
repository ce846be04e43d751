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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxObjectNameLen bounds the filename segment of a remote key.
const maxObjectNameLen = 200

// Slugify lower-cases s, strips diacritics and joins alphanumeric runs with
// single dashes. "Baño Principal" becomes "bano-principal".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ProjectSlug builds the stable project slug "{id}-{slugified name}".
func ProjectSlug(id, name string) string {
	s := Slugify(name)
	if s == "" {
		return Slugify(id)
	}
	return Slugify(id) + "-" + s
}

// ComponentID derives the component identifier
// "{projectID}-{category}[-{subcategory}][-{n}]". n is the 1-based occurrence
// of the same category and subcategory within the project; the first
// occurrence carries no suffix.
func ComponentID(projectID, category, subcategory string, n int) string {
	parts := []string{projectID, Slugify(category)}
	if sub := Slugify(subcategory); sub != "" {
		parts = append(parts, sub)
	}
	if n > 1 {
		parts = append(parts, fmt.Sprint(n))
	}
	return strings.Join(parts, "-")
}

// ObjectKey returns the remote key for a file:
// projects/{slug}/{photos|documents}/{stage}/{filename}.
func ObjectKey(f DiscoveredFile) string {
	folder := "documents"
	if f.Kind == KindImage {
		folder = "photos"
	}
	stage := f.Stage
	if stage == "" {
		stage = StageOther
	}
	return path.Join("projects", f.ProjectSlug, folder, stage, safeObjectName(f.Filename))
}

// ProjectPrefix is the listing prefix for every object of a project.
func ProjectPrefix(slug string) string {
	return "projects/" + slug + "/"
}

// safeObjectName keeps the filename readable and hashes overly long names so
// keys stay within store limits.
func safeObjectName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	if len(name) <= maxObjectNameLen {
		return name
	}
	ext := strings.ToLower(filepath.Ext(name))
	hash := sha256.Sum256([]byte(name))
	return hex.EncodeToString(hash[:16]) + ext
}

// normalizePath normalizes a relative file path for consistent keys:
// forward slashes, no leading "./" or "/".
func normalizePath(p string) string {
	if len(p) >= 2 && p[0:2] == "./" {
		p = p[2:]
	}
	p = filepath.Clean(p)
	p = filepath.ToSlash(p)
	if len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
