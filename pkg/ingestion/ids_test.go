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
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kitchen", "kitchen"},
		{"ADU Addition", "adu-addition"},
		{"  Baño   Principal ", "bano-principal"},
		{"Pool & Spa", "pool-spa"},
		{"already-slugged", "already-slugged"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComponentID(t *testing.T) {
	tests := []struct {
		name              string
		project, cat, sub string
		n                 int
		want              string
	}{
		{"category only", "187", "bathroom", "", 1, "187-bathroom"},
		{"with subcategory", "200", "ADU Addition", "pool", 1, "200-adu-addition-pool"},
		{"second occurrence", "187", "kitchen", "", 2, "187-kitchen-2"},
		{"zero treated as first", "187", "kitchen", "", 0, "187-kitchen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComponentID(tt.project, tt.cat, tt.sub, tt.n); got != tt.want {
				t.Errorf("ComponentID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComponentID_Deterministic(t *testing.T) {
	id1 := ComponentID("187", "Kitchen", "Island", 3)
	id2 := ComponentID("187", "Kitchen", "Island", 3)
	if id1 != id2 {
		t.Errorf("ComponentID should be deterministic: got %q and %q", id1, id2)
	}
}

func TestProjectSlug(t *testing.T) {
	if got := ProjectSlug("187", "Smith Residence"); got != "187-smith-residence" {
		t.Errorf("ProjectSlug() = %q", got)
	}
	if got := ProjectSlug("187", ""); got != "187" {
		t.Errorf("ProjectSlug() with empty name = %q", got)
	}
}

func TestObjectKey(t *testing.T) {
	img := DiscoveredFile{ProjectSlug: "104-garcia", Kind: KindImage, Stage: StageAfter, Filename: "IMG_1.jpg"}
	if got := ObjectKey(img); got != "projects/104-garcia/photos/after/IMG_1.jpg" {
		t.Errorf("ObjectKey(image) = %q", got)
	}

	doc := DiscoveredFile{ProjectSlug: "104-garcia", Kind: KindDocument, Filename: "permit.pdf"}
	if got := ObjectKey(doc); got != "projects/104-garcia/documents/other/permit.pdf" {
		t.Errorf("ObjectKey(document) = %q", got)
	}
}

func TestSafeObjectName_HashesLongNames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".JPG"
	got := safeObjectName(long)
	if len(got) > maxObjectNameLen {
		t.Errorf("safeObjectName length = %d", len(got))
	}
	if !strings.HasSuffix(got, ".jpg") {
		t.Errorf("safeObjectName should keep the extension: %q", got)
	}
	if safeObjectName(long) != got {
		t.Error("safeObjectName should be deterministic")
	}
	if safeObjectName("a/b.jpg") != "a_b.jpg" {
		t.Errorf("safeObjectName should not emit separators")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"./a/b.jpg": "a/b.jpg",
		"/a/b.jpg":  "a/b.jpg",
		"a//b/./c":  "a/b/c",
		"kitchen":   "kitchen",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
