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
	"strings"
	"testing"
)

func TestDocSoftLimitBytes(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int64
	}{
		{"default", "", DefaultDocSoftLimitBytes},
		{"override", "2048", 2048},
		{"invalid", "lots", DefaultDocSoftLimitBytes},
		{"negative", "-1", DefaultDocSoftLimitBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(DocSoftLimitEnv, tt.env)
			if got := DocSoftLimitBytes(); got != tt.want {
				t.Errorf("DocSoftLimitBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateDocumentSize(t *testing.T) {
	t.Setenv(DocSoftLimitEnv, "10")

	if r := ValidateDocumentSize([]byte("0123456789"), 0); !r.OK {
		t.Errorf("10 bytes should pass: %s", r.Message)
	}
	if r := ValidateDocumentSize([]byte("0123456789a"), 0); r.OK {
		t.Error("11 bytes should fail")
	}
	r := ValidateDocumentSize([]byte("0123456789"), 4)
	if r.OK {
		t.Error("explicit limit should win over the env limit")
	}
	if want := "encoded size 10 bytes exceeds the 4 byte limit"; r.Message != want {
		t.Errorf("Message = %q, want %q", r.Message, want)
	}
}

func TestValidateObjectKey(t *testing.T) {
	if r := ValidateObjectKey("projects/1-a/photos/after/a.jpg"); !r.OK {
		t.Errorf("valid key rejected: %s", r.Message)
	}
	if r := ValidateObjectKey(""); r.OK {
		t.Error("empty key accepted")
	}
	if r := ValidateObjectKey(strings.Repeat("k", MaxObjectKeyBytes+1)); r.OK {
		t.Error("long key accepted")
	}
}
