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
	"log/slog"
	"os"
	"testing"
)

func TestGlobalFlagsLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		globals GlobalFlags
		debug   bool
		want    slog.Level
	}{
		{"default", GlobalFlags{}, false, slog.LevelInfo},
		{"debug flag", GlobalFlags{}, true, slog.LevelDebug},
		{"verbose", GlobalFlags{Verbose: 1}, false, slog.LevelDebug},
		{"quiet", GlobalFlags{Quiet: true}, false, slog.LevelWarn},
		{"debug beats quiet", GlobalFlags{Quiet: true}, true, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.globals.logLevel(tt.debug); got != tt.want {
				t.Errorf("logLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobalFlagsLogWriter(t *testing.T) {
	if w := (GlobalFlags{JSON: true}).logWriter(); w != os.Stderr {
		t.Error("JSON mode should log to stderr")
	}
	if w := (GlobalFlags{}).logWriter(); w != os.Stdout {
		t.Error("text mode should log to stdout")
	}
}
