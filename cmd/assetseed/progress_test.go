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
	"bytes"
	"os"
	"testing"

	"github.com/kraklabs/assetseed/pkg/ingestion"
)

func TestNewProgressConfig(t *testing.T) {
	tests := []struct {
		name            string
		globals         GlobalFlags
		expectedEnabled bool
		expectedNoColor bool
	}{
		{
			name:            "default flags - progress disabled in test (not a TTY)",
			globals:         GlobalFlags{},
			expectedEnabled: false,
		},
		{
			name:            "quiet mode - progress disabled",
			globals:         GlobalFlags{Quiet: true},
			expectedEnabled: false,
		},
		{
			name:            "JSON mode - progress disabled (quiet auto-set)",
			globals:         GlobalFlags{JSON: true, Quiet: true},
			expectedEnabled: false,
		},
		{
			name:            "noColor flag propagates to config",
			globals:         GlobalFlags{NoColor: true},
			expectedEnabled: false,
			expectedNoColor: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewProgressConfig(tt.globals)
			if cfg.Enabled != tt.expectedEnabled {
				t.Errorf("NewProgressConfig().Enabled = %v, want %v", cfg.Enabled, tt.expectedEnabled)
			}
			if cfg.NoColor != tt.expectedNoColor {
				t.Errorf("NewProgressConfig().NoColor = %v, want %v", cfg.NoColor, tt.expectedNoColor)
			}
			if cfg.Writer != os.Stderr {
				t.Error("NewProgressConfig().Writer should be os.Stderr")
			}
		})
	}
}

func TestNewProgressBar(t *testing.T) {
	t.Run("disabled config returns nil", func(t *testing.T) {
		if bar := NewProgressBar(ProgressConfig{Enabled: false}, 100, "Test"); bar != nil {
			t.Error("NewProgressBar() should return nil when disabled")
		}
	})

	t.Run("enabled config returns usable bar", func(t *testing.T) {
		var buf bytes.Buffer
		bar := NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf}, 100, "Test")
		if bar == nil {
			t.Fatal("NewProgressBar() should return non-nil when enabled")
		}
		_ = bar.Set(50)
		_ = bar.Finish()
	})
}

func TestNewSpinner(t *testing.T) {
	if spinner := NewSpinner(ProgressConfig{Enabled: false}, "Test"); spinner != nil {
		t.Error("NewSpinner() should return nil when disabled")
	}

	var buf bytes.Buffer
	spinner := NewSpinner(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, "Test")
	if spinner == nil {
		t.Fatal("NewSpinner() should return non-nil when enabled")
	}
	_ = spinner.Add(1)
	_ = spinner.Finish()
}

func TestUploadProgress(t *testing.T) {
	t.Run("disabled never creates a bar", func(t *testing.T) {
		p := newUploadProgress(ProgressConfig{Enabled: false})
		p.Update(1, 3, ingestion.DiscoveredFile{})
		p.Update(2, 3, ingestion.DiscoveredFile{})
		if p.bar != nil {
			t.Error("bar should stay nil when progress is disabled")
		}
		p.Finish()
	})

	t.Run("enabled creates the bar on first update", func(t *testing.T) {
		var buf bytes.Buffer
		p := newUploadProgress(ProgressConfig{Enabled: true, Writer: &buf})
		if p.bar != nil {
			t.Fatal("bar should not exist before the first update")
		}
		p.Update(1, 2, ingestion.DiscoveredFile{Filename: "a.jpg"})
		if p.bar == nil {
			t.Fatal("bar should exist after the first update")
		}
		if got := p.bar.GetMax64(); got != 2 {
			t.Errorf("bar max = %d, want 2", got)
		}
		p.Update(2, 2, ingestion.DiscoveredFile{Filename: "b.jpg"})
		p.Finish()
	})
}

func TestUploadDescription(t *testing.T) {
	tests := []struct {
		file     ingestion.DiscoveredFile
		expected string
	}{
		{ingestion.DiscoveredFile{ProjectID: "187", Stage: ingestion.StageInProgress}, "Uploading 187 In Progress"},
		{ingestion.DiscoveredFile{ProjectID: "205", Stage: ingestion.StageAfter}, "Uploading 205 After"},
		{ingestion.DiscoveredFile{}, "Uploading files"},
	}

	for _, tt := range tests {
		if got := uploadDescription(tt.file); got != tt.expected {
			t.Errorf("uploadDescription(%+v) = %q, want %q", tt.file, got, tt.expected)
		}
	}
}

func TestStepDescription(t *testing.T) {
	tests := []struct {
		step     ingestion.Step
		expected string
	}{
		{ingestion.StepScan, "Scanning assets"},
		{ingestion.StepParse, "Parsing metadata"},
		{ingestion.StepUpload, "Uploading files"},
		{ingestion.StepWrite, "Writing documents"},
		{ingestion.StepBuild, "build"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			if got := stepDescription(tt.step); got != tt.expected {
				t.Errorf("stepDescription(%q) = %q, want %q", tt.step, got, tt.expected)
			}
		})
	}
}
