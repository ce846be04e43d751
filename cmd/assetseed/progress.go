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
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/assetseed/pkg/ingestion"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled indicates whether progress bars should be shown.
	// Disabled when --json, -q flags are used, or when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (always os.Stderr).
	Writer io.Writer

	// NoColor disables colored output in progress bars.
	NoColor bool
}

// NewProgressConfig creates a progress configuration based on global flags and TTY detection.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar creates a progress bar with consistent styling.
// Returns nil if progress is disabled, allowing callers to safely check for nil.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner creates an indeterminate progress spinner for operations
// where the total count is unknown. Returns nil if progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// uploadProgress drives a bar from the uploader's progress callback. The bar
// is created on the first callback, once the total is known.
type uploadProgress struct {
	cfg ProgressConfig
	bar *progressbar.ProgressBar
}

func newUploadProgress(cfg ProgressConfig) *uploadProgress {
	return &uploadProgress{cfg: cfg}
}

// Update implements ingestion.ProgressFunc.
func (p *uploadProgress) Update(done, total int, f ingestion.DiscoveredFile) {
	if p.bar == nil {
		p.bar = NewProgressBar(p.cfg, int64(total), stepDescription(ingestion.StepUpload))
		if p.bar == nil {
			return
		}
	}
	p.bar.Describe(uploadDescription(f))
	_ = p.bar.Set(done)
}

// uploadDescription names the project and stage of the file just handled.
func uploadDescription(f ingestion.DiscoveredFile) string {
	if f.ProjectID == "" {
		return stepDescription(ingestion.StepUpload)
	}
	return fmt.Sprintf("Uploading %s %s", f.ProjectID, ingestion.StageLabel(f.Stage))
}

// Finish clears the bar, if one was shown.
func (p *uploadProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// stepDescription returns the progress label for a pipeline step.
func stepDescription(step ingestion.Step) string {
	switch step {
	case ingestion.StepScan:
		return "Scanning assets"
	case ingestion.StepParse:
		return "Parsing metadata"
	case ingestion.StepUpload:
		return "Uploading files"
	case ingestion.StepWrite:
		return "Writing documents"
	default:
		return string(step)
	}
}
