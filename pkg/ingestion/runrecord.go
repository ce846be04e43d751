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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/assetseed/internal/output"
)

// lastRunFile is the name of the most recent summary inside a record dir.
const lastRunFile = "last-run.json"

// RunRecordManager persists run summaries so later commands can report on
// the last run.
type RunRecordManager struct {
	dir string
}

// NewRunRecordManager creates a manager writing into dir.
func NewRunRecordManager(dir string) *RunRecordManager {
	return &RunRecordManager{dir: dir}
}

// Load returns the last saved summary, or nil when none exists.
func (m *RunRecordManager) Load() (*RunSummary, error) {
	data, err := os.ReadFile(m.path(lastRunFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run record: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	if summary.Warnings == nil {
		summary.Warnings = []Issue{}
	}
	if summary.Errors == nil {
		summary.Errors = []Issue{}
	}
	return &summary, nil
}

// Save writes the summary as the last run and as run-{id}.json.
func (m *RunRecordManager) Save(summary *RunSummary) error {
	if summary == nil {
		return fmt.Errorf("nil summary")
	}
	for _, name := range []string{"run-" + summary.RunID + ".json", lastRunFile} {
		if err := output.JSONFile(m.path(name), summary); err != nil {
			return fmt.Errorf("save run record: %w", err)
		}
	}
	return nil
}

// Clear removes the last run record.
func (m *RunRecordManager) Clear() error {
	if err := os.Remove(m.path(lastRunFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run record: %w", err)
	}
	return nil
}

func (m *RunRecordManager) path(name string) string {
	if m.dir != "" {
		return filepath.Join(m.dir, name)
	}
	return name
}
