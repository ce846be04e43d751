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
	"strings"

	"github.com/kraklabs/assetseed/internal/ui"
	"github.com/kraklabs/assetseed/pkg/ingestion"
)

// renderReport formats a run summary for the terminal: a header line, the
// counts table, then every error and warning.
func renderReport(s *ingestion.RunSummary) string {
	var b strings.Builder

	mode := s.Environment
	if s.DryRun {
		mode += ", dry run"
	}
	fmt.Fprintf(&b, "%s %s (%s)\n", ui.Label("Run"), s.RunID, mode)

	status := ui.Green.Sprint("ok")
	switch {
	case s.Aborted:
		status = ui.Red.Sprintf("aborted during %s", s.LastStep)
	case !s.OK():
		status = ui.Red.Sprintf("finished with %d error(s)", len(s.Errors))
	}
	fmt.Fprintf(&b, "%s %s in %s\n\n", ui.Label("Result:"), status, ui.Duration(s.Elapsed))

	c := s.Counts
	rows := [][]string{
		{"Metadata rows", ui.Count(c.RowsTotal), fmt.Sprintf("%d valid, %d invalid", c.RowsValid, c.RowsInvalid)},
		{"Projects", ui.Count(c.Projects), fmt.Sprintf("%d components", c.Components)},
		{"Files scanned", ui.Count(c.Scanned), ""},
		{"Uploaded", ui.Count(c.Uploaded), ui.Bytes(c.Bytes)},
		{"Skipped", ui.Count(c.Skipped), "already in storage"},
		{"Failed", ui.Count(c.Failed), ""},
		{"Orphaned", ui.Count(c.Orphaned), "no matching metadata"},
		{"Documents built", ui.Count(c.DocumentsBuilt), fmt.Sprintf("%d invalid", c.DocumentsInvalid)},
		{"Documents written", ui.Count(c.DocumentsWritten), fmt.Sprintf("%d failed", c.DocumentsFailed)},
	}
	if c.DocumentsCleared > 0 {
		rows = append(rows, []string{"Documents cleared", ui.Count(c.DocumentsCleared), ""})
	}
	b.WriteString(ui.Table([]string{"Stage", "Count", "Detail"}, rows, ui.AlignLeft, ui.AlignRight))
	b.WriteString("\n")

	writeIssues(&b, "Errors", ui.SeverityError, s.Errors)
	writeIssues(&b, "Warnings", ui.SeverityWarning, s.Warnings)
	return b.String()
}

func writeIssues(b *strings.Builder, title string, sev ui.Severity, issues []ingestion.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", ui.Bold.Sprintf("%s (%d):", title, len(issues)))
	for _, issue := range issues {
		fmt.Fprintf(b, "  %s\n", ui.Line(sev, issue.String()))
	}
}
