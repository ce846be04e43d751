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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step names one stage of an ingestion run.
type Step string

const (
	StepScan     Step = "scan"
	StepParse    Step = "parse"
	StepUpload   Step = "upload"
	StepBuild    Step = "build"
	StepValidate Step = "validate"
	StepWrite    Step = "write"
	StepReport   Step = "report"
)

// Steps lists the stages in execution order.
var Steps = []Step{StepScan, StepParse, StepUpload, StepBuild, StepValidate, StepWrite, StepReport}

// IssueCode classifies warnings and errors.
type IssueCode string

const (
	// Errors.
	CodeValidation IssueCode = "validation"
	CodeScan       IssueCode = "scan"
	CodeUpload     IssueCode = "upload"
	CodeDocument   IssueCode = "document"
	CodeOptions    IssueCode = "options"

	// Warnings.
	CodeMissingOptional     IssueCode = "missing_optional"
	CodeInvalidValue        IssueCode = "invalid_value"
	CodeUnknownColumn       IssueCode = "unknown_column"
	CodeInconsistentProject IssueCode = "inconsistent_project"
	CodeLargeFile           IssueCode = "large_file"
	CodeUnparsedFolder      IssueCode = "unparsed_folder"
	CodeOrphanedFile        IssueCode = "orphaned_file"
	CodeStaleObject         IssueCode = "stale_object"
	CodeKeyCollision        IssueCode = "key_collision"
	CodeShadowedComponent   IssueCode = "shadowed_component"
	CodeDryRun              IssueCode = "dry_run"
)

// Issue is a warning or error with enough context to act on it.
type Issue struct {
	Step      Step      `json:"stage"`
	Code      IssueCode `json:"code"`
	Row       int       `json:"row,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	Path      string    `json:"path,omitempty"`
	Message   string    `json:"message"`
}

// String renders the issue on one line, e.g.
// "[parse] row 4, project 187: missing required field \"status\"".
func (i Issue) String() string {
	var ctx []string
	if i.Row > 0 {
		ctx = append(ctx, fmt.Sprintf("row %d", i.Row))
	}
	if i.ProjectID != "" {
		ctx = append(ctx, "project "+i.ProjectID)
	}
	if i.Path != "" {
		ctx = append(ctx, i.Path)
	}
	prefix := "[" + string(i.Step) + "]"
	if len(ctx) > 0 {
		prefix += " " + strings.Join(ctx, ", ")
	}
	return prefix + ": " + i.Message
}

// Counts are the aggregate numbers of a run.
type Counts struct {
	RowsTotal   int `json:"rowsTotal"`
	RowsValid   int `json:"rowsValid"`
	RowsInvalid int `json:"rowsInvalid"`
	Projects    int `json:"projects"`
	Components  int `json:"components"`

	Scanned  int   `json:"scanned"`
	Uploaded int   `json:"uploaded"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Bytes    int64 `json:"bytesTransferred"`
	Orphaned int   `json:"orphaned"`

	DocumentsBuilt   int `json:"documentsBuilt"`
	DocumentsInvalid int `json:"documentsInvalid"`
	DocumentsWritten int `json:"documentsWritten"`
	DocumentsFailed  int `json:"documentsFailed"`
	DocumentsCleared int `json:"documentsCleared"`
}

// RunSummary is the final report of a run. It is produced even when the run
// aborts early.
type RunSummary struct {
	RunID       string        `json:"runId"`
	Environment string        `json:"environment"`
	DryRun      bool          `json:"dryRun"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Elapsed     time.Duration `json:"elapsedNs"`

	// LastStep is the last stage that started.
	LastStep Step `json:"lastStep"`
	Aborted  bool `json:"aborted"`

	Counts   Counts  `json:"counts"`
	Warnings []Issue `json:"warnings"`
	Errors   []Issue `json:"errors"`
}

// ExitCode returns 0 when no error was recorded and 1 otherwise.
func (s *RunSummary) ExitCode() int {
	if s == nil || len(s.Errors) > 0 {
		return 1
	}
	return 0
}

// OK reports whether the run recorded no errors.
func (s *RunSummary) OK() bool { return s.ExitCode() == 0 }

// SummaryBuilder accumulates a RunSummary. It is safe for concurrent use.
type SummaryBuilder struct {
	mu       sync.Mutex
	summary  RunSummary
	now      func() time.Time
	finished bool
}

// NewSummaryBuilder starts a summary with a fresh run id.
func NewSummaryBuilder(environment string, dryRun bool) *SummaryBuilder {
	return newSummaryBuilder(environment, dryRun, time.Now)
}

func newSummaryBuilder(environment string, dryRun bool, now func() time.Time) *SummaryBuilder {
	return &SummaryBuilder{
		now: now,
		summary: RunSummary{
			RunID:       uuid.NewString(),
			Environment: environment,
			DryRun:      dryRun,
			StartedAt:   now().UTC(),
			Warnings:    []Issue{},
			Errors:      []Issue{},
		},
	}
}

// RunID returns the run identifier.
func (b *SummaryBuilder) RunID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary.RunID
}

// Enter records that a stage started.
func (b *SummaryBuilder) Enter(step Step) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.LastStep = step
}

// Warn appends warnings.
func (b *SummaryBuilder) Warn(issues ...Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.summary.Warnings = append(b.summary.Warnings, issues...)
}

// Error appends errors.
func (b *SummaryBuilder) Error(issues ...Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.summary.Errors = append(b.summary.Errors, issues...)
}

// Abort records a fatal error and marks the run as aborted.
func (b *SummaryBuilder) Abort(issue Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.summary.Aborted = true
	b.summary.Errors = append(b.summary.Errors, issue)
}

// Update mutates the counts under the builder's lock.
func (b *SummaryBuilder) Update(fn func(c *Counts)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	fn(&b.summary.Counts)
}

// Finish stamps the end time and returns the summary. Later calls return the
// same values and further mutations are ignored.
func (b *SummaryBuilder) Finish() *RunSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.finished {
		b.finished = true
		b.summary.FinishedAt = b.now().UTC()
		b.summary.Elapsed = b.summary.FinishedAt.Sub(b.summary.StartedAt)
	}
	out := b.summary
	out.Warnings = append(make([]Issue, 0, len(b.summary.Warnings)), b.summary.Warnings...)
	out.Errors = append(make([]Issue, 0, len(b.summary.Errors)), b.summary.Errors...)
	return &out
}
