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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Metadata columns.
const (
	ColNumber               = "number"
	ColName                 = "name"
	ColCategory             = "category"
	ColStatus               = "status"
	ColSubcategory          = "subcategory"
	ColComponentName        = "componentName"
	ColIsFeatured           = "isFeatured"
	ColProjectManagers      = "projectManagers"
	ColSummary              = "summary"
	ColDescription          = "description"
	ColScope                = "scope"
	ColZipCode              = "location.zipCode"
	ColNeighborhood         = "location.neighborhood"
	ColDuration             = "timeline.duration"
	ColTags                 = "tags"
	ColComponentSummary     = "componentSummary"
	ColComponentDescription = "componentDescription"
	ColComponentScope       = "componentScope"
	ColThumbnail            = "thumbnail"
)

// ListSeparator separates values in multi-valued cells.
const ListSeparator = ";"

var requiredColumns = []string{ColNumber, ColName, ColCategory, ColStatus}

var optionalColumns = []string{
	ColSubcategory, ColComponentName, ColIsFeatured, ColProjectManagers,
	ColSummary, ColDescription, ColScope, ColZipCode, ColNeighborhood,
	ColDuration, ColTags, ColComponentSummary, ColComponentDescription,
	ColComponentScope, ColThumbnail,
}

// recommendedColumns produce a warning when missing or empty.
var recommendedColumns = []string{ColSummary, ColDescription, ColZipCode, ColDuration}

// Project statuses.
const (
	StatusCompleted  = "completed"
	StatusInProgress = "in-progress"
	StatusPlanning   = "planning"
	StatusOnHold     = "on-hold"
)

var validStatuses = []string{StatusCompleted, StatusInProgress, StatusPlanning, StatusOnHold}

// ErrMissingColumns is returned when the header lacks required columns.
var ErrMissingColumns = errors.New("metadata header is missing required columns")

// ParseOptions configures ParseMetadata.
type ParseOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// ParseStats counts parsed rows.
type ParseStats struct {
	RowsTotal   int
	RowsValid   int
	RowsInvalid int
	Projects    int
	Components  int
}

// ParseResult is the outcome of parsing a metadata table. Records only
// contains rows that validated.
type ParseResult struct {
	Records  []ProjectRecord
	Errors   []Issue
	Warnings []Issue
	Stats    ParseStats
}

// Project returns the record with the given id, or nil.
func (r *ParseResult) Project(id string) *ProjectRecord {
	for i := range r.Records {
		if r.Records[i].ID == id {
			return &r.Records[i]
		}
	}
	return nil
}

// ParseMetadataFile opens path and parses it.
func ParseMetadataFile(path string, opts ParseOptions) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseMetadata(f, opts)
}

// ParseMetadata reads a metadata table. It only fails on unreadable input or
// a header without the required columns; row problems are reported in the
// result.
func ParseMetadata(r io.Reader, opts ParseOptions) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("metadata is empty")
		}
		return nil, fmt.Errorf("read metadata header: %w", err)
	}

	result := &ParseResult{Records: []ProjectRecord{}, Errors: []Issue{}, Warnings: []Issue{}}
	cols, err := indexHeader(header, result)
	if err != nil {
		return nil, err
	}

	p := &metadataParser{
		cols:        cols,
		result:      result,
		byID:        make(map[string]int),
		occurrences: make(map[string]int),
	}

	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Stats.RowsTotal++
				result.Stats.RowsInvalid++
				result.Errors = append(result.Errors, Issue{
					Step: StepParse, Code: CodeValidation, Row: row,
					Message: fmt.Sprintf("malformed row: %v", parseErr.Err),
				})
				continue
			}
			return nil, fmt.Errorf("read metadata row %d: %w", row, err)
		}
		if blankRecord(record) {
			continue
		}
		p.addRow(row, record)
	}

	result.Stats.Projects = len(result.Records)
	for _, rec := range result.Records {
		result.Stats.Components += len(rec.Components)
	}
	return result, nil
}

type columns map[string]int

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func indexHeader(header []string, result *ParseResult) (columns, error) {
	known := make(map[string]string, len(requiredColumns)+len(optionalColumns))
	for _, name := range append(append([]string(nil), requiredColumns...), optionalColumns...) {
		known[strings.ToLower(name)] = name
	}

	cols := make(columns, len(header))
	var unknown []string
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if name == "" {
			continue
		}
		canonical, ok := known[strings.ToLower(name)]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if _, dup := cols[canonical]; dup {
			result.Warnings = append(result.Warnings, Issue{
				Step: StepParse, Code: CodeUnknownColumn, Row: 1,
				Message: fmt.Sprintf("duplicate column %q, using the first one", name),
			})
			continue
		}
		cols[canonical] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if !cols.has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	if len(unknown) > 0 {
		result.Warnings = append(result.Warnings, Issue{
			Step: StepParse, Code: CodeUnknownColumn, Row: 1,
			Message: fmt.Sprintf("ignoring unknown columns: %s", strings.Join(unknown, ", ")),
		})
	}
	for _, name := range recommendedColumns {
		if !cols.has(name) {
			result.Warnings = append(result.Warnings, Issue{
				Step: StepParse, Code: CodeMissingOptional, Row: 1,
				Message: fmt.Sprintf("optional column %q is not present", name),
			})
		}
	}
	return cols, nil
}

type metadataParser struct {
	cols   columns
	result *ParseResult

	// byID maps a project id to its index in result.Records.
	byID map[string]int

	// occurrences counts components per project, category and subcategory.
	occurrences map[string]int
}

func (p *metadataParser) addRow(row int, record []string) {
	res := p.result
	res.Stats.RowsTotal++
	get := func(name string) string { return p.cols.get(record, name) }

	id := get(ColNumber)
	rowErrors := p.validateRow(row, id, get)
	if len(rowErrors) > 0 {
		res.Stats.RowsInvalid++
		res.Errors = append(res.Errors, rowErrors...)
		return
	}
	res.Stats.RowsValid++

	status, _ := NormalizeStatus(get(ColStatus))
	featured := false
	if raw := get(ColIsFeatured); raw != "" {
		v, ok := parseBool(raw)
		if !ok {
			res.Warnings = append(res.Warnings, Issue{
				Step: StepParse, Code: CodeInvalidValue, Row: row, ProjectID: id,
				Message: fmt.Sprintf("isFeatured %q is not a boolean, using false", raw),
			})
		}
		featured = v
	}

	var missing []string
	for _, name := range recommendedColumns {
		if p.cols.has(name) && get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		res.Warnings = append(res.Warnings, Issue{
			Step: StepParse, Code: CodeMissingOptional, Row: row, ProjectID: id,
			Message: "missing optional fields: " + strings.Join(missing, ", "),
		})
	}

	idx, seen := p.byID[id]
	if !seen {
		res.Records = append(res.Records, ProjectRecord{
			ID:          id,
			Slug:        ProjectSlug(id, get(ColName)),
			Name:        get(ColName),
			Category:    Slugify(get(ColCategory)),
			Subcategory: Slugify(get(ColSubcategory)),
			Status:      status,
			Summary:     get(ColSummary),
			Description: get(ColDescription),
			Scope:       get(ColScope),
			Location:    Location{ZipCode: get(ColZipCode), Neighborhood: get(ColNeighborhood)},
			Timeline:    Timeline{Duration: get(ColDuration)},
			Tags:        SplitList(get(ColTags)),
			Managers:    SplitList(get(ColProjectManagers)),
			Featured:    featured,
			Components:  []ComponentRecord{},
			Row:         row,
		})
		idx = len(res.Records) - 1
		p.byID[id] = idx
	} else {
		p.checkConsistency(row, &res.Records[idx], map[string]string{
			ColName:        get(ColName),
			ColStatus:      status,
			ColSummary:     get(ColSummary),
			ColDescription: get(ColDescription),
		})
	}

	category := get(ColCategory)
	subcategory := get(ColSubcategory)
	occKey := componentKey(id, Slugify(category), Slugify(subcategory))
	p.occurrences[occKey]++

	rec := &res.Records[idx]
	rec.Components = append(rec.Components, ComponentRecord{
		ID:          ComponentID(id, category, subcategory, p.occurrences[occKey]),
		Category:    Slugify(category),
		Subcategory: Slugify(subcategory),
		Name:        get(ColComponentName),
		Summary:     get(ColComponentSummary),
		Description: get(ColComponentDescription),
		Scope:       get(ColComponentScope),
		Thumbnail:   get(ColThumbnail),
		Row:         row,
	})
}

func (p *metadataParser) validateRow(row int, id string, get func(string) string) []Issue {
	var issues []Issue
	fail := func(format string, args ...any) {
		issues = append(issues, Issue{
			Step: StepParse, Code: CodeValidation, Row: row, ProjectID: id,
			Message: fmt.Sprintf(format, args...),
		})
	}

	for _, name := range requiredColumns {
		if get(name) == "" {
			fail("missing required field %q", name)
		}
	}
	if id != "" && !projectIDPattern.MatchString(id) {
		fail("project number %q must start with a digit and contain only letters and digits", id)
	}
	if raw := get(ColCategory); raw != "" && Slugify(raw) == "" {
		fail("category %q has no usable characters", raw)
	}
	if raw := get(ColStatus); raw != "" {
		if _, ok := NormalizeStatus(raw); !ok {
			fail("invalid status %q (want one of %s)", raw, strings.Join(validStatuses, ", "))
		}
	}
	return issues
}

// checkConsistency warns when a later row disagrees with the project-level
// values taken from the first row. A blank cell where the first row has a
// value counts as a disagreement.
func (p *metadataParser) checkConsistency(row int, rec *ProjectRecord, values map[string]string) {
	current := map[string]string{
		ColName:        rec.Name,
		ColStatus:      rec.Status,
		ColSummary:     rec.Summary,
		ColDescription: rec.Description,
	}
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		got := values[field]
		if got == current[field] {
			continue
		}
		msg := fmt.Sprintf("%s %q differs from row %d (%q); keeping the first value", field, got, rec.Row, current[field])
		if got == "" {
			msg = fmt.Sprintf("%s is empty but row %d has %q; keeping the first value", field, rec.Row, current[field])
		}
		p.result.Warnings = append(p.result.Warnings, Issue{
			Step: StepParse, Code: CodeInconsistentProject, Row: row, ProjectID: rec.ID, Message: msg,
		})
	}
}

// NormalizeStatus lower-cases a status and maps spaces and underscores to
// dashes. ok is false when the result is not a known status.
func NormalizeStatus(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	for _, v := range validStatuses {
		if s == v {
			return s, true
		}
	}
	return s, false
}

// SplitList splits a multi-valued cell on ListSeparator, trimming whitespace
// and dropping empty segments. It never returns nil.
func SplitList(cell string) []string {
	out := []string{}
	for _, part := range strings.Split(cell, ListSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return v, true
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
