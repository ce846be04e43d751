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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seedtest "github.com/kraklabs/assetseed/internal/testing"
)

func parseRows(t *testing.T, rows ...[]string) *ParseResult {
	t.Helper()
	result, err := ParseMetadata(strings.NewReader(seedtest.CSVString(t, seedtest.MetadataHeader, rows...)), ParseOptions{})
	require.NoError(t, err)
	return result
}

func validRow(number, name, category string, extra ...string) []string {
	pairs := append([]string{
		"number", number, "name", name, "category", category, "status", "completed",
		"summary", "s", "description", "d", "location.zipCode", "90210", "timeline.duration", "3 months",
	}, extra...)
	return seedtest.Row(pairs...)
}

func TestParseMetadata_GroupsRowsByProject(t *testing.T) {
	result := parseRows(t,
		validRow("187", "Smith Residence", "bathroom"),
		validRow("187", "Smith Residence", "kitchen"),
	)

	require.Empty(t, result.Errors)
	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, "187", rec.ID)
	assert.Equal(t, "187-smith-residence", rec.Slug)
	require.Len(t, rec.Components, 2)
	assert.Equal(t, "187-bathroom", rec.Components[0].ID)
	assert.Equal(t, "187-kitchen", rec.Components[1].ID)
	assert.Equal(t, ParseStats{RowsTotal: 2, RowsValid: 2, Projects: 1, Components: 2}, result.Stats)
}

func TestParseMetadata_ComponentCountEqualsRowCount(t *testing.T) {
	for n := 1; n <= 5; n++ {
		rows := make([][]string, n)
		for i := range rows {
			rows[i] = validRow("42", "Oak", "kitchen")
		}
		result := parseRows(t, rows...)
		require.Len(t, result.Records, 1)
		assert.Len(t, result.Records[0].Components, n)
	}
}

func TestParseMetadata_DuplicateComponentsGetSuffix(t *testing.T) {
	result := parseRows(t,
		validRow("187", "Smith", "kitchen"),
		validRow("187", "Smith", "kitchen"),
		validRow("187", "Smith", "kitchen", "subcategory", "island"),
		validRow("187", "Smith", "Kitchen"),
	)

	ids := []string{}
	for _, c := range result.Records[0].Components {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"187-kitchen", "187-kitchen-2", "187-kitchen-island", "187-kitchen-3"}, ids)
}

func TestParseMetadata_Deterministic(t *testing.T) {
	rows := [][]string{
		validRow("200", "Backyard Oasis", "ADU Addition", "subcategory", "pool"),
		validRow("187", "Smith", "bathroom"),
		validRow("200", "Backyard Oasis", "ADU Addition", "subcategory", "pool"),
	}
	first := parseRows(t, rows...)
	second := parseRows(t, rows...)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, "200-adu-addition-pool-2", first.Records[0].Components[1].ID)
}

func TestParseMetadata_RowValidation(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		message string
	}{
		{"missing name", seedtest.Row("number", "1", "category", "kitchen", "status", "completed"), `missing required field "name"`},
		{"missing status", seedtest.Row("number", "1", "name", "A", "category", "kitchen"), `missing required field "status"`},
		{"bad status", seedtest.Row("number", "1", "name", "A", "category", "kitchen", "status", "abandoned"), `invalid status "abandoned"`},
		{"bad number", seedtest.Row("number", "abc", "name", "A", "category", "kitchen", "status", "completed"), `project number "abc"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseRows(t, tt.row, validRow("2", "Good", "pool"))

			require.Len(t, result.Errors, 1)
			assert.Equal(t, CodeValidation, result.Errors[0].Code)
			assert.Equal(t, 2, result.Errors[0].Row)
			assert.Contains(t, result.Errors[0].Message, tt.message)

			// Other rows are unaffected.
			require.Len(t, result.Records, 1)
			assert.Equal(t, "2", result.Records[0].ID)
			assert.Equal(t, 1, result.Stats.RowsInvalid)
		})
	}
}

func TestParseMetadata_StatusNormalization(t *testing.T) {
	result := parseRows(t,
		seedtest.Row("number", "1", "name", "A", "category", "kitchen", "status", "In Progress"),
		seedtest.Row("number", "2", "name", "B", "category", "kitchen", "status", "ON_HOLD"),
	)
	require.Empty(t, result.Errors)
	assert.Equal(t, StatusInProgress, result.Records[0].Status)
	assert.Equal(t, StatusOnHold, result.Records[1].Status)
}

func TestParseMetadata_MultiValuedCells(t *testing.T) {
	result := parseRows(t, validRow("1", "A", "kitchen",
		"tags", " modern ;; open-plan ; ",
		"projectManagers", "Ana;Luis",
	))
	require.Len(t, result.Records, 1)
	assert.Equal(t, []string{"modern", "open-plan"}, result.Records[0].Tags)
	assert.Equal(t, []string{"Ana", "Luis"}, result.Records[0].Managers)
}

func TestParseMetadata_InconsistentProjectWarns(t *testing.T) {
	result := parseRows(t,
		validRow("187", "Smith Residence", "bathroom"),
		validRow("187", "Smith House", "kitchen"),
	)

	require.Empty(t, result.Errors)
	assert.Equal(t, "Smith Residence", result.Records[0].Name)

	var found bool
	for _, w := range result.Warnings {
		if w.Code == CodeInconsistentProject {
			found = true
			assert.Equal(t, 3, w.Row)
			assert.Contains(t, w.Message, "Smith House")
		}
	}
	assert.True(t, found, "expected an inconsistent_project warning")
}

func TestParseMetadata_BlankProjectFieldWarns(t *testing.T) {
	result := parseRows(t,
		validRow("187", "Smith Residence", "bathroom"),
		seedtest.Row("number", "187", "name", "Smith Residence", "category", "kitchen", "status", "completed",
			"description", "d", "location.zipCode", "90210", "timeline.duration", "3 months"),
	)

	require.Empty(t, result.Errors)
	assert.Equal(t, "s", result.Records[0].Summary)

	var inconsistent []Issue
	for _, w := range result.Warnings {
		if w.Code == CodeInconsistentProject {
			inconsistent = append(inconsistent, w)
		}
	}
	require.Len(t, inconsistent, 1)
	assert.Equal(t, 3, inconsistent[0].Row)
	assert.Contains(t, inconsistent[0].Message, "summary is empty but row 2")
}

func TestParseMetadata_MissingOptionalWarns(t *testing.T) {
	result := parseRows(t, seedtest.Row("number", "1", "name", "A", "category", "kitchen", "status", "completed"))

	require.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, CodeMissingOptional, result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Message, "summary")
	assert.Contains(t, result.Warnings[0].Message, "timeline.duration")
}

func TestParseMetadata_InvalidFeaturedWarns(t *testing.T) {
	result := parseRows(t,
		validRow("1", "A", "kitchen", "isFeatured", "yes"),
		validRow("2", "B", "kitchen", "isFeatured", "maybe"),
	)
	assert.True(t, result.Records[0].Featured)
	assert.False(t, result.Records[1].Featured)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, CodeInvalidValue, result.Warnings[0].Code)
}

func TestParseMetadata_HeaderHandling(t *testing.T) {
	csv := "\ufeffNumber,NAME,category,status,extra\n1,A,kitchen,completed,x\n"
	result, err := ParseMetadata(strings.NewReader(csv), ParseOptions{})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	codes := map[IssueCode]int{}
	for _, w := range result.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 1, codes[CodeUnknownColumn])
	assert.Equal(t, len(recommendedColumns), codes[CodeMissingOptional])
}

func TestParseMetadata_FatalInput(t *testing.T) {
	_, err := ParseMetadata(strings.NewReader(""), ParseOptions{})
	require.Error(t, err)

	_, err = ParseMetadata(strings.NewReader("number,name\n1,A\n"), ParseOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))
	assert.Contains(t, err.Error(), "category, status")

	_, err = ParseMetadataFile("/nonexistent/projects.csv", ParseOptions{})
	require.Error(t, err)
}

func TestParseMetadata_SkipsBlankRows(t *testing.T) {
	result := parseRows(t, validRow("1", "A", "kitchen"), make([]string, len(seedtest.MetadataHeader)))
	assert.Equal(t, 1, result.Stats.RowsTotal)
	assert.Empty(t, result.Errors)
}

func TestComponentRecord_Resolved(t *testing.T) {
	project := &ProjectRecord{Name: "Smith", Summary: "Full remodel", Description: "desc", Scope: "scope"}
	c := ComponentRecord{ID: "187-kitchen", Category: "kitchen", Summary: "New island"}

	r := c.Resolved(project)
	assert.Equal(t, "Smith", r.Name)
	assert.Equal(t, "New island", r.Summary)
	assert.Equal(t, "desc", r.Description)

	// The record itself is untouched.
	assert.Empty(t, c.Name)
	assert.Equal(t, "Smith", c.Resolved(project).Name)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{}, SplitList(""))
	assert.Equal(t, []string{"a"}, SplitList(" a ; ;"))
	assert.Equal(t, []string{"a b", "c"}, SplitList("a b;c"))
}
