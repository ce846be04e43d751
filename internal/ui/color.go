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

// Package ui renders assetseed output for a terminal: colored status lines,
// tables and human-friendly numbers.
//
// Colors follow fatih/color: they switch off when stdout is not a TTY, when
// NO_COLOR is set, or after InitColors(true).
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Shared color instances. They read color.NoColor on every call.
var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Output is where the Print helpers write. Tests may swap it.
var Output io.Writer = os.Stdout

// InitColors forces colors off when noColor is set. Call it once after flag
// parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Severity marks a status line.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) style() (*color.Color, string) {
	switch s {
	case SeveritySuccess:
		return Green, "✓"
	case SeverityWarning:
		return Yellow, "⚠"
	case SeverityError:
		return Red, "✗"
	default:
		return Cyan, "ℹ"
	}
}

// Line returns msg prefixed with the severity symbol, colored.
func Line(sev Severity, msg string) string {
	c, symbol := sev.style()
	return c.Sprint(symbol + " " + msg)
}

// Successf prints "✓ ..." in green.
func Successf(format string, args ...any) {
	fmt.Fprintln(Output, Line(SeveritySuccess, fmt.Sprintf(format, args...)))
}

// Warning prints "⚠ msg" in yellow.
func Warning(msg string) {
	fmt.Fprintln(Output, Line(SeverityWarning, msg))
}

// Errorf prints "✗ ..." in red.
func Errorf(format string, args ...any) {
	fmt.Fprintln(Output, Line(SeverityError, fmt.Sprintf(format, args...)))
}

// Infof prints "ℹ ..." in cyan.
func Infof(format string, args ...any) {
	fmt.Fprintln(Output, Line(SeverityInfo, fmt.Sprintf(format, args...)))
}

// Header prints a bold title underlined with '='.
//
//	assetseed status
//	================
func Header(text string) {
	fmt.Fprintln(Output, Bold.Sprint(text))
	fmt.Fprintln(Output, strings.Repeat("=", len([]rune(text))))
}

// Label returns text in bold.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns text dimmed, for paths and secondary details.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a count in cyan.
func CountText(count int) string {
	return Cyan.Sprint(Count(count))
}
