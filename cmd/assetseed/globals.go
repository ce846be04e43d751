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
	"io"
	"log/slog"
	"os"
)

// GlobalFlags are the flags accepted before the command name.
type GlobalFlags struct {
	// JSON switches command output to JSON. It also sets Quiet.
	JSON bool

	// Quiet disables progress bars and lowers logging to warnings.
	Quiet bool

	// NoColor disables ANSI colors.
	NoColor bool

	// Verbose is the number of -v flags.
	Verbose int
}

// logLevel picks the slog level for the flags. debug comes from the
// command's own --debug flag.
func (g GlobalFlags) logLevel(debug bool) slog.Level {
	switch {
	case debug || g.Verbose > 0:
		return slog.LevelDebug
	case g.Quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// logWriter keeps stdout clean for JSON output.
func (g GlobalFlags) logWriter() io.Writer {
	if g.JSON {
		return os.Stderr
	}
	return os.Stdout
}

// newLogger builds the text logger used by every command and installs it
// as the slog default.
func newLogger(g GlobalFlags, debug bool) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(g.logWriter(), &slog.HandlerOptions{
		Level: g.logLevel(debug),
	}))
	slog.SetDefault(logger)
	return logger
}
