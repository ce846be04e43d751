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

// Package main implements the assetseed CLI, which ingests a project
// metadata CSV and a local photo/document tree into object storage and a
// document store.
//
// Usage:
//
//	assetseed init                 Create .assetseed/project.yaml
//	assetseed ingest [options]     Run the ingestion pipeline
//	assetseed status [--json]      Show the last run and document counts
//	assetseed clear --yes          Delete every stored project document
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kraklabs/assetseed/internal/bootstrap"
	"github.com/kraklabs/assetseed/internal/errors"
	"github.com/kraklabs/assetseed/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// main parses global flags and dispatches to the command handlers.
//
// Global flags:
//   - --config: Path to .assetseed/project.yaml
//   - --json: Machine-readable output (implies --quiet)
//   - -q/--quiet: Suppress progress output
//   - --no-color: Disable colored output
//   - -v/--verbose: Increase log verbosity (repeatable)
//   - --version: Display version information and exit
func main() {
	var (
		showVersion bool
		configPath  string
		globals     GlobalFlags
	)

	pflag.CommandLine.SetInterspersed(false)
	pflag.BoolVar(&showVersion, "version", false, "Show version and exit")
	pflag.StringVar(&configPath, "config", "", "Path to .assetseed/project.yaml (default: search upward from ./)")
	pflag.BoolVar(&globals.JSON, "json", false, "Output as JSON (implies --quiet)")
	pflag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	pflag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	pflag.CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity (-v, -vv)")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, `assetseed - project asset ingestion

assetseed reads a project metadata CSV and a local tree of photos and
documents, uploads every file exactly once to S3-compatible storage and
writes one composite document per project to the document store.

Usage:
  assetseed [global options] <command> [options]

Commands:
  init          Create .assetseed/project.yaml configuration
  ingest        Run the ingestion pipeline
  status        Show the last run summary and stored document count
  clear         Delete every stored project document (destructive!)
  completion    Generate shell completion script (bash|zsh|fish)
  version       Show version information

Global Options:
  --config      Path to .assetseed/project.yaml
  --json        Output as JSON (implies --quiet)
  -q, --quiet   Suppress progress output
  --no-color    Disable colored output
  -v            Increase log verbosity (repeatable)
  --version     Show version and exit

Examples:
  assetseed init                               Create configuration interactively
  assetseed ingest --dry-run                   Preview without writing anything
  assetseed ingest                             Upload assets and write documents
  assetseed ingest --project 187,205           Only projects 187 and 205
  assetseed ingest --category kitchen          Only the kitchen category
  assetseed ingest --clear --env production    Rebuild the production collection
  assetseed --json ingest --output run.json    Machine-readable summary
  assetseed status                             Show the last run

Environment Variables:
  ASSETSEED_ENV                    development (default) or production
  ASSETSEED_S3_ACCESS_KEY          Object store access key
  ASSETSEED_S3_SECRET_KEY          Object store secret key
  ASSETSEED_DOCSTORE_DSN           Document store DSN (sqlite path or postgres URL)
  ASSETSEED_DOC_SOFT_LIMIT_BYTES   Maximum encoded document size

  A .env file in the working directory is loaded when present.

Exit Codes:
  0  Run finished without errors
  1  Run finished with errors (see the report)
  2+ Setup failure (configuration, storage, input)

For detailed command help: assetseed <command> --help

`)
	}

	pflag.Parse()

	if globals.JSON {
		globals.Quiet = true
	}
	if globals.NoColor || os.Getenv("NO_COLOR") != "" {
		globals.NoColor = true
		ui.InitColors(true)
	}

	if showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := bootstrap.LoadEnv(); err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load .env file",
			err.Error(),
			"Fix the syntax of .env or remove it",
			err,
		), globals.JSON)
	}

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(errors.ExitInput)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "ingest":
		runIngest(cmdArgs, configPath, globals)
	case "status":
		runStatus(cmdArgs, configPath, globals)
	case "clear":
		runClear(cmdArgs, configPath, globals)
	case "completion":
		runCompletion(cmdArgs)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		pflag.Usage()
		os.Exit(errors.ExitInput)
	}
}

func printVersion() {
	fmt.Printf("assetseed version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", date)
}
