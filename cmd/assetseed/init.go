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
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kraklabs/assetseed/internal/errors"
	"github.com/kraklabs/assetseed/internal/output"
	"github.com/kraklabs/assetseed/internal/ui"
	"github.com/kraklabs/assetseed/pkg/ingestion"
)

// gitignore keeps local state out of version control.
const gitignore = `data/
runs/
run.lock
`

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive bool
	metadata, assets, env string
	endpoint, bucket      string
	docDriver, docDSN     string
}

// runInit executes the 'init' CLI command, creating .assetseed/project.yaml
// in the current directory.
//
// Examples:
//
//	assetseed init                           Interactive setup
//	assetseed init -y                        Use all defaults
//	assetseed init -y --endpoint s3.example.com --bucket media
func runInit(args []string, globals GlobalFlags) {
	flags, err := parseInitFlags(args)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		errors.FatalError(errors.NewInputError("Invalid init options", err.Error(), "Run 'assetseed init --help' for usage"), globals.JSON)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot get current directory", err.Error(), "", err), globals.JSON)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		errors.FatalError(errors.NewConfigError(
			"Configuration already exists",
			configPath+" is present",
			"Use --force to overwrite",
			nil,
		), globals.JSON)
	}

	cfg := createInitConfig(flags)
	if !flags.nonInteractive {
		runInteractiveConfig(bufio.NewReader(os.Stdin), os.Stdout, cfg)
	}

	if err := saveInitConfig(cwd, cfg); err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot write configuration", err.Error(), "Check directory permissions", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]string{"config": configPath})
		return
	}
	ui.Successf("Created %s", configPath)
	printNextSteps()
}

func parseInitFlags(args []string) (initFlags, error) {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVarP(&f.nonInteractive, "yes", "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.metadata, "metadata", "", "Metadata CSV path relative to this directory")
	fs.StringVar(&f.assets, "assets", "", "Asset tree root relative to this directory")
	fs.StringVar(&f.env, "env", "", "Default environment (development or production)")
	fs.StringVar(&f.endpoint, "endpoint", "", "S3-compatible endpoint (host:port)")
	fs.StringVar(&f.bucket, "bucket", "", "Object store bucket")
	fs.StringVar(&f.docDriver, "doc-driver", "", "Document store driver (sqlite, postgres, memory)")
	fs.StringVar(&f.docDSN, "doc-dsn", "", "Document store DSN")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: assetseed init [options]

Creates .assetseed/project.yaml in the current directory.
Credentials are not written; set ASSETSEED_S3_ACCESS_KEY and
ASSETSEED_S3_SECRET_KEY in the environment or in .env.

Examples:
  assetseed init -y
  assetseed init -y --endpoint s3.example.com --bucket media
  assetseed init --doc-driver postgres --doc-dsn postgres://localhost/assets

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

func createInitConfig(f initFlags) *Config {
	cfg := DefaultConfig()
	setIf(&cfg.Metadata, f.metadata)
	setIf(&cfg.Assets, f.assets)
	setIf(&cfg.Environment, f.env)
	setIf(&cfg.ObjectStore.Endpoint, f.endpoint)
	setIf(&cfg.ObjectStore.Bucket, f.bucket)
	setIf(&cfg.DocumentStore.Driver, f.docDriver)
	setIf(&cfg.DocumentStore.DSN, f.docDSN)
	return cfg
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// runInteractiveConfig prompts for the common settings; an empty answer
// keeps the shown default.
func runInteractiveConfig(reader *bufio.Reader, w io.Writer, cfg *Config) {
	fmt.Fprintln(w, "assetseed configuration (press Enter to accept defaults)")
	fmt.Fprintln(w)

	cfg.Metadata = prompt(reader, w, "Metadata CSV", cfg.Metadata)
	cfg.Assets = prompt(reader, w, "Assets directory", cfg.Assets)
	cfg.ObjectStore.Endpoint = prompt(reader, w, "Object store endpoint", cfg.ObjectStore.Endpoint)
	cfg.ObjectStore.Bucket = prompt(reader, w, "Bucket", cfg.ObjectStore.Bucket)
	cfg.ObjectStore.UseSSL = strings.HasPrefix(strings.ToLower(prompt(reader, w, "Use TLS (y/n)", boolAnswer(cfg.ObjectStore.UseSSL))), "y")
	cfg.DocumentStore.Driver = prompt(reader, w, "Document store driver", cfg.DocumentStore.Driver)
	cfg.DocumentStore.DSN = prompt(reader, w, "Document store DSN", cfg.DocumentStore.DSN)

	env := prompt(reader, w, "Default environment", cfg.Environment)
	if env == ingestion.EnvDevelopment || env == ingestion.EnvProduction {
		cfg.Environment = env
	} else {
		fmt.Fprintf(w, "Unknown environment %q, keeping %s\n", env, cfg.Environment)
	}
}

func prompt(reader *bufio.Reader, w io.Writer, label, def string) string {
	fmt.Fprintf(w, "%s [%s]: ", label, def)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	if v := strings.TrimSpace(line); v != "" {
		return v
	}
	return def
}

func boolAnswer(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func saveInitConfig(root string, cfg *Config) error {
	if err := cfg.Save(ConfigPath(root)); err != nil {
		return err
	}
	ignorePath := filepath.Join(ConfigDir(root), ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(gitignore), 0644); err != nil {
			return fmt.Errorf("write .gitignore: %w", err)
		}
	}
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Export ASSETSEED_S3_ACCESS_KEY and ASSETSEED_S3_SECRET_KEY (or add them to .env)")
	fmt.Println("  2. assetseed ingest --dry-run     Preview the run")
	fmt.Println("  3. assetseed ingest               Upload and write documents")
}
