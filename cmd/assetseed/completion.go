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
	"os"

	"github.com/spf13/pflag"

	"github.com/kraklabs/assetseed/internal/errors"
)

// bashCompletionTemplate is the bash completion script for assetseed.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for assetseed
# Installation:
#   source <(assetseed completion bash)

_assetseed_completion() {
    local cur commands
    commands="init ingest status clear completion version"
    cur="${COMP_WORDS[COMP_CWORD]}"

    if [ $COMP_CWORD -eq 1 ]; then
        if [[ ${cur} == -* ]] ; then
            COMPREPLY=( $(compgen -W "--config --json --quiet --no-color --verbose --version" -- ${cur}) )
        else
            COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        fi
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        ingest)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--dry-run --force --project --clear --skip-existing --category --batch-size --output --metadata --assets --env --allow-partial --debug --metrics-addr" -- ${cur}) )
            fi
            ;;
        init)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force --yes --metadata --assets --env --endpoint --bucket --doc-driver --doc-dsn" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        clear)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--yes" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _assetseed_completion assetseed
`

// zshCompletionTemplate is the zsh completion script for assetseed.
const zshCompletionTemplate = `#compdef assetseed

# Zsh completion script for assetseed
# Installation:
#   assetseed completion zsh > "${fpath[1]}/_assetseed"

_assetseed() {
    local -a commands
    commands=(
        'init:Create .assetseed/project.yaml configuration'
        'ingest:Run the ingestion pipeline'
        'status:Show the last run and document count'
        'clear:Delete every stored project document'
        'completion:Generate shell completion script'
        'version:Show version information'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .assetseed/project.yaml]:config file:_files -g "*.yaml"' \
        '--json[Output as JSON]' \
        '(-q --quiet)'{-q,--quiet}'[Suppress progress output]' \
        '--no-color[Disable colored output]' \
        '*-v[Increase log verbosity]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                ingest)
                    _arguments \
                        '--dry-run[Plan without uploading or writing]' \
                        '--force[Re-upload existing files]' \
                        '--project[Project id(s)]:ids:' \
                        '--clear[Delete stored documents first]' \
                        '--skip-existing[Skip existing files]' \
                        '--category[Category directory]:category:' \
                        '--batch-size[Concurrent uploads]:size:' \
                        '--output[JSON summary path]:file:_files' \
                        '--metadata[Metadata CSV]:file:_files -g "*.csv"' \
                        '--assets[Asset tree root]:dir:_files -/' \
                        '--env[Target environment]:env:(development production)' \
                        '--allow-partial[Continue past invalid rows]' \
                        '--debug[Enable debug logging]' \
                        '--metrics-addr[Prometheus metrics address]:address:'
                    ;;
                status)
                    _arguments '--json[Output as JSON]'
                    ;;
                clear)
                    _arguments '--yes[Confirm the deletion]'
                    ;;
                completion)
                    _arguments '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_assetseed
`

// fishCompletionTemplate is the fish completion script for assetseed.
const fishCompletionTemplate = `# Fish completion script for assetseed
# Installation:
#   assetseed completion fish > ~/.config/fish/completions/assetseed.fish

complete -c assetseed -f -n "__fish_use_subcommand" -a "init" -d "Create .assetseed/project.yaml configuration"
complete -c assetseed -f -n "__fish_use_subcommand" -a "ingest" -d "Run the ingestion pipeline"
complete -c assetseed -f -n "__fish_use_subcommand" -a "status" -d "Show the last run and document count"
complete -c assetseed -f -n "__fish_use_subcommand" -a "clear" -d "Delete every stored project document"
complete -c assetseed -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"
complete -c assetseed -f -n "__fish_use_subcommand" -a "version" -d "Show version information"

complete -c assetseed -l version -d "Show version and exit"
complete -c assetseed -l config -d "Path to .assetseed/project.yaml" -r
complete -c assetseed -l json -d "Output as JSON"
complete -c assetseed -s q -l quiet -d "Suppress progress output"
complete -c assetseed -l no-color -d "Disable colored output"

complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l dry-run -d "Plan without uploading or writing"
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l force -d "Re-upload existing files"
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l project -d "Project id(s)" -r
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l clear -d "Delete stored documents first"
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l skip-existing -d "Skip existing files"
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l category -d "Category directory" -r
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l batch-size -d "Concurrent uploads" -r
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l output -d "JSON summary path" -r
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l env -d "Target environment" -a "development production" -r
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l allow-partial -d "Continue past invalid rows"
complete -c assetseed -n "__fish_seen_subcommand_from ingest" -l debug -d "Enable debug logging"
complete -c assetseed -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"
complete -c assetseed -n "__fish_seen_subcommand_from clear" -l yes -d "Confirm the deletion"

complete -c assetseed -n "__fish_seen_subcommand_from completion" -f -a "bash zsh fish"
`

// completionScript returns the script for shell.
func completionScript(shell string) (string, bool) {
	switch shell {
	case "bash":
		return bashCompletionTemplate, true
	case "zsh":
		return zshCompletionTemplate, true
	case "fish":
		return fishCompletionTemplate, true
	default:
		return "", false
	}
}

// runCompletion prints a completion script for bash, zsh or fish.
func runCompletion(args []string) {
	fs := pflag.NewFlagSet("completion", pflag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: assetseed completion <shell>

Generate shell completion scripts for bash, zsh, or fish.

Examples:
  source <(assetseed completion bash)
  assetseed completion zsh > "${fpath[1]}/_assetseed"
  assetseed completion fish > ~/.config/fish/completions/assetseed.fish

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'assetseed completion bash', 'assetseed completion zsh', or 'assetseed completion fish'",
		), false)
	}

	script, ok := completionScript(fs.Arg(0))
	if !ok {
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", fs.Arg(0)),
			"Run 'assetseed completion bash', 'assetseed completion zsh', or 'assetseed completion fish'",
		), false)
	}
	fmt.Print(script)
}
