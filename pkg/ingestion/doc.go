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

// Package ingestion turns a metadata table and a local asset tree into
// uploaded objects and composite project documents.
//
// # Pipeline Overview
//
// A run moves through seven stages, strictly in sequence:
//
//  1. Scan: walk the asset tree and classify every file by stage and kind
//  2. Parse: read the metadata CSV into ProjectRecord values
//  3. Upload: push files to the ObjectStore, skipping objects already present
//  4. Build: attach uploaded files to components and keep media order stable
//  5. Validate: drop documents that break the data model
//  6. Write: store documents with optimistic concurrency
//  7. Report: produce the RunSummary
//
// Concurrency exists only inside the Uploader, which runs at most BatchSize
// uploads at a time and drains each batch before starting the next.
//
// # Asset Tree Layout
//
//	{category}/[{subcategory}/]{number} - {name}[ - {hint}]/{stage folder}/{file}
//
// Category directories listed in ScanConfig.NestedCategories (by default
// "adu-addition") carry the extra subcategory level. Stage folders are
// classified by their middle segment: "187 - After Photos - Kitchen" holds
// "after" images of the "kitchen" component.
//
// Remote objects are stored under
//
//	projects/{slug}/{photos|documents}/{stage}/{filename}
//
// # Quick Start
//
//	cfg := ingestion.DefaultConfig()
//	cfg.MetadataPath = "projects.csv"
//	cfg.AssetsRoot = "assets"
//
//	p, err := ingestion.NewPipeline(cfg, ingestion.Options{DryRun: true}, objects, docs, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := p.Run(ctx)
//	if err != nil {
//	    log.Printf("run aborted: %v", err)
//	}
//	os.Exit(summary.ExitCode())
package ingestion
