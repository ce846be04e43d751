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

// Package bootstrap builds the store handles an ingestion run depends on.
//
// Callers describe the object store and the document store in a Config and
// receive ready handles that are then injected into the pipeline:
//
//	stores, err := bootstrap.Open(bootstrap.Config{
//	    Objects: bootstrap.ObjectStoreConfig{
//	        Endpoint:  "localhost:9000",
//	        Bucket:    "assets",
//	        AccessKey: os.Getenv("ASSETSEED_S3_ACCESS_KEY"),
//	        SecretKey: os.Getenv("ASSETSEED_S3_SECRET_KEY"),
//	    },
//	    Documents: bootstrap.DocumentStoreConfig{
//	        Driver: "sqlite",
//	        DSN:    ".assetseed/data/documents.db",
//	    },
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer stores.Close()
//
// # Store kinds
//
// Objects go to any S3-compatible endpoint through minio-go, or to an
// in-process store for local experiments. Documents go to sqlite, postgres
// or an in-process store.
//
// # Environment files
//
// LoadEnv reads a .env file when one exists so credentials can be kept out
// of the project file. Variables already present in the environment win.
package bootstrap
