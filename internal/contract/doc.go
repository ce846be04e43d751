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

// Package contract holds the size limits shared by the document builder and
// the stores.
//
// Encoded project documents are kept under a soft limit so they fit the
// document store's per-record ceiling:
//
//	limit := contract.DocSoftLimitBytes() // 1 MiB unless overridden
//
// The limit can be adjusted with ASSETSEED_DOC_SOFT_LIMIT_BYTES:
//
//	export ASSETSEED_DOC_SOFT_LIMIT_BYTES=524288  # 512 KiB
package contract
