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
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalized stage values.
const (
	StageBefore     = "before"
	StageAfter      = "after"
	StageInProgress = "in-progress"
	StageDesign     = "design"
	StagePlans      = "plans"
	StagePermits    = "permits"
	StageContracts  = "contracts"
	StageDocuments  = "documents"
	StageOther      = "other"
)

// folderDelimiter separates the segments of project and stage folder names.
const folderDelimiter = " - "

// stageAliases maps the slugged middle segment of a stage folder, with any
// trailing "photos"/"pictures"/"images" removed, to a stage.
var stageAliases = map[string]string{
	"before":       StageBefore,
	"pre":          StageBefore,
	"existing":     StageBefore,
	"after":        StageAfter,
	"final":        StageAfter,
	"finished":     StageAfter,
	"completed":    StageAfter,
	"in-progress":  StageInProgress,
	"progress":     StageInProgress,
	"during":       StageInProgress,
	"construction": StageInProgress,
	"design":       StageDesign,
	"renderings":   StageDesign,
	"rendering":    StageDesign,
	"3d":           StageDesign,
	"plans":        StagePlans,
	"plan":         StagePlans,
	"drawings":     StagePlans,
	"blueprints":   StagePlans,
	"permits":      StagePermits,
	"permit":       StagePermits,
	"contracts":    StageContracts,
	"contract":     StageContracts,
	"documents":    StageDocuments,
	"document":     StageDocuments,
	"docs":         StageDocuments,
	"paperwork":    StageDocuments,
}

var stageNoiseSuffixes = []string{"-photos", "-photo", "-pictures", "-pics", "-images"}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".heic": true, ".heif": true, ".tif": true, ".tiff": true, ".bmp": true, ".avif": true,
}

var documentExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".txt": true, ".rtf": true, ".odt": true,
	".csv": true, ".dwg": true,
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".avif": "image/avif",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain; charset=utf-8",
	".rtf":  "application/rtf",
	".odt":  "application/vnd.oasis.opendocument.text",
	".csv":  "text/csv",
	".dwg":  "image/vnd.dwg",
}

// defaultContentType is used for extensions missing from contentTypes.
const defaultContentType = "application/octet-stream"

// deniedNames are filesystem artifacts that are never ingested.
var deniedNames = map[string]bool{
	"thumbs.db":   true,
	"desktop.ini": true,
	".ds_store":   true,
	"icon\r":      true,
	"ehthumbs.db": true,
}

var projectIDPattern = regexp.MustCompile(`^[0-9][0-9A-Za-z]*$`)

// ClassifyFile returns the kind of a file from its name.
func ClassifyFile(name string) FileKind {
	if IsIgnoredName(name) {
		return KindSkip
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExts[ext]:
		return KindImage
	case documentExts[ext]:
		return KindDocument
	default:
		return KindSkip
	}
}

// IsIgnoredName reports whether a file or directory name is hidden or a known
// filesystem artifact.
func IsIgnoredName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return true
	}
	return deniedNames[strings.ToLower(name)]
}

// ContentType returns the MIME type for a file extension.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return defaultContentType
}

// ProjectFolder is a parsed "{number} - {name}[ - {hint}]" folder name.
type ProjectFolder struct {
	ID   string
	Slug string
	Name string
	Hint string
}

// ParseProjectFolder parses a project folder name. ok is false when the name
// does not follow the convention.
func ParseProjectFolder(name string) (ProjectFolder, bool) {
	parts := splitFolderName(name)
	if len(parts) < 2 || !projectIDPattern.MatchString(parts[0]) || parts[1] == "" {
		return ProjectFolder{}, false
	}
	pf := ProjectFolder{ID: parts[0], Name: parts[1]}
	if len(parts) > 2 {
		pf.Hint = strings.Join(parts[2:], folderDelimiter)
	}
	pf.Slug = ProjectSlug(pf.ID, pf.Name)
	return pf, true
}

// StageFolder is a parsed stage subfolder name such as
// "187 - After Photos - Kitchen".
type StageFolder struct {
	Stage string
	Hint  string
}

// ParseStageFolder classifies a stage folder by its middle segment. Unknown
// values map to StageOther.
func ParseStageFolder(name string) StageFolder {
	parts := splitFolderName(name)
	var middle, hint string
	switch len(parts) {
	case 0:
		return StageFolder{Stage: StageOther}
	case 1:
		middle = parts[0]
	case 2:
		middle = parts[1]
	default:
		middle = parts[1]
		hint = strings.Join(parts[2:], folderDelimiter)
	}
	return StageFolder{Stage: NormalizeStage(middle), Hint: hint}
}

// NormalizeStage maps a free-form stage label to a normalized stage.
func NormalizeStage(label string) string {
	s := Slugify(label)
	if stage, ok := stageAliases[s]; ok {
		return stage
	}
	for _, suffix := range stageNoiseSuffixes {
		if trimmed, found := strings.CutSuffix(s, suffix); found {
			if stage, ok := stageAliases[trimmed]; ok {
				return stage
			}
		}
	}
	return StageOther
}

// StageLabel renders a stage for reports: "in-progress" becomes "In Progress".
func StageLabel(stage string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(stage, "-", " "))
}

func splitFolderName(name string) []string {
	raw := strings.Split(name, folderDelimiter)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
