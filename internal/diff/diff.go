// Package diff parses unified diff text into per-file change metadata.
//
// The parser is deliberately forgiving: it never fails, and malformed
// fragments simply contribute nothing. Review assembly only needs paths,
// change types and line counts, not a full patch model.
package diff

import (
	"path"
	"strings"
)

// ChangeType classifies how a file was affected by a commit.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "ADD"
	ChangeTypeDelete ChangeType = "DELETE"
	ChangeTypeRename ChangeType = "RENAME"
	ChangeTypeModify ChangeType = "MODIFY"
)

// Language is the detected source language of a changed file.
type Language string

const (
	LanguageJava       Language = "JAVA"
	LanguagePython     Language = "PYTHON"
	LanguageGo         Language = "GO"
	LanguageJavaScript Language = "JAVASCRIPT"
	LanguageTypeScript Language = "TYPESCRIPT"
	LanguageMarkdown   Language = "MARKDOWN"
	LanguageYAML       Language = "YAML"
	LanguageJSON       Language = "JSON"
	LanguageShell      Language = "SHELL"
	LanguageUnknown    Language = "UNKNOWN"
)

var languageByExt = map[string]Language{
	".java": LanguageJava,
	".py":   LanguagePython,
	".go":   LanguageGo,
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".md":   LanguageMarkdown,
	".yml":  LanguageYAML,
	".yaml": LanguageYAML,
	".json": LanguageJSON,
	".sh":   LanguageShell,
}

// FileDiff describes a single file's change within a commit diff.
type FileDiff struct {
	// FilePath is the file's effective path: the new path for additions,
	// modifications and renames, the old path for deletions.
	FilePath     string     `json:"filePath"`
	OldPath      string     `json:"oldPath,omitempty"`
	ChangeType   ChangeType `json:"changeType"`
	Language     Language   `json:"language"`
	LinesAdded   int        `json:"linesAdded"`
	LinesDeleted int        `json:"linesDeleted"`
	IsBinary     bool       `json:"isBinary"`
}

// Stats aggregates line counts across all files in a diff.
type Stats struct {
	FilesChanged int `json:"filesChanged"`
	LinesAdded   int `json:"linesAdded"`
	LinesDeleted int `json:"linesDeleted"`
}

// Metadata is the parsed form of a commit diff.
type Metadata struct {
	Files []FileDiff `json:"files"`
	Stats Stats      `json:"stats"`
}

const fileHeaderPrefix = "diff --git "

// Extract parses a raw unified diff into per-file metadata and aggregate
// statistics. A nil-equivalent input (empty or whitespace-only) yields an
// empty file list with zero statistics.
func Extract(raw string) *Metadata {
	meta := &Metadata{}
	if strings.TrimSpace(raw) == "" {
		return meta
	}

	lines := strings.Split(raw, "\n")
	var block []string
	flush := func() {
		if len(block) == 0 {
			return
		}
		if fd, ok := parseFileBlock(block); ok {
			meta.Files = append(meta.Files, fd)
		}
		block = nil
	}
	for _, line := range lines {
		if strings.HasPrefix(line, fileHeaderPrefix) {
			flush()
		}
		if len(block) > 0 || strings.HasPrefix(line, fileHeaderPrefix) {
			block = append(block, line)
		}
	}
	flush()

	for _, f := range meta.Files {
		meta.Stats.FilesChanged++
		meta.Stats.LinesAdded += f.LinesAdded
		meta.Stats.LinesDeleted += f.LinesDeleted
	}
	return meta
}

// parseFileBlock turns one "diff --git ..." section into a FileDiff.
func parseFileBlock(block []string) (FileDiff, bool) {
	headerOld, headerNew := parseHeaderPaths(block[0])

	var fd FileDiff
	fd.ChangeType = ChangeTypeModify

	var renameFrom, renameTo string
	for _, line := range block[1:] {
		switch {
		case strings.HasPrefix(line, "new file mode"):
			fd.ChangeType = ChangeTypeAdd
		case strings.HasPrefix(line, "deleted file mode"):
			fd.ChangeType = ChangeTypeDelete
		case strings.HasPrefix(line, "rename from "):
			renameFrom = strings.TrimPrefix(line, "rename from ")
			fd.ChangeType = ChangeTypeRename
		case strings.HasPrefix(line, "rename to "):
			renameTo = strings.TrimPrefix(line, "rename to ")
			fd.ChangeType = ChangeTypeRename
		case strings.HasPrefix(line, "Binary files ") && strings.HasSuffix(line, " differ"):
			fd.IsBinary = true
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			// hunk file markers, not content
		case strings.HasPrefix(line, "+"):
			fd.LinesAdded++
		case strings.HasPrefix(line, "-"):
			fd.LinesDeleted++
		}
	}

	switch fd.ChangeType {
	case ChangeTypeAdd:
		fd.FilePath = headerNew
	case ChangeTypeDelete:
		fd.FilePath = headerOld
	case ChangeTypeRename:
		fd.FilePath = renameTo
		fd.OldPath = renameFrom
	default:
		fd.FilePath = headerNew
	}
	if fd.FilePath == "" {
		fd.FilePath = headerNew
	}
	if fd.FilePath == "" {
		return fd, false
	}

	if fd.IsBinary {
		fd.LinesAdded = 0
		fd.LinesDeleted = 0
		fd.Language = LanguageUnknown
	} else {
		fd.Language = DetectLanguage(fd.FilePath)
	}
	return fd, true
}

// parseHeaderPaths extracts the a/ and b/ paths from a "diff --git" line.
func parseHeaderPaths(header string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(header, fileHeaderPrefix)
	// "a/old b/new"; split on " b/" so old paths containing spaces survive.
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		oldPath = strings.TrimPrefix(rest[:idx], "a/")
		newPath = rest[idx+len(" b/"):]
		return oldPath, newPath
	}
	parts := strings.Fields(rest)
	if len(parts) == 2 {
		oldPath = strings.TrimPrefix(parts[0], "a/")
		newPath = strings.TrimPrefix(parts[1], "b/")
	}
	return oldPath, newPath
}

// DetectLanguage maps a file path to a language by extension.
func DetectLanguage(filePath string) Language {
	ext := strings.ToLower(path.Ext(filePath))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return LanguageUnknown
}
