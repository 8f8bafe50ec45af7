package workflow

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// deriveTitle builds a display title from a file path for records that never
// had remote metadata, such as standalone conversions.
func deriveTitle(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled"
	}
	return cases.Title(language.Und).String(title)
}

// sanitizeTitle strips characters that are unsafe in filenames while leaving
// the title readable.
func sanitizeTitle(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return strings.TrimSpace(replacer.Replace(name))
}

// targetPath swaps a media file's extension for the configured container.
func targetPath(sourcePath, targetExt string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + "." + strings.TrimPrefix(targetExt, ".")
}

// needsConversion reports whether the finished download requires the
// conversion stage: only when the container extension differs from the
// configured target.
func needsConversion(outputPath, targetExt string) bool {
	if outputPath == "" || targetExt == "" {
		return false
	}
	current := strings.ToLower(strings.TrimPrefix(filepath.Ext(outputPath), "."))
	want := strings.ToLower(strings.TrimPrefix(targetExt, "."))
	return current != "" && current != want
}
