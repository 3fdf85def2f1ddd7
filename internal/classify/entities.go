package classify

import (
	"regexp"
	"strings"
)

var (
	filenamePattern = regexp.MustCompile(`(?i)([\w\-. ]+?)\.(pdf|docx?|xlsx?|pptx?|txt|csv|md)\b`)
	folderPattern   = regexp.MustCompile(`(?i)\b(?:in|to|into|inside|under)\s+(?:the\s+)?["']?([\w\- ]+?)["']?\s*(?:folder)?\s*[?.!]?$`)
	cellPattern     = regexp.MustCompile(`(?i)\bcell\s+([A-Z]{1,3}[0-9]{1,5})\b|\b([A-Z]{1,3}[0-9]{1,5})\s+cell\b`)
	targetPattern   = regexp.MustCompile(`(?i)\b(?:where\s+is|where\s+can\s+i\s+find|locate|open)\s+(?:the\s+|my\s+)?["']?([\w\-. ]+?)["']?\s*[?.!]?$`)
	docTypePattern  = regexp.MustCompile(`(?i)\b(pdf|word|excel|powerpoint|spreadsheet|presentation|csv|text)s?\s+(?:files?|documents?)\b`)
)

// NormalizeName folds a raw file or folder reference into the canonical form
// the document store indexes on: extension stripped, underscores and hyphens
// folded to spaces, runs of whitespace collapsed.
func NormalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if filenamePattern.MatchString(name) {
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return name
}

func extractFileName(text string) (string, bool) {
	m := filenamePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return NormalizeName(m[1] + "." + m[2]), true
}

// extractFolderName pulls a folder reference out of phrases like
// "in the Reports folder" or a bare target like "Reports folder".
func extractFolderName(text string) string {
	if m := folderPattern.FindStringSubmatch(text); m != nil {
		return NormalizeName(m[1])
	}

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if strings.HasSuffix(lower, " folder") {
		trimmed = trimmed[:len(trimmed)-len(" folder")]
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "the "))
		return NormalizeName(trimmed)
	}

	return ""
}

func extractTargetName(text string) string {
	m := targetPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return NormalizeName(m[1])
}

func extractCellReference(text string) string {
	m := cellPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return strings.ToUpper(m[1])
	}
	return strings.ToUpper(m[2])
}

func extractDocumentType(text string) string {
	m := docTypePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
