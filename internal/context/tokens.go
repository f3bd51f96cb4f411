package context

import "strings"

// ContentType represents the kind of text for token estimation.
type ContentType int

const (
	ContentTypeProse ContentType = iota
	ContentTypeCode
	ContentTypeMixed
)

// EstimateTokens provides a rough token estimate without an API call,
// using a weighted combination of word-based and character-based counts.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return estimateForType(text, detectContentType(text))
}

func estimateForType(text string, contentType ContentType) int {
	chars := len(text)

	switch contentType {
	case ContentTypeCode:
		// Identifiers and punctuation split into more tokens than prose.
		return int(float64(chars) / 3.2)
	case ContentTypeProse:
		words := len(strings.Fields(text))
		byWords := int(float64(words) * 1.3)
		byChars := chars / 4
		return (byWords*3 + byChars) / 4
	default:
		words := len(strings.Fields(text))
		byWords := int(float64(words) * 1.3)
		byChars := int(float64(chars) / 3.5)
		return (byWords + byChars) / 2
	}
}

// detectContentType classifies text with cheap line-level heuristics.
func detectContentType(text string) ContentType {
	lines := strings.Split(text, "\n")
	codeLines := 0

	for _, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "func ") || strings.HasPrefix(t, "type ") ||
			strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "def ") ||
			strings.HasPrefix(t, "class ") || strings.HasPrefix(t, "//") ||
			strings.HasPrefix(t, "#") || strings.HasSuffix(t, "{") ||
			strings.HasSuffix(t, "}") || strings.HasSuffix(t, ";") ||
			strings.Contains(t, " := ") || strings.Contains(t, " = ") {
			codeLines++
		}
	}

	if len(lines) > 0 && float64(codeLines)/float64(len(lines)) > 0.3 {
		return ContentTypeCode
	}

	identifiers := 0
	words := strings.Fields(text)
	for _, w := range words {
		if strings.Contains(w, "_") || hasCamelCase(w) {
			identifiers++
		}
	}
	if len(words) > 0 && float64(identifiers)/float64(len(words)) > 0.2 {
		return ContentTypeMixed
	}
	return ContentTypeProse
}

func hasCamelCase(word string) bool {
	sawLower := false
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z':
			sawLower = true
		case r >= 'A' && r <= 'Z':
			if sawLower {
				return true
			}
		}
	}
	return false
}
