package extract

import (
	"context"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2/lexers"

	"glance/internal/index"
)

// PlainText reads UTF-8 text with a lossy fallback for other encodings.
type PlainText struct{}

// Extract reads up to maxBytes of text from the file.
func (e *PlainText) Extract(_ context.Context, path string, maxBytes int) *index.Content {
	text, truncated, err := readText(path, maxBytes)
	if err != nil {
		return contentError(path, "plain", err.Error())
	}
	return &index.Content{
		Path:      path,
		Format:    "plain",
		Text:      text,
		Truncated: truncated,
	}
}

// SourceCode is PlainText plus a language tag used for formatting.
type SourceCode struct{}

// Extract reads the file as text and tags the language.
func (e *SourceCode) Extract(_ context.Context, path string, maxBytes int) *index.Content {
	text, truncated, err := readText(path, maxBytes)
	if err != nil {
		return contentError(path, "source", err.Error())
	}
	return &index.Content{
		Path:      path,
		Format:    "source",
		Language:  languageForFile(path),
		Text:      text,
		Truncated: truncated,
	}
}

// languageForFile returns a language name for known source files, or ""
// when the file doesn't match any lexer.
func languageForFile(path string) string {
	lexer := lexers.Match(path)
	if lexer == nil {
		return ""
	}
	name := lexer.Config().Name
	if name == "plaintext" || name == "markdown" {
		return ""
	}
	return name
}

// readText reads at most maxBytes+1 bytes and repairs invalid UTF-8 the
// way the explorer expects: bad sequences are dropped, not fatal.
func readText(path string, maxBytes int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	buf := make([]byte, maxBytes+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", false, err
	}
	data := buf[:n]

	truncated := false
	if len(data) > maxBytes {
		data = data[:maxBytes]
		truncated = true
	}

	// A truncation cut mid-rune leaves invalid trailing bytes; the UTF-8
	// repair below drops those too.
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return text, truncated, nil
}
