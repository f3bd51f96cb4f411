// Package extract turns files of various formats into plain text for
// context assembly. Dispatch is a single lookup by extension with a MIME
// sniff fallback; there is no extractor hierarchy.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"glance/internal/config"
	"glance/internal/index"
	"glance/internal/logging"
)

// Extractor produces text content for one family of file formats.
type Extractor interface {
	Extract(ctx context.Context, path string, maxBytes int) *index.Content
}

// Registry dispatches extraction requests to the matching extractor.
type Registry struct {
	maxBytes int
	byExt    map[string]Extractor
	plain    *PlainText
	source   *SourceCode
	image    *Image
}

// NewRegistry creates a registry with all built-in extractors wired.
func NewRegistry(cfg config.ExtractConfig) *Registry {
	r := &Registry{
		maxBytes: cfg.MaxBytes,
		byExt:    make(map[string]Extractor),
		plain:    &PlainText{},
		source:   &SourceCode{},
		image:    &Image{},
	}
	if r.maxBytes <= 0 {
		r.maxBytes = config.DefaultExtractMaxBytes
	}

	pdf := &PDF{}
	docx := &WordDocument{}

	r.byExt[".pdf"] = pdf
	r.byExt[".docx"] = docx
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg", ".ico", ".tiff"} {
		r.byExt[ext] = r.image
	}
	return r
}

// Extract produces content for a path. Malformed input is reported inside
// the returned content, not as an error; the only error cause is a
// cancelled context.
func (r *Registry) Extract(ctx context.Context, path string) (*index.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ex, ok := r.byExt[ext]; ok {
		return ex.Extract(ctx, path, r.maxBytes), nil
	}

	if lang := languageForFile(path); lang != "" {
		content := r.source.Extract(ctx, path, r.maxBytes)
		content.Language = lang
		return content, nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		logging.Debug("mime sniff failed", "path", path, "error", err)
		return contentError(path, "plain", err.Error()), nil
	}

	switch {
	case mt.Is("application/pdf"):
		return (&PDF{}).Extract(ctx, path, r.maxBytes), nil
	case strings.HasPrefix(mt.String(), "image/"):
		return r.image.Extract(ctx, path, r.maxBytes), nil
	case isTextMIME(mt):
		return r.plain.Extract(ctx, path, r.maxBytes), nil
	default:
		return &index.Content{
			Path:   path,
			Format: "binary",
			Text:   "[binary file: " + mt.String() + "]",
		}, nil
	}
}

func isTextMIME(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return mt.Is("application/json") || mt.Is("application/xml") ||
		mt.Is("application/x-yaml") || mt.Is("application/toml")
}

func contentError(path, format, msg string) *index.Content {
	return &index.Content{Path: path, Format: format, Err: msg}
}

// truncate cuts text at the byte ceiling without splitting a rune.
func truncate(text string, maxBytes int) (string, bool) {
	if len(text) <= maxBytes {
		return text, false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}
