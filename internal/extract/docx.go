package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"glance/internal/index"
)

// WordDocument extracts text from .docx files: a zip archive whose
// word/document.xml carries the text runs.
type WordDocument struct{}

// Extract reads paragraphs from the main document part.
func (e *WordDocument) Extract(_ context.Context, path string, maxBytes int) *index.Content {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return contentError(path, "docx", "not a valid docx archive: "+err.Error())
	}
	defer archive.Close()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return contentError(path, "docx", "archive has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return contentError(path, "docx", err.Error())
	}
	defer rc.Close()

	text, err := documentText(rc, maxBytes)
	if err != nil {
		return contentError(path, "docx", "malformed document xml: "+err.Error())
	}

	text, truncated := truncate(text, maxBytes)
	return &index.Content{
		Path:      path,
		Format:    "docx",
		Text:      text,
		Truncated: truncated,
	}
}

// documentText streams the XML and joins w:t runs, breaking paragraphs
// at w:p boundaries. Stops early once the byte ceiling is passed.
func documentText(r io.Reader, maxBytes int) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for sb.Len() <= maxBytes {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
