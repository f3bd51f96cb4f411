package extract

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"glance/internal/index"
)

// PDF extracts text from PDF documents. It handles uncompressed and
// flate-compressed content streams; scanned or exotically encoded PDFs
// yield little or nothing, which is reported rather than treated as fatal.
type PDF struct{}

// Extract pulls text operators out of the document's content streams.
func (e *PDF) Extract(_ context.Context, path string, maxBytes int) *index.Content {
	data, err := os.ReadFile(path)
	if err != nil {
		return contentError(path, "pdf", err.Error())
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return contentError(path, "pdf", "not a valid PDF file")
	}

	text := scanStreams(data, maxBytes)
	if text == "" {
		return contentError(path, "pdf", "no extractable text (scanned or unsupported encoding)")
	}

	text, truncated := truncate(text, maxBytes)
	return &index.Content{
		Path:      path,
		Format:    "pdf",
		Text:      text,
		Truncated: truncated,
	}
}

var (
	showTextRe  = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|')`)
	showArrayRe = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
	parenRe     = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
	hexRe       = regexp.MustCompile(`<([0-9A-Fa-f\s]+)>\s*Tj`)
)

// scanStreams walks stream...endstream blocks, inflating them when needed,
// and collects text drawn by Tj/TJ operators.
func scanStreams(data []byte, maxBytes int) string {
	var sb strings.Builder
	pos := 0

	for sb.Len() < maxBytes {
		start := bytes.Index(data[pos:], []byte("stream"))
		if start == -1 {
			break
		}
		start += pos + len("stream")
		for start < len(data) && (data[start] == '\r' || data[start] == '\n') {
			start++
		}

		end := bytes.Index(data[start:], []byte("endstream"))
		if end == -1 {
			break
		}
		end += start
		pos = end + len("endstream")

		stream := data[start:end]
		if inflated, err := inflate(stream); err == nil {
			stream = inflated
		}

		if text := operatorText(string(stream)); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return sb.String()
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// operatorText collects strings drawn by the common text-showing operators.
func operatorText(content string) string {
	var parts []string

	for _, m := range showTextRe.FindAllStringSubmatch(content, -1) {
		if s := decodePDFString(m[1]); s != "" {
			parts = append(parts, s)
		}
	}
	for _, m := range showArrayRe.FindAllStringSubmatch(content, -1) {
		var sb strings.Builder
		for _, inner := range parenRe.FindAllStringSubmatch(m[1], -1) {
			sb.WriteString(decodePDFString(inner[1]))
		}
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
		}
	}
	for _, m := range hexRe.FindAllStringSubmatch(content, -1) {
		if s := decodeHex(m[1]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// decodePDFString resolves the escape sequences of a literal PDF string.
func decodePDFString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			sb.WriteByte(ch)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '(', ')', '\\':
			sb.WriteByte(s[i])
		default:
			if s[i] >= '0' && s[i] <= '7' {
				octal := string(s[i])
				for len(octal) < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7' {
					i++
					octal += string(s[i])
				}
				if v, err := strconv.ParseInt(octal, 8, 32); err == nil {
					sb.WriteRune(rune(v))
				}
			}
		}
	}
	return sb.String()
}

func decodeHex(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if len(cleaned)%2 != 0 {
		cleaned += "0"
	}

	var sb strings.Builder
	for i := 0; i+1 < len(cleaned); i += 2 {
		v, err := strconv.ParseInt(cleaned[i:i+2], 16, 32)
		if err == nil && v >= 32 && v < 127 {
			sb.WriteByte(byte(v))
		}
	}
	return sb.String()
}
