package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/config"
)

func testRegistry() *Registry {
	return NewRegistry(config.ExtractConfig{MaxBytes: config.DefaultExtractMaxBytes})
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPlainTextExtract(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", []byte("hello world\n"))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, content.Err)
	assert.Equal(t, "plain", content.Format)
	assert.Equal(t, "hello world\n", content.Text)
	assert.False(t, content.Truncated)
}

func TestPlainTextTruncation(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("x", 100) + "é" // multi-byte rune at the cut
	path := writeFile(t, dir, "big.txt", []byte(big))

	r := NewRegistry(config.ExtractConfig{MaxBytes: 101})
	content, err := r.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, content.Truncated)
	assert.LessOrEqual(t, len(content.Text), 101)
	assert.True(t, utf8.ValidString(content.Text), "truncation must not split a rune")
}

func TestPlainTextRepairsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "latin1.txt", []byte{'c', 'a', 'f', 0xe9, '\n'})

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, content.Err)
	assert.True(t, utf8.ValidString(content.Text))
	assert.Contains(t, content.Text, "caf")
}

func TestSourceCodeLanguage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.go", []byte("package main\n\nfunc main() {}\n"))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "source", content.Format)
	assert.Equal(t, "Go", content.Language)
	assert.Contains(t, content.Text, "package main")
}

func TestWordDocumentExtract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeDocx(t, path, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:tab/><w:t>with tab</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, content.Err)
	assert.Equal(t, "docx", content.Format)
	assert.Contains(t, content.Text, "First paragraph")
	assert.Contains(t, content.Text, "Second\twith tab")
}

func TestWordDocumentMalformed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.docx", []byte("not a zip at all"))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err, "malformed input is data, not an error")
	assert.NotEmpty(t, content.Err)
	assert.Empty(t, content.Text)
}

func TestPDFExtract(t *testing.T) {
	dir := t.TempDir()
	pdf := "%PDF-1.4\n" +
		"stream\nBT (Hello from PDF) Tj ET\nendstream\n" +
		"stream\nBT [(Array) ( part)] TJ ET\nendstream\n"
	path := writeFile(t, dir, "doc.pdf", []byte(pdf))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, content.Err)
	assert.Equal(t, "pdf", content.Format)
	assert.Contains(t, content.Text, "Hello from PDF")
	assert.Contains(t, content.Text, "Array part")
}

func TestPDFWithoutText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.pdf", []byte("%PDF-1.4\nno streams here"))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, content.Err)
}

func TestPDFNotAPDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fake.pdf", []byte("plain text pretending"))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, content.Err)
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, "a(b)c", decodePDFString(`a\(b\)c`))
	assert.Equal(t, "line\nnext", decodePDFString(`line\nnext`))
	assert.Equal(t, "A", decodePDFString(`\101`))
}

func TestImagePlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 8))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image", content.Format)
	assert.Contains(t, content.Text, "pic.png")
	assert.Contains(t, content.Text, "image/png")
	assert.Contains(t, content.Text, "12x8")
}

func TestBinaryFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blob.bin", []byte{0x7f, 'E', 'L', 'F', 0x02, 0x01, 0x01, 0x00, 0, 0, 0, 0})

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "binary", content.Format)
	assert.Contains(t, content.Text, "[binary file:")
}

func TestMIMESniffForUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "README", []byte("just some readable text\n"))

	content, err := testRegistry().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, content.Err)
	assert.Contains(t, content.Text, "just some readable text")
}

func TestExtractCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testRegistry().Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncateRuneSafe(t *testing.T) {
	text := "abc日本語"
	cut, truncated := truncate(text, 4) // mid-rune boundary
	assert.True(t, truncated)
	assert.Equal(t, "abc", cut)
	assert.True(t, utf8.ValidString(cut))

	same, truncated := truncate("short", 100)
	assert.False(t, truncated)
	assert.Equal(t, "short", same)
}

func writeDocx(t *testing.T, path, documentXML string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}
