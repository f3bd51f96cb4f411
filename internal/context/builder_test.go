package context

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/config"
	"glance/internal/extract"
	"glance/internal/index"
)

func testBuilder(t *testing.T, dir string) (*Builder, *index.Cache) {
	t.Helper()
	cache := index.New(64, false)
	require.NoError(t, cache.SeedTree(dir))
	registry := extract.NewRegistry(config.ExtractConfig{MaxBytes: config.DefaultExtractMaxBytes})
	builder := NewBuilder(cache, registry, config.ExtractConfig{Wait: 2 * time.Second})
	return builder, cache
}

func TestBuildSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	builder, _ := testBuilder(t, dir)
	window, err := builder.Build(context.Background(), dir, []string{path}, 1000)
	require.NoError(t, err)

	require.Len(t, window.Entries, 1)
	entry := window.Entries[0]
	assert.Equal(t, path, entry.Path)
	assert.Equal(t, "hello", entry.Text)
	assert.Empty(t, entry.Warning)
	assert.False(t, entry.Truncated)
	assert.False(t, window.Truncated)
	assert.LessOrEqual(t, window.Tokens, 1000)
}

func TestBuildPreservesSelectionOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("second"), 0o644))

	builder, _ := testBuilder(t, dir)
	window, err := builder.Build(context.Background(), dir, []string{b, a}, 1000)
	require.NoError(t, err)

	require.Len(t, window.Entries, 2)
	assert.Equal(t, []string{b, a}, window.Paths())
}

func TestBuildNeverExceedsBudget(t *testing.T) {
	dir := t.TempDir()
	var selected []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("word ", 400)), 0o644))
		selected = append(selected, path)
	}

	builder, _ := testBuilder(t, dir)
	budget := 300
	window, err := builder.Build(context.Background(), dir, selected, budget)
	require.NoError(t, err)

	assert.True(t, window.Truncated)
	assert.LessOrEqual(t, window.Tokens, budget)
	assert.Less(t, len(window.Entries), 3, "later files must be dropped, not squeezed")
	// The head of the selection is what survives.
	if len(window.Entries) > 0 {
		assert.Equal(t, selected[0], window.Entries[0].Path)
	}
}

func TestBuildSlicesOversizedHeadEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("word ", 2000)), 0o644))

	builder, _ := testBuilder(t, dir)
	budget := 200
	window, err := builder.Build(context.Background(), dir, []string{path}, budget)
	require.NoError(t, err)

	require.Len(t, window.Entries, 1)
	entry := window.Entries[0]
	assert.True(t, entry.Truncated)
	assert.True(t, window.Truncated)
	assert.NotEmpty(t, entry.Text)
	assert.LessOrEqual(t, window.Tokens, budget)
	assert.True(t, utf8.ValidString(entry.Text))
}

func TestBuildExpandsDirectoryToImmediateChildren(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("deep"), 0o644))

	builder, _ := testBuilder(t, dir)
	window, err := builder.Build(context.Background(), dir, []string{dir}, 1000)
	require.NoError(t, err)

	paths := window.Paths()
	assert.Contains(t, paths, filepath.Join(dir, "a.txt"))
	assert.Contains(t, paths, filepath.Join(dir, "b.txt"))
	assert.NotContains(t, paths, filepath.Join(nested, "deep.txt"), "expansion is immediate children only")
}

func TestBuildDeduplicatesSelection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("once"), 0o644))

	builder, _ := testBuilder(t, dir)
	window, err := builder.Build(context.Background(), dir, []string{path, dir, path}, 1000)
	require.NoError(t, err)

	require.Len(t, window.Entries, 1)
}

func TestBuildUnindexedFile(t *testing.T) {
	dir := t.TempDir()
	builder, _ := testBuilder(t, dir)

	ghost := filepath.Join(dir, "ghost.txt")
	window, err := builder.Build(context.Background(), dir, []string{ghost}, 1000)
	require.NoError(t, err)

	require.Len(t, window.Entries, 1)
	assert.Equal(t, "file not indexed", window.Entries[0].Warning)
	assert.Empty(t, window.Entries[0].Text)
}

func TestBuildSlowExtractionPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	cache := index.New(64, false)
	require.NoError(t, cache.SeedTree(dir))
	registry := extract.NewRegistry(config.ExtractConfig{MaxBytes: config.DefaultExtractMaxBytes})
	builder := NewBuilder(cache, registry, config.ExtractConfig{Wait: 50 * time.Millisecond})

	// Claim the extraction slot so the builder can only wait, then time out.
	require.True(t, cache.MarkExtracting(path))

	window, err := builder.Build(context.Background(), dir, []string{path}, 1000)
	require.NoError(t, err)

	require.Len(t, window.Entries, 1)
	assert.Equal(t, "content unavailable, extraction in progress", window.Entries[0].Warning)
}

func TestBuildReportsExtractionFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a docx"), 0o644))

	builder, _ := testBuilder(t, dir)
	window, err := builder.Build(context.Background(), dir, []string{path}, 1000)
	require.NoError(t, err)

	require.Len(t, window.Entries, 1)
	assert.Contains(t, window.Entries[0].Warning, "extraction failed")
	assert.Empty(t, window.Entries[0].Text)
}

func TestBuildCancelledContext(t *testing.T) {
	dir := t.TempDir()
	builder, _ := testBuilder(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := builder.Build(ctx, dir, []string{filepath.Join(dir, "a.txt")}, 1000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWindowRender(t *testing.T) {
	w := &Window{
		Workspace: "/ws",
		Entries: []Entry{
			{Path: "/ws/a.txt", Text: "alpha"},
			{Path: "/ws/b.txt", Warning: "file not indexed"},
			{Path: "/ws/c.txt", Text: "gamma", Truncated: true},
		},
	}
	out := w.Render()

	assert.Contains(t, out, "=== /ws/a.txt ===\nalpha\n")
	assert.Contains(t, out, "[file not indexed]")
	assert.Contains(t, out, "[content truncated]")
	assert.Equal(t, []string{"/ws/a.txt", "/ws/b.txt", "/ws/c.txt"}, w.Paths())
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))

	prose := "The quick brown fox jumps over the lazy dog and keeps on running."
	assert.Greater(t, EstimateTokens(prose), 0)

	code := "func main() {\n\tx := 1\n\ty := 2\n\tfmt.Println(x + y)\n}\n"
	assert.Greater(t, EstimateTokens(code), 0)

	// Longer text never estimates lower.
	assert.GreaterOrEqual(t, EstimateTokens(prose+prose), EstimateTokens(prose))
}

func TestSliceToBudget(t *testing.T) {
	text := strings.Repeat("word ", 500)
	budget := 50

	cut := sliceToBudget(text, budget)
	assert.LessOrEqual(t, EstimateTokens(cut), budget)
	assert.NotEmpty(t, cut)
	assert.True(t, utf8.ValidString(cut))

	multibyte := strings.Repeat("héllo wörld ", 200)
	cut = sliceToBudget(multibyte, 20)
	assert.True(t, utf8.ValidString(cut))
}
