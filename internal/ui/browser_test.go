package ui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/index"
	"glance/internal/watch"
)

func testBrowser(t *testing.T) (*browser, *index.Cache, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	cache := index.New(16, false)
	require.NoError(t, cache.SeedTree(dir))
	return newBrowser(cache, dir, DefaultStyles()), cache, dir
}

func TestBrowserNavigation(t *testing.T) {
	b, _, dir := testBrowser(t)

	// Listing: sub/ first, then a.txt, b.txt.
	require.Len(t, b.entries, 3)
	assert.Equal(t, filepath.Join(dir, "sub"), b.entries[0].Path)

	path, changed := b.enter()
	assert.True(t, changed)
	assert.Equal(t, filepath.Join(dir, "sub"), path)
	assert.Empty(t, b.entries)

	path, changed = b.up()
	assert.True(t, changed)
	assert.Equal(t, dir, path)

	// The root is the ceiling.
	_, changed = b.up()
	assert.False(t, changed)
}

func TestBrowserSelectionOrder(t *testing.T) {
	b, _, dir := testBrowser(t)
	a := filepath.Join(dir, "a.txt")
	bee := filepath.Join(dir, "b.txt")

	b.toggle(bee)
	b.toggle(a)
	assert.Equal(t, []string{bee, a}, b.selection, "selection keeps toggle order")

	b.toggle(bee)
	assert.Equal(t, []string{a}, b.selection)
	assert.False(t, b.selected[bee])
}

func TestBrowserPruneDropsDeleted(t *testing.T) {
	b, cache, dir := testBrowser(t)
	a := filepath.Join(dir, "a.txt")
	bee := filepath.Join(dir, "b.txt")

	b.toggle(a)
	b.toggle(bee)

	require.NoError(t, os.Remove(a))
	cache.ApplyBatch([]watch.Event{{Op: watch.OpDeleted, Path: a}})

	b.prune()
	assert.Equal(t, []string{bee}, b.selection)
	assert.False(t, b.selected[a])
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512B", humanSize(512))
	assert.Equal(t, "2.0K", humanSize(2048))
	assert.Equal(t, "1.5M", humanSize(3<<19))
}
