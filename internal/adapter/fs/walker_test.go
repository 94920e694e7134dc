package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func baseNames(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, filepath.Base(f.Path))
	}
	return out
}

func TestResolveDirectoryAndGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "monographs", "vitamin-c.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(dir, "monographs", "nested", "zinc.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(dir, "monographs", "readme.txt"), "notes")
	writeFile(t, filepath.Join(dir, "monographs", "drafts", "old.pdf"), "%PDF-1.4")

	w := NewWalker(nil, []string{"drafts/"})
	files, err := w.Resolve([]string{filepath.Join(dir, "monographs")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vitamin-c.pdf", "zinc.pdf"}, baseNames(files))

	files, err = w.Resolve([]string{filepath.Join(dir, "monographs", "**", "*.pdf")})
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestResolveDeduplicatesAndKeepsExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	label := filepath.Join(dir, "label.pdf")
	notes := filepath.Join(dir, "label.txt")
	writeFile(t, label, "%PDF-1.4")
	writeFile(t, notes, "text")

	files, err := NewWalker(nil, nil).Resolve([]string{label, dir, notes})
	require.NoError(t, err)
	assert.Equal(t, []string{"label.pdf", "label.txt"}, baseNames(files))
}

func TestResolveNoMatches(t *testing.T) {
	_, err := NewWalker(nil, nil).Resolve([]string{filepath.Join(t.TempDir(), "*.pdf")})
	assert.Error(t, err)
}

func TestReadUploads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "%PDF-1.4 a")

	files, err := NewWalker(nil, nil).Resolve([]string{dir})
	require.NoError(t, err)
	uploads, err := ReadUploads(files)
	require.NoError(t, err)

	require.Len(t, uploads, 1)
	assert.Equal(t, "a.pdf", uploads[0].Name)
	assert.Equal(t, "%PDF-1.4 a", string(uploads[0].Data))
}
