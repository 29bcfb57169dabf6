package project

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileEntryImmutable(t *testing.T) {
	src := []byte("hello")
	e := NewFileEntry("a.txt", src, OriginSnippet)
	src[0] = 'j'

	assert.Equal(t, "hello", string(e.Content()))

	got := e.Content()
	got[0] = 'x'
	assert.Equal(t, "hello", string(e.Content()))

	data, err := io.ReadAll(e.Open())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), e.Size())
	assert.Equal(t, OriginSnippet, e.Origin())
}

func TestFileSetPut(t *testing.T) {
	s := NewFileSet()

	replaced, _ := s.Put(NewFileEntry("b.txt", []byte("1"), OriginArchiveEntry))
	assert.False(t, replaced)
	replaced, _ = s.Put(NewFileEntry("a.txt", []byte("2"), OriginArchiveEntry))
	assert.False(t, replaced)
	replaced, conflicts := s.Put(NewFileEntry("b.txt", []byte("3"), OriginUploadedFile))
	assert.True(t, replaced)
	assert.Empty(t, conflicts)

	require.Equal(t, 2, s.Len())

	entries := s.Entries()
	assert.Equal(t, "b.txt", entries[0].Path(), "replacement keeps insertion position")
	assert.Equal(t, "3", string(entries[0].Content()))
	assert.Equal(t, OriginUploadedFile, entries[0].Origin())

	sorted := s.Sorted()
	assert.Equal(t, "a.txt", sorted[0].Path())
	assert.Equal(t, []string{"a.txt", "b.txt"}, s.Paths())
	assert.Equal(t, int64(2), s.TotalSize())

	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestFileSetOverlay(t *testing.T) {
	base := NewFileSet()
	base.Put(NewFileEntry("README.md", []byte("default"), OriginScaffold))
	base.Put(NewFileEntry("LICENSE", []byte("mit"), OriginScaffold))

	top := NewFileSet()
	top.Put(NewFileEntry("README.md", []byte("custom"), OriginUploadedFile))
	top.Put(NewFileEntry("main.go", []byte("package main"), OriginSnippet))

	merged, conflicts := base.Overlay(top)
	assert.Empty(t, conflicts)

	assert.Equal(t, 3, merged.Len())
	readme, ok := merged.Get("README.md")
	require.True(t, ok)
	assert.Equal(t, "custom", string(readme.Content()))
	assert.Equal(t, OriginUploadedFile, readme.Origin())

	// inputs are untouched
	orig, _ := base.Get("README.md")
	assert.Equal(t, "default", string(orig.Content()))
	assert.Equal(t, 2, base.Len())

	same, _ := base.Overlay(nil)
	assert.Equal(t, 2, same.Len())
}

func TestFileSetPutFileOverDirectory(t *testing.T) {
	s := NewFileSet()
	s.Put(NewFileEntry("src/main.go", []byte("main"), OriginArchiveEntry))
	s.Put(NewFileEntry("src/lib/util.go", []byte("util"), OriginArchiveEntry))
	s.Put(NewFileEntry("srcs.txt", []byte("keep"), OriginArchiveEntry))

	replaced, conflicts := s.Put(NewFileEntry("src", []byte("file"), OriginSnippet))
	assert.False(t, replaced)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "src/main.go", conflicts[0].Dropped.Path())
	assert.Equal(t, "src/lib/util.go", conflicts[1].Dropped.Path())
	assert.Equal(t, "src", conflicts[0].Winner.Path())

	assert.Equal(t, []string{"src", "srcs.txt"}, s.Paths())

	// the removed directory no longer blocks its children
	_, conflicts = s.Put(NewFileEntry("src/again.go", []byte("x"), OriginSnippet))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "src", conflicts[0].Dropped.Path())
	assert.Equal(t, []string{"src/again.go", "srcs.txt"}, s.Paths())
}

func TestFileSetPutDirectoryOverFile(t *testing.T) {
	s := NewFileSet()
	s.Put(NewFileEntry("README.md", []byte("readme"), OriginScaffold))
	s.Put(NewFileEntry("docs", []byte("file"), OriginScaffold))

	_, conflicts := s.Put(NewFileEntry("README.md/notes.txt", []byte("notes"), OriginUploadedFile))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "README.md", conflicts[0].Dropped.Path())
	assert.Equal(t, OriginScaffold, conflicts[0].Dropped.Origin())

	_, conflicts = s.Put(NewFileEntry("docs/a/b.md", []byte("b"), OriginUploadedFile))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "docs", conflicts[0].Dropped.Path())

	assert.Equal(t, []string{"README.md/notes.txt", "docs/a/b.md"}, s.Paths())
	got, ok := s.Get("docs/a/b.md")
	require.True(t, ok)
	assert.Equal(t, "b", string(got.Content()))
}

func TestFileSetOverlayConflicts(t *testing.T) {
	base := NewFileSet()
	base.Put(NewFileEntry("README.md", []byte("default"), OriginScaffold))
	base.Put(NewFileEntry("src/index.js", []byte("index"), OriginScaffold))

	top := NewFileSet()
	top.Put(NewFileEntry("README.md/notes.txt", []byte("notes"), OriginUploadedFile))
	top.Put(NewFileEntry("src", []byte("file"), OriginSnippet))

	merged, conflicts := base.Overlay(top)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "README.md", conflicts[0].Dropped.Path())
	assert.Equal(t, "src/index.js", conflicts[1].Dropped.Path())
	assert.Equal(t, []string{"README.md/notes.txt", "src"}, merged.Paths())
}

func TestOriginString(t *testing.T) {
	tests := []struct {
		origin Origin
		want   string
	}{
		{OriginUploadedFile, "uploaded_file"},
		{OriginArchiveEntry, "archive_entry"},
		{OriginSnippet, "snippet"},
		{OriginScaffold, "scaffold"},
		{Origin(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.origin.String())
		})
	}
}
