package assembler

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/project"
)

func fileSet(origin project.Origin, kv ...string) *project.FileSet {
	set := project.NewFileSet()
	for i := 0; i+1 < len(kv); i += 2 {
		set.Put(project.NewFileEntry(kv[i], []byte(kv[i+1]), origin))
	}
	return set
}

func readArchive(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		names = append(names, f.Name)
		files[f.Name] = string(b)
		assert.True(t, f.Modified.Equal(FixedModTime), "entry %s has modtime %v", f.Name, f.Modified)
	}
	return names, files
}

func TestMergeUserOverridesScaffold(t *testing.T) {
	scaffold := fileSet(project.OriginScaffold, "README.md", "# default", "LICENSE", "MIT")
	user := fileSet(project.OriginUploadedFile, "README.md", "custom", "index.js", "console.log(1)")

	warnings := rerrors.NewCollector()
	merged := Merge(scaffold, user, warnings)
	assert.False(t, warnings.HasWarnings())

	readme, ok := merged.Get("README.md")
	require.True(t, ok)
	assert.Equal(t, "custom", string(readme.Content()))
	assert.Equal(t, project.OriginUploadedFile, readme.Origin())
	assert.Equal(t, []string{"LICENSE", "README.md", "index.js"}, merged.Paths())

	// inputs are untouched
	readme, _ = scaffold.Get("README.md")
	assert.Equal(t, "# default", string(readme.Content()))
}

func TestMergeNilScaffold(t *testing.T) {
	merged := Merge(nil, fileSet(project.OriginSnippet, "a.txt", "a"), nil)
	assert.Equal(t, []string{"a.txt"}, merged.Paths())
}

func TestMergeFileDirectoryConflicts(t *testing.T) {
	tests := []struct {
		name        string
		scaffold    []string
		user        []string
		wantPaths   []string
		wantDropped []string
	}{
		{
			name:        "user directory over scaffold file",
			scaffold:    []string{"README.md", "# default", "LICENSE", "MIT"},
			user:        []string{"README.md/notes.txt", "notes"},
			wantPaths:   []string{"LICENSE", "README.md/notes.txt"},
			wantDropped: []string{"README.md"},
		},
		{
			name:        "user file over scaffold directory",
			scaffold:    []string{"src/index.js", "index", "src/app.js", "app", "LICENSE", "MIT"},
			user:        []string{"src", "plain file"},
			wantPaths:   []string{"LICENSE", "src"},
			wantDropped: []string{"src/index.js", "src/app.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := rerrors.NewCollector()
			merged := Merge(
				fileSet(project.OriginScaffold, tt.scaffold...),
				fileSet(project.OriginUploadedFile, tt.user...),
				warnings,
			)

			assert.Equal(t, tt.wantPaths, merged.Paths())

			var dropped []string
			for _, w := range warnings.Warnings() {
				assert.True(t, rerrors.IsPathRejected(w))
				var ae *rerrors.AssemblyError
				require.True(t, errors.As(w, &ae))
				dropped = append(dropped, ae.Path)
			}
			assert.Equal(t, tt.wantDropped, dropped)

			var buf bytes.Buffer
			_, err := New(nil).Write(context.Background(), &buf, merged)
			require.NoError(t, err)
			names, _ := readArchive(t, buf.Bytes())
			assert.Equal(t, tt.wantPaths, names)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	set := fileSet(project.OriginUploadedFile,
		"src/main.go", "package main\n",
		"README.md", "hello",
		"empty.txt", "",
		"docs/a/b/c.md", "deep",
	)

	var buf bytes.Buffer
	stats, err := New(nil).Write(context.Background(), &buf, set)
	require.NoError(t, err)

	names, files := readArchive(t, buf.Bytes())
	assert.Equal(t, []string{"README.md", "docs/a/b/c.md", "empty.txt", "src/main.go"}, names)

	want := map[string]string{
		"src/main.go":   "package main\n",
		"README.md":     "hello",
		"empty.txt":     "",
		"docs/a/b/c.md": "deep",
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 4, stats.Entries)
	assert.Equal(t, set.TotalSize(), stats.UncompressedSize)
	assert.Equal(t, int64(buf.Len()), stats.BytesWritten)
}

func TestWriteIsDeterministic(t *testing.T) {
	a := fileSet(project.OriginUploadedFile, "b.txt", "bee", "a.txt", "ay", "c/d.txt", "dee")
	b := fileSet(project.OriginSnippet, "c/d.txt", "dee", "a.txt", "ay", "b.txt", "bee")

	var first, second bytes.Buffer
	_, err := New(nil).Write(context.Background(), &first, a)
	require.NoError(t, err)
	_, err = New(nil).Write(context.Background(), &second, b)
	require.NoError(t, err)

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestWriteNoDirectoryEntries(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(nil).Write(context.Background(), &buf, fileSet(project.OriginUploadedFile, "a/b/c.txt", "x"))
	require.NoError(t, err)

	names, _ := readArchive(t, buf.Bytes())
	assert.Equal(t, []string{"a/b/c.txt"}, names)
}

type failingWriter struct {
	limit int
	n     int
}

var errDisconnected = errors.New("client disconnected")

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n+len(p) > f.limit {
		return 0, errDisconnected
	}
	f.n += len(p)
	return len(p), nil
}

func TestWriteAbortsOnWriterFailure(t *testing.T) {
	set := fileSet(project.OriginUploadedFile, "a.txt", string(bytes.Repeat([]byte("abcdefgh"), 10000)))

	_, err := New(nil).Write(context.Background(), &failingWriter{limit: 16}, set)
	require.Error(t, err)
	assert.True(t, rerrors.IsStreamFailure(err))
	assert.ErrorIs(t, err, errDisconnected)
}

type cancelAfter struct {
	buf    bytes.Buffer
	cancel context.CancelFunc
}

func (c *cancelAfter) Write(p []byte) (int, error) {
	c.cancel()
	return c.buf.Write(p)
}

func TestWriteCancelledLeavesTruncatedArchive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// enough incompressible data to push the first entry through the
	// writer's buffer, which cancels ctx before the second entry
	noise := make([]byte, 256<<10)
	rand.New(rand.NewSource(1)).Read(noise)

	w := &cancelAfter{cancel: cancel}
	set := fileSet(project.OriginUploadedFile, "a.bin", string(noise), "b.txt", "b", "c.txt", "c")

	_, err := New(nil).Write(ctx, w, set)
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrStreamFailure)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Positive(t, w.buf.Len())

	// the central directory was never written
	_, err = zip.NewReader(bytes.NewReader(w.buf.Bytes()), int64(w.buf.Len()))
	assert.Error(t, err)
}

func TestAssemble(t *testing.T) {
	scaffold := fileSet(project.OriginScaffold, "README.md", "# node", "package.json", "{}")
	user := fileSet(project.OriginUploadedFile, "README.md", "custom")

	var buf bytes.Buffer
	_, err := NewWithLevel(9, nil).Assemble(context.Background(), &buf, scaffold, user)
	require.NoError(t, err)

	_, files := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{"README.md": "custom", "package.json": "{}"}, files)
}
