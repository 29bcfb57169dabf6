// Package project holds the data model shared by every stage of archive
// assembly: file entries, the per-request project metadata, and the
// unique-by-path FileSet that flows from ingestion to serialization.
package project

import (
	"bytes"
	"io"
	"sort"
	"strings"
)

// DefaultProjectName is used when the caller leaves the project name blank.
const DefaultProjectName = "my-project"

// Origin records which input source produced a FileEntry.
type Origin int

const (
	OriginUploadedFile Origin = iota
	OriginArchiveEntry
	OriginSnippet
	OriginScaffold
)

// String returns the string representation of the Origin
func (o Origin) String() string {
	switch o {
	case OriginUploadedFile:
		return "uploaded_file"
	case OriginArchiveEntry:
		return "archive_entry"
	case OriginSnippet:
		return "snippet"
	case OriginScaffold:
		return "scaffold"
	default:
		return "unknown"
	}
}

// FileEntry is a single file of the project tree. It is immutable once
// constructed; the path must already have passed validation.SanitizePath.
type FileEntry struct {
	path    string
	content []byte
	origin  Origin
}

// NewFileEntry creates an entry owning a private copy of content.
func NewFileEntry(path string, content []byte, origin Origin) FileEntry {
	return FileEntry{
		path:    path,
		content: bytes.Clone(content),
		origin:  origin,
	}
}

// Path returns the normalized relative path, the entry's identity key.
func (e FileEntry) Path() string { return e.path }

// Origin returns the source that produced the entry.
func (e FileEntry) Origin() Origin { return e.origin }

// Size returns the content length in bytes.
func (e FileEntry) Size() int64 { return int64(len(e.content)) }

// Open returns a reader over the content without copying it.
func (e FileEntry) Open() io.Reader { return bytes.NewReader(e.content) }

// Content returns a copy of the entry's bytes.
func (e FileEntry) Content() []byte { return bytes.Clone(e.content) }

// Snippet is an inline code record as submitted by the client.
type Snippet struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Metadata describes the project being generated. It is built once per
// request at the boundary and read-only afterwards.
type Metadata struct {
	Name        string
	Description string
	TemplateID  string
}

// FileSet is an ordered, unique-by-path collection of entries. Insertion
// order is kept; Sorted gives the reproducible serialization order.
//
// No path in a FileSet is a directory prefix of another, so the set always
// extracts to a valid tree: "src" and "src/main.go" never coexist.
// A FileSet is not safe for concurrent mutation.
type FileSet struct {
	index   map[string]int
	dirs    map[string]int // directory -> number of entries beneath it
	entries []FileEntry
}

// Conflict records an entry dropped because a later entry needed its path
// as a directory, or the reverse.
type Conflict struct {
	Dropped FileEntry
	Winner  FileEntry
}

// NewFileSet creates an empty FileSet
func NewFileSet() *FileSet {
	return &FileSet{
		index: make(map[string]int),
		dirs:  make(map[string]int),
	}
}

// Put inserts e. An entry with the same path is replaced in place and
// replaced is true. Entries that clash with e as a file/directory pair are
// removed and returned as conflicts; e always wins.
func (s *FileSet) Put(e FileEntry) (replaced bool, conflicts []Conflict) {
	if i, ok := s.index[e.path]; ok {
		s.entries[i] = e
		return true, nil
	}

	for _, dir := range parentDirs(e.path) {
		if i, ok := s.index[dir]; ok {
			conflicts = append(conflicts, Conflict{Dropped: s.entries[i], Winner: e})
		}
	}
	if s.dirs[e.path] > 0 {
		prefix := e.path + "/"
		for _, x := range s.entries {
			if strings.HasPrefix(x.path, prefix) {
				conflicts = append(conflicts, Conflict{Dropped: x, Winner: e})
			}
		}
	}
	if len(conflicts) > 0 {
		s.remove(conflicts)
	}

	s.add(e)
	return false, conflicts
}

func (s *FileSet) add(e FileEntry) {
	s.index[e.path] = len(s.entries)
	s.entries = append(s.entries, e)
	for _, dir := range parentDirs(e.path) {
		s.dirs[dir]++
	}
}

func (s *FileSet) remove(conflicts []Conflict) {
	drop := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		drop[c.Dropped.path] = true
	}

	kept := s.entries
	s.entries = make([]FileEntry, 0, len(kept))
	s.index = make(map[string]int, len(kept))
	s.dirs = make(map[string]int)
	for _, x := range kept {
		if !drop[x.path] {
			s.add(x)
		}
	}
}

// parentDirs returns every proper directory prefix of p, outermost first.
func parentDirs(p string) []string {
	var dirs []string
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			dirs = append(dirs, p[:i])
		}
	}
	return dirs
}

// Get returns the entry stored at path.
func (s *FileSet) Get(path string) (FileEntry, bool) {
	i, ok := s.index[path]
	if !ok {
		return FileEntry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of entries.
func (s *FileSet) Len() int { return len(s.entries) }

// TotalSize returns the sum of all entry sizes.
func (s *FileSet) TotalSize() int64 {
	var total int64
	for _, e := range s.entries {
		total += e.Size()
	}
	return total
}

// Entries returns the entries in insertion order.
func (s *FileSet) Entries() []FileEntry {
	out := make([]FileEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Sorted returns the entries ordered lexicographically by path.
func (s *FileSet) Sorted() []FileEntry {
	out := s.Entries()
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// Paths returns the sorted list of paths.
func (s *FileSet) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		paths = append(paths, e.path)
	}
	sort.Strings(paths)
	return paths
}

// Overlay returns a new FileSet holding s with every entry of top applied
// over it; on a shared path the entry from top wins. Entries of s displaced
// by a file/directory clash with top are reported as conflicts.
func (s *FileSet) Overlay(top *FileSet) (*FileSet, []Conflict) {
	merged := NewFileSet()
	for _, e := range s.entries {
		merged.Put(e)
	}

	var conflicts []Conflict
	if top != nil {
		for _, e := range top.entries {
			_, c := merged.Put(e)
			conflicts = append(conflicts, c...)
		}
	}
	return merged, conflicts
}
