// Package assembler merges the scaffold and user file sets and streams the
// result as a deterministic ZIP archive.
package assembler

import (
	"archive/zip"
	"context"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/project"
)

// FixedModTime is stamped on every entry so identical inputs give
// byte-identical archives.
var FixedModTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const entryMode = 0o644

// Stats summarizes a written archive.
type Stats struct {
	Entries          int
	UncompressedSize int64
	BytesWritten     int64
}

// Assembler writes archives.
type Assembler struct {
	level  int
	logger logging.Logger
}

// New creates an Assembler compressing at flate.DefaultCompression.
func New(logger logging.Logger) *Assembler {
	return NewWithLevel(flate.DefaultCompression, logger)
}

// NewWithLevel creates an Assembler with an explicit DEFLATE level.
func NewWithLevel(level int, logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Assembler{level: level, logger: logger.WithComponent("assembler")}
}

// Merge overlays user on scaffold; user entries win on a shared path.
// Scaffold entries dropped because a user entry needs their path as a file
// or as a directory are recorded in warnings when it is non-nil.
func Merge(scaffold, user *project.FileSet, warnings *errors.Collector) *project.FileSet {
	if scaffold == nil {
		scaffold = project.NewFileSet()
	}
	merged, conflicts := scaffold.Overlay(user)
	if warnings != nil {
		for _, c := range conflicts {
			warnings.Add(errors.NewPathConflictError(c.Dropped.Path(), c.Winner.Path()))
		}
	}
	return merged
}

// Assemble merges both sets and writes the archive to w.
func (a *Assembler) Assemble(ctx context.Context, w io.Writer, scaffold, user *project.FileSet) (Stats, error) {
	return a.Write(ctx, w, Merge(scaffold, user, nil))
}

// Write streams set to w in path order. Only one entry's content is held
// by the compressor at a time.
//
// If ctx is cancelled or w fails, Write stops without finalizing the
// archive, so the consumer sees a truncated stream, and returns a stream
// error.
func (a *Assembler) Write(ctx context.Context, w io.Writer, set *project.FileSet) (Stats, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.level)
	})

	var stats Stats
	for _, e := range set.Sorted() {
		if err := ctx.Err(); err != nil {
			return stats, a.abort(ctx, e.Path(), err)
		}

		hdr := &zip.FileHeader{
			Name:     e.Path(),
			Method:   zip.Deflate,
			Modified: FixedModTime,
		}
		hdr.SetMode(entryMode)

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return stats, a.abort(ctx, e.Path(), err)
		}
		n, err := io.Copy(fw, e.Open())
		if err != nil {
			return stats, a.abort(ctx, e.Path(), err)
		}

		stats.Entries++
		stats.UncompressedSize += n
	}

	if err := zw.Close(); err != nil {
		return stats, a.abort(ctx, "", err)
	}
	stats.BytesWritten = cw.n

	a.logger.Debug(ctx, "Archive written",
		"entries", stats.Entries,
		"uncompressed_bytes", stats.UncompressedSize,
		"bytes_written", stats.BytesWritten,
	)

	return stats, nil
}

func (a *Assembler) abort(ctx context.Context, path string, cause error) error {
	err := errors.NewStreamError("archive stream aborted", cause)
	if path != "" {
		err = err.WithPath(path)
	}
	a.logger.Warn(ctx, err, "Archive stream aborted")
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
