// Package extract decodes an uploaded ZIP archive into file entries while
// bounding memory against decompression bombs and skipping entries whose
// paths would escape the project root.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/project"
	"github.com/respogen/respogen/internal/validation"
)

const mib = 1 << 20

// Limits are the ceilings applied while extracting one archive.
type Limits struct {
	MaxTotalBytes int64
	MaxEntryBytes int64
	MaxEntries    int
	MaxPathLength int
}

// DefaultLimits returns the ceilings used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxTotalBytes: 100 * mib,
		MaxEntryBytes: 100 * mib,
		MaxEntries:    10000,
		MaxPathLength: validation.MaxPathLength,
	}
}

// Extractor turns archive blobs into ArchiveEntry file entries.
type Extractor struct {
	limits Limits
	logger logging.Logger
}

// New creates an Extractor. A nil logger discards output.
func New(limits Limits, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{
		limits: limits,
		logger: logger.WithComponent("extractor"),
	}
}

// ExtractBytes is Extract over an in-memory blob.
func (x *Extractor) ExtractBytes(ctx context.Context, blob []byte, warnings *errors.Collector) ([]project.FileEntry, error) {
	return x.Extract(ctx, bytes.NewReader(blob), int64(len(blob)), warnings)
}

// Extract reads every regular file of the archive in archive order.
//
// An entry whose path fails sanitization, a symlink, or an entry using an
// unsupported compression method is skipped and recorded in warnings.
// An unreadable archive fails with an archive error; a breached ceiling
// fails with a payload error and nothing is returned.
func (x *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64, warnings *errors.Collector) ([]project.FileEntry, error) {
	if warnings == nil {
		warnings = errors.NewCollector()
	}

	zr, err := zip.NewReader(r, size)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, errors.NewArchiveError("uploaded archive could not be read", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	if x.limits.MaxEntries > 0 && len(zr.File) > x.limits.MaxEntries {
		return nil, errors.NewPayloadTooLargeError(
			fmt.Sprintf("archive has %d entries, limit is %d", len(zr.File), x.limits.MaxEntries),
			int64(x.limits.MaxEntries))
	}

	entries := make([]project.FileEntry, 0, len(zr.File))
	var total int64

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCanceledError(err)
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if f.Mode()&fs.ModeType != 0 {
			x.skip(ctx, warnings, errors.NewPathError(f.Name, "not a regular file"))
			continue
		}

		clean, err := validation.SanitizePathWithLimit(f.Name, x.limits.MaxPathLength)
		if err != nil {
			x.skip(ctx, warnings, err)
			continue
		}

		if x.limits.MaxEntryBytes > 0 && f.UncompressedSize64 > uint64(x.limits.MaxEntryBytes) {
			return nil, x.entryTooLarge(clean)
		}

		content, err := x.readEntry(f, total)
		if err != nil {
			if errors.Is(err, zip.ErrAlgorithm) {
				x.skip(ctx, warnings, errors.NewArchiveError("unsupported compression method", err).WithPath(clean))
				continue
			}
			if errors.IsPayloadTooLarge(err) {
				return nil, err
			}
			return nil, errors.NewArchiveError("uploaded archive entry could not be read", err).WithPath(clean)
		}

		total += int64(len(content))
		entries = append(entries, project.NewFileEntry(clean, content, project.OriginArchiveEntry))
	}

	x.logger.Debug(ctx, "Archive extracted",
		"entries", len(entries),
		"bytes", total,
	)

	return entries, nil
}

// readEntry reads at most one byte past the tighter of the two ceilings so
// a header that lies about its size is still caught.
func (x *Extractor) readEntry(f *zip.File, total int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	budget := int64(-1)
	if x.limits.MaxEntryBytes > 0 {
		budget = x.limits.MaxEntryBytes
	}
	if x.limits.MaxTotalBytes > 0 {
		remaining := x.limits.MaxTotalBytes - total
		if budget < 0 || remaining < budget {
			budget = remaining
		}
	}

	var src io.Reader = rc
	if budget >= 0 {
		src = io.LimitReader(rc, budget+1)
	}

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	n := int64(len(content))
	if x.limits.MaxEntryBytes > 0 && n > x.limits.MaxEntryBytes {
		return nil, x.entryTooLarge(f.Name)
	}
	if x.limits.MaxTotalBytes > 0 && total+n > x.limits.MaxTotalBytes {
		return nil, errors.NewPayloadTooLargeError(
			fmt.Sprintf("archive expands beyond %d bytes", x.limits.MaxTotalBytes),
			x.limits.MaxTotalBytes)
	}
	return content, nil
}

func (x *Extractor) entryTooLarge(path string) error {
	return errors.NewPayloadTooLargeError(
		fmt.Sprintf("archive entry exceeds %d bytes", x.limits.MaxEntryBytes),
		x.limits.MaxEntryBytes).WithPath(path)
}

func (x *Extractor) skip(ctx context.Context, warnings *errors.Collector, err error) {
	warnings.Add(err)
	x.logger.Warn(ctx, err, "Archive entry skipped")
}
