// Package normalize merges the user's input sources into one FileSet.
//
// Sources are applied in a fixed order, each overriding the previous one on
// a path collision: archive entries, then uploaded files, then snippets.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/project"
	"github.com/respogen/respogen/internal/validation"
)

// Upload is one loose file as received from the client. Name may carry a
// relative directory when a folder was uploaded.
type Upload struct {
	Name    string
	Content []byte
}

// Sources is everything the user supplied for one request.
type Sources struct {
	Archive  []project.FileEntry
	Uploads  []Upload
	Snippets []project.Snippet
}

// Options bound what the normalizer admits.
type Options struct {
	MaxEntryBytes int64
	MaxPathLength int
}

// Normalizer builds the user FileSet.
type Normalizer struct {
	opts   Options
	logger logging.Logger
}

// New creates a Normalizer. A nil logger discards output.
func New(opts Options, logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.MaxPathLength == 0 {
		opts.MaxPathLength = validation.MaxPathLength
	}
	return &Normalizer{opts: opts, logger: logger.WithComponent("normalizer")}
}

// Normalize returns the merged user FileSet. Rejected paths are recorded in
// warnings and dropped, as are entries shadowed by a later source that
// needs their path as a file or as a directory. It fails with EMPTY_PROJECT when nothing survives
// and with PAYLOAD_TOO_LARGE when a single file breaches the entry ceiling.
func (n *Normalizer) Normalize(ctx context.Context, src Sources, warnings *errors.Collector) (*project.FileSet, error) {
	if warnings == nil {
		warnings = errors.NewCollector()
	}
	set := project.NewFileSet()

	for _, e := range src.Archive {
		n.put(ctx, set, warnings, e)
	}

	for _, u := range src.Uploads {
		if err := n.checkSize(u.Name, int64(len(u.Content))); err != nil {
			return nil, err
		}
		path, err := validation.SanitizePathWithLimit(u.Name, n.opts.MaxPathLength)
		if err != nil {
			n.reject(ctx, warnings, err)
			continue
		}
		n.put(ctx, set, warnings, project.NewFileEntry(path, u.Content, project.OriginUploadedFile))
	}

	for _, s := range src.Snippets {
		name := strings.TrimSpace(s.Filename)
		if name == "" || strings.TrimSpace(s.Content) == "" {
			continue
		}
		if err := n.checkSize(name, int64(len(s.Content))); err != nil {
			return nil, err
		}
		path, err := validation.SanitizePathWithLimit(name, n.opts.MaxPathLength)
		if err != nil {
			n.reject(ctx, warnings, err)
			continue
		}
		n.put(ctx, set, warnings, project.NewFileEntry(path, []byte(s.Content), project.OriginSnippet))
	}

	if set.Len() == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeEmptyProject,
			"no valid files were provided: upload files, an archive or a snippet")
	}

	n.logger.Debug(ctx, "Sources normalized",
		"files", set.Len(),
		"bytes", set.TotalSize(),
	)

	return set, nil
}

func (n *Normalizer) put(ctx context.Context, set *project.FileSet, warnings *errors.Collector, e project.FileEntry) {
	prev, exists := set.Get(e.Path())
	_, conflicts := set.Put(e)
	if exists {
		n.logger.Debug(ctx, "Path overridden",
			"path", e.Path(),
			"winner", e.Origin().String(),
			"loser", prev.Origin().String(),
		)
	}
	for _, c := range conflicts {
		n.reject(ctx, warnings, errors.NewPathConflictError(c.Dropped.Path(), c.Winner.Path()))
	}
}

func (n *Normalizer) checkSize(name string, size int64) error {
	if n.opts.MaxEntryBytes > 0 && size > n.opts.MaxEntryBytes {
		return errors.NewPayloadTooLargeError(
			fmt.Sprintf("file exceeds %d bytes", n.opts.MaxEntryBytes),
			n.opts.MaxEntryBytes).WithPath(name)
	}
	return nil
}

func (n *Normalizer) reject(ctx context.Context, warnings *errors.Collector, err error) {
	warnings.Add(err)
	n.logger.Warn(ctx, err, "File rejected")
}

// ParseSnippets decodes the JSON-encoded snippet list. Blank input means no
// snippets; malformed JSON is a validation error.
func ParseSnippets(raw string) ([]project.Snippet, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var snippets []project.Snippet
	if err := json.Unmarshal([]byte(raw), &snippets); err != nil {
		ae := errors.NewValidationError(errors.ErrCodeInvalidSnippets,
			"snippets must be a JSON array of {filename, content} objects")
		ae.Cause = err
		return nil, ae
	}
	return snippets, nil
}
