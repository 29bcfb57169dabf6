package services

import (
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/respogen/respogen/internal/assembler"
	"github.com/respogen/respogen/internal/config"
	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/extract"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/normalize"
	"github.com/respogen/respogen/internal/project"
	"github.com/respogen/respogen/internal/scaffolding"
	"github.com/respogen/respogen/internal/validation"
)

// GenerateService runs the archive pipeline for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type GenerateService struct {
	store      *scaffolding.Store
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	assembler  *assembler.Assembler
	logger     logging.Logger
}

// NewGenerateService creates a generate service. Templates are read from
// store on every request so a reload takes effect for the next one.
func NewGenerateService(limits config.LimitsConfig, store *scaffolding.Store, logger logging.Logger) *GenerateService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &GenerateService{
		store: store,
		extractor: extract.New(extract.Limits{
			MaxTotalBytes: limits.MaxArchiveTotalBytes,
			MaxEntryBytes: limits.MaxEntryBytes,
			MaxEntries:    limits.MaxEntries,
			MaxPathLength: limits.MaxPathLength,
		}, logger),
		normalizer: normalize.New(normalize.Options{
			MaxEntryBytes: limits.MaxEntryBytes,
			MaxPathLength: limits.MaxPathLength,
		}, logger),
		assembler: assembler.New(logger),
		logger:    logger.WithComponent("generate"),
	}
}

// GenerateRequest is the typed form of one generate call.
type GenerateRequest struct {
	Name        string
	Description string
	TemplateID  string
	Uploads     []normalize.Upload
	// Archive is nil when no archive was uploaded.
	Archive  []byte
	Snippets []project.Snippet
}

// Plan is a fully resolved project ready to be streamed.
type Plan struct {
	Metadata project.Metadata
	Files    *project.FileSet
	Warnings []error
}

// ArchiveName is the download file name.
func (p *Plan) ArchiveName() string {
	return p.Metadata.Name + ".zip"
}

// GenerateResult describes a finished archive.
type GenerateResult struct {
	Plan  *Plan
	Stats assembler.Stats
}

// Prepare validates the request and builds the final FileSet without
// writing anything. Every fatal condition is reported here, before the
// first byte of output.
func (s *GenerateService) Prepare(ctx context.Context, req GenerateRequest) (*Plan, error) {
	name, err := validation.SanitizeProjectName(req.Name)
	if err != nil {
		return nil, err
	}

	templateID := strings.TrimSpace(req.TemplateID)
	if templateID == "" {
		templateID = scaffolding.DefaultTemplateID
	}

	registry := s.store.Current()
	if err := registry.Check(templateID); err != nil {
		return nil, err
	}

	meta := project.Metadata{
		Name:        name,
		Description: validation.SanitizeInput(req.Description),
		TemplateID:  templateID,
	}

	warnings := errors.NewCollector()

	var (
		archived []project.FileEntry
		scaffold *project.FileSet
	)

	g, gctx := errgroup.WithContext(ctx)

	if req.Archive != nil {
		g.Go(func() error {
			entries, err := s.extractor.ExtractBytes(gctx, req.Archive, warnings)
			if err != nil {
				if errors.IsArchiveError(err) {
					warnings.Add(err)
					s.logger.Warn(gctx, err, "Uploaded archive ignored")
					return nil
				}
				return err
			}
			archived = entries
			return nil
		})
	}

	g.Go(func() error {
		set, err := registry.Resolve(templateID, meta)
		if err != nil {
			return err
		}
		scaffold = set
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCanceledError(err)
	}

	user, err := s.normalizer.Normalize(ctx, normalize.Sources{
		Archive:  archived,
		Uploads:  req.Uploads,
		Snippets: req.Snippets,
	}, warnings)
	if err != nil {
		return nil, err
	}

	files := assembler.Merge(scaffold, user, warnings)
	plan := &Plan{
		Metadata: meta,
		Files:    files,
		Warnings: warnings.Warnings(),
	}

	s.logger.Info(ctx, "Project prepared",
		"name", meta.Name,
		"template", meta.TemplateID,
		"user_files", user.Len(),
		"scaffold_files", scaffold.Len(),
		"files", plan.Files.Len(),
		"warnings", len(plan.Warnings),
	)

	return plan, nil
}

// Stream writes the plan as a ZIP archive to w.
func (s *GenerateService) Stream(ctx context.Context, w io.Writer, plan *Plan) (assembler.Stats, error) {
	return s.assembler.Write(ctx, w, plan.Files)
}

// Generate runs Prepare and Stream back to back.
func (s *GenerateService) Generate(ctx context.Context, w io.Writer, req GenerateRequest) (*GenerateResult, error) {
	perf := logging.StartOperation(s.logger, "generate")

	plan, err := s.Prepare(ctx, req)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	stats, err := s.Stream(ctx, w, plan)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	perf.End(ctx, "entries", stats.Entries, "bytes", stats.BytesWritten)
	return &GenerateResult{Plan: plan, Stats: stats}, nil
}
