package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/respogen/respogen/internal/config"
	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/normalize"
	"github.com/respogen/respogen/internal/project"
	"github.com/respogen/respogen/internal/scaffolding"
	"github.com/respogen/respogen/internal/services"
)

var generateOpts struct {
	name        string
	description string
	template    string
	files       []string
	zip         string
	snippets    string
	output      string
}

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"g"},
	Short:   "Assemble a project archive locally",
	Long: `Assemble a project archive from local inputs, exactly as POST /generate does.

Each --file is added under its relative path; use local=archive/path to
choose the path inside the archive. --snippets points to a JSON file holding
[{"filename": "...", "content": "..."}].

Examples:
  respogen generate --name demo --template node -f index.js -f lib/util.js
  respogen generate --zip old.zip --snippets snippets.json -o out.zip`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringVarP(&generateOpts.name, "name", "n", "", "project name (default my-project)")
	f.StringVarP(&generateOpts.description, "description", "d", "", "project description")
	f.StringVarP(&generateOpts.template, "template", "t", scaffolding.DefaultTemplateID, "scaffold template id")
	f.StringArrayVarP(&generateOpts.files, "file", "f", nil, "file to include, optionally as local=archive/path (repeatable)")
	f.StringVar(&generateOpts.zip, "zip", "", "existing ZIP archive to use as the baseline")
	f.StringVar(&generateOpts.snippets, "snippets", "", "JSON file with snippets")
	f.StringVarP(&generateOpts.output, "output", "o", "", "output file (default <name>.zip)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	req, err := buildGenerateRequest(cfg.Limits)
	if err != nil {
		return err
	}

	svc := services.NewGenerateService(cfg.Limits, scaffolding.NewStore(registry), logger)
	return generateToFile(cmd.Context(), cmd.OutOrStdout(), svc, req, generateOpts.output)
}

func buildGenerateRequest(limits config.LimitsConfig) (services.GenerateRequest, error) {
	req := services.GenerateRequest{
		Name:        generateOpts.name,
		Description: generateOpts.description,
		TemplateID:  generateOpts.template,
	}

	for _, spec := range generateOpts.files {
		local, name := splitFileSpec(spec)
		content, err := readLimited(local, limits.MaxEntryBytes)
		if err != nil {
			return req, err
		}
		req.Uploads = append(req.Uploads, normalize.Upload{Name: name, Content: content})
	}

	if generateOpts.zip != "" {
		content, err := readLimited(generateOpts.zip, limits.MaxUploadBytes)
		if err != nil {
			return req, err
		}
		req.Archive = content
	}

	if generateOpts.snippets != "" {
		raw, err := readLimited(generateOpts.snippets, limits.MaxUploadBytes)
		if err != nil {
			return req, err
		}
		snippets, err := normalize.ParseSnippets(string(raw))
		if err != nil {
			return req, err
		}
		req.Snippets = snippets
	}

	return req, nil
}

// splitFileSpec parses "local=archive/path". Without "=", the local path
// is used as given, or its base name when it is absolute or climbs out of
// the working directory.
func splitFileSpec(spec string) (local, name string) {
	if i := strings.LastIndex(spec, "="); i > 0 {
		return spec[:i], spec[i+1:]
	}
	clean := filepath.Clean(spec)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return spec, filepath.Base(clean)
	}
	return spec, filepath.ToSlash(clean)
}

func readLimited(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && info.Size() > limit {
		return nil, errors.NewPayloadTooLargeError(
			fmt.Sprintf("%s is larger than %d bytes", path, limit), limit)
	}
	return os.ReadFile(path)
}

// generateToFile writes the archive through a temporary file that is only
// renamed into place once the archive is complete.
func generateToFile(ctx context.Context, out io.Writer, svc *services.GenerateService, req services.GenerateRequest, output string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	plan, err := svc.Prepare(ctx, req)
	if err != nil {
		return err
	}
	if output == "" {
		output = plan.ArchiveName()
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), ".respogen-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	stats, err := svc.Stream(ctx, tmp, plan)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	printSummary(out, plan, output, stats.Entries, stats.BytesWritten)
	return nil
}

func printSummary(out io.Writer, plan *services.Plan, output string, entries int, size int64) {
	ok := color.New(color.FgGreen).Sprint("✓")
	fmt.Fprintf(out, "%s %s (%d files, %d bytes, template %s)\n",
		ok, output, entries, size, plan.Metadata.TemplateID)

	for _, e := range plan.Files.Sorted() {
		fmt.Fprintf(out, "    %s %s\n", originTag(e.Origin()), e.Path())
	}

	if len(plan.Warnings) > 0 {
		warn := color.New(color.FgYellow)
		fmt.Fprintf(out, "%s %d input(s) skipped:\n", warn.Sprint("!"), len(plan.Warnings))
		for _, w := range plan.Warnings {
			fmt.Fprintf(out, "    %s\n", w)
		}
	}
}

func originTag(o project.Origin) string {
	switch o {
	case project.OriginScaffold:
		return color.New(color.Faint).Sprint("scaffold")
	case project.OriginSnippet:
		return color.New(color.FgHiMagenta).Sprint("snippet ")
	case project.OriginArchiveEntry:
		return color.New(color.FgBlue).Sprint("archive ")
	default:
		return color.New(color.FgCyan).Sprint("file    ")
	}
}
