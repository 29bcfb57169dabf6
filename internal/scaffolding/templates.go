package scaffolding

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/respogen/respogen/internal/project"
	"github.com/respogen/respogen/internal/validation"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// DefaultTemplateID is used when the caller does not pick a template.
const DefaultTemplateID = "basic"

// FileTemplate is one scaffold file. Path and Content may contain the
// {{name}}, {{description}} and {{title}} placeholders.
type FileTemplate struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// ProjectTemplate is a named, versioned set of scaffold files.
type ProjectTemplate struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Version     int            `yaml:"version"`
	Files       []FileTemplate `yaml:"files"`
}

// TemplateInfo holds basic template information
type TemplateInfo struct {
	ID          string
	Name        string
	Description string
	Version     int
	Files       int
}

// Registry is an immutable set of templates keyed by ID. It is built once
// and shared read-only by every request.
type Registry struct {
	templates map[string]ProjectTemplate
	ids       []string
}

// probe is rendered through every template at load time so a template with
// a path that can never sanitize is rejected before serving requests.
var probe = project.Metadata{Name: "probe", Description: "probe"}

// NewRegistry validates the templates and builds a Registry.
func NewRegistry(templates ...ProjectTemplate) (*Registry, error) {
	r := &Registry{templates: make(map[string]ProjectTemplate, len(templates))}

	for _, tmpl := range templates {
		id := strings.TrimSpace(tmpl.ID)
		if id == "" {
			return nil, fmt.Errorf("template %q has no id", tmpl.Name)
		}
		if _, dup := r.templates[id]; dup {
			return nil, fmt.Errorf("duplicate template id %q", id)
		}

		seen := make(map[string]bool, len(tmpl.Files))
		for _, f := range tmpl.Files {
			p, err := validation.SanitizePath(substitute(f.Path, probe))
			if err != nil {
				return nil, fmt.Errorf("template %q: file %q: %w", id, f.Path, err)
			}
			if seen[p] {
				return nil, fmt.Errorf("template %q: duplicate file %q", id, p)
			}
			seen[p] = true
		}

		tmpl.ID = id
		r.templates[id] = tmpl
		r.ids = append(r.ids, id)
	}

	sort.Strings(r.ids)
	return r, nil
}

// LoadBuiltin loads the templates compiled into the binary.
func LoadBuiltin() (*Registry, error) {
	return LoadFS(builtinFS, "builtin")
}

// LoadDir loads every *.yaml / *.yml template definition from dir.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template directory %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads template definitions from dir inside fsys.
func LoadFS(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	var templates []ProjectTemplate
	for _, entry := range entries {
		if entry.IsDir() || !IsTemplateFile(entry.Name()) {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		var tmpl ProjectTemplate
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		templates = append(templates, tmpl)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}

	return NewRegistry(templates...)
}

// IsTemplateFile reports whether name looks like a template definition.
func IsTemplateFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Get returns a specific template
func (r *Registry) Get(id string) (ProjectTemplate, bool) {
	tmpl, ok := r.templates[id]
	return tmpl, ok
}

// Has reports whether id is a known template.
func (r *Registry) Has(id string) bool {
	_, ok := r.templates[id]
	return ok
}

// IDs returns the sorted template identifiers.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// List returns available templates sorted by ID.
func (r *Registry) List() []TemplateInfo {
	infos := make([]TemplateInfo, 0, len(r.ids))
	for _, id := range r.ids {
		tmpl := r.templates[id]
		infos = append(infos, TemplateInfo{
			ID:          id,
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Version:     tmpl.Version,
			Files:       len(tmpl.Files),
		})
	}
	return infos
}
