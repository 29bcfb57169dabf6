// Package scaffolding owns the process-wide template registry and resolves
// a template into the default project files (README, license, ignore file,
// manifests) for one request.
package scaffolding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/project"
	"github.com/respogen/respogen/internal/validation"
)

// Store holds the current Registry. Readers take a snapshot with Current
// and keep using it for the whole request; a reload swaps in a new
// Registry without touching the old one.
type Store struct {
	current atomic.Pointer[Registry]
}

// NewStore creates a store serving r.
func NewStore(r *Registry) *Store {
	s := &Store{}
	s.current.Store(r)
	return s
}

// Current returns the registry snapshot.
func (s *Store) Current() *Registry {
	return s.current.Load()
}

// Swap replaces the registry for subsequent requests.
func (s *Store) Swap(r *Registry) {
	s.current.Store(r)
}

// Check fails fast when templateID is not in the registry.
func (r *Registry) Check(templateID string) error {
	if r.Has(templateID) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeUnknownTemplate,
		fmt.Sprintf("unknown template %q (available: %s)", templateID, strings.Join(r.ids, ", "))).
		WithContext("template", templateID)
}

// Resolve renders the scaffold files of templateID for meta. Entries carry
// OriginScaffold; they are meant to sit underneath user content.
func (r *Registry) Resolve(templateID string, meta project.Metadata) (*project.FileSet, error) {
	if err := r.Check(templateID); err != nil {
		return nil, err
	}
	tmpl := r.templates[templateID]

	set := project.NewFileSet()
	for _, f := range tmpl.Files {
		p, err := validation.SanitizePath(substitute(f.Path, meta))
		if err != nil {
			return nil, errors.NewInternalError(
				fmt.Sprintf("template %q produced an invalid path", templateID), err)
		}
		set.Put(project.NewFileEntry(p, []byte(substitute(f.Content, meta)), project.OriginScaffold))
	}

	return set, nil
}

// substitute replaces the placeholders with plain-text metadata values.
// {{description_escaped}} is the description escaped for the inside of a
// double-quoted JSON or TOML string. Unknown {{...}} sequences are left
// untouched.
func substitute(s string, meta project.Metadata) string {
	return strings.NewReplacer(
		"{{name}}", meta.Name,
		"{{description}}", meta.Description,
		"{{description_escaped}}", escapeQuoted(meta.Description),
		"{{title}}", titleCase(meta.Name),
	).Replace(s)
}

// escapeQuoted returns s as the body of a JSON string literal, without the
// surrounding quotes.
func escapeQuoted(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return ""
	}
	quoted := strings.TrimSuffix(buf.String(), "\n")
	// TOML forbids a raw DEL even though JSON allows it
	return strings.ReplaceAll(quoted[1:len(quoted)-1], "\x7f", `\u007f`)
}

// titleCase turns "my-cool_app" into "My Cool App".
func titleCase(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
