// Package templates renders the HTML fragments streamed to the map page.
package templates

import (
	"bytes"
	"html/template"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// funcMap holds the fragment helpers.
var funcMap = template.FuncMap{
	// css marks a value produced by a validated color scheme as safe CSS.
	"css": func(s string) template.CSS { return template.CSS(s) },
	"pct": func(f float64) float64 { return f * 100 },
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	dir       string
	templates *template.Template
	mu        sync.RWMutex
}

// New parses every *.html file in fragmentsDir.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{dir: fragmentsDir, templates: tmpl}, nil
}

func parse(dir string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, eris.Wrapf(err, "templates: parse %s", dir)
	}
	return tmpl, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", eris.Wrapf(err, "templates: render %s", name)
	}
	return buf.String(), nil
}

// Reload re-parses templates from disk.
func (r *Renderer) Reload() error {
	tmpl, err := parse(r.dir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
