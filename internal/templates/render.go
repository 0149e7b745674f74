// Package templates renders the story page and the HTML fragments sent
// over Datastar SSE.
package templates

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"path/filepath"
	"sync"
)

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// json encodes a value for a data-signals attribute
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// Renderer manages page and fragment templates.
type Renderer struct {
	dir       string
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the templates under dir: pages in dir/*.html and fragments
// in dir/fragments/*.html.
func New(dir string) (*Renderer, error) {
	tmpl, err := parse(dir)
	if err != nil {
		return nil, err
	}
	return &Renderer{dir: dir, templates: tmpl}, nil
}

func parse(dir string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(dir, "fragments", "*.html"))
	if err != nil {
		return nil, err
	}
	return tmpl.ParseGlob(filepath.Join(dir, "*.html"))
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderTo(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo renders a named template to w.
func (r *Renderer) RenderTo(w io.Writer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(w, name, data)
}

// Reload reloads templates from disk (useful for dev hot-reload).
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
