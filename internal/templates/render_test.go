package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplates(t *testing.T, page, fragment string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fragments"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fragments", "item.html"), []byte(fragment), 0o644))
	return dir
}

func TestRender(t *testing.T) {
	dir := writeTemplates(t,
		`{{define "page"}}<ul>{{range .}}{{template "item" dict "Name" .}}{{end}}</ul>{{end}}`,
		`{{define "item"}}<li data-signals='{{json .}}'>{{.Name}}</li>{{end}}`)

	r, err := New(dir)
	require.NoError(t, err)

	html, err := r.Render("page", []string{"a", "<b>"})
	require.NoError(t, err)
	assert.Contains(t, html, "<li")
	assert.Contains(t, html, "&lt;b&gt;")

	_, err = r.Render("missing", nil)
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	dir := writeTemplates(t, `{{define "page"}}v1{{end}}`, `{{define "item"}}{{end}}`)
	r, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(`{{define "page"}}v2{{end}}`), 0o644))
	require.NoError(t, r.Reload())

	html, err := r.Render("page", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", html)
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
