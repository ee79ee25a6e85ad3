// Package web holds the HTML templates for the polls pages.
package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the embedded page templates. Each page is addressed by its file name, e.g. "index.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04 MST") },
	}).ParseFS(templatesFS, "templates/*.html")
}
