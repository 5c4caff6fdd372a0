// Package web renders the server-side pages from embedded templates.
// Every page is parsed together with the base layout at startup, so a
// broken template fails boot instead of a request.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{
	"overview",
	"tour",
	"login",
	"signup",
	"account",
	"my_tours",
	"error",
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("January 2006")
	},
	"upper": strings.ToUpper,
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templatesFS,
			"templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

func (r *Renderer) Render(w io.Writer, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	return tmpl.ExecuteTemplate(w, "base.html", data)
}
