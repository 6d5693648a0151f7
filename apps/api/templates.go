package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
)

//go:embed templates/*.tmpl static/*
var pageAssetsFS embed.FS

const templateLayoutPath = "templates/layout.tmpl"

// templateRenderer parses templates per render. Development reads them from
// disk so edits show up without a rebuild.
type templateRenderer struct {
	env string
}

func newTemplateRenderer(env string) *templateRenderer {
	return &templateRenderer{env: env}
}

func (r *templateRenderer) sourceFS() fs.FS {
	if r.env == "development" {
		return os.DirFS(".")
	}
	return pageAssetsFS
}

func (r *templateRenderer) templatesForRender(contentTemplatePath string) (*template.Template, error) {
	templates, err := template.New("layout.tmpl").ParseFS(r.sourceFS(), templateLayoutPath, contentTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return templates, nil
}

func staticFileSystem(env string) (http.FileSystem, error) {
	if env == "development" {
		return http.Dir("static"), nil
	}

	sub, err := fs.Sub(pageAssetsFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static fs: %w", err)
	}
	return http.FS(sub), nil
}
