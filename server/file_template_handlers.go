package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed templates/*
var templateFiles embed.FS

const contentTypeHTML = "text/html; charset=utf-8"

var pageFiles = []string{
	"index.html",
	"login.html",
	"signup.html",
	"forgot_password.html",
	"reset_password.html",
	"verify_account.html",
	"feed.html",
	"messages.html",
	"profile.html",
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// parsePages parses every page together with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		tmpl, err := template.ParseFS(TemplateFilesFS(), "layout.html", name)
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return pages, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data PageData) {
	tmpl, ok := s.pages[name]
	if !ok {
		zerolog.Ctx(r.Context()).Error().Str("template", name).Msg("Unknown template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	data.AppName = s.config.GetAppName()

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("template", name).Msg("Failed to render template")
	}
}
