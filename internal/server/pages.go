package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pageTemplates = map[string]*template.Template{
	"setup":   parsePage("setup"),
	"success": parsePage("success"),
	"viewer":  parsePage("viewer"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFiles, "templates/layout.html", "templates/"+name+".html"))
}

type pageData struct {
	Username string
}

// PageHandler serves the HTML pages: setup at /, the post-login confirmation and the per-user viewer.
type PageHandler struct {
	mux *http.ServeMux
}

func NewPageHandler() *PageHandler {
	h := &PageHandler{mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.page("setup", nil))
	h.mux.HandleFunc("GET /success", h.page("success", func(r *http.Request) string { return r.URL.Query().Get("username") }))
	h.mux.HandleFunc("GET /{username}", h.page("viewer", func(r *http.Request) string { return r.PathValue("username") }))
	return h
}

// Routes returns the page patterns; /success wins over /{username} by specificity.
func (h *PageHandler) Routes() []string {
	return []string{"/{$}", "/success", "/{username}"}
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *PageHandler) page(name string, username func(*http.Request) string) http.HandlerFunc {
	tmpl := pageTemplates[name]
	return func(w http.ResponseWriter, r *http.Request) {
		var data pageData
		if username != nil {
			data.Username = username(r)
		}

		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		buf.WriteTo(w)
	}
}
