package httpserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"staysense/internal/adapters/session"
	"staysense/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{
	"landing",
	"hotels_index",
	"hotels_new",
	"hotels_show",
	"hotels_edit",
	"register",
	"login",
	"users_show",
	"users_edit",
	"message",
}

var funcs = template.FuncMap{
	"add":   func(a, b int) int { return a + b },
	"money": func(p int64) string { return fmt.Sprintf("₹%d", p) },
}

// view is what every page template receives.
type view struct {
	Title    string
	Identity *domain.Identity
	Data     any
}

type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses each page together with the shared layout.
func NewRenderer() (*Renderer, error) {
	rd := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		t, err := template.New(p).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+p+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", p, err)
		}
		rd.pages[p] = t
	}
	return rd, nil
}

func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	t, ok := rd.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	v := view{Title: title, Identity: session.IdentityFrom(r.Context()), Data: data}
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		log.Error().Err(err).Str("page", page).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Str("page", page).Msg("write page failed")
	}
}
