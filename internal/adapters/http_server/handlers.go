package httpserver

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"staysense/internal/adapters/observability"
	"staysense/internal/adapters/session"
	"staysense/internal/app"
	"staysense/internal/domain"
)

const maxUploadBytes = 32 << 20

type Handlers struct {
	Hotels   *app.HotelService
	Users    *app.UserService
	Checkout *app.CheckoutService
	View     *Renderer

	sessions *session.Manager
}

func (s *Server) MountHandlers(h *Handlers) {
	h.sessions = s.sessions

	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/", h.landing)
	s.mux.Get("/hotels", h.listHotels)
	s.mux.Get("/hotels/{id}", h.showHotel)
	s.mux.Get("/hotels/{id}/checkout/success", h.message("Payment done"))
	s.mux.Get("/hotels/{id}/checkout/cancel", h.message("Payment failed"))

	s.mux.Get("/register", h.page("register", "Register"))
	s.mux.Post("/register", h.register)
	s.mux.Get("/login", h.page("login", "Login"))
	s.mux.Post("/login", h.login)
	s.mux.Get("/logout", h.logout)

	s.mux.Group(func(r chi.Router) {
		r.Use(s.sessions.RequireUser)

		r.Get("/hotels/new", h.page("hotels_new", "New hotel"))
		r.Post("/hotels", h.createHotel)
		r.Get("/hotels/{id}/edit", h.editHotel)
		r.Patch("/hotels/{id}", h.updateHotel)
		r.Delete("/hotels/{id}", h.deleteHotel)

		// GET stays for links already out there; forms POST.
		for _, v := range []struct {
			path string
			dir  domain.Direction
		}{{"/hotels/{id}/upvote", domain.Up}, {"/hotels/{id}/downvote", domain.Down}} {
			r.Get(v.path, h.vote(v.dir))
			r.Post(v.path, h.vote(v.dir))
		}

		r.Get("/hotels/{id}/checkout", h.checkout)

		r.Get("/users/{id}", h.showUser)
		r.Get("/users/{id}/edit", h.editUser)
		r.Patch("/users/{id}", h.updateUser)
	})
}

// fail logs err and redirects. Anonymous actors go to /login, remembering
// the page they wanted; everything else lands on fallback.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ev *zerolog.Event
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrConflict):
		ev = log.Warn()
	default:
		ev = log.Error()
	}
	ev.Err(err).Str("route", routeOf(r)).Str("method", r.Method).Str("redirect", fallback).Msg("request failed")

	if errors.Is(err, domain.ErrUnauthorized) && session.IdentityFrom(r.Context()) == nil {
		if r.Method == http.MethodGet {
			h.sessions.RememberReturnTo(w, r.URL.RequestURI())
		}
		fallback = "/login"
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id %q: %w", chi.URLParam(r, "id"), domain.ErrNotFound)
	}
	return id, nil
}

func pageParam(r *http.Request) int {
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

func (h *Handlers) page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.View.Render(w, r, http.StatusOK, name, title, nil)
	}
}

func (h *Handlers) message(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.View.Render(w, r, http.StatusOK, "message", "Checkout", text)
	}
}

func (h *Handlers) landing(w http.ResponseWriter, r *http.Request) {
	h.View.Render(w, r, http.StatusOK, "landing", "Welcome", nil)
}

// ---- hotels ----

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	out, err := h.Hotels.List(r.Context(), pageParam(r))
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.View.Render(w, r, http.StatusOK, "hotels_index", "Hotels", out)
}

type showData struct {
	Hotel  domain.HotelView
	MyVote domain.VoteState
}

func (h *Handlers) showHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	hv, err := h.Hotels.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	data := showData{Hotel: hv}
	if actor := session.IdentityFrom(r.Context()); actor != nil {
		hotel := hv.Hotel()
		data.MyVote = domain.MembershipOf(&hotel, actor.UserID)
	}
	h.View.Render(w, r, http.StatusOK, "hotels_show", hv.Name, data)
}

// hotelInput reads the hotel[...] fields shared by create and edit.
func hotelInput(r *http.Request) (app.HotelInput, error) {
	in := app.HotelInput{
		Name:    strings.TrimSpace(r.FormValue("hotel[name]")),
		Address: strings.TrimSpace(r.FormValue("hotel[address]")),
	}
	raw := strings.TrimSpace(r.FormValue("hotel[price]"))
	if raw == "" {
		return in, nil
	}
	p, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return in, &domain.ValidationError{Fields: map[string]string{"hotel[price]": "must be a whole number"}}
	}
	in.Price = p
	return in, nil
}

func openUploads(fhs []*multipart.FileHeader) ([]domain.ImageUpload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	out := make([]domain.ImageUpload, 0, len(fhs))
	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		out = append(out, domain.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Data:        f,
		})
	}
	return out, closeAll, nil
}

func (h *Handlers) createHotel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.fail(w, r, &domain.ValidationError{Fields: map[string]string{"image": err.Error()}}, "/hotels")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	base, err := hotelInput(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	in := app.CreateHotelInput{HotelInput: base}
	if r.MultipartForm != nil {
		uploads, closeAll, err := openUploads(r.MultipartForm.File["image"])
		if err != nil {
			h.fail(w, r, err, "/hotels")
			return
		}
		defer closeAll()
		in.Images = uploads
	}

	id, err := h.Hotels.Create(r.Context(), session.IdentityFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/hotels/%d", id), http.StatusSeeOther)
}

func (h *Handlers) editHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	hv, err := h.Hotels.Owned(r.Context(), session.IdentityFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	h.View.Render(w, r, http.StatusOK, "hotels_edit", "Edit "+hv.Name, hv)
}

func (h *Handlers) updateHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	in, err := hotelInput(r)
	if err == nil {
		err = h.Hotels.Update(r.Context(), session.IdentityFrom(r.Context()), id, in)
	}
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/hotels/%d", id), http.StatusSeeOther)
}

func (h *Handlers) deleteHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = h.Hotels.Delete(r.Context(), session.IdentityFrom(r.Context()), id)
	}
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	http.Redirect(w, r, "/hotels", http.StatusSeeOther)
}

func (h *Handlers) vote(d domain.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.fail(w, r, err, "/hotels")
			return
		}
		st, err := h.Hotels.Vote(r.Context(), session.IdentityFrom(r.Context()), id, d)
		if err != nil {
			observability.ObserveVote(d.String(), "error")
			h.fail(w, r, err, fmt.Sprintf("/hotels/%d", id))
			return
		}
		observability.ObserveVote(d.String(), st.String())
		http.Redirect(w, r, fmt.Sprintf("/hotels/%d", id), http.StatusSeeOther)
	}
}

func (h *Handlers) checkout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	url, err := h.Checkout.Start(r.Context(), session.IdentityFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, fmt.Sprintf("/hotels/%d", id))
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// ---- identity ----

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Register(r.Context(), app.RegisterInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		h.fail(w, r, err, "/register")
		return
	}
	h.signIn(w, r, u, "/hotels")
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Authenticate(r.Context(), app.LoginInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		h.fail(w, r, fmt.Errorf("login: %w", err), "/login")
		return
	}
	h.signIn(w, r, u, h.sessions.PopReturnTo(w, r, "/hotels"))
}

func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request, u domain.User, to string) {
	if _, err := h.sessions.Issue(w, u); err != nil {
		h.fail(w, r, err, "/login")
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(r.Context(), w, session.IdentityFrom(r.Context()))
	http.Redirect(w, r, "/hotels", http.StatusSeeOther)
}

// ---- users ----

func (h *Handlers) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	p, err := h.Users.Profile(r.Context(), session.IdentityFrom(r.Context()), id, pageParam(r))
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	h.View.Render(w, r, http.StatusOK, "users_show", p.User.Username, p)
}

func (h *Handlers) editUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	u, err := h.Users.Editable(r.Context(), session.IdentityFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, fmt.Sprintf("/users/%d", id))
		return
	}
	h.View.Render(w, r, http.StatusOK, "users_edit", "Edit profile", u)
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "/hotels")
		return
	}
	actor := session.IdentityFrom(r.Context())
	u, err := h.Users.Update(r.Context(), actor, id, app.ProfileInput{
		Username: r.PostFormValue("user[username]"),
	})
	if err != nil {
		h.fail(w, r, err, fmt.Sprintf("/users/%d", id))
		return
	}
	// sessions and cached listings carry the old username
	h.sessions.Revoke(r.Context(), actor)
	if _, err := h.sessions.Issue(w, u); err != nil {
		log.Warn().Err(err).Int64("user", id).Msg("session refresh failed")
	}
	h.Hotels.ForgetAuthor(r.Context(), id)
	http.Redirect(w, r, fmt.Sprintf("/users/%d", id), http.StatusSeeOther)
}
