// Package web serves the server-rendered HTML application: login, story
// list, story view, create and delete. The logged-in actor comes from a
// session cookie and is passed to every page it affects.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/newsservice"
	"github.com/starford/gazette/internal/policy"
)

const (
	maxBodyBytes = 10 << 20

	actionSave   = "save"
	actionCancel = "cancel"

	errTryAgain = "An error occurred. Please try again."
)

// Handler holds the HTML route handlers.
type Handler struct {
	svc      *newsservice.Service
	sessions *Sessions
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *newsservice.Service, sessions *Sessions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// Routes returns the chi router for the HTML application.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(limitBody)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusNotFound, StatusPage(http.StatusNotFound, "Resource not found."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusMethodNotAllowed, StatusPage(http.StatusMethodNotAllowed, "Method not supported."))
	})

	r.Get("/", h.Home)
	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.Get("/display_create", h.DisplayCreate)
	r.Post("/submit_create", h.SubmitCreate)
	r.Get("/view", h.View)
	r.Get("/delete", h.Delete)
	return r
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxBodyBytes {
			tooLarge(w, r)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusRequestEntityTooLarge,
		StatusPage(http.StatusRequestEntityTooLarge, "Too much information. Server cannot handle this."))
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// parseForm answers 413 or 400 itself and reports false on failure.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			tooLarge(w, r)
		} else {
			render(w, r, http.StatusBadRequest, StatusPage(http.StatusBadRequest, "Malformed form."))
		}
		return false
	}
	return true
}

// Home handles GET /.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	a := h.sessions.Actor(r)
	if a.Anonymous() {
		render(w, r, http.StatusOK, LoginPage(a))
		return
	}
	h.stories(w, r, a)
}

func (h *Handler) stories(w http.ResponseWriter, r *http.Request, a policy.Actor) {
	render(w, r, http.StatusOK, StoriesPage(a, h.svc.Stories()))
}

// Login handles POST /login. The password must equal the username.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	username := r.PostFormValue("username")
	if username == "" || username != r.PostFormValue("password") {
		render(w, r, http.StatusOK, LoginErrorPage())
		return
	}
	a := policy.Actor{Username: username, Role: policy.ParseRole(r.PostFormValue("role"))}
	if err := h.sessions.Save(w, r, a); err != nil {
		h.logger.Error("save session failed", slog.String("error", err.Error()))
		render(w, r, http.StatusInternalServerError, StatusPage(http.StatusInternalServerError, "Internal error."))
		return
	}
	h.logger.Info("web login", slog.String("username", a.Username), slog.String("role", a.Role.String()))
	h.stories(w, r, a)
}

// Logout handles GET /logout and shows the login form pre-filled with the
// previous user.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	prev := h.sessions.Actor(r)
	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.Warn("clear session failed", slog.String("error", err.Error()))
	}
	render(w, r, http.StatusOK, LoginPage(prev))
}

// DisplayCreate handles GET /display_create.
func (h *Handler) DisplayCreate(w http.ResponseWriter, r *http.Request) {
	a := h.sessions.Actor(r)
	if a.Anonymous() {
		render(w, r, http.StatusOK, LoginPage(a))
		return
	}
	if !policy.CanCreate(a.Role) {
		render(w, r, http.StatusUnauthorized,
			StatusPage(http.StatusUnauthorized, "Only authors can create stories."))
		return
	}
	render(w, r, http.StatusOK, CreatePage(a, StoryForm{}, ""))
}

// SubmitCreate handles POST /submit_create. The author is always the
// logged-in user.
func (h *Handler) SubmitCreate(w http.ResponseWriter, r *http.Request) {
	a := h.sessions.Actor(r)
	if a.Anonymous() {
		render(w, r, http.StatusOK, LoginPage(a))
		return
	}
	if !policy.CanCreate(a.Role) {
		render(w, r, http.StatusUnauthorized,
			StatusPage(http.StatusUnauthorized, "Only authors can create stories."))
		return
	}
	if !parseForm(w, r) {
		return
	}

	switch r.PostFormValue("action") {
	case actionSave:
	case actionCancel:
		h.stories(w, r, a)
		return
	default:
		render(w, r, http.StatusBadRequest, StatusPage(http.StatusBadRequest, "Unknown action."))
		return
	}

	form := StoryForm{
		Headline: r.PostFormValue("headline"),
		Public:   r.PostFormValue("public") != "",
		Content:  r.PostFormValue("content"),
		Date:     r.PostFormValue("date"),
	}
	if err := h.create(r, a, form); err != nil {
		h.logger.Warn("web create failed", slog.String("username", a.Username), slog.String("error", err.Error()))
		render(w, r, http.StatusOK, CreatePage(a, form, errTryAgain))
		return
	}
	h.stories(w, r, a)
}

func (h *Handler) create(r *http.Request, a policy.Actor, f StoryForm) error {
	date, err := models.ParseDate(f.Date)
	if err != nil {
		return err
	}
	_, err = h.svc.Create(r.Context(), models.Story{
		Author:   a.Username,
		Headline: f.Headline,
		Public:   f.Public,
		Content:  f.Content,
		Date:     date,
	})
	return err
}

// position reads the ?headline= index. It answers 404 itself when the
// index does not address a story.
func (h *Handler) position(w http.ResponseWriter, r *http.Request) (int, models.Story, bool) {
	i, err := strconv.Atoi(r.URL.Query().Get("headline"))
	if err == nil {
		st, err := h.svc.GetByPosition(i)
		if err == nil {
			return i, st, true
		}
	}
	render(w, r, http.StatusNotFound, StatusPage(http.StatusNotFound, "Resource not found."))
	return 0, models.Story{}, false
}

// View handles GET /view?headline=i.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	a := h.sessions.Actor(r)
	if a.Anonymous() {
		render(w, r, http.StatusOK, LoginPage(a))
		return
	}
	i, st, ok := h.position(w, r)
	if !ok {
		return
	}
	if !policy.CanView(a, st) {
		render(w, r, http.StatusUnauthorized, StatusPage(http.StatusUnauthorized,
			"The story couldn't be shown because you don't have permission to view it."))
		return
	}
	render(w, r, http.StatusOK, StoryPage(a, i, st, ""))
}

// Delete handles GET /delete?headline=i. Only the story's author may delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	a := h.sessions.Actor(r)
	if a.Anonymous() {
		render(w, r, http.StatusOK, LoginPage(a))
		return
	}
	i, st, ok := h.position(w, r)
	if !ok {
		return
	}
	if !policy.CanDelete(a, st) {
		render(w, r, http.StatusUnauthorized, StatusPage(http.StatusUnauthorized,
			"The story couldn't be deleted because you don't have permission to delete it."))
		return
	}
	if _, err := h.svc.DeleteAt(r.Context(), i); err != nil {
		h.logger.Error("web delete failed", slog.Int("position", i), slog.String("error", err.Error()))
		render(w, r, http.StatusOK, StoryPage(a, i, st, errTryAgain))
		return
	}
	h.logger.Info("web delete", slog.String("username", a.Username), slog.String("headline", st.Headline))
	h.stories(w, r, a)
}
