package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/starford/gazette/internal/newsservice"
	"github.com/starford/gazette/internal/token"
)

// Options configures NewRouter.
type Options struct {
	// Base is prepended to every href, e.g. "/api" when mounted there.
	Base string
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
	// AllowedOrigins feeds the CORS policy. Empty allows any origin.
	AllowedOrigins []string
	// LoginRate and LoginBurst bound GET /login. A zero rate disables the limit.
	LoginRate  float64
	LoginBurst int
	// OnAuth observes login and token outcomes.
	OnAuth AuthResultFunc
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *newsservice.Service, tokens *token.Service, opts Options) http.Handler {
	h := NewHandler(svc, tokens, opts.Base)
	if opts.OnAuth != nil {
		h.onAuth = opts.OnAuth
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})

	r.With(RateLimit(opts.LoginRate, opts.LoginBurst)).Get("/login", h.Login)
	r.Post("/logout", h.Logout)

	// Open story resource.
	r.Get("/stories", h.ListStories)
	r.Post("/stories", h.CreateStories)
	r.Options("/stories", h.StoryOptions)
	r.Get("/stories/{id}", h.GetStory)
	r.Put("/stories/{id}", h.PutStory)
	r.Delete("/stories/{id}", h.DeleteStory)

	// Token-protected routes.
	r.Group(func(r chi.Router) {
		r.Use(TokenAuth(tokens, opts.OnAuth))
		r.Use(RequireUser)
		r.Post("/create", h.CreateStories)
		r.Get("/search", h.Search)
		r.Put("/editTitle", h.EditTitle)
		r.Put("/editContent", h.EditContent)
		r.Delete("/delete/{id}", h.DeleteStory)
	})

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return corsPolicy(opts.AllowedOrigins).Handler(r)
}

func corsPolicy(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "x-access-token", "username", "password"},
		ExposedHeaders: []string{"Location"},
	})
}
