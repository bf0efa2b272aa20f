package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gazette/internal/apperr"
	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/newsservice"
	"github.com/starford/gazette/internal/token"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *newsservice.Service
	tokens *token.Service
	base   string
	onAuth AuthResultFunc
}

// NewHandler creates a new Handler. base prefixes every href it returns.
func NewHandler(svc *newsservice.Service, tokens *token.Service, base string) *Handler {
	return &Handler{svc: svc, tokens: tokens, base: base, onAuth: func(string) {}}
}

// Login handles GET /login. The username and password headers must be
// present and equal.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get("username")
	password := r.Header.Get("password")
	if username == "" || password == "" || username != password {
		h.onAuth("login_failed")
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication error"))
		return
	}

	issued, err := h.tokens.Issue(username)
	if err != nil {
		slog.Error("issue token failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.onAuth("login_ok")
	slog.Info("user logged in", slog.String("username", username))
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:   issued.Token,
		Expires: issued.ExpiresAt,
		User:    LoginUser{Username: username},
	})
}

// Logout handles POST /logout by revoking whatever token was presented.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := token.FromRequest(r, peekBody(w, r)); raw != "" {
		h.tokens.Revoke(raw)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStories handles GET /stories.
func (h *Handler) ListStories(w http.ResponseWriter, _ *http.Request) {
	stories := h.svc.Stories()
	out := make([]StoryResource, len(stories))
	for i, s := range stories {
		out[i] = h.resource(i, s)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateStories handles POST /stories and POST /create. A JSON object
// creates one story and answers 201 with its href; an array creates each
// element in order and answers 200 with the created resources.
func (h *Handler) CreateStories(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		h.createMany(w, r, trimmed)
		return
	}

	var in StoryInput
	if err := json.Unmarshal(trimmed, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	st, err := in.story()
	if err != nil {
		writeError(w, "create story", err)
		return
	}
	pos, err := h.svc.Create(r.Context(), st)
	if err != nil {
		writeError(w, "create story", err)
		return
	}
	writeJSON(w, http.StatusCreated, HrefResponse{Href: h.href(pos)})
}

// createMany stores the whole array or none of it.
func (h *Handler) createMany(w http.ResponseWriter, r *http.Request, data []byte) {
	var ins []StoryInput
	if err := json.Unmarshal(data, &ins); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	stories := make([]models.Story, 0, len(ins))
	for _, in := range ins {
		st, err := in.story()
		if err != nil {
			writeError(w, "create stories", err)
			return
		}
		stories = append(stories, st)
	}

	positions, created, err := h.svc.CreateAll(r.Context(), stories)
	if err != nil {
		writeError(w, "create stories", err)
		return
	}
	out := make([]StoryResource, len(created))
	for i, st := range created {
		out[i] = h.resource(positions[i], st)
	}
	writeJSON(w, http.StatusOK, out)
}

// lookup resolves {id}: digits address a position, anything else a story id.
func (h *Handler) lookup(r *http.Request) (int, models.Story, error) {
	id := chi.URLParam(r, "id")
	if n, err := strconv.Atoi(id); err == nil {
		st, err := h.svc.GetByPosition(n)
		return n, st, err
	}
	return h.svc.GetByID(id)
}

// GetStory handles GET /stories/{id}.
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	_, st, err := h.lookup(r)
	if err != nil {
		writeError(w, "get story", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PutStory handles PUT /stories/{id}: 204 when an existing story was
// replaced, 201 with the href when the story was appended.
func (h *Handler) PutStory(w http.ResponseWriter, r *http.Request) {
	var in StoryInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	st, err := in.story()
	if err != nil {
		writeError(w, "put story", err)
		return
	}

	id := chi.URLParam(r, "id")
	pos, err := strconv.Atoi(id)
	if err != nil {
		if _, err := h.svc.SetByID(r.Context(), id, st); err != nil {
			writeError(w, "put story", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	pos, created, err := h.svc.SetAt(r.Context(), pos, st)
	if err != nil {
		writeError(w, "put story", err)
		return
	}
	if !created {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, HrefResponse{Href: h.href(pos)})
}

// DeleteStory handles DELETE /stories/{id} and DELETE /delete/{id}.
func (h *Handler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var err error
	if pos, convErr := strconv.Atoi(id); convErr == nil {
		_, err = h.svc.DeleteAt(r.Context(), pos)
	} else {
		_, err = h.svc.DeleteByID(r.Context(), id)
	}
	if err != nil {
		writeError(w, "delete story", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search?headline=&dateFrom=&dateTo=&author=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := models.ParseDate(q.Get("dateFrom"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	to, err := models.ParseDate(q.Get("dateTo"))
	if err != nil {
		writeError(w, "search", err)
		return
	}

	stories, err := h.svc.Filter(models.Criteria{
		Headline: q.Get("headline"),
		DateFrom: from,
		DateTo:   to,
		Author:   q.Get("author"),
	})
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}

// EditTitle handles PUT /editTitle.
func (h *Handler) EditTitle(w http.ResponseWriter, r *http.Request) {
	var req EditTitleRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ok, err := h.svc.EditTitle(r.Context(), req.Author, req.OldHeadline, req.NewHeadline)
	if err != nil {
		writeError(w, "edit title", err)
		return
	}
	if !ok {
		writeError(w, "edit title", apperr.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditContent handles PUT /editContent. The story is found by headline alone.
func (h *Handler) EditContent(w http.ResponseWriter, r *http.Request) {
	var req EditContentRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ok, err := h.svc.UpdateContent(r.Context(), req.Headline, req.NewContent)
	if err != nil {
		writeError(w, "edit content", err)
		return
	}
	if !ok {
		writeError(w, "edit content", apperr.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StoryOptions handles OPTIONS /stories.
func (h *Handler) StoryOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "GET, PUT, DELETE, OPTIONS")
	writeJSON(w, http.StatusOK, []string{"GET", "PUT", "DELETE", "OPTIONS"})
}

type validatable interface {
	Validate() error
}

func decodeValid(w http.ResponseWriter, r *http.Request, v validatable) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		}
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}
