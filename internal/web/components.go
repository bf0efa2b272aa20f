package web

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/policy"
)

// StoryForm carries the Create Story fields between submit and re-render.
type StoryForm struct {
	Headline string
	Public   bool
	Content  string
	Date     string
}

// htmlWriter keeps the first write error so components can write freely.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// text writes s escaped for element content and quoted attribute values.
func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func page(title string, body func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
		h.text(title)
		h.raw("</title></head><body>")
		body(h)
		h.raw("</body></html>")
		return h.err
	})
}

func roleLabel(r policy.Role) string {
	switch r {
	case policy.Author:
		return "Author"
	case policy.Subscriber:
		return "Subscriber"
	default:
		return "Guest"
	}
}

func userBar(h *htmlWriter, a policy.Actor) {
	h.raw("<div>Username: ")
	h.text(a.Username)
	h.raw(", Role: ")
	h.text(roleLabel(a.Role))
	h.raw("</div><div><a href=\"/logout\">Logout</a></div>")
}

func errorLine(h *htmlWriter, msg string) {
	if msg == "" {
		return
	}
	h.raw("<div class=\"error\">ERROR: ")
	h.text(msg)
	h.raw("</div>")
}

// LoginPage renders the login form. A previous actor pre-fills the username
// and role and adds a welcome line.
func LoginPage(prev policy.Actor) templ.Component {
	return page("Login Form", func(h *htmlWriter) {
		h.raw("<div>")
		if !prev.Anonymous() {
			h.raw("<h2>Welcome ")
			h.text(roleLabel(prev.Role) + " " + prev.Username)
			h.raw(", please enter your password</h2>")
		}
		h.raw("<h1>Login Here</h1>")
		h.raw("<form id=\"login-form\" method=\"POST\" action=\"/login\">")
		h.raw("<p>Username</p><input type=\"text\" name=\"username\" placeholder=\"Enter Username\"")
		if !prev.Anonymous() {
			h.raw(" value=\"")
			h.text(prev.Username)
			h.raw("\"")
		}
		h.raw("><p>Password</p><input type=\"password\" name=\"password\" placeholder=\"Enter Password\">")
		h.raw("<p>Role</p>")
		for _, r := range []policy.Role{policy.Author, policy.Guest, policy.Subscriber} {
			h.raw("<p><input type=\"radio\" name=\"role\" value=\"")
			h.text(roleLabel(r))
			h.raw("\"")
			if r == prev.Role {
				h.raw(" checked")
			}
			h.raw("/> ")
			h.text(roleLabel(r))
			h.raw("</p>")
		}
		h.raw("<br/><input type=\"submit\" value=\"Login\"></form></div>")
	})
}

// LoginErrorPage is shown after a wrong password.
func LoginErrorPage() templ.Component {
	return page("Login Error", func(h *htmlWriter) {
		h.raw("<div><h2>Login error:</h2>Incorrect password entered. Please try again. <a href=\"/\">Back to Login</a></div>")
	})
}

// StoriesPage lists every story. Only stories a may view are linked.
func StoriesPage(a policy.Actor, stories []models.Story) templ.Component {
	return page("View News", func(h *htmlWriter) {
		h.raw("<h2>View News</h2>")
		userBar(h, a)
		if policy.CanCreate(a.Role) {
			h.raw("<div><a href=\"/display_create\">Create Story</a></div>")
		}
		if len(stories) == 0 {
			h.raw("<div>No news stories</div>")
			return
		}
		h.raw("<ul>")
		for i, s := range stories {
			h.raw("<li>")
			if policy.CanView(a, s) {
				h.raw("<a href=\"/view?headline=" + strconv.Itoa(i) + "\">")
				h.text(s.Headline)
				h.raw("</a>")
			} else {
				h.text(s.Headline)
			}
			h.raw("</li>")
		}
		h.raw("</ul>")
	})
}

// StoryPage shows one story. The delete link appears for its author only.
func StoryPage(a policy.Actor, pos int, s models.Story, errMsg string) templ.Component {
	return page(s.Headline, func(h *htmlWriter) {
		userBar(h, a)
		errorLine(h, errMsg)
		h.raw("<h1>")
		h.text(s.Headline)
		h.raw("</h1><div>")
		h.text(s.Author)
		h.raw("</div>")
		if s.Public {
			h.raw("<div>PUBLIC</div>")
		}
		h.raw("<div>")
		h.text(models.FormatDate(s.Date))
		h.raw("</div><p>")
		h.text(s.Content)
		h.raw("</p>")
		if policy.CanDelete(a, s) {
			h.raw("<div><a href=\"/delete?headline=" + strconv.Itoa(pos) + "\">Delete Story</a></div>")
		}
		h.raw("<div><a href=\"/\">Back to Home</a></div>")
	})
}

// CreatePage renders the Create Story form, pre-filled from f.
func CreatePage(a policy.Actor, f StoryForm, errMsg string) templ.Component {
	return page("Create Story", func(h *htmlWriter) {
		h.raw("<h2>Create Story</h2>")
		userBar(h, a)
		h.raw("<form id=\"create-story-form\" method=\"POST\" action=\"/submit_create\">")
		errorLine(h, errMsg)
		h.raw("<p>Author ")
		h.text(a.Username)
		h.raw("</p><p>Headline</p><input type=\"text\" name=\"headline\" placeholder=\"Enter headline\" value=\"")
		h.text(f.Headline)
		h.raw("\"><p>Public?</p><input type=\"checkbox\" name=\"public\"")
		if f.Public {
			h.raw(" checked")
		}
		h.raw("><p>Content</p><textarea name=\"content\" rows=\"5\" cols=\"33\">")
		h.text(f.Content)
		h.raw("</textarea><p>Date</p><input type=\"date\" name=\"date\" value=\"")
		h.text(f.Date)
		h.raw("\"><br/>")
		h.raw("<button name=\"action\" type=\"submit\" value=\"save\">Save</button>")
		h.raw("<button name=\"action\" type=\"submit\" value=\"cancel\">Cancel</button>")
		h.raw("</form>")
	})
}

// StatusPage is the body for 401, 404, 405 and 413 answers.
func StatusPage(code int, message string) templ.Component {
	status := strconv.Itoa(code)
	return page(status, func(h *htmlWriter) {
		h.text(status + ": " + message + " Go to ")
		h.raw("<a href=\"/\">Home</a>")
	})
}
