// Package policy decides who may view, create and delete stories.
package policy

import (
	"strings"

	"github.com/starford/gazette/internal/models"
)

// Role is the closed set of reader roles.
type Role int

const (
	Guest Role = iota
	Author
	Subscriber
)

// String returns the lowercase form used in sessions and forms.
func (r Role) String() string {
	switch r {
	case Author:
		return "author"
	case Subscriber:
		return "subscriber"
	default:
		return "guest"
	}
}

// ParseRole maps a role name to a Role. Unknown names are Guest.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "author":
		return Author
	case "subscriber":
		return Subscriber
	default:
		return Guest
	}
}

// Roles lists every role in display order.
func Roles() []Role { return []Role{Guest, Author, Subscriber} }

// Actor is the reader a decision is made for. The zero Actor is an
// anonymous guest.
type Actor struct {
	Username string
	Role     Role
}

// Anonymous reports whether no user is logged in.
func (a Actor) Anonymous() bool { return a.Username == "" }

// CanView reports whether a may read s. Public stories are visible to
// everyone; authors see their own non-public stories; subscribers see all.
func CanView(a Actor, s models.Story) bool {
	if s.Public {
		return true
	}
	switch a.Role {
	case Author:
		return a.Username != "" && s.Author == a.Username
	case Subscriber:
		return true
	case Guest:
		return false
	default:
		return false
	}
}

// CanCreate reports whether role may write new stories.
func CanCreate(r Role) bool {
	return r == Author
}

// CanDelete reports whether a owns s.
func CanDelete(a Actor, s models.Story) bool {
	return a.Username != "" && s.Author == a.Username
}
