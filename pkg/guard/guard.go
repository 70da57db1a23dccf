package guard

import (
	"net/url"
	"strings"
)

type Kind int

const (
	// Protected pages need a principal.
	Protected Kind = iota
	// Public pages are for signed-out visitors only.
	Public
)

const (
	LoginPath = "/login"
	HomePath  = "/chat"
	fromParam = "from"
)

type Action int

const (
	Render Action = iota
	RenderNothing
	Redirect
)

type Decision struct {
	Action Action
	To     string
	// From is the originally requested location, carried on redirects to the login page.
	From string
}

// Location is the redirect target with From encoded as ?from=.
func (d Decision) Location() string {
	if d.From == "" {
		return d.To
	}
	return d.To + "?" + url.Values{fromParam: {d.From}}.Encode()
}

// Decide is a pure function of the identity state and the requested location.
func Decide(kind Kind, hasPrincipal, loading bool, requested string) Decision {
	if loading {
		return Decision{Action: RenderNothing}
	}
	switch kind {
	case Protected:
		if !hasPrincipal {
			return Decision{Action: Redirect, To: LoginPath, From: requested}
		}
	case Public:
		if hasPrincipal {
			return Decision{Action: Redirect, To: HomePath}
		}
	}
	return Decision{Action: Render}
}

// SafeFrom returns from when it is a same-site path, otherwise HomePath.
func SafeFrom(from string) string {
	// browsers read a backslash as a slash, so "/\host" is protocol relative
	if from == "" || from[0] != '/' || strings.HasPrefix(from, "//") || strings.ContainsRune(from, '\\') {
		return HomePath
	}
	if u, err := url.Parse(from); err != nil || u.Host != "" {
		return HomePath
	}
	return from
}
