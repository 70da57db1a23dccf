package theme

import (
	"sync"
	"time"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

const (
	CookieName   = "theme"
	CookieMaxAge = 365 * 24 * time.Hour
)

// Theme is the light/dark preference of one browser session.
type Theme struct {
	mu   sync.RWMutex
	mode Mode
}

// FromCookie restores the persisted mode; anything unrecognised is light.
func FromCookie(value string) *Theme {
	mode := Mode(value)
	if mode != Dark {
		mode = Light
	}
	return &Theme{mode: mode}
}

func (t *Theme) Mode() Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

func (t *Theme) IsDark() bool {
	return t.Mode() == Dark
}

// Toggle flips the mode and returns the new one, which the caller persists.
func (t *Theme) Toggle() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == Dark {
		t.mode = Light
	} else {
		t.mode = Dark
	}
	return t.mode
}
