package identity

import (
	"context"
	"sync"
)

// Authenticator is the in-process account service LocalProvider drives.
type Authenticator interface {
	SessionFromToken(ctx context.Context, accessToken string) (*AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthSession, error)
	Login(ctx context.Context, email, password string) (*AuthSession, error)
	Register(ctx context.Context, email, password string, metadata map[string]interface{}) (*AuthSession, error)
	Logout(ctx context.Context, refreshToken string) error
	OAuthURL(provider string) (string, error)
	OAuthCallback(ctx context.Context, provider, code string) (*AuthSession, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// LocalProvider is a Provider for one browser session, seeded with the tokens the
// browser carried. Notifications are delivered synchronously, before the call returns.
type LocalProvider struct {
	auth Authenticator

	mu      sync.Mutex
	access  string
	refresh string
	current *AuthSession

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(auth Authenticator, accessToken, refreshToken string) *LocalProvider {
	return &LocalProvider{
		auth:      auth,
		access:    accessToken,
		refresh:   refreshToken,
		listeners: make(map[int]Listener),
	}
}

func (p *LocalProvider) OnAuthStateChange(fn Listener) func() {
	p.listenersMu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.listenersMu.Unlock()

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	fn(EventInitialSession, current)

	return func() {
		p.listenersMu.Lock()
		delete(p.listeners, id)
		p.listenersMu.Unlock()
	}
}

func (p *LocalProvider) emit(event Event, session *AuthSession) {
	p.listenersMu.Lock()
	fns := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenersMu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

func (p *LocalProvider) set(session *AuthSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = session
	if session == nil {
		p.access, p.refresh = "", ""
		return
	}
	p.access = session.AccessToken
	if session.RefreshToken != "" {
		p.refresh = session.RefreshToken
	}
}

// GetSession validates the carried access token, falling back to the refresh token.
func (p *LocalProvider) GetSession(ctx context.Context) (*AuthSession, error) {
	p.mu.Lock()
	if p.current != nil {
		current := p.current
		p.mu.Unlock()
		return current, nil
	}
	access, refresh := p.access, p.refresh
	p.mu.Unlock()

	if access != "" {
		session, err := p.auth.SessionFromToken(ctx, access)
		if err == nil {
			if session.RefreshToken == "" {
				session.RefreshToken = refresh
			}
			p.set(session)
			return session, nil
		}
		if refresh == "" {
			return nil, err
		}
	}
	if refresh == "" {
		return nil, nil
	}

	session, err := p.auth.Refresh(ctx, refresh)
	if err != nil {
		p.set(nil)
		return nil, err
	}
	p.set(session)
	p.emit(EventTokenRefreshed, session)
	return session, nil
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	session, err := p.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.set(session)
	p.emit(EventSignedIn, session)
	return session, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*AuthSession, error) {
	session, err := p.auth.Register(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	p.set(session)
	p.emit(EventSignedIn, session)
	return session, nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	refresh := p.refresh
	p.mu.Unlock()

	err := p.auth.Logout(ctx, refresh)
	p.set(nil)
	p.emit(EventSignedOut, nil)
	return err
}

func (p *LocalProvider) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	return p.auth.OAuthURL(provider)
}

func (p *LocalProvider) ExchangeCodeForSession(ctx context.Context, provider, code string) (*AuthSession, error) {
	session, err := p.auth.OAuthCallback(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	p.set(session)
	p.emit(EventSignedIn, session)
	return session, nil
}

func (p *LocalProvider) ResetPasswordForEmail(ctx context.Context, email string) error {
	return p.auth.ForgotPassword(ctx, email)
}

// UpdatePassword consumes a recovery token. Signed-in listeners see USER_UPDATED.
func (p *LocalProvider) UpdatePassword(ctx context.Context, recoveryToken, newPassword string) error {
	p.emit(EventPasswordRecovery, nil)
	if err := p.auth.ResetPassword(ctx, recoveryToken, newPassword); err != nil {
		return err
	}

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current != nil {
		p.emit(EventUserUpdated, current)
	}
	return nil
}
