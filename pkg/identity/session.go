package identity

import (
	"context"
	"sync"

	"finsight-be/internal/pkg/logger"
)

const logModule = "IdentitySession"

// Session tracks who is signed in for one browser session.
// Loading is true until Resolve completes and while any operation is in flight.
type Session struct {
	provider    Provider
	provisioner Provisioner
	logger      logger.ILogger

	mu          sync.RWMutex
	principal   *Principal
	current     *AuthSession
	pending     int
	resolved    bool
	resolveOnce sync.Once
	unsubscribe func()

	listenersMu  sync.Mutex
	listeners    map[int]func(*Principal)
	nextListener int
}

func NewSession(provider Provider, provisioner Provisioner, log logger.ILogger) *Session {
	return &Session{
		provider:    provider,
		provisioner: provisioner,
		logger:      log,
		listeners:   make(map[int]func(*Principal)),
	}
}

// Resolve asks the provider for an existing session once, then follows its notifications
// until Close. A failed lookup resolves to signed out.
func (s *Session) Resolve(ctx context.Context) {
	s.resolveOnce.Do(func() {
		existing, err := s.provider.GetSession(ctx)
		if err != nil {
			s.logger.Warn(logModule, "Failed to resolve existing session", map[string]interface{}{
				"error": err.Error(),
			})
			existing = nil
		}
		s.apply(existing)

		unsubscribe := s.provider.OnAuthStateChange(s.onAuthStateChange)

		s.mu.Lock()
		s.resolved = true
		s.unsubscribe = unsubscribe
		s.mu.Unlock()

		s.notify()
	})
}

func (s *Session) onAuthStateChange(event Event, session *AuthSession) {
	switch event {
	case EventInitialSession, EventPasswordRecovery:
		return
	case EventSignedOut:
		s.apply(nil)
	default:
		s.apply(session)
	}
	s.notify()
}

func (s *Session) apply(session *AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.principal = nil
		s.current = nil
		return
	}
	p := session.User.Clone()
	copied := *session
	s.principal = &p
	s.current = &copied
}

// Close stops following provider notifications.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Subscribe is told about every principal change; nil means signed out.
func (s *Session) Subscribe(fn func(*Principal)) func() {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Session) notify() {
	principal, ok := s.Principal()
	var arg *Principal
	if ok {
		arg = &principal
	}

	s.listenersMu.Lock()
	fns := make([]func(*Principal), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(arg)
	}
}

func (s *Session) Principal() (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return Principal{}, false
	}
	return s.principal.Clone(), true
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.resolved || s.pending > 0
}

// Tokens are the current access and refresh tokens, empty when signed out.
func (s *Session) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", ""
	}
	return s.current.AccessToken, s.current.RefreshToken
}

func (s *Session) begin() func() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
	}
}

// SignIn relies on the provider's SIGNED_IN notification to set the principal.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	defer s.begin()()
	_, err := s.provider.SignInWithPassword(ctx, email, password)
	return err
}

// SignUp creates the account, then provisions its defaults. Provisioning failures are
// logged and never fail the sign-up.
func (s *Session) SignUp(ctx context.Context, email, password, firstName, lastName string) error {
	defer s.begin()()

	created, err := s.provider.SignUp(ctx, email, password, SignUpMetadata(firstName, lastName))
	if err != nil {
		return err
	}
	if created == nil || s.provisioner == nil {
		return nil
	}

	if err := s.provisioner.Provision(ctx, created.AccessToken, created.User); err != nil {
		s.logger.Error(logModule, "Failed to provision account defaults", map[string]interface{}{
			"user_id": created.User.Id.String(),
			"error":   err.Error(),
		})
	}
	return nil
}

func (s *Session) SignOut(ctx context.Context) error {
	defer s.begin()()
	err := s.provider.SignOut(ctx)

	// the local principal goes regardless of what the provider said
	if _, signedIn := s.Principal(); signedIn {
		s.apply(nil)
		s.notify()
	}
	return err
}

// GoogleSignIn returns the consent screen URL.
func (s *Session) GoogleSignIn(ctx context.Context) (string, error) {
	defer s.begin()()
	return s.provider.SignInWithOAuth(ctx, "google")
}

// CompleteOAuth trades the callback code for a session.
func (s *Session) CompleteOAuth(ctx context.Context, provider, code string) error {
	defer s.begin()()
	_, err := s.provider.ExchangeCodeForSession(ctx, provider, code)
	return err
}

func (s *Session) ResetPassword(ctx context.Context, email string) error {
	defer s.begin()()
	return s.provider.ResetPasswordForEmail(ctx, email)
}

// UpdatePassword completes the reset flow opened by the emailed link.
func (s *Session) UpdatePassword(ctx context.Context, recoveryToken, newPassword string) error {
	defer s.begin()()
	return s.provider.UpdatePassword(ctx, recoveryToken, newPassword)
}
