package app

import (
	"context"
	"sync"
	"time"

	"finsight-be/internal/pkg/logger"
	"finsight-be/pkg/chatsurface"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/identity"
	"finsight-be/pkg/llm"
	"finsight-be/pkg/theme"

	"github.com/google/uuid"
)

// ChangeScroll is emitted once the deferred auto-scroll after new messages fires.
const ChangeScroll conversation.ChangeKind = "scroll"

const principalLoadTimeout = 10 * time.Second

type Deps struct {
	Backend     conversation.Backend
	Completer   llm.LLMProvider
	Provisioner identity.Provisioner
	Logger      logger.ILogger
}

// Container holds the state of one browser session. Components only talk to each
// other through the subscriptions set up in New.
type Container struct {
	Id       string
	Theme    *theme.Theme
	Identity *identity.Session
	Store    *conversation.Store
	Surface  *chatsurface.Surface

	logger logger.ILogger
	unsubs []func()

	listenersMu  sync.Mutex
	listeners    map[int]func(conversation.Change)
	nextListener int

	closeOnce sync.Once
}

// New builds the container and resolves the identity session before returning.
func New(ctx context.Context, id string, provider identity.Provider, themeCookie string, deps Deps) *Container {
	store := conversation.NewStore(deps.Backend, deps.Logger)
	c := &Container{
		Id:        id,
		Theme:     theme.FromCookie(themeCookie),
		Identity:  identity.NewSession(provider, deps.Provisioner, deps.Logger),
		Store:     store,
		Surface:   chatsurface.New(store, deps.Completer, deps.Logger),
		logger:    deps.Logger,
		listeners: make(map[int]func(conversation.Change)),
	}

	c.unsubs = append(c.unsubs,
		c.Identity.Subscribe(c.onPrincipal),
		c.Store.Subscribe(c.onStoreChange),
	)
	c.Identity.Resolve(ctx)
	return c
}

func (c *Container) onPrincipal(p *identity.Principal) {
	// listeners fire after the triggering request may have finished
	ctx, cancel := context.WithTimeout(context.Background(), principalLoadTimeout)
	defer cancel()
	if p == nil {
		c.Store.SetPrincipal(ctx, nil)
		return
	}
	id := p.Id
	c.Store.SetPrincipal(ctx, &id)
}

func (c *Container) onStoreChange(change conversation.Change) {
	c.emit(change)
	if change.Kind == conversation.ChangeMessageAdded || change.Kind == conversation.ChangeMessagesLoaded {
		c.Surface.ScheduleScroll(func() {
			c.emit(conversation.Change{Kind: ChangeScroll, UserId: change.UserId, ChatId: change.ChatId})
		})
	}
}

// Subscribe forwards every store change plus scroll ticks.
func (c *Container) Subscribe(fn func(conversation.Change)) func() {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Container) emit(change conversation.Change) {
	c.listenersMu.Lock()
	fns := make([]func(conversation.Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// PrincipalID is uuid.Nil when signed out.
func (c *Container) PrincipalID() uuid.UUID {
	p, ok := c.Identity.Principal()
	if !ok {
		return uuid.Nil
	}
	return p.Id
}

// Close tears the container down. It is safe to call more than once.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
		c.Identity.Close()
		c.Surface.Close()
		c.logger.Debug("AppContainer", "Container closed", map[string]interface{}{"id": c.Id})
	})
}
