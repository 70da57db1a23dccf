package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"finsight-be/internal/entity"
	"finsight-be/internal/repository/contract"
	"finsight-be/internal/repository/specification"
	"finsight-be/internal/repository/unitofwork"
	"finsight-be/pkg/events"

	"github.com/google/uuid"
)

// memDB is a small in-memory stand-in for Postgres. Specifications are interpreted by type.
type memDB struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*entity.User
	resetTokens   map[uuid.UUID]*entity.PasswordResetToken
	refreshTokens map[uuid.UUID]*entity.UserRefreshToken
	providers     map[uuid.UUID]*entity.UserProvider
	chats         map[uuid.UUID]*entity.Chat
	messages      map[uuid.UUID]*entity.Message
	subs          map[uuid.UUID]*entity.Subscription
	credits       map[uuid.UUID]*entity.UserCredits

	commits   int
	rollbacks int
}

func newMemDB() *memDB {
	return &memDB{
		users:         map[uuid.UUID]*entity.User{},
		resetTokens:   map[uuid.UUID]*entity.PasswordResetToken{},
		refreshTokens: map[uuid.UUID]*entity.UserRefreshToken{},
		providers:     map[uuid.UUID]*entity.UserProvider{},
		chats:         map[uuid.UUID]*entity.Chat{},
		messages:      map[uuid.UUID]*entity.Message{},
		subs:          map[uuid.UUID]*entity.Subscription{},
		credits:       map[uuid.UUID]*entity.UserCredits{},
	}
}

func (db *memDB) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUoW{db: db}
}

var _ unitofwork.RepositoryFactory = (*memDB)(nil)

// memUoW applies writes immediately; Commit and Rollback are only counted.
type memUoW struct {
	db     *memDB
	active bool
}

func (u *memUoW) Begin(ctx context.Context) error {
	if u.active {
		return unitofwork.ErrTxAlreadyStarted
	}
	u.active = true
	return nil
}

func (u *memUoW) Commit() error {
	if !u.active {
		return unitofwork.ErrNoTx
	}
	u.active = false
	u.db.mu.Lock()
	u.db.commits++
	u.db.mu.Unlock()
	return nil
}

func (u *memUoW) Rollback() error {
	if !u.active {
		return unitofwork.ErrNoTx
	}
	u.active = false
	u.db.mu.Lock()
	u.db.rollbacks++
	u.db.mu.Unlock()
	return nil
}

func (u *memUoW) UserRepository() contract.UserRepository                 { return memUsers{u.db} }
func (u *memUoW) ChatRepository() contract.ChatRepository                 { return memChats{u.db} }
func (u *memUoW) MessageRepository() contract.MessageRepository           { return memMessages{u.db} }
func (u *memUoW) SubscriptionRepository() contract.SubscriptionRepository { return memSubs{u.db} }

// row is the union of columns the specifications filter on.
type row struct {
	id, userId, chatId  uuid.UUID
	email, token, hash  string
	providerName, subId string
	externalId          string
}

func matches(r row, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			if r.id != s.ID {
				return false
			}
		case specification.ByEmail:
			if !strings.EqualFold(r.email, s.Email) {
				return false
			}
		case specification.UserOwnedBy:
			if r.userId != s.UserID {
				return false
			}
		case specification.ByChatID:
			if r.chatId != s.ChatID {
				return false
			}
		case specification.ByToken:
			if r.token != s.Token {
				return false
			}
		case specification.ByTokenHash:
			if r.hash != s.Hash {
				return false
			}
		case specification.ByProvider:
			if r.providerName != s.Name || r.subId != s.UserID {
				return false
			}
		case specification.ByExternalID:
			if r.externalId != s.ExternalID {
				return false
			}
		}
	}
	return true
}

func newestFirst(specs []specification.Specification) bool {
	for _, spec := range specs {
		if o, ok := spec.(specification.OrderBy); ok && o.Desc {
			return true
		}
	}
	return false
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(ctx context.Context, user *entity.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *user
	r.db.users[user.Id] = &c
	return nil
}

func (r memUsers) Update(ctx context.Context, user *entity.User) error {
	return r.Create(ctx, user)
}

func (r memUsers) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if matches(row{id: u.Id, email: u.Email}, specs) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r memUsers) UpdatePassword(ctx context.Context, userId uuid.UUID, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[userId]; ok {
		h := hash
		u.PasswordHash = &h
	}
	return nil
}

func (r memUsers) CreatePasswordResetToken(ctx context.Context, token *entity.PasswordResetToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *token
	r.db.resetTokens[token.Id] = &c
	return nil
}

func (r memUsers) FindPasswordResetToken(ctx context.Context, specs ...specification.Specification) (*entity.PasswordResetToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.resetTokens {
		if matches(row{id: t.Id, userId: t.UserId, token: t.Token}, specs) {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r memUsers) MarkTokenUsed(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.resetTokens[id]; ok {
		t.Used = true
	}
	return nil
}

func (r memUsers) CreateRefreshToken(ctx context.Context, token *entity.UserRefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *token
	r.db.refreshTokens[token.Id] = &c
	return nil
}

func (r memUsers) FindRefreshToken(ctx context.Context, specs ...specification.Specification) (*entity.UserRefreshToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.refreshTokens {
		if matches(row{id: t.Id, userId: t.UserId, hash: t.TokenHash}, specs) {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r memUsers) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.refreshTokens {
		if t.TokenHash == tokenHash {
			t.Revoked = true
		}
	}
	return nil
}

func (r memUsers) SaveUserProvider(ctx context.Context, provider *entity.UserProvider) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *provider
	r.db.providers[provider.Id] = &c
	return nil
}

func (r memUsers) FindUserProvider(ctx context.Context, specs ...specification.Specification) (*entity.UserProvider, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.providers {
		if matches(row{id: p.Id, userId: p.UserId, providerName: p.ProviderName, subId: p.ProviderUserId}, specs) {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

type memChats struct{ db *memDB }

func (r memChats) Create(ctx context.Context, chat *entity.Chat) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if chat.Id == uuid.Nil {
		chat.Id = uuid.New()
	}
	c := *chat
	r.db.chats[chat.Id] = &c
	return nil
}

func (r memChats) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chats[id]
	if !ok {
		return 0, nil
	}
	c.Title = title
	return 1, nil
}

func (r memChats) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.chats, id)
	return nil
}

func (r memChats) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r memChats) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Chat
	for _, c := range r.db.chats {
		if matches(row{id: c.Id, userId: c.UserId}, specs) {
			cp := *c
			out = append(out, &cp)
		}
	}
	desc := newestFirst(specs)
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type memMessages struct{ db *memDB }

func (r memMessages) Create(ctx context.Context, message *entity.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *message
	r.db.messages[message.Id] = &c
	return nil
}

func (r memMessages) DeleteByChatId(ctx context.Context, chatId uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, m := range r.db.messages {
		if m.ChatId == chatId {
			delete(r.db.messages, id)
		}
	}
	return nil
}

func (r memMessages) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Message
	for _, m := range r.db.messages {
		if matches(row{id: m.Id, chatId: m.ChatId}, specs) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Id.String() < out[j].Id.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type memSubs struct{ db *memDB }

func (r memSubs) Create(ctx context.Context, sub *entity.Subscription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *sub
	r.db.subs[sub.Id] = &c
	return nil
}

func (r memSubs) Update(ctx context.Context, sub *entity.Subscription) error {
	return r.Create(ctx, sub)
}

func (r memSubs) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.subs {
		ext := ""
		if s.ExternalId != nil {
			ext = *s.ExternalId
		}
		if matches(row{id: s.Id, userId: s.UserId, externalId: ext}, specs) {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (r memSubs) CreateCredits(ctx context.Context, credits *entity.UserCredits) error {
	return r.SaveCredits(ctx, credits)
}

func (r memSubs) SaveCredits(ctx context.Context, credits *entity.UserCredits) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *credits
	r.db.credits[credits.UserId] = &c
	return nil
}

func (r memSubs) FindCredits(ctx context.Context, specs ...specification.Specification) (*entity.UserCredits, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.credits {
		if matches(row{userId: c.UserId}, specs) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	data   []map[string]interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.EventType())
	p.data = append(p.data, event.Payload())
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// recordingMailer captures outgoing mail.
type recordingMailer struct {
	mu      sync.Mutex
	welcome []string
	resets  map[string]string
	sent    chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{resets: map[string]string{}, sent: make(chan struct{}, 16)}
}

func (m *recordingMailer) SendWelcome(toEmail, name string) error {
	m.mu.Lock()
	m.welcome = append(m.welcome, toEmail)
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

func (m *recordingMailer) SendResetLink(toEmail, token string) error {
	m.mu.Lock()
	m.resets[toEmail] = token
	m.mu.Unlock()
	m.sent <- struct{}{}
	return nil
}

func (m *recordingMailer) resetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[email]
}
