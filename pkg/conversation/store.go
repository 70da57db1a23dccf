package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"finsight-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const logModule = "ConversationStore"

// Store caches the signed-in principal's conversations and messages on top of a Backend.
// It is the only writer of its caches; readers get copies.
//
// The lock is never held across a Backend call. Results of calls that started before a
// principal change are dropped (see epoch).
type Store struct {
	backend Backend
	logger  logger.ILogger
	now     func() time.Time
	newID   func() (uuid.UUID, error)

	mu            sync.RWMutex
	principal     *uuid.UUID
	epoch         uint64
	conversations []Conversation
	messages      map[uuid.UUID][]Message
	generating    map[uuid.UUID]bool
	active        *uuid.UUID

	listenersMu  sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(backend Backend, log logger.ILogger, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		logger:     log,
		now:        time.Now,
		newID:      uuid.NewV7,
		messages:   make(map[uuid.UUID][]Message),
		generating: make(map[uuid.UUID]bool),
		listeners:  make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
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

func (s *Store) emit(changes ...Change) {
	s.listenersMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// SetPrincipal scopes the store to a principal. A change of principal drops every cache
// and reloads the conversation list; nil signs the store out.
func (s *Store) SetPrincipal(ctx context.Context, principalId *uuid.UUID) {
	s.mu.Lock()
	if samePrincipal(s.principal, principalId) {
		s.mu.Unlock()
		return
	}
	if principalId != nil {
		id := *principalId
		s.principal = &id
	} else {
		s.principal = nil
	}
	s.epoch++
	s.conversations = nil
	s.messages = make(map[uuid.UUID][]Message)
	s.generating = make(map[uuid.UUID]bool)
	s.active = nil
	s.mu.Unlock()

	if principalId == nil {
		s.emit(Change{Kind: ChangeConversationsLoaded})
		return
	}
	s.LoadConversations(ctx)
}

func samePrincipal(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Store) scope() (uuid.UUID, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return uuid.Nil, s.epoch, false
	}
	return *s.principal, s.epoch, true
}

// LoadConversations replaces the list with the principal's conversations, newest first.
// Failures are logged and leave the previous list in place.
func (s *Store) LoadConversations(ctx context.Context) {
	userId, epoch, ok := s.scope()
	if !ok {
		return
	}

	list, err := s.backend.ListConversations(ctx, userId)
	if err != nil {
		s.logger.Error(logModule, "Failed to load conversations", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.conversations = append([]Conversation(nil), list...)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeConversationsLoaded, UserId: userId})
}

// AddConversation inserts a conversation and prepends the stored row to the cache.
// Without a principal it fails with ErrUnauthenticated before touching the backend.
func (s *Store) AddConversation(ctx context.Context, title string) (uuid.UUID, error) {
	userId, epoch, ok := s.scope()
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}

	row, err := s.backend.InsertConversation(ctx, userId, title)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add conversation: %w", err)
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.conversations = append([]Conversation{row}, s.conversations...)
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeConversationAdded, UserId: userId, ChatId: row.Id})
	return row.Id, nil
}

// AddMessage persists one message and appends it to the conversation's cached list.
// A user message raises the generation flag for the duration of the write; the flag
// drops when the write settles, whatever the outcome.
func (s *Store) AddMessage(ctx context.Context, chatId uuid.UUID, content string, sender Sender) error {
	if !sender.Valid() {
		return ErrInvalidSender
	}
	userId, epoch, ok := s.scope()
	if !ok {
		return ErrUnauthenticated
	}

	if sender == SenderUser {
		s.setGenerating(userId, chatId, true)
	}

	id, err := s.newID()
	if err != nil {
		s.setGenerating(userId, chatId, false)
		return fmt.Errorf("generate message id: %w", err)
	}
	msg := Message{
		Id:        id,
		ChatId:    chatId,
		Sender:    sender,
		Content:   content,
		CreatedAt: s.now(),
	}

	if err := s.backend.InsertMessage(ctx, userId, msg); err != nil {
		s.setGenerating(userId, chatId, false)
		return fmt.Errorf("add message: %w", err)
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.messages[chatId] = append(s.messages[chatId], msg)
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeMessageAdded, UserId: userId, ChatId: chatId})
	s.setGenerating(userId, chatId, false)
	return nil
}

func (s *Store) setGenerating(userId, chatId uuid.UUID, on bool) {
	s.mu.Lock()
	was := s.generating[chatId]
	if on {
		s.generating[chatId] = true
	} else {
		delete(s.generating, chatId)
	}
	s.mu.Unlock()

	if was != on {
		s.emit(Change{Kind: ChangeGeneration, UserId: userId, ChatId: chatId, Generating: on})
	}
}

// DeleteConversation removes every message of the conversation, then the conversation.
// Messages never outlive their parent, so a failed message delete stops the operation.
func (s *Store) DeleteConversation(ctx context.Context, chatId uuid.UUID) error {
	userId, epoch, ok := s.scope()
	if !ok {
		return ErrUnauthenticated
	}

	if err := s.backend.DeleteMessages(ctx, userId, chatId); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.backend.DeleteConversation(ctx, userId, chatId); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	changes := []Change{{Kind: ChangeConversationDeleted, UserId: userId, ChatId: chatId}}

	s.mu.Lock()
	if s.epoch == epoch {
		kept := s.conversations[:0:0]
		for _, c := range s.conversations {
			if c.Id != chatId {
				kept = append(kept, c)
			}
		}
		s.conversations = kept
		delete(s.messages, chatId)
		delete(s.generating, chatId)
		if s.active != nil && *s.active == chatId {
			s.active = nil
			changes = append(changes, Change{Kind: ChangeActive, UserId: userId})
		}
	}
	s.mu.Unlock()

	s.emit(changes...)
	return nil
}

// RenameConversation is best effort: blank titles are ignored and failures are logged.
func (s *Store) RenameConversation(ctx context.Context, chatId uuid.UUID, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	userId, epoch, ok := s.scope()
	if !ok {
		return
	}

	if err := s.backend.RenameConversation(ctx, userId, chatId, title); err != nil {
		s.logger.Error(logModule, "Failed to rename conversation", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
		return
	}

	s.mu.Lock()
	if s.epoch == epoch {
		for i := range s.conversations {
			if s.conversations[i].Id == chatId {
				s.conversations[i].Title = title
				break
			}
		}
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeConversationRenamed, UserId: userId, ChatId: chatId})
}

// FetchMessages replaces the cached list with the persisted one, oldest first.
// On failure the cache is left untouched and the error is only logged.
func (s *Store) FetchMessages(ctx context.Context, chatId uuid.UUID) {
	userId, epoch, ok := s.scope()
	if !ok {
		return
	}

	list, err := s.backend.ListMessages(ctx, userId, chatId)
	if err != nil {
		s.logger.Error(logModule, "Failed to fetch messages", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.messages[chatId] = append([]Message(nil), list...)
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeMessagesLoaded, UserId: userId, ChatId: chatId})
}

// StopResponseGeneration lowers the flag locally. Nothing in flight is cancelled.
func (s *Store) StopResponseGeneration(chatId uuid.UUID) {
	userId, _, _ := s.scope()
	s.setGenerating(userId, chatId, false)
}

func (s *Store) IsGenerating(chatId uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generating[chatId]
}

func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Conversation(nil), s.conversations...)
}

func (s *Store) Conversation(chatId uuid.UUID) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.Id == chatId {
			return c, true
		}
	}
	return Conversation{}, false
}

func (s *Store) Messages(chatId uuid.UUID) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages[chatId]...)
}

func (s *Store) HasConversations() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations) > 0
}

// EmptyLabel is the sidebar placeholder, empty when there is something to list.
func (s *Store) EmptyLabel() string {
	if s.HasConversations() {
		return ""
	}
	return EmptyListLabel
}

func (s *Store) Active() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return uuid.Nil, false
	}
	return *s.active, true
}

// SetActive points the surface at a conversation; uuid.Nil clears the pointer.
func (s *Store) SetActive(chatId uuid.UUID) {
	s.mu.Lock()
	if chatId == uuid.Nil {
		s.active = nil
	} else {
		id := chatId
		s.active = &id
	}
	var userId uuid.UUID
	if s.principal != nil {
		userId = *s.principal
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeActive, UserId: userId, ChatId: chatId})
}
