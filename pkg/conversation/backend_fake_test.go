package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errNotOwned = errors.New("row not owned by principal")

// memBackend mimics the relational collaborator: row ownership and query order included.
type memBackend struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]Conversation
	messages map[uuid.UUID]Message
	calls    []string
	clock    time.Time

	failInsertMessage error
	failRename        error
	failListMessages  error
	failDeleteChat    error
	blockInsert       chan struct{}
}

func newMemBackend() *memBackend {
	return &memBackend{
		chats:    make(map[uuid.UUID]Conversation),
		messages: make(map[uuid.UUID]Message),
		clock:    time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (b *memBackend) record(call string) {
	b.calls = append(b.calls, call)
}

func (b *memBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *memBackend) seedChat(userId uuid.UUID, title string, at time.Time) Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := Conversation{Id: uuid.New(), UserId: userId, Title: title, CreatedAt: at}
	b.chats[c.Id] = c
	return c
}

func (b *memBackend) InsertConversation(ctx context.Context, userId uuid.UUID, title string) (Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("InsertConversation")
	b.clock = b.clock.Add(time.Second)
	c := Conversation{Id: uuid.New(), UserId: userId, Title: title, CreatedAt: b.clock}
	b.chats[c.Id] = c
	return c, nil
}

func (b *memBackend) ListConversations(ctx context.Context, userId uuid.UUID) ([]Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListConversations")
	var out []Conversation
	for _, c := range b.chats {
		if c.UserId == userId {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *memBackend) InsertMessage(ctx context.Context, userId uuid.UUID, msg Message) error {
	if b.blockInsert != nil {
		<-b.blockInsert
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("InsertMessage")
	if b.failInsertMessage != nil {
		return b.failInsertMessage
	}
	if c, ok := b.chats[msg.ChatId]; !ok || c.UserId != userId {
		return errNotOwned
	}
	b.messages[msg.Id] = msg
	return nil
}

func (b *memBackend) ListMessages(ctx context.Context, userId, chatId uuid.UUID) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListMessages")
	if b.failListMessages != nil {
		return nil, b.failListMessages
	}
	var out []Message
	for _, m := range b.messages {
		if m.ChatId == chatId {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *memBackend) DeleteMessages(ctx context.Context, userId, chatId uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("DeleteMessages")
	for id, m := range b.messages {
		if m.ChatId == chatId {
			delete(b.messages, id)
		}
	}
	return nil
}

func (b *memBackend) DeleteConversation(ctx context.Context, userId, chatId uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("DeleteConversation")
	if b.failDeleteChat != nil {
		return b.failDeleteChat
	}
	for _, m := range b.messages {
		if m.ChatId == chatId {
			return errors.New("foreign key violation: messages still reference chat")
		}
	}
	delete(b.chats, chatId)
	return nil
}

func (b *memBackend) RenameConversation(ctx context.Context, userId, chatId uuid.UUID, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("RenameConversation")
	if b.failRename != nil {
		return b.failRename
	}
	c, ok := b.chats[chatId]
	if !ok || c.UserId != userId {
		return errNotOwned
	}
	c.Title = title
	b.chats[chatId] = c
	return nil
}
