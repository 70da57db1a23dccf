package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInvalidSender   = errors.New("invalid message sender")
)

// EmptyListLabel is shown in the sidebar when the principal owns no conversations.
const EmptyListLabel = "No conversations yet"

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

type Conversation struct {
	Id        uuid.UUID `json:"id"`
	UserId    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	Id        uuid.UUID `json:"id"`
	ChatId    uuid.UUID `json:"chat_id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend is the relational collaborator behind the store. Every call carries the
// principal id; implementations must refuse rows the principal does not own.
type Backend interface {
	// InsertConversation returns the stored row, including the id the backend issued.
	InsertConversation(ctx context.Context, userId uuid.UUID, title string) (Conversation, error)
	// ListConversations is newest first.
	ListConversations(ctx context.Context, userId uuid.UUID) ([]Conversation, error)
	InsertMessage(ctx context.Context, userId uuid.UUID, msg Message) error
	// ListMessages is oldest first.
	ListMessages(ctx context.Context, userId, chatId uuid.UUID) ([]Message, error)
	DeleteMessages(ctx context.Context, userId, chatId uuid.UUID) error
	DeleteConversation(ctx context.Context, userId, chatId uuid.UUID) error
	RenameConversation(ctx context.Context, userId, chatId uuid.UUID, title string) error
}

type ChangeKind string

const (
	ChangeConversationsLoaded ChangeKind = "conversations_loaded"
	ChangeConversationAdded   ChangeKind = "conversation_added"
	ChangeConversationRenamed ChangeKind = "conversation_renamed"
	ChangeConversationDeleted ChangeKind = "conversation_deleted"
	ChangeMessagesLoaded      ChangeKind = "messages_loaded"
	ChangeMessageAdded        ChangeKind = "message_added"
	ChangeGeneration          ChangeKind = "generation"
	ChangeActive              ChangeKind = "active"
)

// Change is delivered to subscribers after the store state has been updated.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	UserId     uuid.UUID  `json:"user_id"`
	ChatId     uuid.UUID  `json:"chat_id,omitempty"`
	Generating bool       `json:"generating,omitempty"`
}
