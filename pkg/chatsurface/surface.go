package chatsurface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"finsight-be/internal/pkg/logger"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/llm"

	"github.com/google/uuid"
)

const (
	MaxInputHeight     = 200
	DefaultScrollDelay = 100 * time.Millisecond
	maxTitleLength     = 50

	PlaceholderSending = "Waiting for response..."
	PlaceholderIdle    = "Ask about markets, tickers, filings..."

	logModule = "ChatSurface"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a message is already being sent")
)

type State string

const (
	Idle    State = "idle"
	Sending State = "sending"
)

type submission struct {
	stopped bool
}

// Surface is the chat screen of one browser session: input, message list and the
// idle/sending machine on top of the conversation store.
type Surface struct {
	store       *conversation.Store
	completer   llm.LLMProvider
	logger      logger.ILogger
	scrollDelay time.Duration

	mu       sync.Mutex
	inflight map[uuid.UUID]*submission

	scrollMu    sync.Mutex
	scrollTimer *time.Timer
}

type Option func(*Surface)

func WithScrollDelay(d time.Duration) Option {
	return func(s *Surface) { s.scrollDelay = d }
}

func New(store *conversation.Store, completer llm.LLMProvider, log logger.ILogger, opts ...Option) *Surface {
	s := &Surface{
		store:       store,
		completer:   completer,
		logger:      log,
		scrollDelay: DefaultScrollDelay,
		inflight:    make(map[uuid.UUID]*submission),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is sending while the store flag is up or a reply is still pending.
func (s *Surface) State(chatId uuid.UUID) State {
	if s.store.IsGenerating(chatId) {
		return Sending
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.inflight[chatId]; ok && !sub.stopped {
		return Sending
	}
	return Idle
}

// Submit sends text as a user message and appends the assistant reply. A nil chatId
// starts a new conversation titled after the message. It returns the conversation id.
func (s *Surface) Submit(ctx context.Context, chatId uuid.UUID, text string) (uuid.UUID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatId, ErrEmptyMessage
	}

	created := false
	if chatId == uuid.Nil {
		id, err := s.store.AddConversation(ctx, TitleFrom(text))
		if err != nil {
			return uuid.Nil, err
		}
		chatId = id
		created = true
		s.store.SetActive(chatId)
	}

	sub, ok := s.claim(chatId)
	if !ok {
		return chatId, ErrBusy
	}
	defer s.finish(chatId, sub)

	if err := s.store.AddMessage(ctx, chatId, text, conversation.SenderUser); err != nil {
		if created {
			// a new chat without its first message is not kept
			if delErr := s.store.DeleteConversation(ctx, chatId); delErr != nil {
				s.logger.Warn(logModule, "Failed to drop empty conversation", map[string]interface{}{
					"chat_id": chatId.String(),
					"error":   delErr.Error(),
				})
			}
			return uuid.Nil, err
		}
		return chatId, err
	}

	if s.stopped(sub) {
		return chatId, nil
	}
	reply, err := s.completer.Chat(ctx, s.history(chatId))
	if err != nil {
		s.logger.Error(logModule, "Failed to generate reply", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
		return chatId, fmt.Errorf("generate reply: %w", err)
	}
	if s.stopped(sub) {
		return chatId, nil
	}

	if err := s.store.AddMessage(ctx, chatId, reply, conversation.SenderAI); err != nil {
		return chatId, err
	}
	return chatId, nil
}

// claim registers the submission for chatId unless one is already running.
func (s *Surface) claim(chatId uuid.UUID) (*submission, bool) {
	if s.store.IsGenerating(chatId) {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[chatId]; ok && !cur.stopped {
		return nil, false
	}
	sub := &submission{}
	s.inflight[chatId] = sub
	return sub, true
}

func (s *Surface) finish(chatId uuid.UUID, sub *submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[chatId] == sub {
		delete(s.inflight, chatId)
	}
}

func (s *Surface) stopped(sub *submission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sub.stopped
}

func (s *Surface) history(chatId uuid.UUID) []llm.Message {
	msgs := s.store.Messages(chatId)
	out := make([]llm.Message, 0, len(msgs)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: llm.SystemPrompt})
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Sender == conversation.SenderAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// Stop returns the surface to idle at once. Writes already in flight still land;
// a reply that has not been stored yet is dropped.
func (s *Surface) Stop(chatId uuid.UUID) {
	s.store.StopResponseGeneration(chatId)
	s.mu.Lock()
	if sub, ok := s.inflight[chatId]; ok {
		sub.stopped = true
		delete(s.inflight, chatId)
	}
	s.mu.Unlock()
}

type View struct {
	ChatId        uuid.UUID                   `json:"chat_id,omitempty"`
	Title         string                      `json:"title"`
	Conversations []conversation.Conversation `json:"conversations"`
	EmptyLabel    string                      `json:"empty_label,omitempty"`
	Messages      []conversation.Message      `json:"messages"`
	State         State                       `json:"state"`
	InputDisabled bool                        `json:"input_disabled"`
	Placeholder   string                      `json:"placeholder"`
	ShowStop      bool                        `json:"show_stop"`
}

// View renders the surface for chatId; uuid.Nil is the new-chat screen.
func (s *Surface) View(chatId uuid.UUID) View {
	v := View{
		ChatId:        chatId,
		Title:         "New chat",
		Conversations: s.store.Conversations(),
		EmptyLabel:    s.store.EmptyLabel(),
		Messages:      []conversation.Message{},
		State:         Idle,
	}
	if chatId != uuid.Nil {
		if c, ok := s.store.Conversation(chatId); ok {
			v.Title = c.Title
		}
		if msgs := s.store.Messages(chatId); msgs != nil {
			v.Messages = msgs
		}
		v.State = s.State(chatId)
	}

	sending := v.State == Sending
	v.InputDisabled = sending
	v.ShowStop = sending
	v.Placeholder = PlaceholderIdle
	if sending {
		v.Placeholder = PlaceholderSending
	}
	return v
}

// InputHeight grows the input with its content up to MaxInputHeight; past the cap the
// input scrolls instead.
func InputHeight(contentHeight int) (height int, scroll bool) {
	if contentHeight < 0 {
		contentHeight = 0
	}
	if contentHeight > MaxInputHeight {
		return MaxInputHeight, true
	}
	return contentHeight, false
}

// ScheduleScroll runs fn after the scroll delay. A call made before the delay elapses
// replaces the pending one.
func (s *Surface) ScheduleScroll(fn func()) {
	s.scrollMu.Lock()
	defer s.scrollMu.Unlock()
	if s.scrollTimer != nil {
		s.scrollTimer.Stop()
	}
	s.scrollTimer = time.AfterFunc(s.scrollDelay, fn)
}

// Close cancels a pending scroll.
func (s *Surface) Close() {
	s.scrollMu.Lock()
	defer s.scrollMu.Unlock()
	if s.scrollTimer != nil {
		s.scrollTimer.Stop()
		s.scrollTimer = nil
	}
}

// TitleFrom derives a conversation title from its first message.
func TitleFrom(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxTitleLength {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:maxTitleLength])
	if i := strings.LastIndex(cut, " "); i > maxTitleLength/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
