package chatsurface

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finsight-be/internal/pkg/logger"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	mu          sync.Mutex
	chats       []conversation.Conversation
	messages    []conversation.Message
	inserts     int
	insertGate  chan struct{}
	insertError error
	deleted     []uuid.UUID
}

func (b *backend) InsertConversation(ctx context.Context, userId uuid.UUID, title string) (conversation.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := conversation.Conversation{Id: uuid.New(), UserId: userId, Title: title, CreatedAt: time.Now()}
	b.chats = append(b.chats, c)
	return c, nil
}

func (b *backend) ListConversations(ctx context.Context, userId uuid.UUID) ([]conversation.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]conversation.Conversation(nil), b.chats...), nil
}

func (b *backend) InsertMessage(ctx context.Context, userId uuid.UUID, msg conversation.Message) error {
	b.mu.Lock()
	gate := b.insertGate
	b.mu.Unlock()
	if gate != nil && msg.Sender == conversation.SenderUser {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inserts++
	if b.insertError != nil {
		return b.insertError
	}
	b.messages = append(b.messages, msg)
	return nil
}

func (b *backend) ListMessages(ctx context.Context, userId, chatId uuid.UUID) ([]conversation.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []conversation.Message
	for _, m := range b.messages {
		if m.ChatId == chatId {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *backend) DeleteMessages(ctx context.Context, userId, chatId uuid.UUID) error { return nil }

func (b *backend) DeleteConversation(ctx context.Context, userId, chatId uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, chatId)
	return nil
}

func (b *backend) RenameConversation(ctx context.Context, userId, chatId uuid.UUID, title string) error {
	return nil
}

type completer struct {
	calls   int32
	gate    chan struct{}
	err     error
	history []llm.Message
}

func (c *completer) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.gate != nil {
		<-c.gate
	}
	c.history = history
	if c.err != nil {
		return "", c.err
	}
	return "reply to " + history[len(history)-1].Content, nil
}

func (c *completer) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return c.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func newSurface(t *testing.T, b *backend, c *completer) (*Surface, *conversation.Store) {
	t.Helper()
	store := conversation.NewStore(b, logger.NewNopLogger())
	userId := uuid.New()
	store.SetPrincipal(context.Background(), &userId)
	s := New(store, c, logger.NewNopLogger(), WithScrollDelay(10*time.Millisecond))
	t.Cleanup(s.Close)
	return s, store
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	b := &backend{}
	c := &completer{}
	s, _ := newSurface(t, b, c)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Submit(context.Background(), uuid.Nil, text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Empty(t, b.chats)
	assert.Zero(t, b.inserts)
	assert.Zero(t, atomic.LoadInt32(&c.calls))
}

func TestSubmitStartsConversationAndAppendsReply(t *testing.T) {
	b := &backend{}
	c := &completer{}
	s, store := newSurface(t, b, c)

	chatId, err := s.Submit(context.Background(), uuid.Nil, "  What moved SPY today?  ")
	require.NoError(t, err)

	conv, ok := store.Conversation(chatId)
	require.True(t, ok)
	assert.Equal(t, "What moved SPY today?", conv.Title)
	active, _ := store.Active()
	assert.Equal(t, chatId, active)

	msgs := store.Messages(chatId)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.SenderUser, msgs[0].Sender)
	assert.Equal(t, "What moved SPY today?", msgs[0].Content)
	assert.Equal(t, conversation.SenderAI, msgs[1].Sender)
	assert.Equal(t, "reply to What moved SPY today?", msgs[1].Content)

	assert.Equal(t, llm.RoleSystem, c.history[0].Role)
	assert.Equal(t, Idle, s.State(chatId))
}

func TestViewWhileSending(t *testing.T) {
	b := &backend{}
	c := &completer{gate: make(chan struct{})}
	s, store := newSurface(t, b, c)
	ctx := context.Background()
	chatId, err := store.AddConversation(ctx, "AAPL")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, chatId, "AAPL guidance?")
		done <- err
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&c.calls) == 1 }, time.Second, time.Millisecond)
	v := s.View(chatId)
	assert.Equal(t, Sending, v.State)
	assert.True(t, v.InputDisabled)
	assert.True(t, v.ShowStop)
	assert.Equal(t, "Waiting for response...", v.Placeholder)

	_, err = s.Submit(ctx, chatId, "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(c.gate)
	require.NoError(t, <-done)

	v = s.View(chatId)
	assert.Equal(t, Idle, v.State)
	assert.False(t, v.InputDisabled)
	assert.Equal(t, "Ask about markets, tickers, filings...", v.Placeholder)
	assert.Len(t, v.Messages, 2)
}

func TestBusyWhileUserMessageIsWritten(t *testing.T) {
	b := &backend{insertGate: make(chan struct{})}
	s, store := newSurface(t, b, &completer{})
	ctx := context.Background()
	chatId, _ := store.AddConversation(ctx, "t")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, chatId, "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return store.IsGenerating(chatId) }, time.Second, time.Millisecond)

	_, err := s.Submit(ctx, chatId, "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(b.insertGate)
	require.NoError(t, <-done)
}

func TestConcurrentSubmitsAdmitOne(t *testing.T) {
	const submitters = 16
	c := &completer{gate: make(chan struct{})}
	s, store := newSurface(t, &backend{}, c)
	ctx := context.Background()
	chatId, _ := store.AddConversation(ctx, "race")

	start := make(chan struct{})
	results := make(chan error, submitters)
	for i := 0; i < submitters; i++ {
		go func() {
			<-start
			_, err := s.Submit(ctx, chatId, "same time")
			results <- err
		}()
	}
	close(start)

	busy := 0
	for busy < submitters-1 {
		err := <-results
		require.ErrorIs(t, err, ErrBusy)
		busy++
	}
	close(c.gate)
	require.NoError(t, <-results)

	assert.Equal(t, int32(1), atomic.LoadInt32(&c.calls))
	assert.Len(t, store.Messages(chatId), 2)
}

func TestFailedFirstMessageDropsNewConversation(t *testing.T) {
	b := &backend{insertError: errors.New("rls violation")}
	s, store := newSurface(t, b, &completer{})

	chatId, err := s.Submit(context.Background(), uuid.Nil, "first question")
	assert.ErrorIs(t, err, b.insertError)
	assert.Equal(t, uuid.Nil, chatId)

	require.Len(t, b.chats, 1)
	assert.Equal(t, []uuid.UUID{b.chats[0].Id}, b.deleted)
	assert.False(t, store.HasConversations())
}

func TestStopDropsPendingReply(t *testing.T) {
	b := &backend{}
	c := &completer{gate: make(chan struct{})}
	s, store := newSurface(t, b, c)
	ctx := context.Background()
	chatId, _ := store.AddConversation(ctx, "stop")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, chatId, "long question")
		done <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&c.calls) == 1 }, time.Second, time.Millisecond)

	s.Stop(chatId)
	assert.Equal(t, Idle, s.State(chatId), "stop returns to idle without waiting")
	assert.False(t, store.IsGenerating(chatId))

	close(c.gate)
	require.NoError(t, <-done)

	msgs := store.Messages(chatId)
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.SenderUser, msgs[0].Sender)
}

func TestSubmitSurfacesStoreAndCompleterErrors(t *testing.T) {
	ctx := context.Background()

	b := &backend{insertError: errors.New("rls violation")}
	s, store := newSurface(t, b, &completer{})
	chatId, _ := store.AddConversation(ctx, "x")
	_, err := s.Submit(ctx, chatId, "hi")
	assert.ErrorIs(t, err, b.insertError)
	assert.Equal(t, Idle, s.State(chatId))

	c := &completer{err: errors.New("model offline")}
	s, store = newSurface(t, &backend{}, c)
	chatId, _ = store.AddConversation(ctx, "y")
	_, err = s.Submit(ctx, chatId, "hi")
	assert.ErrorIs(t, err, c.err)
	assert.Len(t, store.Messages(chatId), 1)
}

func TestSubmitWithoutPrincipal(t *testing.T) {
	store := conversation.NewStore(&backend{}, logger.NewNopLogger())
	s := New(store, &completer{}, logger.NewNopLogger())

	_, err := s.Submit(context.Background(), uuid.Nil, "hello")
	assert.ErrorIs(t, err, conversation.ErrUnauthenticated)
}

func TestViewOfNewChat(t *testing.T) {
	s, _ := newSurface(t, &backend{}, &completer{})

	v := s.View(uuid.Nil)

	assert.Equal(t, "New chat", v.Title)
	assert.Equal(t, conversation.EmptyListLabel, v.EmptyLabel)
	assert.NotNil(t, v.Messages)
	assert.False(t, v.InputDisabled)
}

func TestInputHeight(t *testing.T) {
	h, scroll := InputHeight(48)
	assert.Equal(t, 48, h)
	assert.False(t, scroll)

	h, scroll = InputHeight(200)
	assert.Equal(t, 200, h)
	assert.False(t, scroll)

	h, scroll = InputHeight(420)
	assert.Equal(t, MaxInputHeight, h)
	assert.True(t, scroll)

	h, _ = InputHeight(-5)
	assert.Zero(t, h)
}

func TestScheduleScrollIsDeferredAndCoalesced(t *testing.T) {
	s, _ := newSurface(t, &backend{}, &completer{})
	var runs int32

	for i := 0; i < 5; i++ {
		s.ScheduleScroll(func() { atomic.AddInt32(&runs, 1) })
	}
	assert.Zero(t, atomic.LoadInt32(&runs), "scroll waits for the delay")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "Compare MSFT and GOOG", TitleFrom("  Compare   MSFT and GOOG \nsecond line"))

	long := strings.Repeat("revenue ", 20)
	title := TitleFrom(long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len([]rune(title)), maxTitleLength+3)
}
