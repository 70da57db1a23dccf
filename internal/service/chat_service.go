package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finsight-be/internal/dto"
	"finsight-be/internal/entity"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/repository/specification"
	"finsight-be/internal/repository/unitofwork"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/events"
	"finsight-be/pkg/llm"

	"github.com/google/uuid"
)

// IChatService is the relational backend of the conversation store plus the REST-only calls.
type IChatService interface {
	conversation.Backend

	GetConversation(ctx context.Context, userId, chatId uuid.UUID) (conversation.Conversation, error)
	// SendMessage stores a user message and the assistant reply in one request.
	SendMessage(ctx context.Context, userId, chatId uuid.UUID, content string) (*dto.SendMessageResponse, error)
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	completer      llm.LLMProvider
	eventPublisher events.Publisher
	logger         logger.ILogger
}

var _ conversation.Backend = (*chatService)(nil)

func NewChatService(uowFactory unitofwork.RepositoryFactory, completer llm.LLMProvider, eventPublisher events.Publisher, log logger.ILogger) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		completer:      completer,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func toConversation(c *entity.Chat) conversation.Conversation {
	return conversation.Conversation{Id: c.Id, UserId: c.UserId, Title: c.Title, CreatedAt: c.CreatedAt}
}

func toMessage(m *entity.Message) conversation.Message {
	return conversation.Message{
		Id:        m.Id,
		ChatId:    m.ChatId,
		Sender:    conversation.Sender(m.Sender),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// ownedChat loads a chat and refuses it unless userId owns it.
func ownedChat(ctx context.Context, uow unitofwork.UnitOfWork, userId, chatId uuid.UUID) (*entity.Chat, error) {
	chat, err := uow.ChatRepository().FindOne(ctx, specification.ByID{ID: chatId})
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, apperror.ErrNotFound
	}
	if chat.UserId != userId {
		return nil, apperror.ErrForbidden
	}
	return chat, nil
}

func (s *chatService) InsertConversation(ctx context.Context, userId uuid.UUID, title string) (conversation.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	chat := &entity.Chat{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatRepository().Create(ctx, chat); err != nil {
		return conversation.Conversation{}, err
	}
	return toConversation(chat), nil
}

func (s *chatService) ListConversations(ctx context.Context, userId uuid.UUID) ([]conversation.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	chats, err := uow.ChatRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.NewestFirst(),
	)
	if err != nil {
		return nil, err
	}
	out := make([]conversation.Conversation, 0, len(chats))
	for _, c := range chats {
		out = append(out, toConversation(c))
	}
	return out, nil
}

func (s *chatService) GetConversation(ctx context.Context, userId, chatId uuid.UUID) (conversation.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	chat, err := ownedChat(ctx, uow, userId, chatId)
	if err != nil {
		return conversation.Conversation{}, err
	}
	return toConversation(chat), nil
}

func (s *chatService) InsertMessage(ctx context.Context, userId uuid.UUID, msg conversation.Message) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedChat(ctx, uow, userId, msg.ChatId); err != nil {
		return err
	}
	return uow.MessageRepository().Create(ctx, &entity.Message{
		Id:        msg.Id,
		ChatId:    msg.ChatId,
		Sender:    string(msg.Sender),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
}

func (s *chatService) ListMessages(ctx context.Context, userId, chatId uuid.UUID) ([]conversation.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedChat(ctx, uow, userId, chatId); err != nil {
		return nil, err
	}
	msgs, err := uow.MessageRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.OldestFirst{},
	)
	if err != nil {
		return nil, err
	}
	out := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out, nil
}

func (s *chatService) DeleteMessages(ctx context.Context, userId, chatId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedChat(ctx, uow, userId, chatId); err != nil {
		return err
	}
	return uow.MessageRepository().DeleteByChatId(ctx, chatId)
}

func (s *chatService) DeleteConversation(ctx context.Context, userId, chatId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedChat(ctx, uow, userId, chatId); err != nil {
		return err
	}
	if err := uow.ChatRepository().Delete(ctx, chatId); err != nil {
		return err
	}

	if s.eventPublisher != nil {
		evt := events.New(events.ChatDeleted, map[string]interface{}{
			"user_id": userId.String(),
			"chat_id": chatId.String(),
		})
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("ChatService", "Failed to publish CHAT_DELETED", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (s *chatService) RenameConversation(ctx context.Context, userId, chatId uuid.UUID, title string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedChat(ctx, uow, userId, chatId); err != nil {
		return err
	}
	_, err := uow.ChatRepository().UpdateTitle(ctx, chatId, title)
	return err
}

func (s *chatService) SendMessage(ctx context.Context, userId, chatId uuid.UUID, content string) (*dto.SendMessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Wrap(apperror.ErrBadRequest, fmt.Errorf("message is empty"))
	}

	history, err := s.ListMessages(ctx, userId, chatId)
	if err != nil {
		return nil, err
	}

	sent, err := s.store(ctx, userId, chatId, conversation.SenderUser, content)
	if err != nil {
		return nil, err
	}
	resp := &dto.SendMessageResponse{ChatId: chatId, Sent: toMessageResponse(sent)}

	turns := make([]llm.Message, 0, len(history)+2)
	turns = append(turns, llm.Message{Role: llm.RoleSystem, Content: llm.SystemPrompt})
	for _, m := range history {
		role := llm.RoleUser
		if m.Sender == conversation.SenderAI {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Message{Role: role, Content: m.Content})
	}
	turns = append(turns, llm.Message{Role: llm.RoleUser, Content: content})

	answer, err := s.completer.Chat(ctx, turns)
	if err != nil {
		// the user message stays; the client may retry for a reply
		s.logger.Error("ChatService", "Completion failed", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
		return resp, nil
	}

	reply, err := s.store(ctx, userId, chatId, conversation.SenderAI, answer)
	if err != nil {
		return nil, err
	}
	r := toMessageResponse(reply)
	resp.Reply = &r
	return resp, nil
}

func (s *chatService) store(ctx context.Context, userId, chatId uuid.UUID, sender conversation.Sender, content string) (conversation.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return conversation.Message{}, err
	}
	msg := conversation.Message{
		Id:        id,
		ChatId:    chatId,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.InsertMessage(ctx, userId, msg); err != nil {
		return conversation.Message{}, err
	}
	return msg, nil
}

func ToChatResponse(c conversation.Conversation) dto.ChatResponse {
	return dto.ChatResponse{Id: c.Id, UserId: c.UserId, Title: c.Title, CreatedAt: c.CreatedAt}
}

func toMessageResponse(m conversation.Message) dto.MessageResponse {
	return dto.MessageResponse{
		Id:        m.Id,
		ChatId:    m.ChatId,
		Sender:    string(m.Sender),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func ToMessageResponses(msgs []conversation.Message) []dto.MessageResponse {
	out := make([]dto.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}
