package contract

import (
	"context"

	"finsight-be/internal/entity"
	"finsight-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	DeleteByChatId(ctx context.Context, chatId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
}
