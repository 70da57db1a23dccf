package contract

import (
	"context"

	"finsight-be/internal/entity"
	"finsight-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error)
}
