package contract

import (
	"context"

	"finsight-be/internal/entity"
	"finsight-be/internal/repository/specification"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.Subscription) error
	Update(ctx context.Context, sub *entity.Subscription) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)

	CreateCredits(ctx context.Context, credits *entity.UserCredits) error
	SaveCredits(ctx context.Context, credits *entity.UserCredits) error
	FindCredits(ctx context.Context, specs ...specification.Specification) (*entity.UserCredits, error)
}
