package service

import (
	"context"
	"time"

	"finsight-be/internal/dto"
	"finsight-be/internal/entity"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/repository/specification"
	"finsight-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IProvisioningService interface {
	// Provision serves create_user_defaults: principalId must be the user in the body.
	Provision(ctx context.Context, principalId uuid.UUID, req *dto.ProvisionRequest) (*dto.ProvisionResponse, error)
	// EnsureDefaults gives a user the free plan and its credits unless a subscription exists.
	EnsureDefaults(ctx context.Context, userId uuid.UUID) (*dto.ProvisionResponse, error)
}

type provisioningService struct {
	uowFactory       unitofwork.RepositoryFactory
	freeCreditsLimit int
	logger           logger.ILogger
}

func NewProvisioningService(uowFactory unitofwork.RepositoryFactory, freeCreditsLimit int, log logger.ILogger) IProvisioningService {
	return &provisioningService{
		uowFactory:       uowFactory,
		freeCreditsLimit: freeCreditsLimit,
		logger:           log,
	}
}

func (s *provisioningService) Provision(ctx context.Context, principalId uuid.UUID, req *dto.ProvisionRequest) (*dto.ProvisionResponse, error) {
	if req.User.Id != principalId {
		return nil, apperror.ErrForbidden
	}
	return s.EnsureDefaults(ctx, principalId)
}

func (s *provisioningService) EnsureDefaults(ctx context.Context, userId uuid.UUID) (*dto.ProvisionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.SubscriptionRepository().FindOne(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &dto.ProvisionResponse{
			SubscriptionId: existing.Id,
			Plan:           existing.Plan,
			CreditsLimit:   existing.CreditsLimit,
			Created:        false,
		}, nil
	}

	now := time.Now()
	sub := &entity.Subscription{
		Id:           uuid.New(),
		UserId:       userId,
		Plan:         entity.PlanFree,
		Status:       entity.SubscriptionStatusActive,
		CreditsLimit: s.freeCreditsLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	credits := &entity.UserCredits{
		UserId:           userId,
		CreditsAvailable: s.freeCreditsLimit,
		LastResetDate:    now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.SubscriptionRepository().Create(ctx, sub); err != nil {
		return nil, err
	}
	if err := uow.SubscriptionRepository().CreateCredits(ctx, credits); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("ProvisioningService", "User defaults created", map[string]interface{}{
		"user_id":       userId.String(),
		"credits_limit": s.freeCreditsLimit,
	})
	return &dto.ProvisionResponse{
		SubscriptionId: sub.Id,
		Plan:           sub.Plan,
		CreditsLimit:   sub.CreditsLimit,
		Created:        true,
	}, nil
}
