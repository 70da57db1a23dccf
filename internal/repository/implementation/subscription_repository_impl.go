package implementation

import (
	"context"
	"errors"

	"finsight-be/internal/entity"
	"finsight-be/internal/mapper"
	"finsight-be/internal/model"
	"finsight-be/internal/repository/contract"
	"finsight-be/internal/repository/specification"

	"gorm.io/gorm"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) contract.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, sub *entity.Subscription) error {
	m := r.mapper.ToModel(sub)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*sub = *r.mapper.ToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, sub *entity.Subscription) error {
	m := r.mapper.ToModel(sub)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*sub = *r.mapper.ToEntity(m)
	return nil
}

func (r *SubscriptionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	var m model.Subscription
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SubscriptionRepositoryImpl) CreateCredits(ctx context.Context, credits *entity.UserCredits) error {
	return r.db.WithContext(ctx).Create(r.mapper.CreditsToModel(credits)).Error
}

func (r *SubscriptionRepositoryImpl) SaveCredits(ctx context.Context, credits *entity.UserCredits) error {
	return r.db.WithContext(ctx).Save(r.mapper.CreditsToModel(credits)).Error
}

func (r *SubscriptionRepositoryImpl) FindCredits(ctx context.Context, specs ...specification.Specification) (*entity.UserCredits, error) {
	var m model.UserCredits
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.CreditsToEntity(&m), nil
}
