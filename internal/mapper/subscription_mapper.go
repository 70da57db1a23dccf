package mapper

import (
	"finsight-be/internal/entity"
	"finsight-be/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) ToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	return &entity.Subscription{
		Id:               s.Id,
		UserId:           s.UserId,
		Plan:             s.Plan,
		Status:           entity.SubscriptionStatus(s.Status),
		CreditsLimit:     s.CreditsLimit,
		ExternalId:       s.ExternalId,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) ToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:               s.Id,
		UserId:           s.UserId,
		Plan:             s.Plan,
		Status:           string(s.Status),
		CreditsLimit:     s.CreditsLimit,
		ExternalId:       s.ExternalId,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) CreditsToEntity(c *model.UserCredits) *entity.UserCredits {
	if c == nil {
		return nil
	}
	return &entity.UserCredits{
		UserId:           c.UserId,
		CreditsAvailable: c.CreditsAvailable,
		LastResetDate:    c.LastResetDate,
	}
}

func (m *SubscriptionMapper) CreditsToModel(c *entity.UserCredits) *model.UserCredits {
	if c == nil {
		return nil
	}
	return &model.UserCredits{
		UserId:           c.UserId,
		CreditsAvailable: c.CreditsAvailable,
		LastResetDate:    c.LastResetDate,
	}
}
