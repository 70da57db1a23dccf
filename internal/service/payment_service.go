package service

import (
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"finsight-be/internal/dto"
	"finsight-be/internal/entity"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/repository/specification"
	"finsight-be/internal/repository/unitofwork"
	"finsight-be/pkg/events"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// PricePlan is what a checkout priceId buys.
type PricePlan struct {
	Name         string
	Amount       int64 // IDR
	CreditsLimit int
	Period       time.Duration
}

// Plans maps checkout price ids to plans.
var Plans = map[string]PricePlan{
	"pro-monthly":  {Name: "pro", Amount: 99000, CreditsLimit: 500, Period: 30 * 24 * time.Hour},
	"team-monthly": {Name: "team", Amount: 249000, CreditsLimit: 2000, Period: 30 * 24 * time.Hour},
}

// SnapClient is the part of the Midtrans Snap client checkout needs.
type SnapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

func NewSnapClient(serverKey string, production bool) SnapClient {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var c snap.Client
	c.New(serverKey, env)
	return &c
}

type IPaymentService interface {
	CreateCheckout(ctx context.Context, principalId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	ManageSubscription(ctx context.Context, principalId uuid.UUID, req *dto.ManageSubscriptionRequest) (*dto.ManageSubscriptionResponse, error)
	CancelSubscription(ctx context.Context, principalId uuid.UUID, req *dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error)
	HandleNotification(ctx context.Context, req *dto.MidtransWebhookRequest) error
	GetSubscription(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error)
}

type paymentService struct {
	uowFactory     unitofwork.RepositoryFactory
	snap           SnapClient
	eventPublisher events.Publisher
	serverKey      string
	manageURL      string
	clientURL      string
	logger         logger.ILogger
}

func NewPaymentService(
	uowFactory unitofwork.RepositoryFactory,
	snapClient SnapClient,
	eventPublisher events.Publisher,
	serverKey, manageURL, clientURL string,
	log logger.ILogger,
) IPaymentService {
	return &paymentService{
		uowFactory:     uowFactory,
		snap:           snapClient,
		eventPublisher: eventPublisher,
		serverKey:      serverKey,
		manageURL:      manageURL,
		clientURL:      clientURL,
		logger:         log,
	}
}

// orderID embeds the price id so the webhook knows what was bought.
// Midtrans allows at most 50 characters.
func orderID(priceId string) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return priceId + "." + nonce
}

func priceOf(orderId string) (string, bool) {
	i := strings.LastIndex(orderId, ".")
	if i <= 0 {
		return "", false
	}
	return orderId[:i], true
}

func (s *paymentService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn("PaymentService", "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

func (s *paymentService) ownedSubscription(ctx context.Context, uow unitofwork.UnitOfWork, principalId, subId uuid.UUID) (*entity.Subscription, error) {
	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByID{ID: subId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.ErrNotFound
	}
	if sub.UserId != principalId {
		return nil, apperror.ErrForbidden
	}
	return sub, nil
}

func (s *paymentService) CreateCheckout(ctx context.Context, principalId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if req.UserId != principalId {
		return nil, apperror.ErrForbidden
	}
	plan, ok := Plans[req.PriceId]
	if !ok {
		return nil, apperror.Wrap(apperror.ErrBadRequest, fmt.Errorf("unknown price %q", req.PriceId))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: principalId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrNotFound
	}

	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.UserOwnedBy{UserID: principalId})
	if err != nil {
		return nil, err
	}

	orderId := orderID(req.PriceId)
	now := time.Now()
	if sub == nil {
		sub = &entity.Subscription{
			Id:         uuid.New(),
			UserId:     principalId,
			Plan:       entity.PlanFree,
			Status:     entity.SubscriptionStatusPending,
			ExternalId: &orderId,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err = uow.SubscriptionRepository().Create(ctx, sub)
	} else {
		sub.ExternalId = &orderId
		sub.UpdatedAt = now
		err = uow.SubscriptionRepository().Update(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	var firstName, lastName string
	if v, ok := user.Metadata["first_name"].(string); ok {
		firstName = v
	}
	if v, ok := user.Metadata["last_name"].(string); ok {
		lastName = v
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderId,
			GrossAmt: plan.Amount,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		Callbacks: &snap.Callbacks{
			Finish: fmt.Sprintf("%s/settings?payment=success", s.clientURL),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: firstName,
			LName: lastName,
			Email: user.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.PriceId,
				Price: plan.Amount,
				Qty:   1,
				Name:  plan.Name,
			},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}

	snapResp, midErr := s.snap.CreateTransaction(snapReq)
	if midErr != nil {
		s.logger.Error("PaymentService", "Midtrans checkout failed", map[string]interface{}{
			"order_id": orderId,
			"error":    midErr.GetMessage(),
		})
		return nil, fmt.Errorf("midtrans error: %s", midErr.GetMessage())
	}

	return &dto.CheckoutResponse{
		Id:          snapResp.Token,
		RedirectURL: snapResp.RedirectURL,
	}, nil
}

func (s *paymentService) ManageSubscription(ctx context.Context, principalId uuid.UUID, req *dto.ManageSubscriptionRequest) (*dto.ManageSubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := s.ownedSubscription(ctx, uow, principalId, req.SubscriptionId)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(s.manageURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("subscription", sub.Id.String())
	if sub.ExternalId != nil {
		q.Set("order_id", *sub.ExternalId)
	}
	u.RawQuery = q.Encode()
	return &dto.ManageSubscriptionResponse{URL: u.String()}, nil
}

func (s *paymentService) CancelSubscription(ctx context.Context, principalId uuid.UUID, req *dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := s.ownedSubscription(ctx, uow, principalId, req.SubscriptionId)
	if err != nil {
		return nil, err
	}
	if sub.Status == entity.SubscriptionStatusCanceled {
		return &dto.CancelSubscriptionResponse{Message: "Subscription already canceled"}, nil
	}

	sub.Status = entity.SubscriptionStatusCanceled
	sub.UpdatedAt = time.Now()
	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubscriptionCanceled, map[string]interface{}{
		"user_id":         principalId.String(),
		"subscription_id": sub.Id.String(),
		"plan":            sub.Plan,
	})
	return &dto.CancelSubscriptionResponse{Message: "Subscription canceled"}, nil
}

// Signature returns the Midtrans notification signature: SHA512(order_id + status_code + gross_amount + server_key).
func Signature(orderId, statusCode, grossAmount, serverKey string) string {
	return fmt.Sprintf("%x", sha512.Sum512([]byte(orderId+statusCode+grossAmount+serverKey)))
}

func (s *paymentService) HandleNotification(ctx context.Context, req *dto.MidtransWebhookRequest) error {
	if s.serverKey == "" {
		return errors.New("midtrans server key not configured")
	}
	if req.SignatureKey != Signature(req.OrderId, req.StatusCode, req.GrossAmount, s.serverKey) {
		s.logger.Warn("PaymentService", "Webhook signature mismatch", map[string]interface{}{"order_id": req.OrderId})
		return apperror.Wrap(apperror.ErrForbidden, errors.New("invalid signature"))
	}

	switch req.TransactionStatus {
	case "capture", "settlement":
		if req.FraudStatus != "" && req.FraudStatus != "accept" {
			s.logger.Warn("PaymentService", "Payment flagged, not activating", map[string]interface{}{
				"order_id":     req.OrderId,
				"fraud_status": req.FraudStatus,
			})
			return nil
		}
	default:
		s.logger.Info("PaymentService", "Notification needs no action", map[string]interface{}{
			"order_id": req.OrderId,
			"status":   req.TransactionStatus,
		})
		return nil
	}

	priceId, ok := priceOf(req.OrderId)
	if !ok {
		return apperror.Wrap(apperror.ErrBadRequest, fmt.Errorf("malformed order id %q", req.OrderId))
	}
	plan, ok := Plans[priceId]
	if !ok {
		return apperror.Wrap(apperror.ErrBadRequest, fmt.Errorf("unknown price %q", priceId))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.ByExternalID{ExternalID: req.OrderId})
	if err != nil {
		return err
	}
	if sub == nil {
		return apperror.ErrNotFound
	}
	if sub.Status == entity.SubscriptionStatusActive && sub.Plan == plan.Name {
		// Midtrans retries notifications
		return nil
	}

	now := time.Now()
	periodEnd := now.Add(plan.Period)
	sub.Plan = plan.Name
	sub.Status = entity.SubscriptionStatusActive
	sub.CreditsLimit = plan.CreditsLimit
	sub.CurrentPeriodEnd = &periodEnd
	sub.UpdatedAt = now
	if err := uow.SubscriptionRepository().Update(ctx, sub); err != nil {
		return err
	}

	credits := &entity.UserCredits{
		UserId:           sub.UserId,
		CreditsAvailable: plan.CreditsLimit,
		LastResetDate:    now,
	}
	if err := uow.SubscriptionRepository().SaveCredits(ctx, credits); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.publish(ctx, events.SubscriptionActive, map[string]interface{}{
		"user_id":         sub.UserId.String(),
		"subscription_id": sub.Id.String(),
		"plan":            plan.Name,
	})
	return nil
}

func (s *paymentService) GetSubscription(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.SubscriptionRepository().FindOne(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.ErrNotFound
	}
	credits, err := uow.SubscriptionRepository().FindCredits(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return nil, err
	}

	resp := &dto.SubscriptionResponse{
		Id:               sub.Id,
		Plan:             sub.Plan,
		Status:           string(sub.Status),
		CreditsLimit:     sub.CreditsLimit,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
	if credits != nil {
		resp.CreditsAvailable = credits.CreditsAvailable
	}
	return resp, nil
}
