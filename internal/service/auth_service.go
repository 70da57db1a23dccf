package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsight-be/internal/dto"
	"finsight-be/internal/entity"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/mailer"
	"finsight-be/internal/pkg/token"
	"finsight-be/internal/repository/specification"
	"finsight-be/internal/repository/unitofwork"
	"finsight-be/pkg/events"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = time.Hour

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest, ipAddress, userAgent string) (*dto.SessionResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.SessionResponse, error)
	Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*dto.SessionResponse, error)
	CurrentSession(ctx context.Context, accessToken string) (*dto.SessionResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
	// IssueSession signs in an already verified user, e.g. after an OAuth callback.
	IssueSession(ctx context.Context, userId uuid.UUID, ipAddress, userAgent string) (*dto.SessionResponse, error)
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	emailService   mailer.IEmailService
	eventPublisher events.Publisher
	tokens         *token.Manager
	refreshTTL     time.Duration
	logger         logger.ILogger
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
	eventPublisher events.Publisher,
	tokens *token.Manager,
	refreshTTL time.Duration,
	log logger.ILogger,
) IAuthService {
	return &authService{
		uowFactory:     uowFactory,
		emailService:   emailService,
		eventPublisher: eventPublisher,
		tokens:         tokens,
		refreshTTL:     refreshTTL,
		logger:         log,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func toUserDTO(user *entity.User) dto.UserDTO {
	meta := make(map[string]interface{}, len(user.Metadata))
	for k, v := range user.Metadata {
		meta[k] = v
	}
	return dto.UserDTO{Id: user.Id, Email: user.Email, Metadata: meta}
}

func (s *authService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn("AuthService", "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

// issueSession signs an access token and stores the hash of a fresh refresh token.
func (s *authService) issueSession(ctx context.Context, uow unitofwork.UnitOfWork, user *entity.User, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	accessToken, expiresAt, err := s.tokens.Issue(user.Id, user.Email)
	if err != nil {
		return nil, err
	}

	rawRefreshToken := uuid.NewString()
	refresh := &entity.UserRefreshToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		TokenHash: hashToken(rawRefreshToken),
		ExpiresAt: time.Now().Add(s.refreshTTL),
		IpAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
	if err := uow.UserRepository().CreateRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &dto.SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: rawRefreshToken,
		ExpiresAt:    expiresAt,
		User:         toUserDTO(user),
	}, nil
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	user := &entity.User{
		Id:           uuid.New(),
		Email:        email,
		PasswordHash: &hashStr,
		Metadata: map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"full_name":  strings.TrimSpace(firstName + " " + lastName),
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}
	session, err := s.issueSession(ctx, uow, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	go func() {
		if err := s.emailService.SendWelcome(user.Email, firstName); err != nil {
			s.logger.Warn("AuthService", "Welcome email not sent", map[string]interface{}{"error": err.Error()})
		}
	}()
	s.publish(ctx, events.UserRegistered, map[string]interface{}{"user_id": user.Id.String()})

	return session, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		return nil, apperror.Wrap(apperror.ErrInvalidCredentials, errors.New("account uses Google sign-in"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, uow, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.UserLogin, map[string]interface{}{
		"user_id": user.Id.String(),
		"device":  userAgent,
	})
	return session, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new pair issued.
func (s *authService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	tokenHash := hashToken(refreshToken)

	stored, err := uow.UserRepository().FindRefreshToken(ctx, specification.ByTokenHash{Hash: tokenHash})
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, apperror.ErrInvalidToken
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: stored.UserId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrInvalidToken
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.UserRepository().RevokeRefreshToken(ctx, tokenHash); err != nil {
		return nil, err
	}
	session, err := s.issueSession(ctx, uow, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *authService) IssueSession(ctx context.Context, userId uuid.UUID, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrNotFound
	}
	session, err := s.issueSession(ctx, uow, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.UserLogin, map[string]interface{}{
		"user_id": user.Id.String(),
		"device":  userAgent,
	})
	return session, nil
}

// CurrentSession resolves the principal behind an access token.
func (s *authService) CurrentSession(ctx context.Context, accessToken string) (*dto.SessionResponse, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrInvalidToken, err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: claims.UserID()})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrInvalidToken
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &dto.SessionResponse{AccessToken: accessToken, ExpiresAt: expiresAt, User: toUserDTO(user)}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.UserRepository().RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// ForgotPassword never reveals whether the email exists.
func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil || user == nil {
		return nil
	}

	raw := uuid.NewString()
	resetToken := &entity.PasswordResetToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     raw,
		ExpiresAt: time.Now().Add(resetTokenTTL),
		CreatedAt: time.Now(),
	}
	if err := uow.UserRepository().CreatePasswordResetToken(ctx, resetToken); err != nil {
		return err
	}

	go func() {
		if err := s.emailService.SendResetLink(user.Email, raw); err != nil {
			s.logger.Warn("AuthService", "Reset email not sent", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	tokenEntity, err := uow.UserRepository().FindPasswordResetToken(ctx, specification.ByToken{Token: req.Token})
	if err != nil {
		return err
	}
	if tokenEntity == nil {
		return apperror.ErrInvalidToken
	}
	if tokenEntity.Used {
		return apperror.Wrap(apperror.ErrInvalidToken, errors.New("this password reset link has already been used"))
	}
	if time.Now().After(tokenEntity.ExpiresAt) {
		return apperror.Wrap(apperror.ErrInvalidToken, errors.New("this password reset link has expired"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.UserRepository().UpdatePassword(ctx, tokenEntity.UserId, string(hash)); err != nil {
		return err
	}
	if err := uow.UserRepository().MarkTokenUsed(ctx, tokenEntity.Id); err != nil {
		return err
	}
	return uow.Commit()
}
