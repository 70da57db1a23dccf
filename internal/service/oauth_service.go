package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finsight-be/internal/config"
	"finsight-be/internal/dto"
	"finsight-be/internal/entity"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/repository/specification"
	"finsight-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle     = "google"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateLifetime = 10 * time.Minute
)

var ErrInvalidOAuthState = apperror.Wrap(apperror.ErrBadRequest, errors.New("invalid or expired oauth state"))

type IOAuthService interface {
	GetLoginURL(provider string) (string, error)
	// ConsumeState accepts a state issued by GetLoginURL exactly once.
	ConsumeState(state string) error
	HandleCallback(ctx context.Context, provider, code, ipAddress, userAgent string) (*dto.SessionResponse, error)
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

type oauthService struct {
	uowFactory   unitofwork.RepositoryFactory
	authService  IAuthService
	provisioning IProvisioningService
	googleConf   *oauth2.Config
	userInfoURL  string
	states       *cache.Cache
	logger       logger.ILogger
}

type OAuthOption func(*oauthService)

// WithGoogleEndpoints points the token exchange and profile lookup elsewhere.
func WithGoogleEndpoints(endpoint oauth2.Endpoint, userInfoURL string) OAuthOption {
	return func(s *oauthService) {
		s.googleConf.Endpoint = endpoint
		s.userInfoURL = userInfoURL
	}
}

func NewOAuthService(
	cfg config.AuthConfig,
	uowFactory unitofwork.RepositoryFactory,
	authService IAuthService,
	provisioning IProvisioningService,
	log logger.ILogger,
	opts ...OAuthOption,
) IOAuthService {
	s := &oauthService{
		uowFactory:   uowFactory,
		authService:  authService,
		provisioning: provisioning,
		googleConf: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		states:      cache.New(oauthStateLifetime, 2*oauthStateLifetime),
		logger:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *oauthService) GetLoginURL(provider string) (string, error) {
	if provider != ProviderGoogle {
		return "", apperror.Wrap(apperror.ErrBadRequest, fmt.Errorf("unsupported provider %q", provider))
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	s.states.SetDefault(state, struct{}{})

	return s.googleConf.AuthCodeURL(state), nil
}

func (s *oauthService) ConsumeState(state string) error {
	if state == "" {
		return ErrInvalidOAuthState
	}
	if _, ok := s.states.Get(state); !ok {
		return ErrInvalidOAuthState
	}
	s.states.Delete(state)
	return nil
}

func (s *oauthService) fetchGoogleUser(ctx context.Context, code string) (*googleUser, error) {
	tok, err := s.googleConf.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrInvalidToken, fmt.Errorf("code exchange failed: %w", err))
	}

	resp, err := s.googleConf.Client(ctx, tok).Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned %d", resp.StatusCode)
	}

	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if gu.Email == "" {
		return nil, errors.New("google account has no email")
	}
	return &gu, nil
}

func (s *oauthService) HandleCallback(ctx context.Context, provider, code, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	if provider != ProviderGoogle {
		return nil, apperror.Wrap(apperror.ErrBadRequest, fmt.Errorf("unsupported provider %q", provider))
	}

	gu, err := s.fetchGoogleUser(ctx, code)
	if err != nil {
		s.logger.Error("OAuthService", "Google callback failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: gu.Email})
	if err != nil {
		return nil, err
	}

	created := false
	if user == nil {
		fullName := strings.TrimSpace(gu.Name)
		if fullName == "" {
			fullName = strings.TrimSpace(gu.GivenName + " " + gu.FamilyName)
		}
		user = &entity.User{
			Id:    uuid.New(),
			Email: strings.ToLower(gu.Email),
			Metadata: map[string]interface{}{
				"first_name": gu.GivenName,
				"last_name":  gu.FamilyName,
				"full_name":  fullName,
				"avatar_url": gu.Picture,
			},
			EmailVerified: gu.VerifiedEmail,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := uow.UserRepository().Create(ctx, user); err != nil {
			return nil, err
		}
		created = true
	} else if gu.Picture != "" && user.Metadata["avatar_url"] != gu.Picture {
		if user.Metadata == nil {
			user.Metadata = map[string]interface{}{}
		}
		user.Metadata["avatar_url"] = gu.Picture
		user.UpdatedAt = time.Now()
		if err := uow.UserRepository().Update(ctx, user); err != nil {
			return nil, err
		}
	}

	link, err := uow.UserRepository().FindUserProvider(ctx, specification.ByProvider{Name: ProviderGoogle, UserID: gu.ID})
	if err != nil {
		return nil, err
	}
	if link == nil {
		link = &entity.UserProvider{
			Id:             uuid.New(),
			UserId:         user.Id,
			ProviderName:   ProviderGoogle,
			ProviderUserId: gu.ID,
			CreatedAt:      time.Now(),
		}
		if err := uow.UserRepository().SaveUserProvider(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to save provider info: %w", err)
		}
	}

	if created {
		if _, err := s.provisioning.EnsureDefaults(ctx, user.Id); err != nil {
			s.logger.Warn("OAuthService", "Provisioning failed for new user", map[string]interface{}{
				"user_id": user.Id.String(),
				"error":   err.Error(),
			})
		}
	}

	return s.authService.IssueSession(ctx, user.Id, ipAddress, userAgent)
}
