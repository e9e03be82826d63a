package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"custodial-wallet/config"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	googleAuthEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"
	googleCallbackPath = "/auth/google/callback"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo      ports.UserRepository
	walletRepo    ports.WalletRepository
	transactor    ports.DBTransactor
	tokenSvc      ports.TokenService
	verifier      ports.IdentityVerifier
	identity      config.IdentityConfig
	walletRetries int
	log           zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	tokenSvc ports.TokenService,
	verifier ports.IdentityVerifier,
	identity config.IdentityConfig,
	walletRetries int,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:      userRepo,
		walletRepo:    walletRepo,
		transactor:    transactor,
		tokenSvc:      tokenSvc,
		verifier:      verifier,
		identity:      identity,
		walletRetries: walletRetries,
		log:           log,
	}
}

// SignIn verifies the caller with the identity provider, provisions the user
// and wallet on first sight, and issues a session token.
func (s *AuthServiceImpl) SignIn(ctx context.Context, req ports.SignInRequest) (*ports.SignInResult, error) {
	identity, err := s.resolveIdentity(ctx, req)
	if err != nil {
		return nil, err
	}

	user, err := s.CreateUser(ctx, identity.Email, identity.Name, identity.Subject)
	if err != nil {
		return nil, err
	}

	wallet, err := ensureWallet(ctx, s.walletRepo, user.ID, s.walletRetries)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user signed in")

	return &ports.SignInResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
		Wallet:    wallet,
	}, nil
}

func (s *AuthServiceImpl) resolveIdentity(ctx context.Context, req ports.SignInRequest) (*ports.VerifiedIdentity, error) {
	mockAllowed := s.identity.AllowInsecureMock && strings.TrimSpace(req.MockEmail) != ""

	if req.IDToken != "" && s.identity.GoogleClientID != "" {
		identity, err := s.verifier.Verify(ctx, req.IDToken)
		if err == nil {
			return identity, nil
		}
		if !mockAllowed {
			return nil, apperror.ErrIdentityVerification(err)
		}
		s.log.Warn().Err(err).Msg("identity verification failed, falling back to insecure mock")
	}

	if mockAllowed {
		name := strings.TrimSpace(req.MockName)
		if name == "" {
			name = req.MockEmail
		}
		return &ports.VerifiedIdentity{Email: req.MockEmail, Name: name}, nil
	}

	if s.identity.GoogleClientID == "" {
		return nil, apperror.ErrIdentityNotConfigured()
	}
	return nil, apperror.Validation("id_token is required")
}

// CreateUser returns the user registered under email, creating the user and
// wallet together if the email is new.
func (s *AuthServiceImpl) CreateUser(ctx context.Context, email, name, externalID string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, apperror.Validation("email is required")
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:         uuid.New(),
		Email:      email,
		Name:       optionalString(name),
		ExternalID: optionalString(externalID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.createUserWithWallet(ctx, user)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info().Str("user_id", user.ID.String()).Msg("user created")
		return user, nil
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if existing == nil {
		return nil, apperror.InternalError(fmt.Errorf("user %s vanished after conflict", email))
	}
	return existing, nil
}

func (s *AuthServiceImpl) createUserWithWallet(ctx context.Context, user *domain.User) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	inserted, err := s.userRepo.CreateIfAbsent(ctx, dbTx, user)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}
	if !inserted {
		return false, nil
	}

	if _, err := provisionWallet(ctx, s.walletRepo, dbTx, user.ID, s.walletRetries); err != nil {
		return false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return true, nil
}

// GetUser returns the user or nil if absent.
func (s *AuthServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}

// FindUserByEmail returns the user or nil if absent.
func (s *AuthServiceImpl) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	return user, nil
}

func (s *AuthServiceImpl) ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, error) {
	page, pageSize = normalizePage(page, pageSize)
	users, err := s.userRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list users: %w", err))
	}
	return users, nil
}

// AuthenticateToken resolves a session token to its user.
func (s *AuthServiceImpl) AuthenticateToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenSvc.Validate(token)
	if err != nil {
		return nil, apperror.ErrInvalidToken()
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidToken()
	}
	return user, nil
}

// ProviderInfo builds the implicit-flow authorization URL. The redirect URI
// defaults to the callback route on the host the request arrived at.
func (s *AuthServiceImpl) ProviderInfo(requestBaseURL string) ports.ProviderInfo {
	redirect := s.identity.RedirectURI
	if redirect == "" {
		redirect = strings.TrimRight(requestBaseURL, "/") + googleCallbackPath
	}

	info := ports.ProviderInfo{
		RedirectURI: redirect,
		MockEnabled: s.identity.AllowInsecureMock,
	}
	if s.identity.GoogleClientID == "" {
		return info
	}

	q := url.Values{}
	q.Set("client_id", s.identity.GoogleClientID)
	q.Set("redirect_uri", redirect)
	q.Set("response_type", "token")
	q.Set("scope", "openid email profile")
	info.AuthURL = googleAuthEndpoint + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
	return info
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
