package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// APIKeyServiceImpl implements ports.APIKeyService.
type APIKeyServiceImpl struct {
	keyRepo    ports.APIKeyRepository
	userRepo   ports.UserRepository
	hasher     ports.KeyHasher
	transactor ports.DBTransactor
	maxActive  int
	now        func() time.Time
	log        zerolog.Logger
}

// NewAPIKeyService creates a new APIKeyServiceImpl. maxActive caps the
// number of simultaneously active keys per user.
func NewAPIKeyService(
	keyRepo ports.APIKeyRepository,
	userRepo ports.UserRepository,
	hasher ports.KeyHasher,
	transactor ports.DBTransactor,
	maxActive int,
	log zerolog.Logger,
) *APIKeyServiceImpl {
	if maxActive <= 0 {
		maxActive = domain.DefaultMaxActiveKeys
	}
	return &APIKeyServiceImpl{
		keyRepo:    keyRepo,
		userRepo:   userRepo,
		hasher:     hasher,
		transactor: transactor,
		maxActive:  maxActive,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// Create issues a new key scoped to the valid subset of req.Permissions.
func (s *APIKeyServiceImpl) Create(ctx context.Context, req ports.CreateKeyRequest) (*ports.IssuedKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	perms := domain.NormalizePermissions(req.Permissions)
	if len(perms) == 0 {
		return nil, apperror.ErrNoValidPermissions()
	}
	now := s.now()
	expiresAt, ok := domain.ParseExpiry(req.Expiry, now)
	if !ok {
		return nil, apperror.ErrInvalidExpiry()
	}

	issued, err := s.issue(ctx, req.UserID, name, perms, now, expiresAt)
	if err != nil {
		metrics.RecordAPIKey("create", outcomeOf(err))
		return nil, err
	}
	metrics.RecordAPIKey("create", "success")

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("key_id", issued.Key.ID.String()).
		Str("key_prefix", issued.Key.KeyPrefix).
		Msg("api key created")

	return issued, nil
}

// Rollover replaces an expired key with a fresh one carrying the same name and
// permissions. Keys that are still valid cannot be rolled over.
func (s *APIKeyServiceImpl) Rollover(ctx context.Context, req ports.RolloverKeyRequest) (*ports.IssuedKey, error) {
	now := s.now()
	expiresAt, ok := domain.ParseExpiry(req.Expiry, now)
	if !ok {
		return nil, apperror.ErrInvalidExpiry()
	}

	old, err := s.keyRepo.GetByID(ctx, req.ExpiredKeyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get api key: %w", err))
	}
	if old == nil || old.UserID != req.UserID {
		return nil, apperror.ErrNotFound("API key")
	}
	if !old.IsExpired(now) {
		metrics.RecordAPIKey("rollover", "not_expired")
		return nil, apperror.ErrKeyNotExpired()
	}

	issued, err := s.issue(ctx, req.UserID, old.Name, old.Permissions, now, expiresAt)
	if err != nil {
		metrics.RecordAPIKey("rollover", outcomeOf(err))
		return nil, err
	}
	metrics.RecordAPIKey("rollover", "success")

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("old_key_id", old.ID.String()).
		Str("key_id", issued.Key.ID.String()).
		Msg("api key rolled over")

	return issued, nil
}

// issue mints and stores a key under the quota. The user row is locked so two
// concurrent issues for the same user cannot both pass the count.
func (s *APIKeyServiceImpl) issue(ctx context.Context, userID uuid.UUID, name string, perms []domain.Permission, now, expiresAt time.Time) (*ports.IssuedKey, error) {
	secret, prefix, err := newAPIKeySecret()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}

	active, err := s.keyRepo.CountActive(ctx, dbTx, userID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count active keys: %w", err))
	}
	if active >= s.maxActive {
		return nil, apperror.ErrKeyQuotaReached(s.maxActive)
	}

	key := &domain.APIKey{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		KeyHash:     s.hasher.Hash(secret),
		KeyPrefix:   prefix,
		Permissions: perms,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.keyRepo.Create(ctx, dbTx, key); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create api key: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return &ports.IssuedKey{Key: key, Secret: secret}, nil
}

// Revoke permanently disables the key identified by its plaintext value.
// Revoking an already revoked key reports the existing state.
func (s *APIKeyServiceImpl) Revoke(ctx context.Context, userID uuid.UUID, rawKey string) (*ports.RevokeResult, error) {
	key, err := s.keyRepo.GetByHash(ctx, s.hasher.Hash(strings.TrimSpace(rawKey)))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get api key: %w", err))
	}
	if key == nil || key.UserID != userID {
		return nil, apperror.ErrNotFound("API key")
	}

	result := &ports.RevokeResult{KeyID: key.ID, Status: ports.RevokeStatusAlreadyRevoked}
	if key.Revoked {
		return result, nil
	}

	revoked, err := s.keyRepo.Revoke(ctx, key.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("revoke api key: %w", err))
	}
	if revoked {
		result.Status = ports.RevokeStatusRevoked
		metrics.RecordAPIKey("revoke", "success")
		s.log.Info().Str("user_id", userID.String()).Str("key_id", key.ID.String()).Msg("api key revoked")
	}
	return result, nil
}

func (s *APIKeyServiceImpl) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list api keys: %w", err))
	}
	return keys, nil
}

// Authenticate resolves a presented key to its principal. Revocation is
// checked before expiry.
func (s *APIKeyServiceImpl) Authenticate(ctx context.Context, rawKey string) (*domain.Principal, error) {
	if rawKey == "" {
		return nil, apperror.ErrInvalidAPIKey()
	}

	key, err := s.keyRepo.GetByHash(ctx, s.hasher.Hash(rawKey))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get api key: %w", err))
	}
	if key == nil {
		return nil, apperror.ErrInvalidAPIKey()
	}
	if key.Revoked {
		return nil, apperror.ErrAPIKeyRevoked()
	}
	if key.IsExpired(s.now()) {
		return nil, apperror.ErrAPIKeyExpired()
	}

	user, err := s.userRepo.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get key owner: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidAPIKey()
	}

	return &domain.Principal{Kind: domain.PrincipalAPIKey, User: user, Key: key}, nil
}

// outcomeOf labels a failed operation for metrics.
func outcomeOf(err error) string {
	if code := apperror.CodeOf(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}
