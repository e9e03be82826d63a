package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo       ports.WalletRepository
	txRepo           ports.TransactionRepository
	idempRepo        ports.IdempotencyRepository
	idempCache       ports.IdempotencyCache
	gateway          ports.PaymentGateway
	transactor       ports.DBTransactor
	walletRetries    int
	referenceRetries int
	log              zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	walletRetries, referenceRetries int,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:       walletRepo,
		txRepo:           txRepo,
		idempRepo:        idempRepo,
		idempCache:       idempCache,
		gateway:          gateway,
		transactor:       transactor,
		walletRetries:    walletRetries,
		referenceRetries: referenceRetries,
		log:              log,
	}
}

// EnsureWallet returns the user's wallet, creating it on first access.
func (s *LedgerServiceImpl) EnsureWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return ensureWallet(ctx, s.walletRepo, userID, s.walletRetries)
}

// FindWalletByNumber returns the wallet or nil if absent.
func (s *LedgerServiceImpl) FindWalletByNumber(ctx context.Context, number string) (*domain.Wallet, error) {
	if !domain.IsValidWalletNumber(number) {
		return nil, nil
	}
	wallet, err := s.walletRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by number: %w", err))
	}
	return wallet, nil
}

// Deposit records a pending deposit and asks the gateway for a checkout.
// A gateway failure marks the deposit failed before returning.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositResult, error) {
	if req.Amount <= 0 {
		metrics.RecordDeposit("rejected")
		return nil, apperror.ErrInvalidAmount()
	}

	if _, err := s.EnsureWallet(ctx, req.UserID); err != nil {
		return nil, err
	}

	reference, err := s.uniqueReference(ctx, domain.ReferencePrefixDeposit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	source := domain.SourceGateway
	userID := req.UserID
	txn := &domain.Transaction{
		ID:        uuid.New(),
		Reference: reference,
		Type:      domain.TransactionTypeDeposit,
		UserID:    &userID,
		Amount:    req.Amount,
		Status:    domain.TransactionStatusPending,
		Source:    &source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.txRepo.Create(ctx, nil, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create deposit: %w", err))
	}

	checkout, err := s.gateway.Initialize(ctx, ports.GatewayInitRequest{
		Amount:    req.Amount,
		Email:     req.Email,
		Reference: reference,
	})
	if err != nil {
		s.failDeposit(txn, err)
		metrics.RecordDeposit("gateway_failed")
		return nil, apperror.ErrGatewayInitialize(err)
	}

	metrics.RecordDeposit("initialized")
	s.log.Info().
		Str("reference", reference).
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Msg("deposit initialized")

	return &ports.DepositResult{
		Reference:        reference,
		AuthorizationURL: checkout.AuthorizationURL,
		Transaction:      txn,
	}, nil
}

// failDeposit marks a deposit failed. It runs detached from the request
// context so a client disconnect cannot leave the record pending.
func (s *LedgerServiceImpl) failDeposit(txn *domain.Transaction, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := cause.Error()
	err := s.txRepo.Update(ctx, nil, txn.Reference, domain.TransactionUpdate{
		Status:       domain.TransactionStatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		s.log.Error().Err(err).Str("reference", txn.Reference).Msg("failed to mark deposit failed after gateway error")
		return
	}
	txn.Status = domain.TransactionStatusFailed
	txn.ErrorMessage = &msg

	s.log.Warn().Err(cause).Str("reference", txn.Reference).Msg("gateway initialize failed, deposit marked failed")
}

// DepositStatus returns the caller's deposit by reference.
func (s *LedgerServiceImpl) DepositStatus(ctx context.Context, userID uuid.UUID, reference string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get deposit: %w", err))
	}
	if txn == nil || txn.Type != domain.TransactionTypeDeposit {
		return nil, apperror.ErrNotFound("Deposit")
	}
	if !txn.BelongsTo(userID) {
		return nil, apperror.ErrForbiddenResource("deposit")
	}
	return txn, nil
}

// Transfer moves funds between two wallets. The debit, credit, transfer
// record and idempotency log commit together with both wallet rows locked.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		metrics.RecordTransfer("rejected", 0)
		return nil, apperror.ErrInvalidAmount()
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildTransferIdempotencyKey(req.SenderID, req.IdempotencyKey)
		replay, err := s.lookupIdempotent(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			metrics.RecordTransfer("replayed", 0)
			return replay, nil
		}
	}

	sender, err := s.EnsureWallet(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	if sender.Balance < req.Amount {
		metrics.RecordTransfer("insufficient_funds", 0)
		return nil, apperror.ErrInsufficientFunds()
	}

	receiver, err := s.FindWalletByNumber(ctx, req.WalletNumber)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		metrics.RecordTransfer("rejected", 0)
		return nil, apperror.ErrNotFound("Recipient wallet")
	}
	if receiver.UserID == req.SenderID {
		metrics.RecordTransfer("rejected", 0)
		return nil, apperror.ErrSelfTransfer()
	}

	reference, err := s.uniqueReference(ctx, domain.ReferencePrefixTransfer)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.LockForUpdate(ctx, dbTx, sender.ID, receiver.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallets: %w", err))
	}
	for _, w := range locked {
		if w.ID == sender.ID && w.Balance < req.Amount {
			metrics.RecordTransfer("insufficient_funds", 0)
			return nil, apperror.ErrInsufficientFunds()
		}
	}

	if _, err := s.walletRepo.AdjustBalance(ctx, dbTx, req.SenderID, -req.Amount); err != nil {
		if errors.Is(err, domain.ErrBalanceUnderflow) {
			metrics.RecordTransfer("insufficient_funds", 0)
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if _, err := s.walletRepo.AdjustBalance(ctx, dbTx, receiver.UserID, req.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit receiver: %w", err))
	}

	now := time.Now().UTC()
	from, to := req.SenderID, receiver.UserID
	txn := &domain.Transaction{
		ID:         uuid.New(),
		Reference:  reference,
		Type:       domain.TransactionTypeTransfer,
		FromUserID: &from,
		ToUserID:   &to,
		Amount:     req.Amount,
		Status:     domain.TransactionStatusSuccess,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transfer: %w", err))
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(txn)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		if err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
			Key:           idempKey,
			TransactionID: txn.ID,
			ResponseJSON:  respJSON,
			CreatedAt:     now,
		}); err != nil {
			if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
				// A parallel retry with the same key committed first.
				_ = dbTx.Rollback(ctx)
				if replay, lookupErr := s.lookupIdempotent(ctx, idempKey); lookupErr == nil && replay != nil {
					metrics.RecordTransfer("replayed", 0)
					return replay, nil
				}
			}
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	metrics.RecordTransfer("success", req.Amount)
	s.log.Info().
		Str("reference", reference).
		Str("from_user_id", from.String()).
		Str("to_user_id", to.String()).
		Int64("amount", req.Amount).
		Msg("transfer completed")

	return txn, nil
}

// lookupIdempotent checks the cache, then the durable log, for a prior result.
// The cache is optional.
func (s *LedgerServiceImpl) lookupIdempotent(ctx context.Context, key string) (*domain.Transaction, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalCachedTransaction(cached)
		}
	}

	idempLog, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if idempLog != nil {
		return unmarshalCachedTransaction(idempLog.ResponseJSON)
	}
	return nil, nil
}

// uniqueReference draws references until one is unused, up to referenceRetries.
func (s *LedgerServiceImpl) uniqueReference(ctx context.Context, prefix string) (string, error) {
	for attempt := 0; attempt < s.referenceRetries; attempt++ {
		ref := newReference(prefix)
		exists, err := s.txRepo.ReferenceExists(ctx, ref)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("check reference: %w", err))
		}
		if !exists {
			return ref, nil
		}
	}
	return "", apperror.ErrUniqueValueExhausted("reference", s.referenceRetries)
}

// unmarshalCachedTransaction deserializes a cached transaction.
func unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached tx: %w", err))
	}
	return txn, nil
}
