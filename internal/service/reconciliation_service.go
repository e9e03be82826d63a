package service

import (
	"context"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// gatewaySuccessStatus is the data.status value of a settled charge.
const gatewaySuccessStatus = "success"

// ReconciliationServiceImpl implements ports.ReconciliationService.
type ReconciliationServiceImpl struct {
	txRepo        ports.TransactionRepository
	walletRepo    ports.WalletRepository
	eventRepo     ports.GatewayEventRepository
	sigSvc        ports.SignatureService
	transactor    ports.DBTransactor
	secret        string
	allowUnsigned bool
	walletRetries int
	log           zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
// allowUnsigned only takes effect when secret is empty.
func NewReconciliationService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	eventRepo ports.GatewayEventRepository,
	sigSvc ports.SignatureService,
	transactor ports.DBTransactor,
	secret string,
	allowUnsigned bool,
	walletRetries int,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		txRepo:        txRepo,
		walletRepo:    walletRepo,
		eventRepo:     eventRepo,
		sigSvc:        sigSvc,
		transactor:    transactor,
		secret:        secret,
		allowUnsigned: allowUnsigned,
		walletRetries: walletRetries,
		log:           log,
	}
}

// gatewayCallback is the subset of the callback body the ledger acts on.
type gatewayCallback struct {
	Event           string
	Reference       string
	Status          string
	Amount          int64
	GatewayResponse string
}

func parseCallback(payload []byte) (*gatewayCallback, error) {
	if !gjson.ValidBytes(payload) {
		return nil, apperror.ErrMalformedPayload("Malformed webhook payload")
	}
	body := gjson.ParseBytes(payload)
	cb := &gatewayCallback{
		Event:     body.Get("event").String(),
		Reference: body.Get("data.reference").String(),
		Status:    body.Get("data.status").String(),
		Amount:    body.Get("data.amount").Int(),
	}
	if cb.Reference == "" {
		return nil, apperror.ErrMalformedPayload("Missing transaction reference")
	}
	cb.GatewayResponse = body.Get("data.gateway_response").String()
	if cb.GatewayResponse == "" {
		cb.GatewayResponse = body.Get("data.gatewayResponse").String()
	}
	return cb, nil
}

// Reconcile authenticates a gateway callback and applies it to the pending
// deposit it names. Redelivery of a processed success never credits twice.
func (s *ReconciliationServiceImpl) Reconcile(ctx context.Context, payload []byte, signature string) (*ports.ReconcileResult, error) {
	if !s.authentic(payload, signature) {
		metrics.RecordReconciliation("invalid_signature", 0)
		return nil, apperror.ErrInvalidSignature()
	}

	cb, err := parseCallback(payload)
	if err != nil {
		metrics.RecordReconciliation("malformed", 0)
		return nil, err
	}

	txn, err := s.txRepo.GetByReference(ctx, cb.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		metrics.RecordReconciliation("not_found", 0)
		return nil, apperror.ErrNotFound("Transaction")
	}

	result := &ports.ReconcileResult{Reference: cb.Reference}
	if txn.Status == domain.TransactionStatusSuccess {
		result.Outcome = domain.OutcomeAlreadyProcessed
		s.finish(cb, payload, result)
		return result, nil
	}

	if cb.Status == gatewaySuccessStatus {
		if txn.UserID == nil {
			return nil, apperror.InternalError(fmt.Errorf("transaction %s has no owning user", txn.Reference))
		}
		if _, err := ensureWallet(ctx, s.walletRepo, *txn.UserID, s.walletRetries); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Recheck under the row lock: a concurrent delivery may have won.
	locked, err := s.txRepo.GetByReferenceForUpdate(ctx, dbTx, cb.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	if locked.Status == domain.TransactionStatusSuccess {
		_ = dbTx.Rollback(ctx)
		result.Outcome = domain.OutcomeAlreadyProcessed
		s.finish(cb, payload, result)
		return result, nil
	}

	update := domain.TransactionUpdate{
		WebhookEvent:    nonEmpty(cb.Event),
		GatewayResponse: nonEmpty(cb.GatewayResponse),
	}

	if cb.Status != gatewaySuccessStatus {
		update.Status = domain.TransactionStatusFailed
		if err := s.txRepo.Update(ctx, dbTx, cb.Reference, update); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark failed: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		result.Outcome = domain.OutcomeMarkedFailed
		s.finish(cb, payload, result)
		return result, nil
	}

	amount := locked.Amount
	if amount <= 0 {
		amount = cb.Amount
	}
	if amount <= 0 {
		return nil, apperror.ErrMalformedPayload("Missing transaction amount")
	}

	if _, err := s.walletRepo.AdjustBalance(ctx, dbTx, *txn.UserID, amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	update.Status = domain.TransactionStatusSuccess
	update.Amount = &amount
	if err := s.txRepo.Update(ctx, dbTx, cb.Reference, update); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark success: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	result.Outcome = domain.OutcomeCredited
	result.Credited = amount
	s.finish(cb, payload, result)
	return result, nil
}

func (s *ReconciliationServiceImpl) authentic(payload []byte, signature string) bool {
	if s.secret == "" {
		if s.allowUnsigned {
			s.log.Warn().Msg("accepting unsigned gateway callback: no gateway secret configured")
		}
		return s.allowUnsigned
	}
	return s.sigSvc.Verify(s.secret, payload, signature)
}

// finish logs the callback outcome and records the event best-effort.
func (s *ReconciliationServiceImpl) finish(cb *gatewayCallback, payload []byte, result *ports.ReconcileResult) {
	metrics.RecordReconciliation(string(result.Outcome), result.Credited)

	s.log.Info().
		Str("reference", cb.Reference).
		Str("event", cb.Event).
		Str("payload_status", cb.Status).
		Str("outcome", string(result.Outcome)).
		Int64("credited", result.Credited).
		Msg("gateway callback reconciled")

	if s.eventRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.eventRepo.Create(ctx, &domain.GatewayEvent{
		ID:            uuid.New(),
		Reference:     cb.Reference,
		Event:         cb.Event,
		PayloadStatus: cb.Status,
		Outcome:       result.Outcome,
		Payload:       string(payload),
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("reference", cb.Reference).Msg("failed to record gateway event")
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
