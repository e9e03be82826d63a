package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	s *Store
}

func (r *APIKeyRepo) Create(ctx context.Context, tx pgx.Tx, k *domain.APIKey) error {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer release()

	if _, taken := r.s.apiKeyByHash[k.KeyHash]; taken {
		return fmt.Errorf("insert api key: duplicate key hash")
	}
	cp := *k
	cp.Permissions = slices.Clone(k.Permissions)
	r.s.apiKeys[k.ID] = &cp
	r.s.apiKeyByHash[k.KeyHash] = k.ID
	mt.onRollback(func() {
		delete(r.s.apiKeys, k.ID)
		delete(r.s.apiKeyByHash, k.KeyHash)
	})
	return nil
}

func (r *APIKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.get(id), nil
}

func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := r.s.apiKeyByHash[keyHash]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

func (r *APIKeyRepo) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.APIKey, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	var keys []domain.APIKey
	for id, k := range r.s.apiKeys {
		if k.UserID == userID && k.IsActive(now) {
			keys = append(keys, *r.get(id))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (r *APIKeyRepo) CountActive(ctx context.Context, tx pgx.Tx, userID uuid.UUID, now time.Time) (int, error) {
	_, release, err := r.s.enter(tx)
	if err != nil {
		return 0, err
	}
	defer release()

	n := 0
	for _, k := range r.s.apiKeys {
		if k.UserID == userID && k.IsActive(now) {
			n++
		}
	}
	return n, nil
}

func (r *APIKeyRepo) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return false, err
	}
	defer release()

	k, ok := r.s.apiKeys[id]
	if !ok || k.Revoked {
		return false, nil
	}
	k.Revoked = true
	k.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *APIKeyRepo) get(id uuid.UUID) *domain.APIKey {
	k, ok := r.s.apiKeys[id]
	if !ok {
		return nil
	}
	cp := *k
	cp.Permissions = slices.Clone(k.Permissions)
	return &cp
}
