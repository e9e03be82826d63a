package memory

import (
	"context"
	"sort"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	s *Store
}

func (r *UserRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, u *domain.User) (bool, error) {
	mt, release, err := r.s.enter(tx)
	if err != nil {
		return false, err
	}
	defer release()

	email := domain.NormalizeEmail(u.Email)
	if _, taken := r.s.usersByEmail[email]; taken {
		return false, nil
	}
	cp := *u
	cp.Email = email
	r.s.users[u.ID] = &cp
	r.s.usersByEmail[email] = u.ID
	mt.onRollback(func() {
		delete(r.s.users, u.ID)
		delete(r.s.usersByEmail, email)
	})
	return true, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.get(id), nil
}

func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	_, release, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.get(id), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := r.s.usersByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

func (r *UserRepo) List(ctx context.Context, page, pageSize int) ([]domain.User, error) {
	_, release, err := r.s.enter(nil)
	if err != nil {
		return nil, err
	}
	defer release()

	all := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return paginate(all, page, pageSize, 0), nil
}

func (r *UserRepo) get(id uuid.UUID) *domain.User {
	u, ok := r.s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// paginate slices items for a 1-based page, returning up to pageSize+extra items.
func paginate[T any](items []T, page, pageSize, extra int) []T {
	start := (page - 1) * pageSize
	if start < 0 || start >= len(items) {
		return nil
	}
	end := min(start+pageSize+extra, len(items))
	return items[start:end]
}
