package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
)

const minPasswordLength = 8

// PasswordHasher is the credential-hashing collaborator. The registry
// never inspects the hash's structure.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Emails are unique case-insensitively;
// accounts are read-only afterwards.
func (r *Registry) Register(ctx context.Context, email, password string) (*model.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationf("email is not valid")
	}
	if len(password) < minPasswordLength {
		return nil, validationf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		r.logger.Error("password hashing failed", zap.Error(err))
		return nil, ErrStorage
	}

	now := time.Now().UTC()
	rec := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.store.CreateAccount(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, r.storageFailure("create account", err)
	}
	return rec, nil
}

// Authenticate resolves an email/password pair to the account. Unknown
// email and wrong password are indistinguishable to the caller.
func (r *Registry) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	rec, err := r.store.FindAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, r.storageFailure("find account by email", err)
	}
	if rec == nil {
		return nil, ErrInvalidCredentials
	}
	if !r.hasher.Compare(password, rec.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}

// GetAccount returns the account for a verified identity.
func (r *Registry) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	rec, err := r.store.FindAccountByID(ctx, id)
	if err != nil {
		return nil, r.storageFailure("find account by id", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}
