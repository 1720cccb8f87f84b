// Package service implements the identifier registry: input validation,
// ownership enforcement, code generation, and delegation to whichever
// storage backend the factory activated.
package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
	"shortreg/internal/app/shortener"
	"shortreg/internal/app/storage"
	"shortreg/internal/infra/prometheus"
)

const maxURLLength = 2048

// Registry orchestrates all operations on short URLs, accounts, and
// categories. It holds no per-request state and is safe to use from
// concurrent request handlers. The store is injected, so tests can run
// against any backend.
type Registry struct {
	store  storage.Store
	codes  *shortener.Generator
	hasher PasswordHasher
	logger *zap.Logger
}

// NewRegistry wires a registry over the given backend. The generator and
// hasher may be shared; the logger falls back to a no-op when nil.
func NewRegistry(store storage.Store, codes *shortener.Generator, hasher PasswordHasher, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  store,
		codes:  codes,
		hasher: hasher,
		logger: logger,
	}
}

// canModify is the ownership rule, identical across backends: a record
// with no owner is unrestricted; otherwise only its owner passes.
func canModify(ownerID *string, caller string) bool {
	if ownerID == nil || *ownerID == "" {
		return true
	}
	return caller != "" && caller == *ownerID
}

func ownerPtr(caller string) *string {
	if caller == "" {
		return nil
	}
	return &caller
}

// storageFailure logs the backend cause and returns the opaque kind.
func (r *Registry) storageFailure(op string, err error) error {
	r.logger.Error("storage operation failed", zap.String("op", op), zap.Error(err))
	return ErrStorage
}

func validateDestination(raw string) error {
	if raw == "" {
		return validationf("destination url is required")
	}
	if len(raw) > maxURLLength {
		return validationf("destination url exceeds %d characters", maxURLLength)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return validationf("destination url is not parseable")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validationf("destination url scheme must be http or https")
	}
	if parsed.Host == "" {
		return validationf("destination url is missing a hostname")
	}
	return nil
}

// CreateURLInput captures data required to create a short URL.
type CreateURLInput struct {
	URL         string
	CategoryIDs []string
}

// CreateURL validates the destination, mints a code, and persists the
// record owned by caller (anonymous callers produce ownerless records).
// Initial categories are attached idempotently after the create.
func (r *Registry) CreateURL(ctx context.Context, caller string, input CreateURLInput) (*model.ShortURL, error) {
	if err := validateDestination(input.URL); err != nil {
		return nil, err
	}
	if err := r.checkCategoryOwnership(ctx, caller, input.CategoryIDs); err != nil {
		return nil, err
	}

	code, err := r.codes.Generate(ctx)
	if err != nil {
		if errors.Is(err, shortener.ErrExhausted) {
			r.logger.Error("short code generation exhausted; check randomness and code space")
			return nil, ErrGenerationExhausted
		}
		return nil, r.storageFailure("generate code", err)
	}

	now := time.Now().UTC()
	rec := &model.ShortURL{
		ID:        uuid.NewString(),
		Code:      code,
		URL:       input.URL,
		OwnerID:   ownerPtr(caller),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.CreateURL(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// The candidate survived the generator's check but lost
			// a concurrent create race; the store stays authoritative.
			r.logger.Warn("short code collision surfaced at create", zap.String("code", code))
			return nil, ErrConflict
		}
		return nil, r.storageFailure("create url", err)
	}
	r.codes.Remember(code)
	prometheus.URLsCreated.Inc()

	if len(input.CategoryIDs) > 0 {
		if err := r.store.AddURLCategories(ctx, rec.ID, input.CategoryIDs); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, r.storageFailure("attach categories", err)
		}
	}

	return rec, nil
}

// Resolve is the redirect path: any caller, authenticated or not, may map
// a code to its record.
func (r *Registry) Resolve(ctx context.Context, code string) (*model.ShortURL, error) {
	rec, err := r.store.FindURLByCode(ctx, code)
	if err != nil {
		return nil, r.storageFailure("find url by code", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// GetURL is the detailed read: ownerless records are open, owned records
// are visible only to their owner.
func (r *Registry) GetURL(ctx context.Context, caller, code string) (*model.ShortURL, error) {
	rec, err := r.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if !canModify(rec.OwnerID, caller) {
		return nil, ErrForbidden
	}
	return rec, nil
}

// UpdateURL replaces the destination of an owned (or ownerless) record.
// The access counter is untouched.
func (r *Registry) UpdateURL(ctx context.Context, caller, code, destination string) (*model.ShortURL, error) {
	rec, err := r.store.FindURLByCode(ctx, code)
	if err != nil {
		return nil, r.storageFailure("find url by code", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if !canModify(rec.OwnerID, caller) {
		return nil, ErrForbidden
	}
	if err := validateDestination(destination); err != nil {
		return nil, err
	}

	updated, err := r.store.UpdateURL(ctx, code, destination)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, r.storageFailure("update url", err)
	}
	return updated, nil
}

// DeleteURL hard-deletes the record; its category associations go with it.
func (r *Registry) DeleteURL(ctx context.Context, caller, code string) error {
	rec, err := r.store.FindURLByCode(ctx, code)
	if err != nil {
		return r.storageFailure("find url by code", err)
	}
	if rec == nil {
		return ErrNotFound
	}
	if !canModify(rec.OwnerID, caller) {
		return ErrForbidden
	}

	if err := r.store.DeleteURL(ctx, code); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return r.storageFailure("delete url", err)
	}
	return nil
}

// RecordAccess advances the access counter for a code. It never returns an
// error: the redirect already happened, so failures are logged and counted
// instead of propagated.
func (r *Registry) RecordAccess(ctx context.Context, code string) {
	if err := r.store.IncrementAccessCount(ctx, code); err != nil {
		prometheus.AccessRecordFailures.Inc()
		r.logger.Warn("failed to record access event",
			zap.String("code", code), zap.Error(err))
	}
}

// ListURLs returns the caller's records, optionally narrowed to one
// category.
func (r *Registry) ListURLs(ctx context.Context, caller, categoryID string) ([]model.ShortURL, error) {
	if caller == "" {
		return nil, ErrForbidden
	}

	var (
		out []model.ShortURL
		err error
	)
	if categoryID == "" {
		out, err = r.store.ListURLsByOwner(ctx, caller)
	} else {
		out, err = r.store.ListURLsByOwnerAndCategory(ctx, caller, categoryID)
	}
	if err != nil {
		return nil, r.storageFailure("list urls", err)
	}
	return out, nil
}
