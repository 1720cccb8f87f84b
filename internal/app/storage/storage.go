// Package storage defines the persistence contract shared by every backend.
//
// All backends must behave identically at this boundary: Find* operations
// report absence with a (nil, nil) result instead of an error, Create*
// operations fail with ErrConflict when a unique key is already taken, and
// mutation operations fail with ErrNotFound when the target is missing.
// Returned records are always detached copies; callers can never reach
// backend-internal state through them.
package storage

import (
	"context"
	"errors"

	"shortreg/internal/app/model"
)

var (
	// ErrConflict signals that a unique key (short code, email,
	// owner-scoped category name) is already taken.
	ErrConflict = errors.New("storage: unique key conflict")

	// ErrNotFound signals that the target of a mutation does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// CategoryWithCount pairs a category with the number of URLs associated to
// it, for list views that would otherwise need a query per category.
type CategoryWithCount struct {
	Category model.Category
	URLCount int64
}

// Store is the contract every storage backend implements. Exactly one
// implementation is constructed at startup by the factory and shared by all
// requests for the process lifetime, so implementations must be safe for
// concurrent use.
type Store interface {
	URLStore
	AccountStore
	CategoryStore

	// Close releases the backend's resources.
	Close() error
}

// URLStore covers short URL records and their category associations.
type URLStore interface {
	// CreateURL persists a new record. It is authoritative for code
	// uniqueness: even when the caller pre-checked with CodeExists, a
	// racing create must surface ErrConflict, never overwrite.
	CreateURL(ctx context.Context, u *model.ShortURL) error

	FindURLByCode(ctx context.Context, code string) (*model.ShortURL, error)
	FindURLByID(ctx context.Context, id string) (*model.ShortURL, error)

	// UpdateURL replaces the destination URL and advances UpdatedAt.
	// Other fields are untouched so a concurrent counter increment is
	// never clobbered.
	UpdateURL(ctx context.Context, code, url string) (*model.ShortURL, error)

	// DeleteURL hard-deletes the record and drops its associations.
	DeleteURL(ctx context.Context, code string) error

	// IncrementAccessCount atomically advances the access counter and
	// UpdatedAt. Concurrent increments on the same code must not lose
	// updates.
	IncrementAccessCount(ctx context.Context, code string) error

	CodeExists(ctx context.Context, code string) (bool, error)

	ListURLsByOwner(ctx context.Context, ownerID string) ([]model.ShortURL, error)
	ListURLsByOwnerAndCategory(ctx context.Context, ownerID, categoryID string) ([]model.ShortURL, error)

	// AddURLCategories associates the URL with each category. Adding an
	// already-present pair is a no-op; the whole call is set-based, not
	// row-by-row.
	AddURLCategories(ctx context.Context, urlID string, categoryIDs []string) error
	RemoveURLCategories(ctx context.Context, urlID string, categoryIDs []string) error
	CategoriesForURL(ctx context.Context, urlID string) ([]model.Category, error)
}

// AccountStore covers authentication principals. Accounts are read-only
// after creation.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	FindAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// CategoryStore covers owner-scoped tags.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	FindCategoryByID(ctx context.Context, id string) (*model.Category, error)
	FindCategoryByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Category, error)
	UpdateCategory(ctx context.Context, c *model.Category) (*model.Category, error)

	// DeleteCategory hard-deletes the category and drops its
	// associations.
	DeleteCategory(ctx context.Context, id string) error

	ListCategoriesByOwner(ctx context.Context, ownerID string) ([]model.Category, error)
	ListCategoriesWithCounts(ctx context.Context, ownerID string) ([]CategoryWithCount, error)
}
