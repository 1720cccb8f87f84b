package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
)

const maxCategoryNameLength = 255

// CategoryInput captures the mutable fields of a category.
type CategoryInput struct {
	Name        string
	Description string
	Icon        string
	Color       string
}

func validateCategoryName(name string) error {
	key := model.NormalizeCategoryName(name)
	if key == "" {
		return validationf("category name is required")
	}
	if len(name) > maxCategoryNameLength {
		return validationf("category name exceeds %d characters", maxCategoryNameLength)
	}
	return nil
}

// CreateCategory creates a tag owned by the caller. Names are unique per
// owner, case-insensitively.
func (r *Registry) CreateCategory(ctx context.Context, caller string, input CategoryInput) (*model.Category, error) {
	if caller == "" {
		return nil, ErrForbidden
	}
	if err := validateCategoryName(input.Name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &model.Category{
		ID:          uuid.NewString(),
		Name:        input.Name,
		NameKey:     model.NormalizeCategoryName(input.Name),
		Description: input.Description,
		Icon:        input.Icon,
		Color:       input.Color,
		OwnerID:     &caller,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.CreateCategory(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, r.storageFailure("create category", err)
	}
	return rec, nil
}

// GetCategory is the detailed category read, ownership-checked like URLs.
func (r *Registry) GetCategory(ctx context.Context, caller, id string) (*model.Category, error) {
	rec, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, r.storageFailure("find category", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if !canModify(rec.OwnerID, caller) {
		return nil, ErrForbidden
	}
	return rec, nil
}

// UpdateCategory renames or restyles a category; a rename re-checks the
// per-owner uniqueness invariant.
func (r *Registry) UpdateCategory(ctx context.Context, caller, id string, input CategoryInput) (*model.Category, error) {
	rec, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, r.storageFailure("find category", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if !canModify(rec.OwnerID, caller) {
		return nil, ErrForbidden
	}
	if err := validateCategoryName(input.Name); err != nil {
		return nil, err
	}

	updated, err := r.store.UpdateCategory(ctx, &model.Category{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Icon:        input.Icon,
		Color:       input.Color,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		default:
			return nil, r.storageFailure("update category", err)
		}
	}
	return updated, nil
}

// DeleteCategory hard-deletes the category; associations to it disappear
// with it.
func (r *Registry) DeleteCategory(ctx context.Context, caller, id string) error {
	rec, err := r.store.FindCategoryByID(ctx, id)
	if err != nil {
		return r.storageFailure("find category", err)
	}
	if rec == nil {
		return ErrNotFound
	}
	if !canModify(rec.OwnerID, caller) {
		return ErrForbidden
	}

	if err := r.store.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return r.storageFailure("delete category", err)
	}
	return nil
}

// ListCategories returns the caller's categories.
func (r *Registry) ListCategories(ctx context.Context, caller string) ([]model.Category, error) {
	if caller == "" {
		return nil, ErrForbidden
	}
	out, err := r.store.ListCategoriesByOwner(ctx, caller)
	if err != nil {
		return nil, r.storageFailure("list categories", err)
	}
	return out, nil
}

// ListCategoriesWithCounts returns the caller's categories with the number
// of URLs in each, in one query.
func (r *Registry) ListCategoriesWithCounts(ctx context.Context, caller string) ([]storage.CategoryWithCount, error) {
	if caller == "" {
		return nil, ErrForbidden
	}
	out, err := r.store.ListCategoriesWithCounts(ctx, caller)
	if err != nil {
		return nil, r.storageFailure("list categories with counts", err)
	}
	return out, nil
}

// checkCategoryOwnership verifies every category exists and is mutable by
// the caller. Association ops are keyed on the category's owner, not the
// URL's.
func (r *Registry) checkCategoryOwnership(ctx context.Context, caller string, categoryIDs []string) error {
	for _, id := range categoryIDs {
		rec, err := r.store.FindCategoryByID(ctx, id)
		if err != nil {
			return r.storageFailure("find category", err)
		}
		if rec == nil {
			return ErrNotFound
		}
		if !canModify(rec.OwnerID, caller) {
			return ErrForbidden
		}
	}
	return nil
}

// AssociateURL attaches categories to the URL identified by code. Adding
// an already-present pair is a no-op.
func (r *Registry) AssociateURL(ctx context.Context, caller, code string, categoryIDs []string) error {
	rec, err := r.store.FindURLByCode(ctx, code)
	if err != nil {
		return r.storageFailure("find url by code", err)
	}
	if rec == nil {
		return ErrNotFound
	}
	if err := r.checkCategoryOwnership(ctx, caller, categoryIDs); err != nil {
		return err
	}

	if err := r.store.AddURLCategories(ctx, rec.ID, categoryIDs); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return r.storageFailure("add url categories", err)
	}
	return nil
}

// DissociateURL removes categories from the URL identified by code.
func (r *Registry) DissociateURL(ctx context.Context, caller, code string, categoryIDs []string) error {
	rec, err := r.store.FindURLByCode(ctx, code)
	if err != nil {
		return r.storageFailure("find url by code", err)
	}
	if rec == nil {
		return ErrNotFound
	}
	if err := r.checkCategoryOwnership(ctx, caller, categoryIDs); err != nil {
		return err
	}

	if err := r.store.RemoveURLCategories(ctx, rec.ID, categoryIDs); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return r.storageFailure("remove url categories", err)
	}
	return nil
}

// CategoriesForURL lists the categories attached to a URL, visible under
// the URL's detailed-read rule.
func (r *Registry) CategoriesForURL(ctx context.Context, caller, code string) ([]model.Category, error) {
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

	out, err := r.store.CategoriesForURL(ctx, rec.ID)
	if err != nil {
		return nil, r.storageFailure("categories for url", err)
	}
	return out, nil
}
