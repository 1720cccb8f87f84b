package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func seedAccount(t *testing.T, s *Store, id, email string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateAccount(context.Background(), &model.Account{
		ID: id, Email: email, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func seedURL(t *testing.T, s *Store, id, code string, owner *string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateURL(context.Background(), &model.ShortURL{
		ID: id, Code: code, URL: "https://example.org/" + code,
		OwnerID: owner, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed url %s: %v", code, err)
	}
}

func seedCategory(t *testing.T, s *Store, id, name string, owner *string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateCategory(context.Background(), &model.Category{
		ID: id, Name: name, OwnerID: owner, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
}

func TestCreateURL_Conflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedURL(t, s, "url-1", "abc123", nil)

	now := time.Now().UTC()
	err := s.CreateURL(ctx, &model.ShortURL{
		ID: "url-2", Code: "abc123", URL: "https://other.example",
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := s.FindURLByCode(ctx, "abc123")
	if err != nil || got == nil {
		t.Fatalf("find after conflict: %v, %v", got, err)
	}
	if got.URL != "https://example.org/abc123" {
		t.Fatalf("winning record overwritten: %+v", got)
	}
}

func TestFindURL_AbsentIsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.FindURLByCode(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", got, err)
	}
	got, err = s.FindURLByID(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestUpdateAndIncrement(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedURL(t, s, "url-1", "abc123", nil)

	for i := 0; i < 3; i++ {
		if err := s.IncrementAccessCount(ctx, "abc123"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	updated, err := s.UpdateURL(ctx, "abc123", "https://example.org/new")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.URL != "https://example.org/new" {
		t.Fatalf("destination not updated: %s", updated.URL)
	}
	if updated.AccessCount != 3 {
		t.Fatalf("update clobbered access count: %d", updated.AccessCount)
	}

	if _, err := s.UpdateURL(ctx, "missing", "https://example.org"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.IncrementAccessCount(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountEmailCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acc-1", "a@x.com")

	now := time.Now().UTC()
	err := s.CreateAccount(ctx, &model.Account{
		ID: "acc-2", Email: "A@x.com", PasswordHash: "hash",
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := s.FindAccountByEmail(ctx, "A@X.COM")
	if err != nil || got == nil {
		t.Fatalf("case-insensitive lookup: %v, %v", got, err)
	}
	if got.ID != "acc-1" {
		t.Fatalf("wrong account: %+v", got)
	}
}

func TestCategoryUniquenessAndRename(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acc-1", "a@x.com")
	seedCategory(t, s, "cat-1", "Work", strPtr("acc-1"))
	seedCategory(t, s, "cat-2", "Home", strPtr("acc-1"))

	now := time.Now().UTC()
	err := s.CreateCategory(ctx, &model.Category{
		ID: "cat-3", Name: "work", OwnerID: strPtr("acc-1"),
		CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := s.UpdateCategory(ctx, &model.Category{ID: "cat-2", Name: "WORK"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on rename collision, got %v", err)
	}

	got, err := s.UpdateCategory(ctx, &model.Category{ID: "cat-2", Name: "Archive", Icon: "box"})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Name != "Archive" || got.NameKey != "archive" || got.Icon != "box" {
		t.Fatalf("unexpected category after rename: %+v", got)
	}

	found, err := s.FindCategoryByOwnerAndName(ctx, "acc-1", "ARCHIVE")
	if err != nil || found == nil || found.ID != "cat-2" {
		t.Fatalf("owner+name lookup after rename: %+v, %v", found, err)
	}
}

func TestAssociationsIdempotentAndCascading(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acc-1", "a@x.com")
	seedURL(t, s, "url-1", "abc123", strPtr("acc-1"))
	seedCategory(t, s, "cat-1", "Work", strPtr("acc-1"))
	seedCategory(t, s, "cat-2", "Home", strPtr("acc-1"))

	if err := s.AddURLCategories(ctx, "url-1", []string{"cat-1", "cat-2"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddURLCategories(ctx, "url-1", []string{"cat-1"}); err != nil {
		t.Fatalf("idempotent re-add: %v", err)
	}
	if err := s.AddURLCategories(ctx, "url-1", []string{"ghost"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing category, got %v", err)
	}
	if err := s.AddURLCategories(ctx, "ghost", []string{"cat-1"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing url, got %v", err)
	}

	cats, err := s.CategoriesForURL(ctx, "url-1")
	if err != nil {
		t.Fatalf("categories for url: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 associations, got %d", len(cats))
	}

	counts, err := s.ListCategoriesWithCounts(ctx, "acc-1")
	if err != nil {
		t.Fatalf("list with counts: %v", err)
	}
	byID := map[string]int64{}
	for _, cc := range counts {
		byID[cc.Category.ID] = cc.URLCount
	}
	if byID["cat-1"] != 1 || byID["cat-2"] != 1 {
		t.Fatalf("unexpected counts: %v", byID)
	}

	// Deleting a category must drop its join rows.
	if err := s.DeleteCategory(ctx, "cat-1"); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	cats, err = s.CategoriesForURL(ctx, "url-1")
	if err != nil {
		t.Fatalf("categories for url: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != "cat-2" {
		t.Fatalf("expected cascade to leave only cat-2, got %+v", cats)
	}

	// Deleting the URL must drop the remaining join rows too.
	if err := s.DeleteURL(ctx, "abc123"); err != nil {
		t.Fatalf("delete url: %v", err)
	}
	urls, err := s.ListURLsByOwnerAndCategory(ctx, "acc-1", "cat-2")
	if err != nil {
		t.Fatalf("list by owner and category: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("expected no urls after delete, got %d", len(urls))
	}
}

func TestListURLsByOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "acc-1", "a@x.com")
	seedAccount(t, s, "acc-2", "b@x.com")
	seedURL(t, s, "url-1", "aaa111", strPtr("acc-1"))
	seedURL(t, s, "url-2", "bbb222", strPtr("acc-1"))
	seedURL(t, s, "url-3", "ccc333", strPtr("acc-2"))
	seedURL(t, s, "url-4", "ddd444", nil)

	urls, err := s.ListURLsByOwner(ctx, "acc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls for acc-1, got %d", len(urls))
	}
}
