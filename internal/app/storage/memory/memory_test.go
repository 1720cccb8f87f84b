package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
)

func newURL(id, code, url string, owner *string) *model.ShortURL {
	now := time.Now().UTC()
	return &model.ShortURL{
		ID:        id,
		Code:      code,
		URL:       url,
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func strPtr(s string) *string { return &s }

func TestCreateURL_ConflictOnDuplicateCode(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateURL(ctx, newURL("id-1", "abc123", "https://example.org/a", nil)); err != nil {
		t.Fatalf("first create: %v", err)
	}

	err := s.CreateURL(ctx, newURL("id-2", "abc123", "https://example.org/b", nil))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The failed create must not have disturbed either index.
	got, err := s.FindURLByCode(ctx, "abc123")
	if err != nil || got == nil {
		t.Fatalf("FindURLByCode after conflict: %v, %v", got, err)
	}
	if got.ID != "id-1" || got.URL != "https://example.org/a" {
		t.Fatalf("original record was disturbed: %+v", got)
	}
	if loser, _ := s.FindURLByID(ctx, "id-2"); loser != nil {
		t.Fatalf("losing create left a partial write: %+v", loser)
	}
}

func TestCreateURL_ConcurrentSameCode(t *testing.T) {
	s := New()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := newURL(string(rune('a'+i%26))+"-id", "racer1", "https://example.org", nil)
			u.ID = u.ID + string(rune('0'+i/26))
			errs[i] = s.CreateURL(ctx, u)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning create, got %d", winners)
	}
}

func TestDualIndexAgreement(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateURL(ctx, newURL("id-1", "abc123", "https://example.org", nil)); err != nil {
		t.Fatalf("create: %v", err)
	}

	byCode, _ := s.FindURLByCode(ctx, "abc123")
	byID, _ := s.FindURLByID(ctx, "id-1")
	if byCode == nil || byID == nil {
		t.Fatal("expected record through both indexes")
	}
	if byCode.ID != byID.ID || byCode.Code != byID.Code {
		t.Fatalf("indexes disagree: %+v vs %+v", byCode, byID)
	}

	if err := s.DeleteURL(ctx, "abc123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.FindURLByCode(ctx, "abc123"); got != nil {
		t.Fatal("record still reachable by code after delete")
	}
	if got, _ := s.FindURLByID(ctx, "id-1"); got != nil {
		t.Fatal("record still reachable by id after delete")
	}
}

func TestFindURL_AbsentIsNilNotError(t *testing.T) {
	s := New()
	ctx := context.Background()

	got, err := s.FindURLByCode(ctx, "nope")
	if err != nil {
		t.Fatalf("expected nil error for absent record, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestReadsAreDefensiveCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateURL(ctx, newURL("id-1", "abc123", "https://example.org", strPtr("owner-1"))); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := s.FindURLByCode(ctx, "abc123")
	got.URL = "https://evil.example"
	*got.OwnerID = "someone-else"

	again, _ := s.FindURLByCode(ctx, "abc123")
	if again.URL != "https://example.org" {
		t.Fatal("caller mutated backend state through returned record")
	}
	if *again.OwnerID != "owner-1" {
		t.Fatal("caller mutated owner through returned pointer")
	}
}

func TestIncrementAccessCount(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.IncrementAccessCount(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.CreateURL(ctx, newURL("id-1", "abc123", "https://example.org", nil)); err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.IncrementAccessCount(ctx, "abc123"); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.FindURLByCode(ctx, "abc123")
	if got.AccessCount != n {
		t.Fatalf("expected count %d, got %d", n, got.AccessCount)
	}
}

func TestUpdateURL_NarrowUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := newURL("id-1", "abc123", "https://example.org/old", strPtr("owner-1"))
	if err := s.CreateURL(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
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
	if *updated.OwnerID != "owner-1" {
		t.Fatal("update clobbered owner")
	}

	if _, err := s.UpdateURL(ctx, "missing", "https://example.org"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountEmailCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := &model.Account{ID: "acc-1", Email: "A@x.com", PasswordHash: "h"}
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := &model.Account{ID: "acc-2", Email: "a@x.com", PasswordHash: "h"}
	if err := s.CreateAccount(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for case-insensitive duplicate, got %v", err)
	}

	got, err := s.FindAccountByEmail(ctx, "a@X.COM")
	if err != nil || got == nil {
		t.Fatalf("lookup by differently-cased email: %v, %v", got, err)
	}
	if got.ID != "acc-1" {
		t.Fatalf("wrong account: %+v", got)
	}
}

func seedCategory(t *testing.T, s *Store, id, name, owner string) *model.Category {
	t.Helper()
	c := &model.Category{ID: id, Name: name, OwnerID: strPtr(owner)}
	if err := s.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return c
}

func TestCategoryNameUniquePerOwner(t *testing.T) {
	s := New()
	ctx := context.Background()

	seedCategory(t, s, "cat-1", "Work", "owner-1")

	dup := &model.Category{ID: "cat-2", Name: "work", OwnerID: strPtr("owner-1")}
	if err := s.CreateCategory(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for same owner, got %v", err)
	}

	other := &model.Category{ID: "cat-3", Name: "Work", OwnerID: strPtr("owner-2")}
	if err := s.CreateCategory(ctx, other); err != nil {
		t.Fatalf("same name under another owner should be fine: %v", err)
	}
}

func TestUpdateCategory_RenameChecksUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	seedCategory(t, s, "cat-1", "Work", "owner-1")
	seedCategory(t, s, "cat-2", "Home", "owner-1")

	_, err := s.UpdateCategory(ctx, &model.Category{ID: "cat-2", Name: "WORK"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on rename collision, got %v", err)
	}

	got, err := s.UpdateCategory(ctx, &model.Category{ID: "cat-2", Name: "Archive", Color: "#333"})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Name != "Archive" || got.NameKey != "archive" || got.Color != "#333" {
		t.Fatalf("unexpected category after rename: %+v", got)
	}

	// The old name must be free again.
	if c, _ := s.FindCategoryByOwnerAndName(ctx, "owner-1", "home"); c != nil {
		t.Fatal("old name still indexed after rename")
	}
}

func TestAssociationIdempotentAdd(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateURL(ctx, newURL("url-1", "abc123", "https://example.org", strPtr("owner-1"))); err != nil {
		t.Fatalf("create url: %v", err)
	}
	seedCategory(t, s, "cat-1", "Work", "owner-1")

	if err := s.AddURLCategories(ctx, "url-1", []string{"cat-1"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddURLCategories(ctx, "url-1", []string{"cat-1"}); err != nil {
		t.Fatalf("second add should be a no-op, got %v", err)
	}

	cats, err := s.CategoriesForURL(ctx, "url-1")
	if err != nil {
		t.Fatalf("categories for url: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("expected exactly one association, got %d", len(cats))
	}
}

func TestAddURLCategories_MissingEntities(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AddURLCategories(ctx, "ghost", []string{"cat-1"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing url, got %v", err)
	}

	if err := s.CreateURL(ctx, newURL("url-1", "abc123", "https://example.org", nil)); err != nil {
		t.Fatalf("create url: %v", err)
	}
	if err := s.AddURLCategories(ctx, "url-1", []string{"ghost-cat"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing category, got %v", err)
	}
}

func TestDeleteCategoryCascadesAssociations(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateURL(ctx, newURL("url-1", "abc123", "https://example.org", strPtr("owner-1"))); err != nil {
		t.Fatalf("create url: %v", err)
	}
	seedCategory(t, s, "cat-1", "Work", "owner-1")
	if err := s.AddURLCategories(ctx, "url-1", []string{"cat-1"}); err != nil {
		t.Fatalf("associate: %v", err)
	}

	if err := s.DeleteCategory(ctx, "cat-1"); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	cats, err := s.CategoriesForURL(ctx, "url-1")
	if err != nil {
		t.Fatalf("categories for url: %v", err)
	}
	if len(cats) != 0 {
		t.Fatalf("expected associations dropped, got %d", len(cats))
	}

	// Name should be reusable after the delete.
	seedCategory(t, s, "cat-2", "Work", "owner-1")
}

func TestListCategoriesWithCounts(t *testing.T) {
	s := New()
	ctx := context.Background()

	seedCategory(t, s, "cat-1", "Work", "owner-1")
	seedCategory(t, s, "cat-2", "Home", "owner-1")
	seedCategory(t, s, "cat-3", "Other", "owner-2")

	for i, code := range []string{"aaa111", "bbb222", "ccc333"} {
		u := newURL("url-"+code, code, "https://example.org", strPtr("owner-1"))
		u.CreatedAt = u.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := s.CreateURL(ctx, u); err != nil {
			t.Fatalf("create url: %v", err)
		}
		if err := s.AddURLCategories(ctx, u.ID, []string{"cat-1"}); err != nil {
			t.Fatalf("associate: %v", err)
		}
	}
	if err := s.AddURLCategories(ctx, "url-aaa111", []string{"cat-2"}); err != nil {
		t.Fatalf("associate: %v", err)
	}

	got, err := s.ListCategoriesWithCounts(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list with counts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 categories for owner-1, got %d", len(got))
	}
	counts := map[string]int64{}
	for _, cc := range got {
		counts[cc.Category.ID] = cc.URLCount
	}
	if counts["cat-1"] != 3 || counts["cat-2"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	urls, err := s.ListURLsByOwnerAndCategory(ctx, "owner-1", "cat-1")
	if err != nil {
		t.Fatalf("list by owner and category: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("expected 3 urls in cat-1, got %d", len(urls))
	}
}

func TestDeleteURLDropsAssociations(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateURL(ctx, newURL("url-1", "abc123", "https://example.org", strPtr("owner-1"))); err != nil {
		t.Fatalf("create url: %v", err)
	}
	seedCategory(t, s, "cat-1", "Work", "owner-1")
	if err := s.AddURLCategories(ctx, "url-1", []string{"cat-1"}); err != nil {
		t.Fatalf("associate: %v", err)
	}

	if err := s.DeleteURL(ctx, "abc123"); err != nil {
		t.Fatalf("delete url: %v", err)
	}

	got, err := s.ListCategoriesWithCounts(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list with counts: %v", err)
	}
	if len(got) != 1 || got[0].URLCount != 0 {
		t.Fatalf("expected count back at zero, got %+v", got)
	}
}
