package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shortreg/internal/app/model"
	"shortreg/internal/app/shortener"
	"shortreg/internal/app/storage/memory"
)

// plainHasher keeps account tests independent of bcrypt cost.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }
func (plainHasher) Compare(plain, hash string) bool   { return hash == "hashed:"+plain }

func newTestRegistry() (*Registry, *memory.Store) {
	store := memory.New()
	codes := shortener.New(store, 0, 0)
	return NewRegistry(store, codes, plainHasher{}, nil), store
}

func TestRegistry_CreateAndResolve(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	rec, err := reg.CreateURL(ctx, "", CreateURLInput{URL: "https://example.com/page"})
	if err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}
	if len(rec.Code) != shortener.DefaultLength {
		t.Fatalf("expected %d-character code, got %q", shortener.DefaultLength, rec.Code)
	}
	if rec.OwnerID != nil {
		t.Fatalf("anonymous create must produce an ownerless record, got owner %v", *rec.OwnerID)
	}

	got, err := reg.Resolve(ctx, rec.Code)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.URL != "https://example.com/page" {
		t.Fatalf("expected destination round-trip, got %s", got.URL)
	}

	if _, err := reg.Resolve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestRegistry_CreateURL_Validation(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	cases := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "example.com/page"},
		{"bad scheme", "ftp://example.com/file"},
		{"no host", "https://"},
		{"too long", "https://example.com/" + strings.Repeat("x", maxURLLength)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.CreateURL(ctx, "", CreateURLInput{URL: tc.url})
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegistry_RecordAccess(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	rec, err := reg.CreateURL(ctx, "", CreateURLInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}

	for i := 0; i < 3; i++ {
		reg.RecordAccess(ctx, rec.Code)
	}

	got, err := reg.Resolve(ctx, rec.Code)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.AccessCount != 3 {
		t.Fatalf("expected access count 3, got %d", got.AccessCount)
	}

	// Unknown codes are suppressed, not surfaced.
	reg.RecordAccess(ctx, "missing")
}

func TestRegistry_Ownership(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	owned, err := reg.CreateURL(ctx, "alice", CreateURLInput{URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}

	if _, err := reg.GetURL(ctx, "bob", owned.Code); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign read, got %v", err)
	}
	if _, err := reg.UpdateURL(ctx, "bob", owned.Code, "https://example.com/b"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign update, got %v", err)
	}
	if err := reg.DeleteURL(ctx, "", owned.Code); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous delete of owned record, got %v", err)
	}

	if _, err := reg.GetURL(ctx, "alice", owned.Code); err != nil {
		t.Fatalf("owner read error: %v", err)
	}

	// Ownerless records are open to everyone.
	open, err := reg.CreateURL(ctx, "", CreateURLInput{URL: "https://example.com/open"})
	if err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}
	if _, err := reg.UpdateURL(ctx, "bob", open.Code, "https://example.com/open2"); err != nil {
		t.Fatalf("expected ownerless record mutable by anyone, got %v", err)
	}
}

func TestRegistry_UpdateURL_PreservesCount(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	rec, err := reg.CreateURL(ctx, "alice", CreateURLInput{URL: "https://example.com/old"})
	if err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}
	reg.RecordAccess(ctx, rec.Code)
	reg.RecordAccess(ctx, rec.Code)

	updated, err := reg.UpdateURL(ctx, "alice", rec.Code, "https://example.com/new")
	if err != nil {
		t.Fatalf("UpdateURL error: %v", err)
	}
	if updated.URL != "https://example.com/new" {
		t.Fatalf("expected new destination, got %s", updated.URL)
	}
	if updated.AccessCount != 2 {
		t.Fatalf("update must not touch the counter, got %d", updated.AccessCount)
	}
	if updated.OwnerID == nil || *updated.OwnerID != "alice" {
		t.Fatal("update must not touch ownership")
	}

	if _, err := reg.UpdateURL(ctx, "alice", rec.Code, "nonsense"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad destination, got %v", err)
	}
}

func TestRegistry_DeleteURL(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	rec, err := reg.CreateURL(ctx, "alice", CreateURLInput{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}
	if err := reg.DeleteURL(ctx, "alice", rec.Code); err != nil {
		t.Fatalf("DeleteURL error: %v", err)
	}
	if _, err := reg.Resolve(ctx, rec.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := reg.DeleteURL(ctx, "alice", rec.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestRegistry_ListURLs(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	if _, err := reg.ListURLs(ctx, "", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous list, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := reg.CreateURL(ctx, "alice", CreateURLInput{URL: "https://example.com/a"}); err != nil {
			t.Fatalf("CreateURL error: %v", err)
		}
	}
	if _, err := reg.CreateURL(ctx, "bob", CreateURLInput{URL: "https://example.com/b"}); err != nil {
		t.Fatalf("CreateURL error: %v", err)
	}

	list, err := reg.ListURLs(ctx, "alice", "")
	if err != nil {
		t.Fatalf("ListURLs error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records for alice, got %d", len(list))
	}
	for _, rec := range list {
		if rec.OwnerID == nil || *rec.OwnerID != "alice" {
			t.Fatalf("listed a record not owned by alice: %+v", rec)
		}
	}
}

// exhaustedStore reports every candidate as taken, forcing the retry
// budget to run out.
type exhaustedStore struct {
	*memory.Store
}

func (s *exhaustedStore) CodeExists(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func TestRegistry_GenerationExhausted(t *testing.T) {
	store := &exhaustedStore{Store: memory.New()}
	codes := shortener.New(store, 0, 3)
	reg := NewRegistry(store, codes, plainHasher{}, nil)

	_, err := reg.CreateURL(context.Background(), "", CreateURLInput{URL: "https://example.com"})
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
}

// failingStore simulates a backend outage on reads.
type failingStore struct {
	*memory.Store
}

func (s *failingStore) FindURLByCode(ctx context.Context, code string) (*model.ShortURL, error) {
	return nil, errors.New("connection refused")
}

func TestRegistry_StorageFailureIsOpaque(t *testing.T) {
	store := &failingStore{Store: memory.New()}
	codes := shortener.New(store, 0, 0)
	reg := NewRegistry(store, codes, plainHasher{}, nil)

	_, err := reg.Resolve(context.Background(), "abc123")
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
