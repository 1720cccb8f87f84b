// Package memory implements the storage contract with in-process maps.
//
// It is the reference backend: the relational backends must reproduce its
// return shapes and error conditions exactly. The primary code index and
// the secondary id index are only ever mutated together under the write
// lock, so they cannot drift apart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
)

// Store keeps all records in memory. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	urls     map[string]*model.ShortURL // code -> record (primary)
	idToCode map[string]string          // id -> code (secondary index)
	urlCats  map[string]map[string]struct{}

	accounts map[string]*model.Account // id -> account
	emailIdx map[string]string         // lower(email) -> id

	categories map[string]*model.Category // id -> category
	catNameIdx map[string]string          // ownerKey|nameKey -> id
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		urls:       make(map[string]*model.ShortURL),
		idToCode:   make(map[string]string),
		urlCats:    make(map[string]map[string]struct{}),
		accounts:   make(map[string]*model.Account),
		emailIdx:   make(map[string]string),
		categories: make(map[string]*model.Category),
		catNameIdx: make(map[string]string),
	}
}

var _ storage.Store = (*Store)(nil)

func cloneURL(u *model.ShortURL) *model.ShortURL {
	c := *u
	if u.OwnerID != nil {
		owner := *u.OwnerID
		c.OwnerID = &owner
	}
	return &c
}

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	return &c
}

func cloneCategory(c *model.Category) *model.Category {
	cp := *c
	if c.OwnerID != nil {
		owner := *c.OwnerID
		cp.OwnerID = &owner
	}
	return &cp
}

func ownerKey(ownerID *string) string {
	if ownerID == nil {
		return ""
	}
	return *ownerID
}

func catKey(ownerID *string, name string) string {
	return ownerKey(ownerID) + "|" + model.NormalizeCategoryName(name)
}

func (s *Store) CreateURL(ctx context.Context, u *model.ShortURL) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.urls[u.Code]; exists {
		return storage.ErrConflict
	}
	if _, exists := s.idToCode[u.ID]; exists {
		return storage.ErrConflict
	}

	stored := cloneURL(u)
	s.urls[stored.Code] = stored
	s.idToCode[stored.ID] = stored.Code
	return nil
}

func (s *Store) FindURLByCode(ctx context.Context, code string) (*model.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.urls[code]
	if !ok {
		return nil, nil
	}
	return cloneURL(u), nil
}

func (s *Store) FindURLByID(ctx context.Context, id string) (*model.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.idToCode[id]
	if !ok {
		return nil, nil
	}
	return cloneURL(s.urls[code]), nil
}

func (s *Store) UpdateURL(ctx context.Context, code, url string) (*model.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.urls[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u.URL = url
	u.UpdatedAt = time.Now().UTC()
	return cloneURL(u), nil
}

func (s *Store) DeleteURL(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.urls[code]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.urls, code)
	delete(s.idToCode, u.ID)
	delete(s.urlCats, u.ID)
	return nil
}

func (s *Store) IncrementAccessCount(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.urls[code]
	if !ok {
		return storage.ErrNotFound
	}
	u.AccessCount++
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urls[code]
	return ok, nil
}

func (s *Store) ListURLsByOwner(ctx context.Context, ownerID string) ([]model.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ShortURL
	for _, u := range s.urls {
		if u.OwnerID != nil && *u.OwnerID == ownerID {
			out = append(out, *cloneURL(u))
		}
	}
	sortURLs(out)
	return out, nil
}

func (s *Store) ListURLsByOwnerAndCategory(ctx context.Context, ownerID, categoryID string) ([]model.ShortURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ShortURL
	for _, u := range s.urls {
		if u.OwnerID == nil || *u.OwnerID != ownerID {
			continue
		}
		if _, ok := s.urlCats[u.ID][categoryID]; !ok {
			continue
		}
		out = append(out, *cloneURL(u))
	}
	sortURLs(out)
	return out, nil
}

func sortURLs(urls []model.ShortURL) {
	sort.Slice(urls, func(i, j int) bool {
		if urls[i].CreatedAt.Equal(urls[j].CreatedAt) {
			return urls[i].Code < urls[j].Code
		}
		return urls[i].CreatedAt.After(urls[j].CreatedAt)
	})
}

func (s *Store) AddURLCategories(ctx context.Context, urlID string, categoryIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idToCode[urlID]; !ok {
		return storage.ErrNotFound
	}
	for _, catID := range categoryIDs {
		if _, ok := s.categories[catID]; !ok {
			return storage.ErrNotFound
		}
	}

	set, ok := s.urlCats[urlID]
	if !ok {
		set = make(map[string]struct{})
		s.urlCats[urlID] = set
	}
	for _, catID := range categoryIDs {
		set[catID] = struct{}{}
	}
	return nil
}

func (s *Store) RemoveURLCategories(ctx context.Context, urlID string, categoryIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idToCode[urlID]; !ok {
		return storage.ErrNotFound
	}
	for _, catID := range categoryIDs {
		delete(s.urlCats[urlID], catID)
	}
	return nil
}

func (s *Store) CategoriesForURL(ctx context.Context, urlID string) ([]model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Category
	for catID := range s.urlCats[urlID] {
		if c, ok := s.categories[catID]; ok {
			out = append(out, *cloneCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey < out[j].NameKey })
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Email)
	if _, exists := s.emailIdx[key]; exists {
		return storage.ErrConflict
	}
	if _, exists := s.accounts[a.ID]; exists {
		return storage.ErrConflict
	}

	stored := cloneAccount(a)
	s.accounts[stored.ID] = stored
	s.emailIdx[key] = stored.ID
	return nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIdx[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (s *Store) CreateCategory(ctx context.Context, c *model.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := catKey(c.OwnerID, c.Name)
	if _, exists := s.catNameIdx[key]; exists {
		return storage.ErrConflict
	}
	if _, exists := s.categories[c.ID]; exists {
		return storage.ErrConflict
	}

	stored := cloneCategory(c)
	stored.NameKey = model.NormalizeCategoryName(stored.Name)
	s.categories[stored.ID] = stored
	s.catNameIdx[key] = stored.ID
	return nil
}

func (s *Store) FindCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return cloneCategory(c), nil
}

func (s *Store) FindCategoryByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.catNameIdx[ownerID+"|"+model.NormalizeCategoryName(name)]
	if !ok {
		return nil, nil
	}
	return cloneCategory(s.categories[id]), nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.categories[c.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	oldKey := catKey(cur.OwnerID, cur.Name)
	newKey := catKey(cur.OwnerID, c.Name)
	if newKey != oldKey {
		if _, taken := s.catNameIdx[newKey]; taken {
			return nil, storage.ErrConflict
		}
		delete(s.catNameIdx, oldKey)
		s.catNameIdx[newKey] = cur.ID
	}

	cur.Name = c.Name
	cur.NameKey = model.NormalizeCategoryName(c.Name)
	cur.Description = c.Description
	cur.Icon = c.Icon
	cur.Color = c.Color
	cur.UpdatedAt = time.Now().UTC()
	return cloneCategory(cur), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.categories, id)
	delete(s.catNameIdx, catKey(c.OwnerID, c.Name))
	for _, set := range s.urlCats {
		delete(set, id)
	}
	return nil
}

func (s *Store) ListCategoriesByOwner(ctx context.Context, ownerID string) ([]model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Category
	for _, c := range s.categories {
		if c.OwnerID != nil && *c.OwnerID == ownerID {
			out = append(out, *cloneCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey < out[j].NameKey })
	return out, nil
}

func (s *Store) ListCategoriesWithCounts(ctx context.Context, ownerID string) ([]storage.CategoryWithCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, set := range s.urlCats {
		for catID := range set {
			counts[catID]++
		}
	}

	var out []storage.CategoryWithCount
	for _, c := range s.categories {
		if c.OwnerID == nil || *c.OwnerID != ownerID {
			continue
		}
		out = append(out, storage.CategoryWithCount{
			Category: *cloneCategory(c),
			URLCount: counts[c.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category.NameKey < out[j].Category.NameKey })
	return out, nil
}

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls = make(map[string]*model.ShortURL)
	s.idToCode = make(map[string]string)
	s.urlCats = make(map[string]map[string]struct{})
	s.accounts = make(map[string]*model.Account)
	s.emailIdx = make(map[string]string)
	s.categories = make(map[string]*model.Category)
	s.catNameIdx = make(map[string]string)
	return nil
}
