// Package postgres implements the storage contract on PostgreSQL.
//
// Entity CRUD goes through GORM (with TranslateError mapping unique
// violations), while the set-based statements the contract requires to be
// atomic — the counter increment, bulk association add/remove, and the
// category count aggregation — go through a pgx pool with hand-written SQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New migrates the schema and returns a ready store. The gorm.DB must have
// been opened with TranslateError enabled.
func New(ctx context.Context, db *gorm.DB, pool *pgxpool.Pool) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(
		&model.Account{},
		&model.ShortURL{},
		&model.Category{},
		&model.URLCategory{},
	); err != nil {
		return nil, fmt.Errorf("postgres: auto migrate: %w", err)
	}

	// Case-insensitive email uniqueness lives in a functional index;
	// AutoMigrate cannot express it from struct tags.
	const emailIdx = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email_lower ON accounts (lower(email));`
	if _, err := pool.Exec(ctx, emailIdx); err != nil {
		return nil, fmt.Errorf("postgres: create email index: %w", err)
	}

	return &Store{db: db, pool: pool}, nil
}

// Close closes both the GORM connection and the pgx pool.
func (s *Store) Close() error {
	s.pool.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrConflict
	default:
		return err
	}
}

func (s *Store) CreateURL(ctx context.Context, u *model.ShortURL) error {
	rec := *u
	return translate(s.db.WithContext(ctx).Create(&rec).Error)
}

func (s *Store) findURL(ctx context.Context, query string, arg interface{}) (*model.ShortURL, error) {
	var u model.ShortURL
	err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindURLByCode(ctx context.Context, code string) (*model.ShortURL, error) {
	return s.findURL(ctx, "code = ?", code)
}

func (s *Store) FindURLByID(ctx context.Context, id string) (*model.ShortURL, error) {
	return s.findURL(ctx, "id = ?", id)
}

func (s *Store) UpdateURL(ctx context.Context, code, url string) (*model.ShortURL, error) {
	// Only the destination and UpdatedAt move; the counter column is
	// left to IncrementAccessCount so the two never clobber each other.
	res := s.db.WithContext(ctx).
		Model(&model.ShortURL{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"url":        url,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return s.FindURLByCode(ctx, code)
}

func (s *Store) DeleteURL(ctx context.Context, code string) error {
	res := s.db.WithContext(ctx).Where("code = ?", code).Delete(&model.ShortURL{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementAccessCount(ctx context.Context, code string) error {
	// Single atomic statement; no read-modify-write from the
	// application side.
	const q = `
UPDATE short_urls SET access_count = access_count + 1, updated_at = now() WHERE code = $1;`
	tag, err := s.pool.Exec(ctx, q, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM short_urls WHERE code = $1);`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListURLsByOwner(ctx context.Context, ownerID string) ([]model.ShortURL, error) {
	var out []model.ShortURL
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, code ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListURLsByOwnerAndCategory(ctx context.Context, ownerID, categoryID string) ([]model.ShortURL, error) {
	var out []model.ShortURL
	err := s.db.WithContext(ctx).
		Joins("JOIN url_categories uc ON uc.url_id = short_urls.id").
		Where("short_urls.owner_id = ? AND uc.category_id = ?", ownerID, categoryID).
		Order("short_urls.created_at DESC, short_urls.code ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AddURLCategories(ctx context.Context, urlID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	if err := s.checkAssociationTargets(ctx, urlID, categoryIDs); err != nil {
		return err
	}

	// Bulk insert-or-ignore keeps the idempotent-add invariant atomic
	// per call.
	const q = `
INSERT INTO url_categories (url_id, category_id)
SELECT $1, unnest($2::text[])
ON CONFLICT DO NOTHING;`
	_, err := s.pool.Exec(ctx, q, urlID, categoryIDs)
	return err
}

func (s *Store) RemoveURLCategories(ctx context.Context, urlID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ShortURL{}).Where("id = ?", urlID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrNotFound
	}

	const q = `DELETE FROM url_categories WHERE url_id = $1 AND category_id = ANY($2);`
	_, err := s.pool.Exec(ctx, q, urlID, categoryIDs)
	return err
}

func (s *Store) checkAssociationTargets(ctx context.Context, urlID string, categoryIDs []string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ShortURL{}).Where("id = ?", urlID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrNotFound
	}

	distinct := make(map[string]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		distinct[id] = struct{}{}
	}
	if err := s.db.WithContext(ctx).Model(&model.Category{}).Where("id IN ?", categoryIDs).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(distinct)) {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CategoriesForURL(ctx context.Context, urlID string) ([]model.Category, error) {
	var out []model.Category
	err := s.db.WithContext(ctx).
		Joins("JOIN url_categories uc ON uc.category_id = categories.id").
		Where("uc.url_id = ?", urlID).
		Order("categories.name_key ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	rec := *a
	return translate(s.db.WithContext(ctx).Create(&rec).Error)
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account
	err := s.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *model.Category) error {
	rec := *c
	rec.NameKey = model.NormalizeCategoryName(rec.Name)
	return translate(s.db.WithContext(ctx).Create(&rec).Error)
}

func (s *Store) FindCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindCategoryByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Category, error) {
	var c model.Category
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND name_key = ?", ownerID, model.NormalizeCategoryName(name)).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Category{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"name":        c.Name,
			"name_key":    model.NormalizeCategoryName(c.Name),
			"description": c.Description,
			"icon":        c.Icon,
			"color":       c.Color,
			"updated_at":  time.Now().UTC(),
		})
	if err := translate(res.Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return s.FindCategoryByID(ctx, c.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Category{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListCategoriesByOwner(ctx context.Context, ownerID string) ([]model.Category, error) {
	var out []model.Category
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name_key ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListCategoriesWithCounts(ctx context.Context, ownerID string) ([]storage.CategoryWithCount, error) {
	// One aggregate query instead of a count per category.
	const q = `
SELECT c.id, c.name, c.name_key, c.description, c.icon, c.color, c.owner_id, c.created_at, c.updated_at,
       COUNT(uc.url_id)
FROM categories c
LEFT JOIN url_categories uc ON uc.category_id = c.id
WHERE c.owner_id = $1
GROUP BY c.id
ORDER BY c.name_key ASC;`
	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.CategoryWithCount
	for rows.Next() {
		var (
			c     model.Category
			count int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.NameKey, &c.Description, &c.Icon, &c.Color,
			&c.OwnerID, &c.CreatedAt, &c.UpdatedAt, &count); err != nil {
			return nil, err
		}
		out = append(out, storage.CategoryWithCount{Category: c, URLCount: count})
	}
	return out, rows.Err()
}
