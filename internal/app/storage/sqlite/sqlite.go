// Package sqlite implements the storage contract on SQLite via the pure-Go
// modernc.org driver, with hand-written SQL and an embedded schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"

	_ "modernc.org/sqlite"
)

// Store implements storage.Store backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// churn and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

// isUniqueViolation detects unique-constraint failures by message; the
// driver does not export a stable error type for them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

func (s *Store) CreateURL(ctx context.Context, u *model.ShortURL) error {
	const q = `
INSERT INTO short_urls (id, code, url, access_count, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, q,
		u.ID, u.Code, u.URL, u.AccessCount, ownerArg(u.OwnerID),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	return err
}

func ownerArg(ownerID *string) interface{} {
	if ownerID == nil {
		return nil
	}
	return *ownerID
}

const urlColumns = `id, code, url, access_count, owner_id, created_at, updated_at`

func scanURL(row interface{ Scan(...interface{}) error }) (*model.ShortURL, error) {
	var (
		u       model.ShortURL
		owner   sql.NullString
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&u.ID, &u.Code, &u.URL, &u.AccessCount, &owner, &created, &updated); err != nil {
		return nil, err
	}
	if owner.Valid {
		u.OwnerID = &owner.String
	}
	u.CreatedAt = created.UTC()
	u.UpdatedAt = updated.UTC()
	return &u, nil
}

func (s *Store) findURL(ctx context.Context, where string, arg interface{}) (*model.ShortURL, error) {
	q := `SELECT ` + urlColumns + ` FROM short_urls WHERE ` + where + ` LIMIT 1;`
	u, err := scanURL(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) FindURLByCode(ctx context.Context, code string) (*model.ShortURL, error) {
	return s.findURL(ctx, "code = ?", code)
}

func (s *Store) FindURLByID(ctx context.Context, id string) (*model.ShortURL, error) {
	return s.findURL(ctx, "id = ?", id)
}

func (s *Store) UpdateURL(ctx context.Context, code, url string) (*model.ShortURL, error) {
	const q = `UPDATE short_urls SET url = ?, updated_at = ? WHERE code = ?;`
	res, err := s.db.ExecContext(ctx, q, url, time.Now().UTC(), code)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.FindURLByCode(ctx, code)
}

func (s *Store) DeleteURL(ctx context.Context, code string) error {
	const q = `DELETE FROM short_urls WHERE code = ?;`
	res, err := s.db.ExecContext(ctx, q, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementAccessCount(ctx context.Context, code string) error {
	// Single atomic statement so concurrent increments never lose
	// updates and a concurrent destination update is never clobbered.
	const q = `
UPDATE short_urls SET access_count = access_count + 1, updated_at = ? WHERE code = ?;`
	res, err := s.db.ExecContext(ctx, q, time.Now().UTC(), code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	const q = `SELECT 1 FROM short_urls WHERE code = ? LIMIT 1;`
	var one int
	err := s.db.QueryRowContext(ctx, q, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) queryURLs(ctx context.Context, q string, args ...interface{}) ([]model.ShortURL, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ShortURL
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) ListURLsByOwner(ctx context.Context, ownerID string) ([]model.ShortURL, error) {
	const q = `
SELECT ` + urlColumns + ` FROM short_urls
WHERE owner_id = ?
ORDER BY created_at DESC, code ASC;`
	return s.queryURLs(ctx, q, ownerID)
}

func (s *Store) ListURLsByOwnerAndCategory(ctx context.Context, ownerID, categoryID string) ([]model.ShortURL, error) {
	const q = `
SELECT u.id, u.code, u.url, u.access_count, u.owner_id, u.created_at, u.updated_at
FROM short_urls u
JOIN url_categories uc ON uc.url_id = u.id
WHERE u.owner_id = ? AND uc.category_id = ?
ORDER BY u.created_at DESC, u.code ASC;`
	return s.queryURLs(ctx, q, ownerID, categoryID)
}

func (s *Store) urlExists(ctx context.Context, urlID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM short_urls WHERE id = ? LIMIT 1;`, urlID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) AddURLCategories(ctx context.Context, urlID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	ok, err := s.urlExists(ctx, urlID)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categoryIDs)), ",")
	args := make([]interface{}, 0, len(categoryIDs)+1)
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	var n int
	countQ := `SELECT COUNT(*) FROM categories WHERE id IN (` + placeholders + `);`
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&n); err != nil {
		return err
	}
	if n != len(dedupe(categoryIDs)) {
		return storage.ErrNotFound
	}

	// One set-based INSERT OR IGNORE keeps the add idempotent and atomic
	// per call.
	var b strings.Builder
	b.WriteString(`INSERT OR IGNORE INTO url_categories (url_id, category_id) VALUES `)
	insertArgs := make([]interface{}, 0, len(categoryIDs)*2)
	for i, id := range categoryIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?)")
		insertArgs = append(insertArgs, urlID, id)
	}
	b.WriteString(";")
	_, err = s.db.ExecContext(ctx, b.String(), insertArgs...)
	return err
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Store) RemoveURLCategories(ctx context.Context, urlID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	ok, err := s.urlExists(ctx, urlID)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categoryIDs)), ",")
	args := make([]interface{}, 0, len(categoryIDs)+1)
	args = append(args, urlID)
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	q := `DELETE FROM url_categories WHERE url_id = ? AND category_id IN (` + placeholders + `);`
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

const categoryColumns = `id, name, name_key, description, icon, color, owner_id, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (*model.Category, error) {
	var (
		c       model.Category
		owner   sql.NullString
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&c.ID, &c.Name, &c.NameKey, &c.Description, &c.Icon, &c.Color, &owner, &created, &updated); err != nil {
		return nil, err
	}
	if owner.Valid {
		c.OwnerID = &owner.String
	}
	c.CreatedAt = created.UTC()
	c.UpdatedAt = updated.UTC()
	return &c, nil
}

func (s *Store) CategoriesForURL(ctx context.Context, urlID string) ([]model.Category, error) {
	const q = `
SELECT c.id, c.name, c.name_key, c.description, c.icon, c.color, c.owner_id, c.created_at, c.updated_at
FROM categories c
JOIN url_categories uc ON uc.category_id = c.id
WHERE uc.url_id = ?
ORDER BY c.name_key ASC;`
	rows, err := s.db.QueryContext(ctx, q, urlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	return err
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	const q = `
SELECT id, email, password_hash, created_at, updated_at
FROM accounts WHERE lower(email) = lower(?) LIMIT 1;`
	return s.scanAccountRow(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (*model.Account, error) {
	const q = `
SELECT id, email, password_hash, created_at, updated_at
FROM accounts WHERE id = ? LIMIT 1;`
	return s.scanAccountRow(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) scanAccountRow(row *sql.Row) (*model.Account, error) {
	var (
		a       model.Account
		created time.Time
		updated time.Time
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = created.UTC()
	a.UpdatedAt = updated.UTC()
	return &a, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *model.Category) error {
	const q = `
INSERT INTO categories (id, name, name_key, description, icon, color, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.Name, model.NormalizeCategoryName(c.Name), c.Description, c.Icon, c.Color,
		ownerArg(c.OwnerID), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	return err
}

func (s *Store) FindCategoryByID(ctx context.Context, id string) (*model.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ? LIMIT 1;`
	c, err := scanCategory(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) FindCategoryByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories WHERE owner_id = ? AND name_key = ? LIMIT 1;`
	c, err := scanCategory(s.db.QueryRowContext(ctx, q, ownerID, model.NormalizeCategoryName(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	const q = `
UPDATE categories
SET name = ?, name_key = ?, description = ?, icon = ?, color = ?, updated_at = ?
WHERE id = ?;`
	res, err := s.db.ExecContext(ctx, q,
		c.Name, model.NormalizeCategoryName(c.Name), c.Description, c.Icon, c.Color,
		time.Now().UTC(), c.ID)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.FindCategoryByID(ctx, c.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	const q = `DELETE FROM categories WHERE id = ?;`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListCategoriesByOwner(ctx context.Context, ownerID string) ([]model.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories WHERE owner_id = ? ORDER BY name_key ASC;`
	rows, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) ListCategoriesWithCounts(ctx context.Context, ownerID string) ([]storage.CategoryWithCount, error) {
	const q = `
SELECT c.id, c.name, c.name_key, c.description, c.icon, c.color, c.owner_id, c.created_at, c.updated_at,
       COUNT(uc.url_id)
FROM categories c
LEFT JOIN url_categories uc ON uc.category_id = c.id
WHERE c.owner_id = ?
GROUP BY c.id
ORDER BY c.name_key ASC;`
	rows, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.CategoryWithCount
	for rows.Next() {
		var (
			c       model.Category
			owner   sql.NullString
			created time.Time
			updated time.Time
			count   int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.NameKey, &c.Description, &c.Icon, &c.Color, &owner, &created, &updated, &count); err != nil {
			return nil, err
		}
		if owner.Valid {
			c.OwnerID = &owner.String
		}
		c.CreatedAt = created.UTC()
		c.UpdatedAt = updated.UTC()
		out = append(out, storage.CategoryWithCount{Category: c, URLCount: count})
	}
	return out, rows.Err()
}
