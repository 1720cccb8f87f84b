package model

import (
	"strings"
	"time"
)

// Category is a named, owner-scoped tag for organizing short URLs.
// Name keeps the caller's casing for display; NameKey is the lower-cased
// form that carries the per-owner uniqueness index.
type Category struct {
	ID          string    `db:"id" gorm:"primaryKey;size:36"`
	Name        string    `db:"name" gorm:"size:255;not null"`
	NameKey     string    `db:"name_key" gorm:"size:255;not null;uniqueIndex:idx_categories_owner_name,priority:2"`
	Description string    `db:"description" gorm:"type:text"`
	Icon        string    `db:"icon" gorm:"size:64"`
	Color       string    `db:"color" gorm:"size:32"`
	OwnerID     *string   `db:"owner_id" gorm:"size:36;uniqueIndex:idx_categories_owner_name,priority:1"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// NormalizeCategoryName returns the key form used for per-owner uniqueness.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
