package model

import "time"

// Account is an authentication principal. Email is normalized to lower case
// before it is stored, so the unique index doubles as a case-insensitive
// uniqueness check. PasswordHash is opaque to everything but the hasher.
type Account struct {
	ID           string    `db:"id" gorm:"primaryKey;size:36"`
	Email        string    `db:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `db:"password_hash" gorm:"size:255;not null"`
	CreatedAt    time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}
