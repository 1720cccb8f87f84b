package model

import "time"

// ShortURL maps a system-generated short code to a destination URL.
// Code is assigned once at creation and never changes; OwnerID is nil for
// legacy records that predate accounts.
type ShortURL struct {
	ID          string    `db:"id" gorm:"primaryKey;size:36"`
	Code        string    `db:"code" gorm:"uniqueIndex;size:32;not null"`
	URL         string    `db:"url" gorm:"type:text;not null"`
	AccessCount int64     `db:"access_count" gorm:"not null;default:0"`
	OwnerID     *string   `db:"owner_id" gorm:"size:36;index"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// URLCategory is the join row between a short URL and a category. It is
// keyed by the (URL id, category id) pair, not by short code.
type URLCategory struct {
	URLID      string `db:"url_id" gorm:"primaryKey;size:36"`
	CategoryID string `db:"category_id" gorm:"primaryKey;size:36"`

	URL      ShortURL `gorm:"foreignKey:URLID;constraint:OnDelete:CASCADE"`
	Category Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}
