package models

import (
	"time"
)

// TokenEntry is one key of the token store when it is backed by a database.
// Value holds ciphertext only.
type TokenEntry struct {
	Key       string     `gorm:"primaryKey;size:255"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time  `gorm:"not null"`
}
