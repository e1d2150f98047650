package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/models"
	"gigearn-link/internal/tokenstore"
)

type tokenRepository struct {
	*Database
	clock func() time.Time
}

// TokenRepository exposes the database as a token store backend.
func (d *Database) TokenRepository() dependency.KVStore {
	return &tokenRepository{Database: d, clock: time.Now}
}

func (repo *tokenRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}

	encrypted, err := repo.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt token entry: %w", err)
	}

	now := repo.clock().UTC()
	entry := models.TokenEntry{
		Key:       key,
		Value:     encrypted,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	err = repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return errors.New("error save token entry: " + err.Error())
	}

	return nil
}

// SetNX inserts key unless a live row holds it. An expired row is removed
// first so the slot can be claimed again.
func (repo *tokenRepository) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	encrypted, err := repo.cipher.Encrypt(value)
	if err != nil {
		return false, fmt.Errorf("encrypt token entry: %w", err)
	}

	now := repo.clock().UTC()
	entry := models.TokenEntry{
		Key:       key,
		Value:     encrypted,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	var created bool
	err = repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
			Delete(&models.TokenEntry{}).Error
		if err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&entry)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, errors.New("error claim token entry: " + err.Error())
	}

	return created, nil
}

func (repo *tokenRepository) Get(ctx context.Context, key string) (string, error) {
	var entry models.TokenEntry
	err := repo.db.WithContext(ctx).
		Where("key = ? AND (expires_at IS NULL OR expires_at > ?)", key, repo.clock().UTC()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", tokenstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error get token entry: %w", err)
	}

	value, err := repo.cipher.Decrypt(entry.Value)
	if err != nil {
		return "", fmt.Errorf("decrypt token entry: %w", err)
	}

	return value, nil
}

func (repo *tokenRepository) Delete(ctx context.Context, key string) error {
	return repo.db.WithContext(ctx).Where("key = ?", key).Delete(&models.TokenEntry{}).Error
}

func (repo *tokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", repo.clock().UTC()).
		Delete(&models.TokenEntry{})
	return result.RowsAffected, result.Error
}
