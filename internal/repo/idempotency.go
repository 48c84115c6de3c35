// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-update ledger used to skip
// updates the transport redelivers after a restart.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bindbot/internal/domain"
)

// ClaimUpdate records updateID as processed until now+ttl. A live record for
// the same id yields ErrDuplicate; an expired one is replaced.
func ClaimUpdate(ctx context.Context, db *gorm.DB, updateID int64, chatID int64, now time.Time, ttl time.Duration) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("update_id = ? AND expires_at <= ?", updateID, now).
			Delete(&domain.ProcessedUpdate{}).Error; err != nil {
			return err
		}
		rec := &domain.ProcessedUpdate{
			UpdateID:  updateID,
			ChatID:    chatID,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if err := tx.Create(rec).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// PruneUpdates deletes expired records and returns how many were removed.
func PruneUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
