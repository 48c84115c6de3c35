// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides append-only writers for the audit log
// and the error journal, plus a tail reader for the audit log.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bindbot/internal/domain"
)

// AppendLog inserts an audit record for userID.
func AppendLog(ctx context.Context, db *gorm.DB, userID int64, action string) error {
	e := &domain.LogEntry{
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(e).Error
}

// ListRecentLogs returns up to limit audit records, newest first.
func ListRecentLogs(ctx context.Context, db *gorm.DB, limit int) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	q := db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// RecordError inserts an entry into the error journal.
func RecordError(ctx context.Context, db *gorm.DB, text string) error {
	e := &domain.ErrorEntry{
		ErrorText: text,
		Timestamp: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(e).Error
}
