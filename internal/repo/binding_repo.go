// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Binding
// model, including the correlation lookup used to route operator replies.
//
// Error semantics:
//   - A binding missing for the given id or admin message id yields
//     ErrNotFound.
//   - Attaching message ids twice yields ErrAlreadyAttached.
//   - Reusing an admin message id already held by another binding yields
//     ErrDuplicate.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bindbot/internal/domain"
)

var (
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate")

	// ErrAlreadyAttached indicates the binding already carries message ids.
	ErrAlreadyAttached = errors.New("message ids already attached")
)

// CreateBinding inserts a pending binding for userID on server and returns it
// with its assigned id.
func CreateBinding(ctx context.Context, db *gorm.DB, userID int64, server string) (*domain.Binding, error) {
	b := &domain.Binding{
		UserID:    userID,
		Server:    server,
		Status:    domain.BindingStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// AttachMessageIDs stores the user acknowledgement and admin notification ids
// on binding id. The update only applies while both ids are still NULL.
func AttachMessageIDs(ctx context.Context, db *gorm.DB, id int64, userMsgID, adminMsgID int) error {
	res := db.WithContext(ctx).
		Model(&domain.Binding{}).
		Where("id = ? AND admin_message_id IS NULL AND user_message_id IS NULL", id).
		Updates(map[string]any{
			"user_message_id":  userMsgID,
			"admin_message_id": adminMsgID,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := db.WithContext(ctx).Model(&domain.Binding{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrAlreadyAttached
}

// FindBindingByAdminMessageID returns the binding whose operator notification
// carries adminMsgID, or ErrNotFound.
func FindBindingByAdminMessageID(ctx context.Context, db *gorm.DB, adminMsgID int) (*domain.Binding, error) {
	var b domain.Binding
	err := db.WithContext(ctx).
		Where("admin_message_id = ?", adminMsgID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBinding fetches a binding by id, or ErrNotFound.
func GetBinding(ctx context.Context, db *gorm.DB, id int64) (*domain.Binding, error) {
	var b domain.Binding
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListRecentBindings returns up to limit bindings, newest first.
func ListRecentBindings(ctx context.Context, db *gorm.DB, limit int) ([]domain.Binding, error) {
	var out []domain.Binding
	q := db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// isUniqueViolation detects unique-constraint failures that glebarez/sqlite
// reports as plain-text errors rather than gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
