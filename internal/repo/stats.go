// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate counters shown in the
// operator statistics view and the ops API.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/bindbot/internal/domain"
)

// Stats holds table-level counters.
type Stats struct {
	Users    int64 `json:"users"`
	Bindings int64 `json:"bindings"`
	Pending  int64 `json:"pending"`
	Logs     int64 `json:"logs"`
}

// CollectStats runs one COUNT per table. Any failure aborts and is returned.
func CollectStats(ctx context.Context, db *gorm.DB) (Stats, error) {
	var s Stats
	q := db.WithContext(ctx)

	if err := q.Model(&domain.User{}).Count(&s.Users).Error; err != nil {
		return Stats{}, err
	}
	if err := q.Model(&domain.Binding{}).Count(&s.Bindings).Error; err != nil {
		return Stats{}, err
	}
	if err := q.Model(&domain.Binding{}).Where("status = ?", domain.BindingStatusPending).Count(&s.Pending).Error; err != nil {
		return Stats{}, err
	}
	if err := q.Model(&domain.LogEntry{}).Count(&s.Logs).Error; err != nil {
		return Stats{}, err
	}
	return s, nil
}
