package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bindbot/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func allModels() []any {
	return []any{&domain.User{}, &domain.Binding{}, &domain.LogEntry{}, &domain.ErrorEntry{}}
}

func TestCollectStats_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := CollectStats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing users table")
	}
}

func TestCollectStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, allModels()...)
	s, err := CollectStats(context.Background(), db)
	if err != nil {
		t.Fatalf("CollectStats error: %v", err)
	}
	if s != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", s)
	}
}

func TestCollectStats_Counts(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []int64{1, 2, 3} {
		if err := db.Create(&domain.User{ID: id, RegisteredAt: now}).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	seed := []domain.Binding{
		{UserID: 1, Server: "RED", Status: domain.BindingStatusPending, CreatedAt: now},
		{UserID: 2, Server: "GOLD", Status: domain.BindingStatusPending, CreatedAt: now},
		{UserID: 3, Server: "UFA", Status: "done", CreatedAt: now},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed binding: %v", err)
		}
	}
	if err := AppendLog(ctx, db, 1, "start_command"); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	s, err := CollectStats(ctx, db)
	if err != nil {
		t.Fatalf("CollectStats error: %v", err)
	}
	want := Stats{Users: 3, Bindings: 3, Pending: 2, Logs: 1}
	if s != want {
		t.Fatalf("stats = %+v; want %+v", s, want)
	}
}
