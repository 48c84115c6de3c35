package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bindbot/internal/domain"
	"github.com/tbourn/bindbot/internal/repo"
)

// ---------- test helpers ----------

func newStoreDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:store_%s?mode=memory&cache=shared", uuid.NewString())

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

func newFullStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newStoreDB(t, &domain.User{}, &domain.Binding{}, &domain.LogEntry{}, &domain.ErrorEntry{}, &domain.ProcessedUpdate{}))
}

// ---------- UpsertUser ----------

func TestStore_UpsertUser_Idempotent(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, 42, "alex", "A", "B"); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := s.UpsertUser(ctx, 42, "alex2", "C", "D"); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	var users []domain.User
	if err := s.DB.Find(&users).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alex2" || users[0].FirstName != "C" || users[0].LastName != "D" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

// ---------- CreateRequest / AttachMessageIDs / Find ----------

func TestStore_RequestLifecycle(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()

	id, err := s.CreateRequest(ctx, 42, "MOSCOW")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := s.AttachMessageIDs(ctx, id, 11, 22); err != nil {
		t.Fatalf("AttachMessageIDs: %v", err)
	}
	r, err := s.FindRequestByAdminMessageID(ctx, 22)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if r.BindingID != id || r.UserID != 42 || r.UserMessageID != 11 {
		t.Fatalf("unexpected route: %+v", r)
	}
}

func TestStore_CreateRequest_BlankServer(t *testing.T) {
	s := newFullStore(t)
	if _, err := s.CreateRequest(context.Background(), 1, "  "); !errors.Is(err, ErrInvalidServer) {
		t.Fatalf("expected ErrInvalidServer, got %v", err)
	}
}

func TestStore_FindRequest_NotFound(t *testing.T) {
	s := newFullStore(t)
	if _, err := s.FindRequestByAdminMessageID(context.Background(), 9999); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestStore_FindRequest_DBError(t *testing.T) {
	s := NewStore(newStoreDB(t /* no tables */))
	_, err := s.FindRequestByAdminMessageID(context.Background(), 1)
	if err == nil || errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}

func TestStore_AttachMessageIDs_ErrorMapping(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()

	if err := s.AttachMessageIDs(ctx, 12345, 1, 2); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("missing binding: expected ErrBindingNotFound, got %v", err)
	}

	a, _ := s.CreateRequest(ctx, 1, "RED")
	b, _ := s.CreateRequest(ctx, 2, "GOLD")
	if err := s.AttachMessageIDs(ctx, a, 1, 50); err != nil {
		t.Fatalf("attach a: %v", err)
	}
	if err := s.AttachMessageIDs(ctx, a, 3, 51); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("re-attach: expected ErrAlreadyAttached, got %v", err)
	}
	if err := s.AttachMessageIDs(ctx, b, 4, 50); !errors.Is(err, ErrAdminMessageTaken) {
		t.Fatalf("duplicate admin id: expected ErrAdminMessageTaken, got %v", err)
	}
}

// ---------- AppendLog / RecordError ----------

func TestStore_AppendLog_Persists(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()
	s.AppendLog(ctx, 42, "start_command")

	logs, err := s.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "start_command" || logs[0].UserID != 42 {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestStore_AppendLog_FailureIsSwallowedAndLogged(t *testing.T) {
	// Only users/bindings exist: the logs insert fails.
	s := NewStore(newStoreDB(t, &domain.User{}, &domain.Binding{}))

	var buf bytes.Buffer
	lg := zerolog.New(&buf)
	ctx := lg.WithContext(context.Background())

	s.AppendLog(ctx, 42, "start_command") // must not panic or return anything

	if !strings.Contains(buf.String(), "audit log write failed") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}

	// The primary operation still works.
	id, err := s.CreateRequest(ctx, 42, "RED")
	if err != nil || id == 0 {
		t.Fatalf("primary op affected: id=%d err=%v", id, err)
	}
}

func TestStore_RecordError(t *testing.T) {
	s := newFullStore(t)
	s.RecordError(context.Background(), "handler exploded")

	var got domain.ErrorEntry
	if err := s.DB.First(&got).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ErrorText != "handler exploded" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	// Missing table: swallowed.
	bare := NewStore(newStoreDB(t))
	bare.RecordError(context.Background(), "ignored")
}

// ---------- read helpers ----------

func TestStore_StatsBindingsAndUserIDs(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()

	_ = s.UpsertUser(ctx, 1, "a", "", "")
	_ = s.UpsertUser(ctx, 2, "b", "", "")
	_, _ = s.CreateRequest(ctx, 1, "RED")
	s.AppendLog(ctx, 1, "x")

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (repo.Stats{Users: 2, Bindings: 1, Pending: 1, Logs: 1}) {
		t.Fatalf("unexpected stats: %+v", st)
	}

	bs, err := s.RecentBindings(ctx, 5)
	if err != nil || len(bs) != 1 || bs[0].Server != "RED" {
		t.Fatalf("RecentBindings: %+v %v", bs, err)
	}

	ids, err := s.UserIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("UserIDs: %v %v", ids, err)
	}
}

// ---------- ClaimUpdate ----------

func TestStore_ClaimUpdate_DetectsRedelivery(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()

	ok, err := s.ClaimUpdate(ctx, 100, 42)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = s.ClaimUpdate(ctx, 100, 42)
	if err != nil || ok {
		t.Fatalf("redelivery: ok=%v err=%v", ok, err)
	}
}

func TestStore_ClaimUpdate_ExpiresAfterTTL(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.UpdateTTL = time.Hour

	if ok, _ := s.ClaimUpdate(ctx, 5, 1); !ok {
		t.Fatalf("first claim refused")
	}
	now = now.Add(2 * time.Hour)
	if ok, err := s.ClaimUpdate(ctx, 5, 1); !ok || err != nil {
		t.Fatalf("claim after ttl: ok=%v err=%v", ok, err)
	}
}

func TestStore_ClaimUpdate_PrunesPeriodically(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.UpdateTTL = time.Minute

	for i := 1; i < pruneEvery; i++ {
		if ok, err := s.ClaimUpdate(ctx, i, 1); !ok || err != nil {
			t.Fatalf("claim %d: ok=%v err=%v", i, ok, err)
		}
	}
	now = now.Add(time.Hour)
	if ok, err := s.ClaimUpdate(ctx, pruneEvery, 1); !ok || err != nil {
		t.Fatalf("sweep claim: ok=%v err=%v", ok, err)
	}

	var left int64
	s.DB.Model(&domain.ProcessedUpdate{}).Count(&left)
	if left != 1 {
		t.Fatalf("rows after sweep = %d, want 1", left)
	}
}

func TestStore_ClaimUpdate_StorageError(t *testing.T) {
	s := NewStore(newStoreDB(t /* no tables */))
	if ok, err := s.ClaimUpdate(context.Background(), 1, 1); err == nil || ok {
		t.Fatalf("expected storage error, got ok=%v err=%v", ok, err)
	}
}

// ---------- Binding / User lookups ----------

func TestStore_BindingAndUserLookups(t *testing.T) {
	s := newFullStore(t)
	ctx := context.Background()

	_ = s.UpsertUser(ctx, 42, "alex", "Alex", "")
	id, _ := s.CreateRequest(ctx, 42, "MOSCOW")

	b, err := s.Binding(ctx, id)
	if err != nil || b.Server != "MOSCOW" || b.UserID != 42 {
		t.Fatalf("Binding: %+v %v", b, err)
	}
	u, err := s.User(ctx, 42)
	if err != nil || u.Username != "alex" {
		t.Fatalf("User: %+v %v", u, err)
	}

	if _, err := s.Binding(ctx, 999); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("missing binding: %v", err)
	}
	if _, err := s.User(ctx, 7); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestStore_BindingLookup_DBError(t *testing.T) {
	s := NewStore(newStoreDB(t /* no tables */))
	if _, err := s.Binding(context.Background(), 1); err == nil || errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
	if _, err := s.User(context.Background(), 1); err == nil || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}
